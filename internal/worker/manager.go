package worker

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Worker is a background job with explicit lifecycle control. Start must
// not block; Stop must be safe to call more than once.
type Worker interface {
	Start(ctx context.Context) error
	Stop()
	Name() string
}

// Manager owns the pipeline's background workers. Registration order is
// startup order and shutdown runs in reverse, so the fetcher is up before
// the analyzer and comes down after it.
type Manager struct {
	mu      sync.Mutex
	workers []Worker
	logger  *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger}
}

// Register adds a worker. Call before StartAll.
func (m *Manager) Register(w Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workers = append(m.workers, w)
}

// StartAll starts every registered worker in order. If one fails, the
// workers already started are stopped again and the error is returned,
// so a failed startup never leaves a partial set running.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	workers := make([]Worker, len(m.workers))
	copy(workers, m.workers)
	m.mu.Unlock()

	for i, w := range workers {
		if err := w.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				workers[j].Stop()
			}
			return fmt.Errorf("start worker %s: %w", w.Name(), err)
		}
		m.logger.Info("Worker started", zap.String("name", w.Name()))
	}
	return nil
}

// StopAll stops every worker in reverse registration order and waits for
// each Stop to return before moving on.
func (m *Manager) StopAll() {
	m.mu.Lock()
	workers := make([]Worker, len(m.workers))
	copy(workers, m.workers)
	m.mu.Unlock()

	for i := len(workers) - 1; i >= 0; i-- {
		workers[i].Stop()
		m.logger.Info("Worker stopped", zap.String("name", workers[i].Name()))
	}
}
