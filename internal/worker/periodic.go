package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RunFunc is one pass of a periodic job.
type RunFunc func(ctx context.Context) error

// Periodic runs a job on a fixed interval. The first pass runs right after
// Start so a restart never waits a full interval to catch up.
type Periodic struct {
	name     string
	interval time.Duration
	run      RunFunc
	logger   *zap.Logger

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	isRunning bool
	lastRun   time.Time
	runCount  int
	failCount int
	lastError error
}

// NewPeriodic creates a periodic worker.
func NewPeriodic(name string, interval time.Duration, run RunFunc, logger *zap.Logger) *Periodic {
	return &Periodic{
		name:     name,
		interval: interval,
		run:      run,
		logger:   logger,
	}
}

// Name implements Worker.
func (p *Periodic) Name() string {
	return p.name
}

// Start begins the polling loop
func (p *Periodic) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.isRunning {
		p.mu.Unlock()
		return fmt.Errorf("worker %s already running", p.name)
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.isRunning = true
	p.mu.Unlock()

	p.logger.Info("Periodic worker started",
		zap.String("name", p.name),
		zap.Duration("interval", p.interval))

	go p.loop()
	return nil
}

// Stop gracefully terminates the worker
func (p *Periodic) Stop() {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return
	}
	p.isRunning = false
	cancel := p.cancel
	runs, fails := p.runCount, p.failCount
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	p.logger.Info("Periodic worker stopped",
		zap.String("name", p.name),
		zap.Int("run_count", runs),
		zap.Int("fail_count", fails))
}

func (p *Periodic) loop() {
	p.runOnce()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.runOnce()
		}
	}
}

func (p *Periodic) runOnce() {
	err := p.run(p.ctx)

	p.mu.Lock()
	p.lastRun = time.Now()
	p.runCount++
	if err != nil {
		p.failCount++
		p.lastError = err
	}
	p.mu.Unlock()

	if err != nil && p.ctx.Err() == nil {
		p.logger.Error("Periodic run failed",
			zap.String("name", p.name),
			zap.Error(err))
	}
}

// RunNow executes one pass immediately (for testing)
func (p *Periodic) RunNow(ctx context.Context) error {
	return p.run(ctx)
}
