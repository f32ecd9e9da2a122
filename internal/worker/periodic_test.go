package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPeriodic_RunsImmediatelyOnStart(t *testing.T) {
	var runs atomic.Int32
	ran := make(chan struct{}, 1)
	p := NewPeriodic("test", time.Hour, func(context.Context) error {
		runs.Add(1)
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}, zap.NewNop())

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("first pass did not run on start")
	}
	assert.Equal(t, int32(1), runs.Load())
}

func TestPeriodic_DoubleStartFails(t *testing.T) {
	p := NewPeriodic("test", time.Hour, func(context.Context) error { return nil }, zap.NewNop())

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	assert.Error(t, p.Start(context.Background()))
}

func TestPeriodic_StopIsIdempotent(t *testing.T) {
	p := NewPeriodic("test", time.Hour, func(context.Context) error { return nil }, zap.NewNop())
	require.NoError(t, p.Start(context.Background()))

	p.Stop()
	p.Stop()
}

func TestPeriodic_RunNow(t *testing.T) {
	wantErr := errors.New("pass failed")
	p := NewPeriodic("test", time.Hour, func(context.Context) error { return wantErr }, zap.NewNop())

	assert.ErrorIs(t, p.RunNow(context.Background()), wantErr)
}

func TestManager_StartsAndStopsAll(t *testing.T) {
	m := NewManager(zap.NewNop())
	a := NewPeriodic("a", time.Hour, func(context.Context) error { return nil }, zap.NewNop())
	b := NewPeriodic("b", time.Hour, func(context.Context) error { return nil }, zap.NewNop())
	m.Register(a)
	m.Register(b)

	require.NoError(t, m.StartAll(context.Background()))
	m.StopAll()

	// Stopped workers can be restarted.
	require.NoError(t, a.Start(context.Background()))
	a.Stop()
}

func TestManager_StartAllStopsStartedWorkersOnFailure(t *testing.T) {
	m := NewManager(zap.NewNop())
	a := NewPeriodic("a", time.Hour, func(context.Context) error { return nil }, zap.NewNop())
	b := NewPeriodic("b", time.Hour, func(context.Context) error { return nil }, zap.NewNop())
	m.Register(a)
	m.Register(b)

	// A worker that is already running refuses a second Start, failing
	// the manager's pass partway through.
	require.NoError(t, b.Start(context.Background()))
	defer b.Stop()

	err := m.StartAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start worker b")

	// a was started before b failed and must have been stopped again:
	// a fresh Start succeeds only on a stopped worker.
	require.NoError(t, a.Start(context.Background()))
	a.Stop()
}
