package usecase

import (
	"context"
	"sync"
	"time"

	applogger "ValueFlow/pkg/logger"
)

// WindowRunner processes windows on a fixed cadence. Each tick closes the
// window ending now and spanning the configured duration.
type WindowRunner struct {
	proc *WindowProcessor
	span time.Duration
	l    *applogger.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func NewWindowRunner(proc *WindowProcessor, span time.Duration, l *applogger.Logger) *WindowRunner {
	if span <= 0 {
		span = time.Minute
	}
	return &WindowRunner{
		proc:   proc,
		span:   span,
		l:      l,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the window loop.
func (r *WindowRunner) Start(ctx context.Context) {
	go r.run(ctx)
}

func (r *WindowRunner) run(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.span)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case now := <-ticker.C:
			end := now.UTC()
			start := end.Add(-r.span)
			if _, err := r.proc.ProcessWindow(ctx, start, end); err != nil {
				r.l.Warn("window run finished with error", applogger.Error(err))
			}
		}
	}
}

// Stop halts the loop and waits for the in-flight window, bounded by ctx.
func (r *WindowRunner) Stop(ctx context.Context) error {
	r.stopOnce.Do(func() { close(r.stopCh) })
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
