package persistence

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	writeMaxAttempts = 3
	writeRetryStep   = 300 * time.Millisecond
)

type writeCmd struct {
	name string
	fn   func(context.Context) error
}

// WriterQueue runs persistence writes one at a time on a single goroutine,
// retrying failed writes with a linear backoff.
type WriterQueue struct {
	logger  *slog.Logger
	queue   chan writeCmd
	pending sync.WaitGroup
	done    chan struct{}
}

func NewWriterQueue(logger *slog.Logger, capacity int) *WriterQueue {
	if capacity <= 0 {
		capacity = 256
	}
	return &WriterQueue{
		logger: logger,
		queue:  make(chan writeCmd, capacity),
		done:   make(chan struct{}),
	}
}

func (w *WriterQueue) Enqueue(name string, fn func(context.Context) error) {
	cmd := writeCmd{name: name, fn: fn}
	w.pending.Add(1)
	select {
	case w.queue <- cmd:
	default:
		w.logger.Warn("db write queue full", "cmd", name)
		go func() { w.queue <- cmd }()
	}
}

func (w *WriterQueue) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		for {
			select {
			case <-ctx.Done():
				return
			case cmd := <-w.queue:
				w.runWithRetry(ctx, cmd)
				w.pending.Done()
			}
		}
	}()
}

// Flush waits until every enqueued write has run or timeout elapses. It
// reports whether the queue drained.
func (w *WriterQueue) Flush(timeout time.Duration) bool {
	drained := make(chan struct{})
	go func() {
		w.pending.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return true
	case <-w.done:
		return false
	case <-time.After(timeout):
		return false
	}
}

func (w *WriterQueue) runWithRetry(ctx context.Context, cmd writeCmd) {
	for attempt := 1; attempt <= writeMaxAttempts; attempt++ {
		err := cmd.fn(ctx)
		if err == nil {
			return
		}
		w.logger.Error("db write failed", "cmd", cmd.name, "attempt", attempt, "error", err)
		if attempt == writeMaxAttempts {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * writeRetryStep):
		}
	}
}
