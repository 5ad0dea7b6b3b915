// Package ui provides the dispatcher that owns the interactive context. Everything that
// talks to the user (trust prompts in particular) runs on the loop goroutine, one job at
// a time.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
)

// ErrLoopClosed is returned by Invoke once the loop has stopped.
var ErrLoopClosed = errors.New("ui loop closed")

type job struct {
	fn   func()
	done chan struct{}
}

// Loop serializes jobs onto the goroutine that calls Run.
type Loop struct {
	jobs   chan job
	closed chan struct{}
	once   sync.Once
	logger *slog.Logger
}

// NewLoop creates a loop. Run must be called for queued jobs to execute.
func NewLoop(logger *slog.Logger) *Loop {
	return &Loop{
		jobs:   make(chan job),
		closed: make(chan struct{}),
		logger: logger,
	}
}

// Run executes jobs until ctx ends or Close is called. The calling goroutine is pinned
// to its OS thread for the lifetime of the loop.
func (l *Loop) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer l.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.closed:
			return nil
		case j := <-l.jobs:
			l.run(j)
		}
	}
}

func (l *Loop) run(j job) {
	defer close(j.done)
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("ui job panicked", slog.Any("panic", r))
		}
	}()
	j.fn()
}

// Invoke queues fn on the loop and waits until it has run. If ctx ends first Invoke
// returns ctx.Err(); a job already started keeps running to completion.
func (l *Loop) Invoke(ctx context.Context, fn func()) error {
	j := job{fn: fn, done: make(chan struct{})}

	select {
	case l.jobs <- j:
	case <-l.closed:
		return ErrLoopClosed
	case <-ctx.Done():
		return fmt.Errorf("ui dispatch: %w", ctx.Err())
	}

	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("ui dispatch: %w", ctx.Err())
	}
}

// Close stops the loop. Jobs not yet picked up fail with ErrLoopClosed.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.closed) })
}
