// Package pool runs blocking collaborator calls on a fixed number of slots
// shared by every in-flight request, and tracks detached background work so
// shutdown can drain it.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/kalambet/juskvi/internal/fault"
)

// DefaultSize is the slot count used when New is given a non-positive size.
const DefaultSize = 10

// ErrClosed is returned by Detach after Shutdown has started.
var ErrClosed = errors.New("pool is shutting down")

// Pool bounds concurrent collaborator calls. It is safe for concurrent use.
type Pool struct {
	slots *semaphore.Weighted
	size  int

	base   context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	bg      sync.WaitGroup
	pending atomic.Int64

	logger *slog.Logger
}

// New creates a Pool with size slots (DefaultSize if size <= 0).
func New(size int) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	base, cancel := context.WithCancel(context.Background())
	return &Pool{
		slots:  semaphore.NewWeighted(int64(size)),
		size:   size,
		base:   base,
		cancel: cancel,
		logger: slog.Default(),
	}
}

// Size returns the number of slots.
func (p *Pool) Size() int { return p.size }

// Pending returns the number of detached tasks that have not finished.
func (p *Pool) Pending() int { return int(p.pending.Load()) }

// Future is the eventual result of a submitted task.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Wait blocks until the task finishes and returns its result.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.val, f.err
}

// Done is closed when the task has finished.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Submit runs fn on a pool slot. The returned Future always completes: a
// task that cannot get a slot before ctx ends, or that panics, resolves to a
// transient error instead.
func Submit[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		if err := p.slots.Acquire(ctx, 1); err != nil {
			f.err = fault.Transient(fmt.Errorf("acquiring worker slot: %w", err))
			return
		}
		defer p.slots.Release(1)
		f.val, f.err = guard(ctx, fn)
	}()
	return f
}

// Join2 waits for both futures. Neither result affects the other.
func Join2[A, B any](fa *Future[A], fb *Future[B]) (a A, errA error, b B, errB error) {
	a, errA = fa.Wait()
	b, errB = fb.Wait()
	return
}

// Detach runs fn in the background, detached from any request. fn receives
// the pool's own context, which is cancelled only when Shutdown gives up
// waiting. The outcome is logged, never returned.
func (p *Pool) Detach(name string, fn func(context.Context) error) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.Warn("background task rejected", "task", name, "error", ErrClosed)
		return ErrClosed
	}
	p.bg.Add(1)
	p.pending.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.bg.Done()
		defer p.pending.Add(-1)

		if err := p.slots.Acquire(p.base, 1); err != nil {
			p.logger.Warn("background task abandoned before start", "task", name)
			return
		}
		defer p.slots.Release(1)

		_, err := guard(p.base, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, fn(ctx)
		})
		if err != nil {
			p.logger.Debug("background task failed", "task", name, "error", err)
			return
		}
		p.logger.Debug("background task done", "task", name)
	}()
	return nil
}

// Shutdown stops accepting background tasks and waits for outstanding ones
// until ctx ends. Tasks still running at that point are abandoned: their
// context is cancelled and Shutdown returns without waiting further.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.bg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		n := p.Pending()
		p.cancel()
		return fmt.Errorf("abandoned %d background task(s): %w", n, ctx.Err())
	}
}

func guard[T any](ctx context.Context, fn func(context.Context) (T, error)) (val T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fault.Transient(fmt.Errorf("panic: %v", r))
		}
	}()
	return fn(ctx)
}
