// Package future provides a single-value handoff between a worker goroutine
// and any number of waiters. A Promise resolves exactly once.
package future

import (
	"context"
	"sync/atomic"
)

// Future is the read side of a single-resolution value
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Promise is the write side of a Future
type Promise[T any] struct {
	f        *Future[T]
	resolved atomic.Bool
}

// New returns a connected Future and Promise
func New[T any]() (*Future[T], *Promise[T]) {
	f := &Future[T]{done: make(chan struct{})}
	return f, &Promise[T]{f: f}
}

// Go runs fn on a new goroutine and resolves the returned Future with its result
func Go[T any](fn func() (T, error)) *Future[T] {
	f, p := New[T]()
	go func() {
		v, err := fn()
		if err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(v)
	}()
	return f
}

// Resolve completes the Future with a value. Resolving twice panics.
func (p *Promise[T]) Resolve(v T) {
	p.complete(v, nil)
}

// Reject completes the Future with an error. Resolving twice panics.
func (p *Promise[T]) Reject(err error) {
	var zero T
	p.complete(zero, err)
}

func (p *Promise[T]) complete(v T, err error) {
	if !p.resolved.CompareAndSwap(false, true) {
		panic("future: promise resolved more than once")
	}
	p.f.value, p.f.err = v, err
	close(p.f.done)
}

// Done is closed once the Future is resolved
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the Future resolves or ctx is done. A ctx error only
// abandons the wait; the producing work keeps running to completion.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the resolved value without blocking; ok is false while pending
func (f *Future[T]) Result() (v T, err error, ok bool) {
	select {
	case <-f.done:
		return f.value, f.err, true
	default:
		var zero T
		return zero, nil, false
	}
}
