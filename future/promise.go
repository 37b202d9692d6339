package future

import (
	"sync"

	"github.com/amp-labs/amp-async/try"
	"go.uber.org/atomic"
)

// Promise is the write side of a Future. Only the first completion counts.
type Promise[T any] struct {
	future    *Future[T]
	cancelled *atomic.Bool
	mu        sync.Mutex
	onCancel  []func()
}

// Success completes the Future with a value.
func (p *Promise[T]) Success(value T) {
	p.fulfill(try.Try[T]{Value: value})
}

// Failure completes the Future with an error.
func (p *Promise[T]) Failure(err error) {
	p.fulfill(try.Try[T]{Error: err})
}

// Complete completes the Future from a (value, error) pair.
func (p *Promise[T]) Complete(value T, err error) {
	p.fulfill(try.Of(value, err))
}

// IsCancelled reports whether a waiter gave up on the Future.
func (p *Promise[T]) IsCancelled() bool {
	return p.cancelled.Load()
}

// OnCancel registers fn to run when a waiter gives up. If that already
// happened fn runs immediately.
func (p *Promise[T]) OnCancel(fn func()) {
	p.mu.Lock()

	if p.cancelled.Load() {
		p.mu.Unlock()
		fn()

		return
	}

	p.onCancel = append(p.onCancel, fn)
	p.mu.Unlock()
}

func (p *Promise[T]) cancel() {
	p.mu.Lock()

	if !p.cancelled.CompareAndSwap(false, true) {
		p.mu.Unlock()

		return
	}

	fns := p.onCancel
	p.onCancel = nil
	p.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (p *Promise[T]) fulfill(result try.Try[T]) {
	fut := p.future

	fut.once.Do(func() {
		fut.mu.Lock()
		fut.result = result
		close(fut.ready)
		callbacks := fut.callbacks
		fut.callbacks = nil
		fut.mu.Unlock()

		for _, cb := range callbacks {
			invoke(cb, result)
		}
	})
}
