// Package future bridges results from the scheduler loop to ordinary
// goroutines. A Promise is completed once; every reader of its Future sees
// the same result.
package future

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/amp-labs/amp-async/try"
	"github.com/amp-labs/amp-async/utils"
	"go.uber.org/atomic"
)

// Future is the read side of an asynchronous result.
type Future[T any] struct {
	once      sync.Once
	mu        sync.Mutex
	ready     chan struct{}
	result    try.Try[T]
	callbacks []func(try.Try[T])
	promise   *Promise[T]
}

// New returns a Future and the Promise that completes it.
func New[T any]() (*Future[T], *Promise[T]) {
	fut := &Future[T]{ready: make(chan struct{})}
	prom := &Promise[T]{future: fut, cancelled: atomic.NewBool(false)}
	fut.promise = prom

	return fut, prom
}

// Go runs fn on a new goroutine and resolves the Future with its result.
// A panic inside fn becomes the Future's error.
func Go[T any](fn func() (T, error)) *Future[T] {
	fut, prom := New[T]()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				prom.Failure(utils.GetPanicRecoveryError(r, debug.Stack()))
			}
		}()

		prom.Complete(fn())
	}()

	return fut
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.ready
}

// Await blocks until the result is available.
func (f *Future[T]) Await() (T, error) { //nolint:ireturn
	<-f.ready

	return f.result.Get()
}

// AwaitContext blocks until the result is available or ctx is done. When
// ctx wins, the Promise is cancelled so the producer can stop its work.
func (f *Future[T]) AwaitContext(ctx context.Context) (T, error) { //nolint:ireturn
	select {
	case <-f.ready:
		return f.result.Get()
	case <-ctx.Done():
		// A result that raced the context still wins.
		select {
		case <-f.ready:
			return f.result.Get()
		default:
		}

		f.promise.cancel()

		var zero T

		return zero, ctx.Err()
	}
}

// OnResult registers cb to run once with the result. If the result is
// already available cb runs immediately on the calling goroutine, otherwise
// on the goroutine that completes the Promise.
func (f *Future[T]) OnResult(cb func(try.Try[T])) {
	f.mu.Lock()

	select {
	case <-f.ready:
		f.mu.Unlock()
		invoke(cb, f.result)

		return
	default:
	}

	f.callbacks = append(f.callbacks, cb)
	f.mu.Unlock()
}

// OnSuccess registers cb for a successful result.
func (f *Future[T]) OnSuccess(cb func(T)) {
	f.OnResult(func(t try.Try[T]) {
		if t.IsSuccess() {
			cb(t.Value)
		}
	})
}

// OnError registers cb for a failed result.
func (f *Future[T]) OnError(cb func(error)) {
	f.OnResult(func(t try.Try[T]) {
		if t.IsFailure() {
			cb(t.Error)
		}
	})
}

func invoke[T any](cb func(try.Try[T]), result try.Try[T]) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in future callback",
				"error", utils.GetPanicRecoveryError(r, debug.Stack()))
		}
	}()

	cb(result)
}
