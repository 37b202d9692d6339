package action

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/amp-labs/amp-async/bgworker"
	"github.com/amp-labs/amp-async/loop"
	"github.com/amp-labs/amp-async/utils"
)

// New creates an action whose start procedure is start. The procedure
// receives the action so it can emit an outcome, now or later.
func New(l *loop.Loop, name string, start func(a *Base), opts ...Option) *Base {
	var b *Base

	b = NewBase(l, name, func() { start(b) }, opts...)

	return b
}

// Value creates an action that succeeds with args.
func Value(l *loop.Loop, args ...any) *Base {
	return New(l, "value", func(a *Base) {
		a.EmitSuccess(args...)
	})
}

// Fail creates an action that fails with err.
func Fail(l *loop.Loop, err error) *Base {
	return New(l, "fail", func(a *Base) {
		a.EmitError(err)
	})
}

// Delay creates an action that succeeds with args after d. Cancelling it
// stops the timer.
func Delay(l *loop.Loop, d time.Duration, args ...any) *Base {
	return New(l, "delay", func(a *Base) {
		stop := l.PostDelayed(d, func() {
			a.EmitSuccess(args...)
		})

		a.OnCancel(func() { stop() })
	})
}

// Callback is the trailing result callback handed to wrapped functions. A
// non-nil err denotes failure; otherwise args are the success payload.
type Callback func(err error, args ...any)

// FromCallback adapts a function that reports through a trailing callback.
// The callback may be invoked from any goroutine; only the first call counts.
func FromCallback(l *loop.Loop, name string, fn func(done Callback)) *Base {
	return New(l, name, func(a *Base) {
		fn(func(err error, args ...any) {
			l.Post(func() {
				if err != nil {
					a.EmitError(err)

					return
				}

				a.EmitSuccess(args...)
			})
		})
	})
}

// Go runs blocking work on the background worker pool. The context passed
// to fn is cancelled when the action is cancelled, and its result is
// delivered back on the loop. A panic in fn becomes the action's error.
func Go(l *loop.Loop, name string, fn func(ctx context.Context) (any, error)) *Base {
	return New(l, name, func(a *Base) {
		ctx, cancel := context.WithCancel(context.Background())

		a.OnCancel(cancel)

		err := bgworker.Go(func() {
			defer cancel()

			value, err := runRecovered(ctx, fn)

			l.Post(func() {
				if err != nil {
					a.EmitError(err)

					return
				}

				a.EmitSuccess(value)
			})
		})
		if err != nil {
			cancel()
			a.EmitError(err)
		}
	})
}

func runRecovered(ctx context.Context, fn func(ctx context.Context) (any, error)) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = utils.GetPanicRecoveryError(r, debug.Stack())
		}
	}()

	return fn(ctx)
}
