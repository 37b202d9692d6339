package action

import (
	"context"

	"github.com/amp-labs/amp-async/future"
	"github.com/amp-labs/amp-async/loop"
)

// Run starts a from any goroutine other than its loop and blocks until it
// has an outcome. Listeners are attached on the loop before the start, so no
// outcome can be missed. If ctx ends first, a is cancelled and ctx's error is
// returned.
func Run(ctx context.Context, a Action) ([]any, error) {
	fut, prom := future.New[[]any]()

	if !a.Loop().Post(func() {
		observe(a, prom)
		a.Start()
	}) {
		return nil, loop.ErrStopped
	}

	prom.OnCancel(func() {
		a.Loop().Post(a.Cancel)
	})

	return fut.AwaitContext(ctx)
}

// Await blocks until an already started action has an outcome. It must be
// called before that outcome happens; otherwise ErrAlreadyFinished is
// returned. If ctx ends first, a is cancelled.
func Await(ctx context.Context, a Action) ([]any, error) {
	fut, prom := future.New[[]any]()

	if !a.Loop().Post(func() {
		switch {
		case a.Cancelled():
			prom.Failure(ErrCancelled)
		case a.Terminated():
			prom.Failure(ErrAlreadyFinished)
		default:
			observe(a, prom)
		}
	}) {
		return nil, loop.ErrStopped
	}

	prom.OnCancel(func() {
		a.Loop().Post(a.Cancel)
	})

	return fut.AwaitContext(ctx)
}

func observe(a Action, prom *future.Promise[[]any]) {
	a.OnSuccess(func(args ...any) { prom.Success(args) })
	a.OnError(prom.Failure)
	a.OnCancel(func() { prom.Failure(ErrCancelled) })
}
