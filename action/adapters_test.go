package action_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amp-labs/amp-async/action"
	"github.com/amp-labs/amp-async/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueAndFail(t *testing.T) {
	t.Parallel()

	l, _ := tests.NewLoop(t)

	args, err := action.Run(t.Context(), action.Value(l, "a", 2))
	require.NoError(t, err)
	assert.Equal(t, []any{"a", 2}, args)

	_, err = action.Run(t.Context(), action.Fail(l, errBoom))
	require.ErrorIs(t, err, errBoom)
}

func TestDelay(t *testing.T) {
	t.Parallel()

	l, _ := tests.NewLoop(t)

	start := time.Now()
	args, err := action.Run(t.Context(), action.Delay(l, 20*time.Millisecond, "late"))
	require.NoError(t, err)

	assert.Equal(t, []any{"late"}, args)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestDelayCancelStopsTimer(t *testing.T) {
	t.Parallel()

	l, _ := tests.NewLoop(t)

	var d *action.Base

	require.NoError(t, l.Call(t.Context(), func() {
		d = action.Delay(l, time.Hour)
		d.Start()
	}))

	tests.Sync(t, l)
	assert.Equal(t, 1, l.PendingDelayed())

	require.NoError(t, l.Call(t.Context(), d.Cancel))
	assert.Equal(t, 0, l.PendingDelayed())
}

func TestFromCallback(t *testing.T) {
	t.Parallel()

	l, _ := tests.NewLoop(t)

	ok := action.FromCallback(l, "ok", func(done action.Callback) {
		go done(nil, "from", "goroutine")
	})

	args, err := action.Run(t.Context(), ok)
	require.NoError(t, err)
	assert.Equal(t, []any{"from", "goroutine"}, args)

	failing := action.FromCallback(l, "failing", func(done action.Callback) {
		done(errBoom, "ignored")
		done(nil, "second call ignored")
	})

	_, err = action.Run(t.Context(), failing)
	require.ErrorIs(t, err, errBoom)
}

func TestGo(t *testing.T) {
	t.Parallel()

	l, _ := tests.NewLoop(t)

	args, err := action.Run(t.Context(), action.Go(l, "work", func(context.Context) (any, error) {
		return 42, nil
	}))
	require.NoError(t, err)
	assert.Equal(t, []any{42}, args)

	_, err = action.Run(t.Context(), action.Go(l, "panics", func(context.Context) (any, error) {
		panic("worker blew up")
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker blew up")
}

func TestGoCancelledThroughContext(t *testing.T) {
	t.Parallel()

	l, _ := tests.NewLoop(t)

	stopped := make(chan error, 1)
	running := make(chan struct{})

	work := action.Go(l, "blocking", func(ctx context.Context) (any, error) {
		close(running)
		<-ctx.Done()
		stopped <- ctx.Err()

		return nil, ctx.Err()
	})

	result := make(chan error, 1)

	go func() {
		_, err := action.Run(context.Background(), work)
		result <- err
	}()

	<-running
	require.NoError(t, l.Call(t.Context(), work.Cancel))

	require.ErrorIs(t, <-result, action.ErrCancelled)
	require.ErrorIs(t, <-stopped, context.Canceled)
}

func TestRunContextCancelsAction(t *testing.T) {
	t.Parallel()

	l, _ := tests.NewLoop(t)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	never := action.New(l, "never", func(*action.Base) {})

	_, err := action.Run(ctx, never)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	tests.Sync(t, l)

	cancelled := false
	require.NoError(t, l.Call(t.Context(), func() { cancelled = never.Cancelled() }))
	assert.True(t, cancelled)
}

func TestAwait(t *testing.T) {
	t.Parallel()

	l, _ := tests.NewLoop(t)

	var a *action.Base

	require.NoError(t, l.Call(t.Context(), func() {
		a = action.Delay(l, 10*time.Millisecond, "done")
		a.Start()
	}))

	args, err := action.Await(t.Context(), a)
	require.NoError(t, err)
	assert.Equal(t, []any{"done"}, args)

	_, err = action.Await(t.Context(), a)
	require.ErrorIs(t, err, action.ErrAlreadyFinished)

	var c *action.Base

	require.NoError(t, l.Call(t.Context(), func() {
		c = action.New(l, "cancelled", func(*action.Base) {})
		c.Start()
		c.Cancel()
	}))

	_, err = action.Await(t.Context(), c)
	require.ErrorIs(t, err, action.ErrCancelled)
}

func TestRunOnStoppedLoop(t *testing.T) {
	t.Parallel()

	l, _ := tests.NewLoop(t)
	l.Stop()

	_, err := action.Run(t.Context(), action.Value(l))
	require.Error(t, err)
}

func TestRetry(t *testing.T) {
	t.Parallel()

	l, _ := tests.NewLoop(t)

	attempts := 0
	policy := action.RetryPolicy{Attempts: 3, InitialBackoff: time.Millisecond, Multiplier: 2}

	flaky := action.Retry(l, "flaky", func(n int) action.Action {
		attempts = n
		if n < 3 {
			return action.Fail(l, errBoom)
		}

		return action.Value(l, "third time")
	}, policy)

	args, err := action.Run(t.Context(), flaky)
	require.NoError(t, err)
	assert.Equal(t, []any{"third time"}, args)
	assert.Equal(t, 3, attempts)

	exhausted := action.Retry(l, "exhausted", func(int) action.Action {
		return action.Fail(l, errBoom)
	}, policy)

	_, err = action.Run(t.Context(), exhausted)
	require.ErrorIs(t, err, action.ErrRetriesExhausted)
	require.ErrorIs(t, err, errBoom)
}

func TestRetryShouldRetry(t *testing.T) {
	t.Parallel()

	l, _ := tests.NewLoop(t)

	errPermanent := errors.New("permanent")
	attempts := 0

	a := action.Retry(l, "permanent", func(int) action.Action {
		attempts++

		return action.Fail(l, errPermanent)
	}, action.RetryPolicy{
		Attempts:    5,
		ShouldRetry: func(err error) bool { return !errors.Is(err, errPermanent) },
	})

	_, err := action.Run(t.Context(), a)
	require.ErrorIs(t, err, errPermanent)
	assert.Equal(t, 1, attempts)
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	p := action.RetryPolicy{InitialBackoff: 100 * time.Millisecond, Multiplier: 2, MaxBackoff: 300 * time.Millisecond}

	assert.Equal(t, 100*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 300*time.Millisecond, p.Backoff(3))
	assert.Equal(t, 300*time.Millisecond, p.Backoff(10))
}
