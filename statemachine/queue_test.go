package statemachine_test

import (
	"testing"
	"time"

	"github.com/amp-labs/amp-async/action"
	"github.com/amp-labs/amp-async/statemachine"
	"github.com/amp-labs/amp-async/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallelQueueJoinsInAnyOrder(t *testing.T) {
	t.Parallel()

	l, fatals := tests.NewLoop(t)
	m := statemachine.New(l, "join", statemachine.WithInitialState("start"))

	var (
		finals   int
		arrivals []any
		queue    *statemachine.Queue
	)

	const k = 4

	require.NoError(t, m.AddState("start", func(...any) {
		queue = m.TransitionQueue("done")

		// Later specs finish first.
		for i := range k {
			assert.NoError(t, queue.Add(statemachine.Spec{
				Action:  action.Delay(l, time.Duration(k-i)*5*time.Millisecond, i),
				Success: "arrived",
			}))
		}

		assert.NoError(t, queue.Start())
		assert.ErrorIs(t, queue.Add(statemachine.Spec{Action: action.Value(l)}), statemachine.ErrQueueStarted)
		assert.ErrorIs(t, queue.Start(), statemachine.ErrQueueStarted)
	}))
	require.NoError(t, m.AddState("arrived", func(args ...any) {
		arrivals = append(arrivals, args[0])
	}))
	require.NoError(t, m.AddState("done", func(...any) {
		finals++
		m.EmitSuccess(queue.Completed())
	}))

	args, err := action.Run(t.Context(), m)
	require.NoError(t, err)

	assert.Equal(t, []any{k}, args)
	assert.Equal(t, 1, finals)
	assert.ElementsMatch(t, []any{0, 1, 2, 3}, arrivals)
	assert.Equal(t, k, queue.Len())
	assert.Equal(t, "done", m.Path()[len(m.Path())-1])
	assert.Empty(t, fatals.Errors())
}

func TestParallelQueueEmpty(t *testing.T) {
	t.Parallel()

	l, _ := tests.NewLoop(t)
	m := statemachine.New(l, "empty", statemachine.WithInitialState("start"))

	require.NoError(t, m.AddState("start", func(...any) {
		assert.NoError(t, m.TransitionQueue("done").Start())
	}))
	require.NoError(t, m.AddState("done", func(...any) { m.EmitSuccess("immediate") }))

	args, err := action.Run(t.Context(), m)
	require.NoError(t, err)
	assert.Equal(t, []any{"immediate"}, args)
	assert.Equal(t, []string{"start", "done"}, m.Path())
}

func TestParallelQueueExplicitErrorCounts(t *testing.T) {
	t.Parallel()

	l, fatals := tests.NewLoop(t)
	m := statemachine.New(l, "absorb", statemachine.WithInitialState("start"))

	failures := 0

	require.NoError(t, m.AddState("start", func(...any) {
		q := m.TransitionQueue("done")
		assert.NoError(t, q.Add(
			statemachine.Spec{Action: action.Value(l), Success: "ok"},
			statemachine.Spec{Action: action.Fail(l, errBoom), Success: "ok", Error: "failed"},
		))
		assert.NoError(t, q.Start())
	}))
	require.NoError(t, m.AddState("ok", func(...any) {}))
	require.NoError(t, m.AddState("failed", func(...any) { failures++ }))
	require.NoError(t, m.AddState("done", func(...any) { m.EmitSuccess() }))

	_, err := action.Run(t.Context(), m)
	require.NoError(t, err)
	assert.Equal(t, 1, failures)
	assert.Empty(t, fatals.Errors())
}

func TestParallelQueueImplicitErrorBubbles(t *testing.T) {
	t.Parallel()

	l, _ := tests.NewLoop(t)
	m := statemachine.New(l, "bubble", statemachine.WithInitialState("start"))

	var (
		slow    *action.Base
		reached bool
	)

	require.NoError(t, m.AddState("start", func(...any) {
		slow = action.Delay(l, time.Hour)

		q := m.TransitionQueue("done")
		assert.NoError(t, q.Add(
			statemachine.Spec{Action: slow, Success: "ok"},
			statemachine.Spec{Action: action.Fail(l, errBoom), Success: "ok"},
		))
		assert.NoError(t, q.Start())
	}))
	require.NoError(t, m.AddState("ok", func(...any) {}))
	require.NoError(t, m.AddState("done", func(...any) { reached = true }))

	_, err := action.Run(t.Context(), m)
	require.ErrorIs(t, err, errBoom)
	assert.False(t, reached)
	assert.True(t, slow.Cancelled())
}

func TestLinearQueueRunsInOrder(t *testing.T) {
	t.Parallel()

	l, _ := tests.NewLoop(t)
	m := statemachine.New(l, "chain", statemachine.WithInitialState("start"))

	var (
		events []string
		second *action.Base
		queue  *statemachine.Queue
	)

	require.NoError(t, m.AddState("start", func(...any) {
		second = action.Value(l, "second")

		queue = m.LinearQueue("done")
		assert.NoError(t, queue.Add(
			statemachine.Spec{Action: action.Delay(l, 10*time.Millisecond, "first"), Success: "step"},
			statemachine.Spec{Action: second, Success: "step"},
			statemachine.Spec{Action: action.Fail(l, errBoom), Success: "step", Error: "step"},
		))
		assert.NoError(t, queue.Start())

		// Only the head of the chain runs now.
		assert.False(t, second.Started())
	}))
	require.NoError(t, m.AddState("step", func(args ...any) {
		switch v := args[0].(type) {
		case string:
			events = append(events, v)
		case error:
			events = append(events, "error: "+v.Error())
		}
	}))
	require.NoError(t, m.AddState("done", func(...any) {
		events = append(events, "done")
		m.EmitSuccess()
	}))

	_, err := action.Run(t.Context(), m)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "error: boom", "done"}, events)
	assert.Equal(t, 3, queue.Completed())
}

func TestQueueCancel(t *testing.T) {
	t.Parallel()

	l, _ := tests.NewLoop(t)
	m := statemachine.New(l, "cancel", statemachine.WithInitialState("start"))

	var (
		queue      *statemachine.Queue
		head, tail *action.Base
	)

	require.NoError(t, m.AddState("start", func(...any) {
		head = action.Delay(l, time.Hour)
		tail = action.Delay(l, time.Hour)

		queue = m.LinearQueue("done")
		assert.NoError(t, queue.Add(
			statemachine.Spec{Action: head},
			statemachine.Spec{Action: tail},
		))
		assert.NoError(t, queue.Start())
	}))

	require.NoError(t, l.Call(t.Context(), m.Start))
	tests.Sync(t, l)

	require.NoError(t, l.Call(t.Context(), func() {
		queue.Cancel()

		assert.True(t, head.Cancelled())
		assert.True(t, tail.Cancelled())
	}))
}

func TestQueueRejectsNilAction(t *testing.T) {
	t.Parallel()

	l, _ := tests.NewLoop(t)
	m := statemachine.New(l, "nil")

	require.ErrorIs(t, m.TransitionQueue("done").Add(statemachine.Spec{}), statemachine.ErrNilAction)
}
