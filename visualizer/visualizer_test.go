package visualizer_test

import (
	"strings"
	"testing"

	"github.com/amp-labs/amp-async/action"
	"github.com/amp-labs/amp-async/sequencer"
	"github.com/amp-labs/amp-async/statemachine"
	"github.com/amp-labs/amp-async/tests"
	"github.com/amp-labs/amp-async/visualizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func continueStep() sequencer.StepInput {
	return sequencer.Do(func(...any) sequencer.Outcome { return sequencer.Continue() })
}

func TestSequenceBeforeRun(t *testing.T) {
	t.Parallel()

	l, _ := tests.NewLoop(t)
	s := sequencer.New(l, "orders")

	require.NoError(t, s.Add("load", continueStep()))
	require.NoError(t, s.Add("save", continueStep()))
	require.NoError(t, s.AddNamed("retry10", continueStep()))
	require.NoError(t, s.AddNamed("retry2", continueStep()))

	out, err := visualizer.Sequence(s, visualizer.DefaultOptions().WithDirection("LR"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "```mermaid\nstateDiagram-v2\n    direction LR\n"))
	assert.Contains(t, out, "[*] --> load\n")
	assert.Contains(t, out, "load --> save\n")
	assert.Contains(t, out, "save --> complete\n")
	assert.Contains(t, out, "complete --> [*]\n")
	assert.Contains(t, out, "error --> [*]\n")
	assert.NotContains(t, out, " highlighted\n")

	// Named states follow the steps in natural order.
	assert.Less(t, strings.Index(out, "state retry2\n"), strings.Index(out, "state retry10\n"))
	assert.Less(t, strings.Index(out, "state save\n"), strings.Index(out, "state retry2\n"))
}

func TestSequenceTracesJumps(t *testing.T) {
	t.Parallel()

	l, _ := tests.NewLoop(t)
	s := sequencer.New(l, "cookies")

	require.NoError(t, s.Add("A", continueStep()))
	require.NoError(t, s.Add("B", sequencer.Do(func(...any) sequencer.Outcome {
		return sequencer.Goto("bake")
	})))
	require.NoError(t, s.Add("C", continueStep()))
	require.NoError(t, s.AddNamed("bake", continueStep()))

	_, err := action.Run(t.Context(), s)
	require.NoError(t, err)

	out, err := visualizer.Sequence(s, visualizer.DefaultOptions())
	require.NoError(t, err)

	assert.Contains(t, out, "B --> bake\n")
	assert.Contains(t, out, "bake --> C\n")
	assert.Contains(t, out, "class bake highlighted\n")
	assert.Contains(t, out, "class complete highlighted\n")
	assert.Contains(t, out, "class error finalState\n")
	assert.Equal(t, 1, strings.Count(out, "C --> complete\n"))

	plain, err := visualizer.Sequence(s, visualizer.DefaultOptions().WithShowPath(false))
	require.NoError(t, err)
	assert.NotContains(t, plain, "B --> bake")
	assert.NotContains(t, plain, " highlighted\n")
}

func TestMachine(t *testing.T) {
	t.Parallel()

	l, _ := tests.NewLoop(t)
	m := statemachine.New(l, "machine", statemachine.WithInitialState("start"))

	require.NoError(t, m.AddState("start", func(...any) { m.TransitionTo(statemachine.SuccessState, "ok") }))
	require.NoError(t, m.AddState(statemachine.SuccessState, func(args ...any) { m.EmitSuccess(args...) }))

	_, err := action.Run(t.Context(), m)
	require.NoError(t, err)

	out, err := visualizer.Machine(m, visualizer.DefaultOptions().WithHighlightPath([]string{"start"}))
	require.NoError(t, err)

	assert.Contains(t, out, "[*] --> start\n")
	assert.Contains(t, out, "start --> success\n")
	assert.Contains(t, out, "success --> [*]\n")
	assert.Contains(t, out, "class start highlighted\n")
	assert.Contains(t, out, "class success finalState\n")
	assert.NotContains(t, out, "error --> [*]")
}

func TestInvalidDirection(t *testing.T) {
	t.Parallel()

	l, _ := tests.NewLoop(t)

	_, err := visualizer.Sequence(sequencer.New(l, "s"), visualizer.Options{Direction: "up"})
	require.ErrorIs(t, err, visualizer.ErrInvalidDirection)

	_, err = visualizer.Machine(statemachine.New(l, "m"), visualizer.Options{Direction: "up"})
	require.ErrorIs(t, err, visualizer.ErrInvalidDirection)
}
