// Package visualizer renders machines and sequencers as Mermaid state
// diagrams, optionally tracing the path a run actually took.
package visualizer

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"facette.io/natsort"
	"github.com/amp-labs/amp-async/sequencer"
	"github.com/amp-labs/amp-async/statemachine"
)

// ErrInvalidDirection is returned for a direction other than TD or LR.
var ErrInvalidDirection = errors.New("direction must be TD or LR")

type edge struct {
	from, to string
}

type diagram struct {
	opts   Options
	sb     strings.Builder
	edges  []edge
	seen   map[edge]bool
	states []string
	finals []string
}

func newDiagram(opts Options) (*diagram, error) {
	switch opts.Direction {
	case "":
		opts.Direction = "TD"
	case "TD", "LR":
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidDirection, opts.Direction)
	}

	return &diagram{opts: opts, seen: make(map[edge]bool)}, nil
}

func (d *diagram) addEdge(from, to string) {
	e := edge{from: from, to: to}
	if d.seen[e] {
		return
	}

	d.seen[e] = true
	d.edges = append(d.edges, e)
}

func (d *diagram) addPath(path []string) {
	if !d.opts.ShowPath {
		return
	}

	for i := 1; i < len(path); i++ {
		d.addEdge(path[i-1], path[i])
	}
}

func (d *diagram) render(path []string) string {
	highlight := d.opts.HighlightPath
	if len(highlight) == 0 && d.opts.ShowPath {
		highlight = path
	}

	d.sb.WriteString("```mermaid\n")
	fmt.Fprintf(&d.sb, "stateDiagram-v2\n    direction %s\n", d.opts.Direction)

	for _, state := range d.states {
		fmt.Fprintf(&d.sb, "    state %s\n", state)
	}

	for _, e := range d.edges {
		fmt.Fprintf(&d.sb, "    %s --> %s\n", e.from, e.to)
	}

	for _, state := range d.finals {
		fmt.Fprintf(&d.sb, "    %s --> [*]\n", state)
	}

	for _, state := range d.states {
		switch {
		case slices.Contains(highlight, state):
			fmt.Fprintf(&d.sb, "    class %s highlighted\n", state)
		case slices.Contains(d.finals, state):
			fmt.Fprintf(&d.sb, "    class %s finalState\n", state)
		}
	}

	d.sb.WriteString("\n")
	d.sb.WriteString("    classDef finalState fill:#c8e6c9,stroke:#2e7d32,stroke-width:2px\n")
	d.sb.WriteString("    classDef highlighted fill:#fff9c4,stroke:#f57f17,stroke-width:3px\n")
	d.sb.WriteString("```\n")

	return d.sb.String()
}

// Machine renders every state of m. Only the initial edge and, with
// ShowPath, the transitions taken so far are known for a plain machine.
// Must be called on m's loop or after it finished.
func Machine(m *statemachine.Machine, opts Options) (string, error) {
	d, err := newDiagram(opts)
	if err != nil {
		return "", err
	}

	d.states = m.States()

	path := m.Path()
	if len(path) > 0 {
		d.addEdge("[*]", path[0])
	}

	d.addPath(path)

	for _, final := range []string{statemachine.SuccessState, statemachine.ErrorState} {
		if m.HasState(final) {
			d.finals = append(d.finals, final)
		}
	}

	return d.render(path), nil
}

// Sequence renders s: the declared steps in order, the states reachable
// only by jumps in natural sort order, and the two terminals. Must be
// called on s's loop or after it finished.
func Sequence(s *sequencer.Sequencer, opts Options) (string, error) {
	d, err := newDiagram(opts)
	if err != nil {
		return "", err
	}

	steps := s.Sequence()

	var named []string

	for _, state := range s.States() {
		if !slices.Contains(steps, state) &&
			state != sequencer.CompleteState && state != sequencer.ErrorState {
			named = append(named, state)
		}
	}

	natsort.Sort(named)

	d.states = slices.Concat(steps, named, []string{sequencer.CompleteState, sequencer.ErrorState})
	d.finals = []string{sequencer.CompleteState, sequencer.ErrorState}

	prev := "[*]"
	for _, step := range steps {
		d.addEdge(prev, step)
		prev = step
	}

	d.addEdge(prev, sequencer.CompleteState)

	path := s.Path()
	d.addPath(path)

	return d.render(path), nil
}
