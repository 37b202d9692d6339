// Package statemachine extends actions with named states. A Machine is an
// Action whose progress is a walk through registered handlers; child actions
// are embedded into that walk with Transition, which parks the machine until
// the child reports and then moves to the state chosen for its outcome.
package statemachine

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/amp-labs/amp-async/action"
	"github.com/amp-labs/amp-async/loop"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Default transition targets.
const (
	SuccessState = "success"
	ErrorState   = "error"
)

// Handler runs when its state is entered, with the arguments of the
// transition that led there.
type Handler func(args ...any)

// Machine is an Action plus named states and a current-state cursor.
// Like every action it is driven from its loop only.
type Machine struct {
	*action.Base

	handlers map[string]Handler
	order    []string
	current  string
	initial  string
	entry    func()

	generation  int
	transitions int
	path        []string

	tracer    trace.Tracer
	spanCtx   context.Context //nolint:containedctx
	runSpan   trace.Span
	startedAt time.Time
}

// Option configures a Machine.
type Option func(*Machine)

// WithInitialState sets the state entered when the machine starts.
func WithInitialState(state string) Option {
	return func(m *Machine) {
		m.initial = state
	}
}

// WithTracerProvider sets where run and state spans go. The global provider
// is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Machine) {
		m.tracer = tp.Tracer(tracerName)
	}
}

// WithActionOptions passes options through to the embedded action.
func WithActionOptions(opts ...action.Option) Option {
	return func(m *Machine) {
		m.Base = action.NewBase(m.Loop(), m.Name(), m.run, opts...)
	}
}

// New creates a machine with no states.
func New(l *loop.Loop, name string, opts ...Option) *Machine {
	m := &Machine{
		handlers: make(map[string]Handler),
	}

	m.Base = action.NewBase(l, name, m.run)

	for _, opt := range opts {
		opt(m)
	}

	if m.tracer == nil {
		m.tracer = otel.GetTracerProvider().Tracer(tracerName)
	}

	m.SetRaiser(m.raise)

	return m
}

// SetEntry replaces what the machine does when it starts. Types built on
// Machine use it to pick their first state.
func (m *Machine) SetEntry(fn func()) {
	m.entry = fn
}

// SetInitialState changes the state entered on start.
func (m *Machine) SetInitialState(state string) {
	m.initial = state
}

func (m *Machine) run() {
	m.startedAt = time.Now()
	m.startRunSpan()

	m.Observe(func(outcome action.Outcome, err error) { m.finish(string(outcome), err) })

	m.Logger().Debug("machine started", "initial", m.initial)

	switch {
	case m.entry != nil:
		m.entry()
	case m.initial != "":
		m.TransitionTo(m.initial)
	default:
		m.EmitError(WrapStateError(m.Name(), "", ErrNoInitialState))
	}
}

func (m *Machine) finish(outcome string, err error) {
	runsTotal.WithLabelValues(m.Name(), outcome).Inc()
	runDuration.WithLabelValues(m.Name(), outcome).Observe(time.Since(m.startedAt).Seconds())
	pathLength.WithLabelValues(m.Name(), outcome).Observe(float64(len(m.path)))

	m.endRunSpan(outcome, err)

	m.Logger().Debug("machine finished", "outcome", outcome, "path", m.path, "error", err)
}

// raise routes errors bubbled up from children into the error state when
// one is registered, and emits them otherwise.
func (m *Machine) raise(err error) {
	if m.Done() {
		return
	}

	if m.HasState(ErrorState) {
		m.TransitionTo(ErrorState, err)

		return
	}

	m.EmitError(err)
}

// AddState registers handler under name. The first registration wins; later
// ones are rejected with ErrDuplicateState.
func (m *Machine) AddState(name string, handler Handler) error {
	if name == "" {
		return ErrStateNameRequired
	}

	if _, exists := m.handlers[name]; exists {
		m.Logger().Warn("state already registered; keeping the original", "state", name)

		return fmt.Errorf("%w: %q", ErrDuplicateState, name)
	}

	m.handlers[name] = handler
	m.order = append(m.order, name)

	return nil
}

// HasState reports whether name is registered.
func (m *Machine) HasState(name string) bool {
	_, ok := m.handlers[name]

	return ok
}

// States returns the registered state names in registration order.
func (m *Machine) States() []string {
	return slices.Clone(m.order)
}

// CurrentState returns the name of the current state.
func (m *Machine) CurrentState() string {
	return m.current
}

// Path returns every state entered so far, in order.
func (m *Machine) Path() []string {
	return slices.Clone(m.path)
}

// Generation counts navigations: it increments on every TransitionTo.
func (m *Machine) Generation() int {
	return m.generation
}

// Transitions counts asynchronous transitions wired with Transition.
func (m *Machine) Transitions() int {
	return m.transitions
}

// TransitionTo makes state current and invokes its handler.
func (m *Machine) TransitionTo(state string, args ...any) {
	if m.Done() {
		m.Logger().Debug("ignoring transition on finished machine", "to", state)

		return
	}

	transitionsTotal.WithLabelValues(m.Name(), m.current, state).Inc()

	m.generation++
	m.current = state

	m.TransitionNow(args...)
}

// TransitionNow invokes the current state's handler. An unregistered state
// is a programming error and goes to the loop's fatal handler.
func (m *Machine) TransitionNow(args ...any) {
	if m.Done() {
		return
	}

	handler, ok := m.handlers[m.current]
	if !ok {
		err := WrapStateError(m.Name(), m.current, ErrStateNotFound)

		m.Logger().Error("transition to unknown state", "state", m.current, "error", err)

		m.Loop().Fatal(err)

		return
	}

	m.path = append(m.path, m.current)

	stateEntriesTotal.WithLabelValues(m.Name(), m.current).Inc()

	span := m.startStateSpan(m.current)
	defer span.End()

	handler(args...)
}

// Spec binds an action to the states its outcome leads to.
type Spec struct {
	Action action.Action
	// Success is entered with the action's result followed by Data.
	// Defaults to SuccessState.
	Success string
	// Error, when set, is entered with the action's error, and the failure
	// stays local. When empty the failure bubbles: siblings are cancelled
	// and the machine raises it.
	Error string
	Data  []any
}

func (s Spec) successState() string {
	if s.Success == "" {
		return SuccessState
	}

	return s.Success
}

// Transition starts spec.Action as a tracked child and moves to the state
// matching its outcome. The machine stays in its current state meanwhile.
func (m *Machine) Transition(spec Spec) {
	if spec.Action == nil {
		m.Raise(WrapTransitionError(m.current, spec.successState(), ErrNilAction))

		return
	}

	m.transitions++

	success := spec.successState()

	spec.Action.OnSuccess(func(args ...any) {
		m.TransitionTo(success, append(slices.Clone(args), spec.Data...)...)
	})

	if spec.Error == "" {
		m.AddAction(spec.Action)

		return
	}

	spec.Action.OnError(func(err error) {
		m.TransitionTo(spec.Error, err)
	})

	m.AddAction(spec.Action, action.NoBubble())
}

// TransitionQueue returns a parallel queue landing in final.
func (m *Machine) TransitionQueue(final string) *Queue {
	return newQueue(m, final, false)
}

// LinearQueue returns a serial queue landing in final.
func (m *Machine) LinearQueue(final string) *Queue {
	return newQueue(m, final, true)
}
