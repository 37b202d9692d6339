// Package sequencer layers an ordered list of steps over a state machine.
// Steps advance automatically when they finish without navigating, and can
// jump anywhere explicitly. Two reserved states end the run: complete
// surfaces success and error surfaces failure, both after the exit hooks.
package sequencer

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/amp-labs/amp-async/action"
	"github.com/amp-labs/amp-async/loop"
	"github.com/amp-labs/amp-async/statemachine"
)

// Reserved terminal states.
const (
	CompleteState = "complete"
	ErrorState    = statemachine.ErrorState
)

var (
	// ErrReservedState is returned when declaring a step named complete or error.
	ErrReservedState = errors.New("reserved state name")
	// ErrNoPreviousState is the failure raised by ToPrev on the first step.
	ErrNoPreviousState = errors.New("no previous state")
	// ErrNilInput is returned when declaring a step without an input.
	ErrNilInput = errors.New("step input is required")
	// ErrUnknownFailure stands in when the error state is entered without an error.
	ErrUnknownFailure = errors.New("sequence failed")
)

// notInSequence marks named states that do not move the step cursor.
const notInSequence = -1

// Sequencer is a state machine with an ordered list of steps.
type Sequencer struct {
	*statemachine.Machine

	steps []string
	index int

	onComplete func(args ...any) any
	onFailure  func(err error) error

	ensure  []func()
	ensured bool
}

// New creates a sequencer with only the reserved terminal states.
func New(l *loop.Loop, name string, opts ...statemachine.Option) *Sequencer {
	s := &Sequencer{
		Machine: statemachine.New(l, name, opts...),
		index:   -1,
	}

	// Registering on an empty machine cannot fail.
	_ = s.Machine.AddState(CompleteState, s.complete)
	_ = s.Machine.AddState(ErrorState, s.fail)

	s.SetEntry(s.enter)
	s.OnCancel(s.runEnsure)

	return s
}

func (s *Sequencer) enter() {
	if len(s.steps) == 0 {
		s.ToComplete()

		return
	}

	s.TransitionTo(s.steps[0])
}

// Add appends a step to the sequence.
func (s *Sequencer) Add(name string, input StepInput) error {
	if err := s.declare(name, input, len(s.steps)); err != nil {
		return err
	}

	s.steps = append(s.steps, name)

	return nil
}

// Steps appends several steps, stopping at the first that fails.
func (s *Sequencer) Steps(steps ...Step) error {
	for _, step := range steps {
		if err := s.Add(step.Name, step.Input); err != nil {
			return err
		}
	}

	return nil
}

// AddNamed registers a state outside the sequence, reachable only by jumps.
// Entering it leaves the step cursor alone, so advancing from it continues
// after the last sequence step entered.
func (s *Sequencer) AddNamed(name string, input StepInput) error {
	return s.declare(name, input, notInSequence)
}

func (s *Sequencer) declare(name string, input StepInput, pos int) error {
	if name == CompleteState || name == ErrorState {
		return fmt.Errorf("%w: %q", ErrReservedState, name)
	}

	if input == nil {
		return fmt.Errorf("%w: %q", ErrNilInput, name)
	}

	return s.Machine.AddState(name, s.wrap(pos, input))
}

// wrap turns a step input into a handler that also decides whether to
// advance once the step returns.
func (s *Sequencer) wrap(pos int, input StepInput) statemachine.Handler {
	return func(args ...any) {
		if pos != notInSequence {
			s.index = pos
		}

		generation := s.Generation()
		transitions := s.Transitions()

		switch in := input.(type) {
		case awaitStep:
			s.ToNextOn(in.factory(args...))
		case runStep:
			s.ToNextOn(in.action)
		case waitStep:
			in.fn(args...)
		case doStep:
			out := in.fn(args...)

			switch out.kind {
			case outcomeContinue:
				if s.Generation() == generation && s.Transitions() == transitions {
					s.ToNext()
				}
			case outcomeNext:
				s.ToNext(out.args...)
			case outcomeGoto:
				s.ToState(out.state, out.args...)
			case outcomeSuspend:
			}
		}
	}
}

// Sequence returns the declared step names in order.
func (s *Sequencer) Sequence() []string {
	return slices.Clone(s.steps)
}

// Index returns the position of the last sequence step entered, or -1.
func (s *Sequencer) Index() int {
	return s.index
}

// OnComplete sets the function whose result becomes the success payload.
// Without it the args given to complete are emitted as they are.
func (s *Sequencer) OnComplete(fn func(args ...any) any) {
	s.onComplete = fn
}

// OnFailure sets the function whose result becomes the emitted error.
// Returning nil turns the failure into a success with no payload. Without
// it the original error is emitted.
func (s *Sequencer) OnFailure(fn func(err error) error) {
	s.onFailure = fn
}

// Ensure registers an exit hook. Exit hooks run once, before the sequencer
// completes, fails or is cancelled.
func (s *Sequencer) Ensure(fn func()) {
	s.ensure = append(s.ensure, fn)
}

func (s *Sequencer) runEnsure() {
	if s.ensured {
		return
	}

	s.ensured = true

	for _, fn := range s.ensure {
		fn()
	}
}

func (s *Sequencer) complete(args ...any) {
	s.runEnsure()

	if s.onComplete != nil {
		s.EmitSuccess(s.onComplete(args...))

		return
	}

	s.EmitSuccess(args...)
}

func (s *Sequencer) fail(args ...any) {
	err := errorFromArgs(args)

	s.runEnsure()

	if s.onFailure == nil {
		s.EmitError(err)

		return
	}

	if mapped := s.onFailure(err); mapped != nil {
		s.EmitError(mapped)

		return
	}

	s.EmitSuccess()
}

func errorFromArgs(args []any) error {
	if len(args) == 0 {
		return ErrUnknownFailure
	}

	if err, ok := args[0].(error); ok {
		return err
	}

	return fmt.Errorf("%w: %v", ErrUnknownFailure, args[0])
}

// ToState jumps to target with args.
func (s *Sequencer) ToState(target string, args ...any) {
	s.TransitionTo(target, args...)
}

// ToStateOn starts a and moves to target with its result. A failure goes to
// the error state.
func (s *Sequencer) ToStateOn(target string, a action.Action) {
	s.Transition(statemachine.Spec{Action: a, Success: target})
}

// ToNext moves to the step after the current one, or complete after the last.
func (s *Sequencer) ToNext(args ...any) {
	s.ToState(s.nextState(), args...)
}

// ToNextOn starts a and moves to the next step with its result.
func (s *Sequencer) ToNextOn(a action.Action) {
	s.ToStateOn(s.nextState(), a)
}

// ToPrev moves to the step before the current one. There is nothing before
// the first step: that is a failure.
func (s *Sequencer) ToPrev(args ...any) {
	if s.index <= 0 {
		s.ToError(fmt.Errorf("%w before %q", ErrNoPreviousState, s.CurrentState()))

		return
	}

	s.ToState(s.steps[s.index-1], args...)
}

// ToRepeat re-enters the current step.
func (s *Sequencer) ToRepeat(args ...any) {
	if s.index < 0 {
		s.ToState(s.CurrentState(), args...)

		return
	}

	s.ToState(s.steps[s.index], args...)
}

// ToComplete ends the run successfully with args.
func (s *Sequencer) ToComplete(args ...any) {
	s.ToState(CompleteState, args...)
}

// ToError ends the run through the error state.
func (s *Sequencer) ToError(err error) {
	s.ToState(ErrorState, err)
}

// ToNextAfter moves to the next step with args after d. The pending delay
// keeps the current step from advancing on its own and is cancelled with
// the sequencer.
func (s *Sequencer) ToNextAfter(d time.Duration, args ...any) {
	s.ToStateAfter(d, s.nextState(), args...)
}

// ToStateAfter moves to target with args after d.
func (s *Sequencer) ToStateAfter(d time.Duration, target string, args ...any) {
	s.ToStateOn(target, action.Delay(s.Loop(), d, args...))
}

func (s *Sequencer) nextState() string {
	if next := s.index + 1; next < len(s.steps) {
		return s.steps[next]
	}

	return CompleteState
}
