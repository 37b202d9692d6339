package sequencer

import "github.com/amp-labs/amp-async/action"

// StepInput is what a declared step does when entered. Build one with Do,
// Await, Run or Wait.
type StepInput interface {
	isStepInput()
}

type doStep struct {
	fn func(args ...any) Outcome
}

type awaitStep struct {
	factory func(args ...any) action.Action
}

type runStep struct {
	action action.Action
}

type waitStep struct {
	fn func(args ...any)
}

func (doStep) isStepInput()    {}
func (awaitStep) isStepInput() {}
func (runStep) isStepInput()   {}
func (waitStep) isStepInput()  {}

// Do declares a plain step. Its Outcome decides what happens after it returns.
func Do(fn func(args ...any) Outcome) StepInput {
	return doStep{fn: fn}
}

// Await declares a step that builds an action from the incoming args and
// moves to the next step with the action's result.
func Await(factory func(args ...any) action.Action) StepInput {
	return awaitStep{factory: factory}
}

// Run declares a step that starts a pre-built action or sub-machine and moves
// to the next step with its result. The action is single-use, so the step
// must not be entered twice.
func Run(a action.Action) StepInput {
	return runStep{action: a}
}

// Wait declares a step that never advances by itself. Something it sets in
// motion, usually an external callback, must navigate later.
func Wait(fn func(args ...any)) StepInput {
	return waitStep{fn: fn}
}

// Step pairs a name with its input for bulk declaration.
type Step struct {
	Name  string
	Input StepInput
}

type outcomeKind int

const (
	outcomeContinue outcomeKind = iota
	outcomeSuspend
	outcomeNext
	outcomeGoto
)

// Outcome is returned by plain steps.
type Outcome struct {
	kind  outcomeKind
	state string
	args  []any
}

// Continue advances to the next step, without arguments, unless the step
// navigated or started a transition while it ran.
func Continue() Outcome {
	return Outcome{kind: outcomeContinue}
}

// Suspend leaves the machine where it is.
func Suspend() Outcome {
	return Outcome{kind: outcomeSuspend}
}

// Next moves to the next step with args.
func Next(args ...any) Outcome {
	return Outcome{kind: outcomeNext, args: args}
}

// Goto moves to state with args.
func Goto(state string, args ...any) Outcome {
	return Outcome{kind: outcomeGoto, state: state, args: args}
}
