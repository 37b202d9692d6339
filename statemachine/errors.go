package statemachine

import (
	"errors"
	"fmt"
)

var (
	// ErrStateNotFound is fatal: a transition targeted a state nobody registered.
	ErrStateNotFound = errors.New("state not found")
	// ErrDuplicateState is returned when a state name is registered twice.
	ErrDuplicateState = errors.New("duplicate state name")
	// ErrStateNameRequired is returned for an empty state name.
	ErrStateNameRequired = errors.New("state name is required")
	// ErrNoInitialState is emitted by a machine started with nowhere to go.
	ErrNoInitialState = errors.New("initial state is required")
	// ErrQueueStarted is returned when a started queue is modified or restarted.
	ErrQueueStarted = errors.New("queue already started")
	// ErrNilAction is returned for a transition without an action.
	ErrNilAction = errors.New("transition requires an action")
)

// StateError wraps an error with state context.
type StateError struct {
	Machine string
	State   string
	Err     error
}

func (e *StateError) Error() string {
	if e.Machine == "" {
		return fmt.Sprintf("state %s: %v", e.State, e.Err)
	}

	return fmt.Sprintf("machine %s, state %s: %v", e.Machine, e.State, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// TransitionError wraps an error with transition context.
type TransitionError struct {
	From string
	To   string
	Err  error
}

func (e *TransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("transition from %s: %v", e.From, e.Err)
	}

	return fmt.Sprintf("transition %s -> %s: %v", e.From, e.To, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// WrapStateError wraps an error with state context.
func WrapStateError(machine, state string, err error) error {
	if err == nil {
		return nil
	}

	return &StateError{Machine: machine, State: state, Err: err}
}

// WrapTransitionError wraps an error with transition context.
func WrapTransitionError(from, to string, err error) error {
	if err == nil {
		return nil
	}

	return &TransitionError{From: from, To: to, Err: err}
}
