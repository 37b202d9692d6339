package action

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrCancelled is returned by Run and Await when the action was cancelled.
	ErrCancelled = errors.New("action cancelled")
	// ErrAlreadyFinished is returned by Await for an action that already has an outcome.
	ErrAlreadyFinished = errors.New("action already finished")
	// ErrRetriesExhausted wraps the last error of a Retry that ran out of attempts.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// UnhandledError is delivered to the fatal handler when an action fails
// with nobody listening.
type UnhandledError struct {
	Action string
	ID     uuid.UUID
	Err    error
}

func (u *UnhandledError) Error() string {
	return fmt.Sprintf("unhandled error in action %s (%s): %v", u.Action, u.ID, u.Err)
}

func (u *UnhandledError) Unwrap() error {
	return u.Err
}
