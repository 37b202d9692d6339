package utils //nolint:revive // utils is an appropriate package name for utility functions

import (
	"fmt"

	"github.com/amp-labs/amp-async/errors"
)

// GetPanicRecoveryError converts a recovered panic value and optional stack trace
// into a standard error. If the panic value is nil, it returns nil.
// Error values are wrapped so errors.Is still matches them; anything else is
// formatted with %v. A non-nil stack is appended to the message.
func GetPanicRecoveryError(err any, stack []byte) error {
	if err == nil {
		return nil
	}

	var wrapped error
	if errErr, ok := err.(error); ok {
		wrapped = fmt.Errorf("%w: %w", errors.ErrPanicRecovery, errErr)
	} else {
		wrapped = fmt.Errorf("%w: %v", errors.ErrPanicRecovery, err)
	}

	if stack != nil {
		return fmt.Errorf("%w\nstack trace:\n%s", wrapped, string(stack))
	}

	return wrapped
}
