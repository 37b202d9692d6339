// Package errors holds error values and helpers shared across amp-async packages.
package errors

import "errors"

// ErrPanicRecovery marks errors that were converted from a recovered panic.
var ErrPanicRecovery = errors.New("recovered from panic")

// Collection is a thread-unsafe utility for accumulating multiple errors.
// Use this when several cleanup steps must all run and every failure should
// be reported together.
type Collection struct {
	errors []error
}

// Add appends an error to the collection. Nil errors are ignored.
func (c *Collection) Add(err error) {
	if err != nil {
		c.errors = append(c.errors, err)
	}
}

// HasError returns true if the collection contains at least one error.
func (c *Collection) HasError() bool {
	return len(c.errors) > 0
}

// GetError returns nil for an empty collection, the only error for a
// single-element collection, and errors.Join of everything otherwise.
func (c *Collection) GetError() error {
	switch len(c.errors) {
	case 0:
		return nil
	case 1:
		return c.errors[0]
	default:
		return errors.Join(c.errors...)
	}
}
