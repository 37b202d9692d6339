// Package try pairs a value with the error that may have replaced it.
package try

// Try holds the outcome of a computation: a value or an error.
type Try[A any] struct {
	Value A
	Error error
}

func (t Try[A]) IsSuccess() bool {
	return t.Error == nil
}

func (t Try[A]) IsFailure() bool {
	return t.Error != nil
}

// Get unpacks the outcome into Go's (value, error) form. The value is the zero
// value whenever the error is set.
func (t Try[A]) Get() (A, error) { //nolint:ireturn
	if t.IsFailure() {
		var zero A

		return zero, t.Error
	}

	return t.Value, nil
}

// Of builds a Try from a (value, error) pair.
func Of[A any](value A, err error) Try[A] {
	return Try[A]{Value: value, Error: err}
}
