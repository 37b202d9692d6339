package envutil

import (
	"errors"
	"fmt"
)

var (
	ErrBadEnvVar     = errors.New("error parsing environment variable")
	ErrEnvVarMissing = errors.New("missing environment variable")
)

// Reader wraps a value read from an environment variable, tracking whether
// the variable was set and whether parsing it failed.
type Reader[A any] struct {
	key     string
	present bool
	err     error

	value A
}

// Key returns the environment variable name.
func (r Reader[A]) Key() string {
	return r.key
}

// Value returns the parsed value, or an error if the variable is missing
// or could not be parsed.
func (r Reader[A]) Value() (A, error) { //nolint:ireturn
	if r.err != nil {
		return r.value, fmt.Errorf("%w %s: %w", ErrBadEnvVar, r.key, r.err)
	}

	if !r.present {
		return r.value, fmt.Errorf("%w %s", ErrEnvVarMissing, r.key)
	}

	return r.value, nil
}

// ValueOrElse returns the parsed value, or v when the variable is missing
// or unparseable.
func (r Reader[A]) ValueOrElse(v A) A { //nolint:ireturn
	if r.HasValue() {
		return r.value
	}

	return v
}

// DoWithValue calls f only when a valid value is present.
func (r Reader[A]) DoWithValue(f func(A)) {
	if r.HasValue() {
		f(r.value)
	}
}

// HasValue reports whether the variable was set and parsed cleanly.
func (r Reader[A]) HasValue() bool {
	return r.present && r.err == nil
}

// HasError reports whether parsing failed.
func (r Reader[A]) HasError() bool {
	return r.err != nil
}

// Error returns the parse error, if any.
func (r Reader[A]) Error() error {
	return r.err
}

func (r Reader[A]) String() string {
	switch {
	case r.err != nil:
		return fmt.Sprintf("%s=<error: %v>", r.key, r.err)
	case r.present:
		return fmt.Sprintf("%s=%v", r.key, r.value)
	default:
		return r.key + "=<not set>"
	}
}

// WithDefault returns a Reader holding v if the variable was not set.
func (r Reader[A]) WithDefault(v A) Reader[A] { //nolint:ireturn
	if r.present {
		return r
	}

	return Reader[A]{key: r.key, present: true, err: r.err, value: v}
}

// Map transforms the value, keeping the type.
func (r Reader[A]) Map(f func(A) (A, error)) Reader[A] { //nolint:ireturn
	return Map(r, f)
}

// Map transforms the value of a Reader into another type. Missing or
// failed readers pass through untouched.
func Map[A any, B any](r Reader[A], f func(A) (B, error)) Reader[B] {
	if !r.present || r.err != nil {
		return Reader[B]{key: r.key, present: r.present, err: r.err}
	}

	val, err := f(r.value)

	return Reader[B]{key: r.key, present: true, err: err, value: val}
}
