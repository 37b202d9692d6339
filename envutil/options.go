package envutil

// Option modifies a Reader. String, Bool and friends accept them so that
// callers can attach defaults and validation inline.
type Option[T any] func(Reader[T]) Reader[T]

// Default supplies a value for an unset variable.
func Default[T any](dfl T) Option[T] {
	return func(rdr Reader[T]) Reader[T] {
		return rdr.WithDefault(dfl)
	}
}

// Validate runs f on the value; a non-nil error marks the Reader as failed.
func Validate[T any](f func(T) error) Option[T] {
	return func(rdr Reader[T]) Reader[T] {
		return rdr.Map(func(val T) (T, error) {
			return val, f(val)
		})
	}
}
