package envutil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidLogLevel = errors.New("invalid log level")

// lookup is swapped in tests.
var lookup = os.LookupEnv //nolint:gochecknoglobals

func get(key string) Reader[string] {
	val, ok := lookup(key)

	return Reader[string]{key: key, present: ok, value: val}
}

func apply[T any](rdr Reader[T], opts []Option[T]) Reader[T] {
	for _, opt := range opts {
		rdr = opt(rdr)
	}

	return rdr
}

// String reads a raw string variable.
func String(key string, opts ...Option[string]) Reader[string] {
	return apply(get(key), opts)
}

// Bool reads a variable accepted by strconv.ParseBool.
func Bool(key string, opts ...Option[bool]) Reader[bool] {
	return apply(Map(get(key), strconv.ParseBool), opts)
}

// Int reads a base-10 integer.
func Int(key string, opts ...Option[int]) Reader[int] {
	return apply(Map(get(key), strconv.Atoi), opts)
}

// Float64 reads a floating point number.
func Float64(key string, opts ...Option[float64]) Reader[float64] {
	return apply(Map(get(key), func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	}), opts)
}

// Duration reads a value accepted by time.ParseDuration.
func Duration(key string, opts ...Option[time.Duration]) Reader[time.Duration] {
	return apply(Map(get(key), time.ParseDuration), opts)
}

// SlogLevel reads one of debug, info, warn or error (case-insensitive).
func SlogLevel(key string, opts ...Option[slog.Level]) Reader[slog.Level] {
	return apply(Map(get(key), parseLevel), opts)
}

func parseLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, value)
	}
}
