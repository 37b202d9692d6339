package logger

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// AnnotateError attaches slog key-value pairs to err. When the error is later
// logged under any attribute key, the pairs are appended to the record.
// Returns nil if err is nil.
func AnnotateError(err error, args ...any) error {
	if err == nil {
		return nil
	}

	r := slog.NewRecord(time.Time{}, slog.LevelDebug, "", 0)
	r.Add(args...)

	attrs := make([]slog.Attr, 0, r.NumAttrs())

	r.Attrs(func(attr slog.Attr) bool {
		attrs = append(attrs, attr)

		return true
	})

	return &annotatedError{err: err, attrs: attrs}
}

// ErrorAttrs returns the attributes attached to err by AnnotateError, if any.
func ErrorAttrs(err error) []slog.Attr {
	var ae *annotatedError
	if errors.As(err, &ae) {
		return ae.attrs
	}

	return nil
}

type annotatedError struct {
	err   error
	attrs []slog.Attr
}

func (a *annotatedError) Error() string { return a.err.Error() }
func (a *annotatedError) Unwrap() error { return a.err }

// annotatedErrorHandler expands annotated errors into record attributes.
type annotatedErrorHandler struct {
	inner slog.Handler
}

var _ slog.Handler = (*annotatedErrorHandler)(nil)

func (h *annotatedErrorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *annotatedErrorHandler) Handle(ctx context.Context, record slog.Record) error {
	var extra []slog.Attr

	record.Attrs(func(attr slog.Attr) bool {
		if err, ok := attr.Value.Any().(error); ok {
			extra = append(extra, ErrorAttrs(err)...)
		}

		return true
	})

	if len(extra) == 0 {
		return h.inner.Handle(ctx, record)
	}

	r := record.Clone()
	r.AddAttrs(extra...)

	return h.inner.Handle(ctx, r)
}

func (h *annotatedErrorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &annotatedErrorHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *annotatedErrorHandler) WithGroup(name string) slog.Handler {
	return &annotatedErrorHandler{inner: h.inner.WithGroup(name)}
}
