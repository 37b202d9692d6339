package statemachine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/amp-labs/amp-async/statemachine"

// startRunSpan opens the span covering a whole machine run. It is ended by
// endRunSpan when the machine reaches an outcome.
//
//nolint:spancheck
func (m *Machine) startRunSpan() {
	m.spanCtx, m.runSpan = m.tracer.Start(context.Background(), "statemachine.run",
		trace.WithAttributes(
			attribute.String("machine", m.Name()),
			attribute.String("machine_id", m.ID().String()),
		))
}

func (m *Machine) endRunSpan(outcome string, err error) {
	if m.runSpan == nil {
		return
	}

	m.runSpan.SetAttributes(
		attribute.String("outcome", outcome),
		attribute.StringSlice("path_history", m.path),
		attribute.Int("transitions", m.transitions),
	)

	switch {
	case err != nil:
		m.runSpan.RecordError(err)
		m.runSpan.SetStatus(codes.Error, err.Error())
	case outcome == outcomeCancelled:
		m.runSpan.SetStatus(codes.Error, outcomeCancelled)
	default:
		m.runSpan.SetStatus(codes.Ok, "completed")
	}

	m.runSpan.End()
	m.runSpan = nil
}

// startStateSpan opens a child span for one handler invocation.
//
//nolint:spancheck
func (m *Machine) startStateSpan(state string) trace.Span {
	ctx := m.spanCtx
	if ctx == nil {
		ctx = context.Background()
	}

	_, span := m.tracer.Start(ctx, "state."+state, trace.WithAttributes(
		attribute.String("machine", m.Name()),
		attribute.String("state", state),
		attribute.Int("generation", m.generation),
	))

	return span
}
