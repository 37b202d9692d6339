// Package action implements the cancellable unit of asynchronous work that
// every orchestration is built from.
//
// An Action starts on the next loop tick, emits exactly one outcome
// (success, error or cancel) and owns the sub-actions it spawns: cancelling
// an Action cancels its whole subtree. Apart from construction, every method
// must be called from a task running on the Action's loop.
package action

import (
	"log/slog"
	"runtime/debug"
	"slices"

	"github.com/amp-labs/amp-async/loop"
	"github.com/google/uuid"
)

// Action is the capability shared by every unit of work: plain actions,
// adapters, state machines and sequencers.
type Action interface {
	// Start schedules the start procedure on the next loop tick. Call-once.
	Start()
	// Cancel cancels the action and every tracked child. Idempotent.
	Cancel()

	OnSuccess(fn func(args ...any))
	OnError(fn func(err error))
	OnCancel(fn func())

	ID() uuid.UUID
	Name() string
	Loop() *loop.Loop

	// Terminated reports whether success or error was emitted.
	Terminated() bool
	Cancelled() bool
}

// Outcome is how an action concluded.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeError     Outcome = "error"
	OutcomeCancelled Outcome = "cancelled"
)

// Base is the embeddable implementation of Action.
type Base struct {
	id     uuid.UUID
	name   string
	loop   *loop.Loop
	logger *slog.Logger

	start func()
	raise func(err error)

	started    bool
	terminated bool
	cancelled  bool

	onSuccess []func(args ...any)
	onError   []func(err error)
	onCancel  []func()

	// observers see every outcome but are not listeners: an error with only
	// observers is still unhandled.
	observers []func(outcome Outcome, err error)

	children []Action
}

var _ Action = (*Base)(nil)

// Option configures a Base.
type Option func(*Base)

// WithLogger overrides the loop's logger for this action.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Base) {
		b.logger = logger
	}
}

// NewBase creates an action running start when it starts. Types embedding
// Base pass their own start procedure here.
func NewBase(l *loop.Loop, name string, start func(), opts ...Option) *Base {
	b := &Base{
		id:    uuid.New(),
		name:  name,
		loop:  l,
		start: start,
	}

	b.raise = b.EmitError

	for _, opt := range opts {
		opt(b)
	}

	if b.logger == nil {
		b.logger = l.Logger()
	}

	b.logger = b.logger.With("action", name, "action_id", b.id.String())

	return b
}

func (b *Base) ID() uuid.UUID          { return b.id }
func (b *Base) Name() string           { return b.name }
func (b *Base) Loop() *loop.Loop       { return b.loop }
func (b *Base) Logger() *slog.Logger   { return b.logger }
func (b *Base) Started() bool          { return b.started }
func (b *Base) Terminated() bool       { return b.terminated }
func (b *Base) Cancelled() bool        { return b.cancelled }
func (b *Base) Children() []Action     { return slices.Clone(b.children) }
func (b *Base) OnCancel(fn func())     { b.onCancel = append(b.onCancel, fn) }
func (b *Base) OnError(fn func(error)) { b.onError = append(b.onError, fn) }

func (b *Base) OnSuccess(fn func(args ...any)) {
	b.onSuccess = append(b.onSuccess, fn)
}

// Observe registers fn to run when the action reaches its outcome, before
// any listener. Types built on Base use it for their own bookkeeping.
func (b *Base) Observe(fn func(outcome Outcome, err error)) {
	b.observers = append(b.observers, fn)
}

func (b *Base) notify(outcome Outcome, err error) {
	for _, fn := range b.observers {
		fn(outcome, err)
	}
}

// Done reports whether the action has reached any outcome.
func (b *Base) Done() bool {
	return b.terminated || b.cancelled
}

// SetRaiser changes how errors bubbled up from children are raised on this
// action. The default emits them.
func (b *Base) SetRaiser(fn func(err error)) {
	b.raise = fn
}

// Raise raises err through the configured raiser.
func (b *Base) Raise(err error) {
	b.raise(err)
}

func (b *Base) Start() {
	if b.started {
		b.logger.Warn("action started twice; ignoring")

		return
	}

	b.started = true

	b.loop.Post(func() {
		if b.Done() {
			return
		}

		actionsStarted.WithLabelValues(b.loop.Name()).Inc()

		if b.start != nil {
			b.start()
		}
	})
}

// EmitSuccess concludes the action successfully. No-op once the action has
// any outcome.
func (b *Base) EmitSuccess(args ...any) {
	if b.Done() {
		return
	}

	b.terminated = true

	actionsSucceeded.WithLabelValues(b.loop.Name()).Inc()

	listeners := b.onSuccess
	b.notify(OutcomeSuccess, nil)
	b.release()

	for _, fn := range listeners {
		fn(args...)
	}
}

// EmitError concludes the action with err. With no error listener the error
// is unhandled: it is logged with a stack trace and handed to the loop's
// fatal handler. No-op once the action has any outcome.
func (b *Base) EmitError(err error) {
	if b.Done() {
		return
	}

	b.terminated = true

	actionsFailed.WithLabelValues(b.loop.Name()).Inc()

	listeners := b.onError
	b.notify(OutcomeError, err)
	b.release()

	if len(listeners) == 0 {
		b.unhandled(err)

		return
	}

	for _, fn := range listeners {
		fn(err)
	}
}

func (b *Base) unhandled(err error) {
	unhandledErrors.WithLabelValues(b.loop.Name()).Inc()

	uerr := &UnhandledError{Action: b.name, ID: b.id, Err: err}

	b.logger.Error("unhandled action error", "error", err, "stack", string(debug.Stack()))

	b.loop.Fatal(uerr)
}

// Cancel cancels every tracked child, then fires the cancel listeners unless
// the action already terminated. Idempotent.
func (b *Base) Cancel() {
	if b.cancelled {
		return
	}

	b.cancelled = true

	for _, child := range b.children {
		child.Cancel()
	}

	if b.terminated {
		return
	}

	actionsCancelled.WithLabelValues(b.loop.Name()).Inc()

	listeners := b.onCancel
	b.notify(OutcomeCancelled, nil)
	b.release()

	for _, fn := range listeners {
		fn()
	}
}

func (b *Base) release() {
	b.onSuccess = nil
	b.onError = nil
	b.onCancel = nil
	b.observers = nil
}

type addConfig struct {
	bubble bool
}

// AddOption configures AddAction.
type AddOption func(*addConfig)

// NoBubble keeps a child's failure local: siblings are not cancelled and the
// error is not raised on the parent. The caller must listen for it.
func NoBubble() AddOption {
	return func(c *addConfig) {
		c.bubble = false
	}
}

// AddAction tracks sub as a child and starts it. By default a failing child
// cancels its siblings and raises the error on this action.
func (b *Base) AddAction(sub Action, opts ...AddOption) {
	cfg := addConfig{bubble: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	b.children = slices.DeleteFunc(b.children, func(c Action) bool {
		return c.Terminated() || c.Cancelled()
	})

	b.children = append(b.children, sub)

	if cfg.bubble {
		sub.OnError(func(err error) {
			for _, sibling := range slices.Clone(b.children) {
				if sibling != sub {
					sibling.Cancel()
				}
			}

			b.raise(err)
		})
	}

	if b.cancelled {
		sub.Cancel()

		return
	}

	sub.Start()
}
