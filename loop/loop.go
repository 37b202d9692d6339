// Package loop provides the single logical thread every orchestration runs on.
// A Loop executes posted tasks one at a time in FIFO order on its own goroutine.
// Posting never blocks, and delayed tasks are cancellable.
package loop

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/amp-labs/amp-async/channels"
	"github.com/amp-labs/amp-async/config"
	"github.com/amp-labs/amp-async/logger"
	"github.com/amp-labs/amp-async/utils"
	"go.uber.org/atomic"
)

var (
	// ErrStopped is returned when work is submitted to a loop that has stopped.
	ErrStopped = errors.New("loop is stopped")
	// ErrNotStarted is returned by Call before Start.
	ErrNotStarted = errors.New("loop is not started")
)

// Task is a unit of work executed on the loop.
type Task func()

// FatalHandler receives errors nothing else can handle: panics inside tasks
// and errors emitted by actions with no error listener.
type FatalHandler func(err error)

// Loop is a sequenced task runner.
type Loop struct {
	name      string
	subsystem string
	logger    *slog.Logger
	fatal     FatalHandler

	in  chan<- Task
	out <-chan Task

	started *atomic.Bool
	stopped *atomic.Bool
	pending *atomic.Int64
	wg      sync.WaitGroup
	done    chan struct{}
}

// Option configures a Loop.
type Option func(*Loop)

// WithName sets the name used in logs and metric labels.
func WithName(name string) Option {
	return func(l *Loop) {
		l.name = name
	}
}

// WithSubsystem sets the subsystem metric label. It defaults to the
// subsystem configured for logging.
func WithSubsystem(subsystem string) Option {
	return func(l *Loop) {
		l.subsystem = subsystem
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = log
	}
}

// WithFatalHandler replaces the default fatal handler, which stops the loop
// and exits the process via logger.Fatal. Handlers run on the loop goroutine
// and must not wait for the loop to finish.
func WithFatalHandler(h FatalHandler) Option {
	return func(l *Loop) {
		l.fatal = h
	}
}

// WithConfig applies the loop section of the application config. When
// FatalExit is off, fatal errors are logged and the loop keeps running.
func WithConfig(cfg config.Loop) Option {
	return func(l *Loop) {
		if cfg.Name != "" {
			l.name = cfg.Name
		}

		if !cfg.FatalExit {
			l.fatal = func(err error) {
				l.logger.Error("fatal error suppressed by configuration", "loop", l.name, "error", err)
			}
		}
	}
}

// New creates a loop. Tasks may be posted before Start; they run once the
// loop starts.
func New(opts ...Option) *Loop {
	in, out := channels.InfiniteChan[Task]()

	l := &Loop{
		name:      "main",
		subsystem: logger.GetSubsystem(context.Background()),
		in:        in,
		out:       out,
		started:   atomic.NewBool(false),
		stopped:   atomic.NewBool(false),
		pending:   atomic.NewInt64(0),
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.logger == nil {
		l.logger = logger.Get()
	}

	if l.fatal == nil {
		// The exit runs off the loop so that shutdown hooks can wait for
		// the loop to drain.
		l.fatal = func(err error) {
			l.Stop()

			go logger.Fatal("unhandled error", "loop", l.name, "error", err)
		}
	}

	return l
}

// Name returns the loop's name.
func (l *Loop) Name() string {
	return l.name
}

// Logger returns the loop's diagnostic logger.
func (l *Loop) Logger() *slog.Logger {
	return l.logger
}

// Start launches the loop goroutine. It stops when ctx is done or Stop is
// called, after draining tasks already posted. Calling Start twice is a no-op.
func (l *Loop) Start(ctx context.Context) {
	if !l.started.CompareAndSwap(false, true) {
		return
	}

	tasksProcessed.WithLabelValues(l.subsystem, l.name).Add(0)
	taskPanics.WithLabelValues(l.subsystem, l.name).Add(0)
	loopsAlive.WithLabelValues(l.subsystem, l.name).Inc()

	l.wg.Add(1)

	go func() {
		defer l.wg.Done()
		defer close(l.done)
		defer loopsAlive.WithLabelValues(l.subsystem, l.name).Dec()

		done := ctx.Done()

		for {
			select {
			case <-done:
				done = nil

				l.Stop()
			case task, ok := <-l.out:
				if !ok {
					return
				}

				start := time.Now()

				l.run(task)

				tasksProcessed.WithLabelValues(l.subsystem, l.name).Inc()
				taskDuration.WithLabelValues(l.subsystem, l.name).Observe(time.Since(start).Seconds())
			}
		}
	}()
}

func (l *Loop) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			err := utils.GetPanicRecoveryError(r, debug.Stack())

			taskPanics.WithLabelValues(l.subsystem, l.name).Inc()

			l.logger.Error("loop task panicked", "loop", l.name, "error", err)

			l.Fatal(err)
		}
	}()

	task()
}

// Post schedules task to run on the loop. It never blocks and reports false
// if the loop has stopped.
func (l *Loop) Post(task Task) bool {
	if task == nil || l.stopped.Load() {
		return false
	}

	if !channels.SendIgnorePanic(l.in, task) {
		return false
	}

	tasksPosted.WithLabelValues(l.subsystem, l.name).Inc()

	return true
}

// PostDelayed schedules task to be posted after d. The returned function
// cancels it and reports whether the task was prevented from running.
func (l *Loop) PostDelayed(d time.Duration, task Task) (cancel func() bool) {
	var (
		mu    sync.Mutex
		state int // 0 pending, 1 fired, 2 cancelled
	)

	l.pending.Inc()
	delayedPending.WithLabelValues(l.subsystem, l.name).Inc()

	settle := func(to int) bool {
		mu.Lock()
		defer mu.Unlock()

		if state != 0 {
			return false
		}

		state = to

		l.pending.Dec()
		delayedPending.WithLabelValues(l.subsystem, l.name).Dec()

		return true
	}

	timer := time.AfterFunc(d, func() {
		posted := l.Post(func() {
			if settle(1) {
				task()
			}
		})
		if !posted {
			settle(1)
		}
	})

	return func() bool {
		timer.Stop()

		return settle(2)
	}
}

// PendingDelayed returns the number of delayed tasks not yet run or cancelled.
func (l *Loop) PendingDelayed() int {
	return int(l.pending.Load())
}

// Call runs fn on the loop and waits for it to finish. It must not be called
// from a loop task.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	if !l.started.Load() {
		return ErrNotStarted
	}

	done := make(chan struct{})

	if !l.Post(func() {
		defer close(done)

		fn()
	}) {
		return ErrStopped
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fatal hands err to the fatal handler.
func (l *Loop) Fatal(err error) {
	fatalErrors.WithLabelValues(l.subsystem, l.name).Inc()

	l.fatal(err)
}

// Stop stops accepting tasks. Tasks already posted still run. Safe to call
// more than once and from a loop task.
func (l *Loop) Stop() {
	if !l.stopped.CompareAndSwap(false, true) {
		return
	}

	channels.CloseChannelIgnorePanic(l.in)
}

// Stopped reports whether Stop has been called.
func (l *Loop) Stopped() bool {
	return l.stopped.Load()
}

// Wait blocks until the loop goroutine has exited. Never call it from a
// loop task.
func (l *Loop) Wait() {
	l.wg.Wait()
}

// Done is closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
