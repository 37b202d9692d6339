// Package bgworker owns the process-wide pool for blocking work that must
// stay off the scheduler loop.
package bgworker

import (
	"errors"
	"log/slog"

	"github.com/alitto/pond/v2"
	"github.com/amp-labs/amp-async/config"
	"github.com/amp-labs/amp-async/envutil"
	"github.com/amp-labs/amp-async/lazy"
	"github.com/amp-labs/amp-async/shutdown"
	"go.uber.org/atomic"
)

const defaultWorkerCount = 10

// ErrPoolStarted is returned by Configure once the pool has been built.
var ErrPoolStarted = errors.New("background worker pool already started")

var (
	workerCount = atomic.NewInt64(0) //nolint:gochecknoglobals

	workerPool = lazy.New[pond.Pool](func() pond.Pool { //nolint:gochecknoglobals
		count := int(workerCount.Load())
		if count <= 0 {
			count = envutil.Int("BACKGROUND_WORKER_COUNT",
				envutil.Default(defaultWorkerCount)).ValueOrElse(defaultWorkerCount)
		}

		slog.Debug("Initializing background worker pool", "count", count)

		pool := pond.NewPool(count)

		shutdown.BeforeShutdown(func() {
			slog.Debug("Stopping background worker pool")
			pool.StopAndWait()
			slog.Debug("Background worker pool stopped")
		})

		return pool
	})
)

// Configure sets the pool size from config. It must run before the first
// submission.
func Configure(cfg config.Workers) error {
	if workerPool.Initialized() {
		return ErrPoolStarted
	}

	workerCount.Store(int64(cfg.Count))

	return nil
}

// Submit runs f on the pool and returns a Task to wait on.
func Submit(f func()) pond.Task { //nolint:ireturn
	return workerPool.Get().Submit(f)
}

// SubmitErr runs f on the pool; the returned Task reports f's error.
func SubmitErr(f func() error) pond.Task { //nolint:ireturn
	return workerPool.Get().SubmitErr(f)
}

// Go runs f on the pool without a handle. It fails if the pool is stopped.
func Go(f func()) error {
	return workerPool.Get().Go(f)
}

// RunningWorkers returns the number of workers currently executing tasks.
func RunningWorkers() int64 {
	return workerPool.Get().RunningWorkers()
}
