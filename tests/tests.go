// Package tests provides helpers for tests that drive actions on a loop.
//
// Each helper loop gets a unique name so that per-loop metrics do not
// collide across parallel tests, logs through slogt, and records fatal
// errors instead of exiting the process:
//
//	func TestMyMachine(t *testing.T) {
//	    l, fatals := tests.NewLoop(t)
//	    ...
//	    assert.Empty(t, fatals.Errors())
//	}
package tests

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/amp-labs/amp-async/loop"
	"github.com/google/uuid"
	"github.com/neilotoole/slogt"
)

// Timeout bounds how long helpers wait for asynchronous outcomes.
const Timeout = 2 * time.Second

// Fatals records errors delivered to a loop's fatal handler.
type Fatals struct {
	mu     sync.Mutex
	errs   []error
	signal chan struct{}
}

func newFatals() *Fatals {
	return &Fatals{signal: make(chan struct{}, 1)}
}

func (f *Fatals) handle(err error) {
	f.mu.Lock()
	f.errs = append(f.errs, err)
	f.mu.Unlock()

	select {
	case f.signal <- struct{}{}:
	default:
	}
}

// Errors returns a copy of the recorded errors.
func (f *Fatals) Errors() []error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]error(nil), f.errs...)
}

// Wait blocks until at least one fatal error was recorded or the timeout
// passes, and returns what was recorded.
func (f *Fatals) Wait(timeout time.Duration) []error {
	if errs := f.Errors(); len(errs) > 0 {
		return errs
	}

	select {
	case <-f.signal:
	case <-time.After(timeout):
	}

	return f.Errors()
}

// UniqueName returns the test name suffixed with a random ID.
func UniqueName(t *testing.T) string {
	t.Helper()

	return t.Name() + "-" + uuid.NewString()
}

// NewLoop starts a loop for the duration of the test.
func NewLoop(t *testing.T) (*loop.Loop, *Fatals) {
	t.Helper()

	fatals := newFatals()

	l := loop.New(
		loop.WithName(UniqueName(t)),
		loop.WithLogger(slogt.New(t)),
		loop.WithFatalHandler(fatals.handle),
	)

	l.Start(context.Background())

	t.Cleanup(func() {
		l.Stop()
		l.Wait()
	})

	return l, fatals
}

// Sync round-trips a few empty tasks through the loop so that work posted
// so far, and the short chains it posts in turn, has run.
func Sync(t *testing.T, l *loop.Loop) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()

	for range 8 {
		if err := l.Call(ctx, func() {}); err != nil {
			t.Fatalf("syncing loop: %v", err)
		}
	}
}
