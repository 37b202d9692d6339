// Package lazy provides values that are built on first use.
package lazy

import (
	"sync"

	"go.uber.org/atomic"
)

// Of is a lazy value that is initialized at most once.
type Of[T any] struct {
	mu          sync.Mutex
	create      func() T
	value       T
	initialized atomic.Bool
}

// New creates a new lazy value. The callback runs when the value is first accessed.
func New[T any](f func() T) *Of[T] {
	return &Of[T]{create: f}
}

// Get returns the value, initializing it if necessary. A panic in the
// constructor leaves the value uninitialized so a later Get can retry.
func (t *Of[T]) Get() T { //nolint:ireturn
	if t.initialized.Load() {
		return t.value
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.initialized.Load() && t.create != nil {
		t.value = t.create()
		t.create = nil
		t.initialized.Store(true)
	}

	return t.value
}

// Set replaces the value. Prefer Get with a constructor; Set exists for tests
// and for callers that want to inject a pre-built value.
func (t *Of[T]) Set(value T) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.create = nil
	t.value = value
	t.initialized.Store(true)
}

// Initialized reports whether the value has been built.
func (t *Of[T]) Initialized() bool {
	return t.initialized.Load()
}
