// Package shutdown collects cleanup hooks that must run before the process exits.
package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var (
	mut     sync.Mutex     //nolint:gochecknoglobals
	hooks   []func()       //nolint:gochecknoglobals
	channel chan os.Signal //nolint:gochecknoglobals
)

// BeforeShutdown registers a hook. Hooks run in registration order, once.
func BeforeShutdown(h func()) {
	mut.Lock()
	defer mut.Unlock()

	hooks = append(hooks, h)
}

// Shutdown asks the signal handler installed by SetupHandler to shut down.
// Without a handler it runs the hooks directly.
func Shutdown() {
	mut.Lock()
	ch := channel
	mut.Unlock()

	if ch != nil {
		ch <- os.Interrupt

		return
	}

	RunHooks()
}

// SetupHandler installs a SIGINT/SIGTERM handler and returns a context that is
// cancelled after the hooks have run.
func SetupHandler() context.Context {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	mut.Lock()
	channel = ch
	mut.Unlock()

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sig := <-ch

		slog.Warn("Received " + sig.String() + ", shutting down...")

		signal.Stop(ch)

		mut.Lock()
		channel = nil
		mut.Unlock()

		RunHooks()
		cancel()
	}()

	return ctx
}

// RunHooks runs and clears the registered hooks.
func RunHooks() {
	mut.Lock()
	pending := hooks
	hooks = nil
	mut.Unlock()

	for _, h := range pending {
		h()
	}
}
