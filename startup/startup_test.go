package startup_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/amp-labs/amp-async/action"
	"github.com/amp-labs/amp-async/config"
	"github.com/amp-labs/amp-async/logger"
	"github.com/amp-labs/amp-async/loop"
	"github.com/amp-labs/amp-async/sequencer"
	"github.com/amp-labs/amp-async/startup"
	"github.com/amp-labs/amp-async/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestStartWiresRuntime(t *testing.T) { //nolint:paralleltest
	path := writeConfig(t, `
logging:
  level: debug
loop:
  name: orders
  fatal_exit: false
retry:
  attempts: 7
`)

	rt, err := startup.Start(t.Context(), startup.WithConfigFile(path), startup.WithoutTelemetry())
	require.NoError(t, err)

	t.Cleanup(func() {
		rt.Loop.Stop()
		rt.Loop.Wait()
	})

	assert.Equal(t, "orders", rt.Loop.Name())
	assert.Equal(t, 7, rt.RetryPolicy().Attempts)
	assert.Nil(t, rt.Telemetry.Tracer)
	assert.NotNil(t, rt.Logger)

	s := rt.NewSequencer("checkout")
	require.NoError(t, s.Add("price", sequencer.Await(func(...any) action.Action {
		return action.Delay(rt.Loop, time.Millisecond, 42)
	})))

	args, err := action.Run(t.Context(), s)
	require.NoError(t, err)
	assert.Equal(t, []any{42}, args)

	m := rt.NewMachine("plain")
	require.NoError(t, m.AddState("only", func(...any) { m.EmitSuccess("done") }))
	m.SetInitialState("only")

	args, err = action.Run(t.Context(), m)
	require.NoError(t, err)
	assert.Equal(t, []any{"done"}, args)
}

func TestStartFromEnvironment(t *testing.T) { //nolint:paralleltest
	t.Setenv(startup.ConfigFileEnv, writeConfig(t, "loop:\n  name: from-env\n"))

	fatals := make(chan error, 1)

	rt, err := startup.Start(t.Context(),
		startup.WithoutTelemetry(),
		startup.WithLoopOptions(loop.WithFatalHandler(func(err error) { fatals <- err })),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		rt.Loop.Stop()
		rt.Loop.Wait()
	})

	assert.Equal(t, "from-env", rt.Loop.Name())

	rt.Loop.Post(action.Fail(rt.Loop, assert.AnError).Start)

	select {
	case err := <-fatals:
		require.ErrorIs(t, err, assert.AnError)
	case <-time.After(tests.Timeout):
		t.Fatal("unhandled error never reached the fatal handler")
	}
}

func TestStartRejectsInvalidConfig(t *testing.T) { //nolint:paralleltest
	path := writeConfig(t, "workers:\n  count: 0\n")

	_, err := startup.Start(t.Context(), startup.WithConfigFile(path), startup.WithoutTelemetry())
	require.ErrorIs(t, err, config.ErrInvalidWorkers)
}

func TestUnhandledErrorExitsProcess(t *testing.T) { //nolint:paralleltest
	exited := make(chan int, 1)
	t.Cleanup(logger.SetExit(func(code int) { exited <- code }))

	rt, err := startup.Start(t.Context(), startup.WithConfigFile(writeConfig(t, "loop:\n  name: doomed\n")),
		startup.WithoutTelemetry())
	require.NoError(t, err)
	require.True(t, rt.Config.Loop.FatalExit)

	rt.Loop.Post(action.Fail(rt.Loop, assert.AnError).Start)

	select {
	case code := <-exited:
		assert.Equal(t, 1, code)
	case <-time.After(5 * time.Second):
		t.Fatal("unhandled error never exited the process")
	}

	select {
	case <-rt.Context.Done():
	case <-time.After(tests.Timeout):
		t.Fatal("shutdown hooks never finished")
	}

	assert.True(t, rt.Loop.Stopped())

	select {
	case <-rt.Loop.Done():
	default:
		t.Fatal("loop goroutine still running")
	}
}
