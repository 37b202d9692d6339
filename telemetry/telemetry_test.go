package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/amp-labs/amp-async/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
)

type collector struct {
	mu    sync.Mutex
	paths []string
}

func (c *collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	c.paths = append(c.paths, r.URL.Path)
	c.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

func (c *collector) Paths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.paths...)
}

func TestInitializeDisabled(t *testing.T) {
	t.Parallel()

	providers, err := Initialize(t.Context(), config.Telemetry{Enabled: false})
	require.NoError(t, err)

	assert.Nil(t, providers.Tracer)
	assert.Nil(t, providers.Logger)
	assert.Nil(t, providers.LoggerProvider())
	assert.NotNil(t, providers.TracerProvider())
	require.NoError(t, providers.Shutdown(t.Context()))
}

func TestEndpointsKubernetesDefault(t *testing.T) { //nolint:paralleltest
	tests := []struct {
		name       string
		host       string
		cfg        config.Telemetry
		wantTraces string
		wantLogs   string
	}{
		{
			name:       "kubernetes detected",
			host:       "10.0.0.1",
			wantTraces: KubernetesCollector + "/v1/traces",
			wantLogs:   KubernetesCollector + "/v1/logs",
		},
		{
			name: "outside kubernetes",
		},
		{
			name:       "explicit endpoint wins",
			host:       "10.0.0.1",
			cfg:        config.Telemetry{TracesEndpoint: "http://custom:4318/v1/traces"},
			wantTraces: "http://custom:4318/v1/traces",
			wantLogs:   KubernetesCollector + "/v1/logs",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Setenv("KUBERNETES_SERVICE_HOST", test.host)

			traces, logs := endpoints(test.cfg)
			assert.Equal(t, test.wantTraces, traces)
			assert.Equal(t, test.wantLogs, logs)
		})
	}
}

func TestInitializeExportsTracesAndLogs(t *testing.T) { //nolint:paralleltest
	t.Setenv("KUBERNETES_SERVICE_HOST", "")

	col := &collector{}
	srv := httptest.NewServer(col)
	t.Cleanup(srv.Close)

	providers, err := Initialize(t.Context(), config.Telemetry{
		Enabled:        true,
		ServiceName:    "amp-async-test",
		ServiceVersion: "test",
		TracesEndpoint: srv.URL + "/v1/traces",
		LogsEndpoint:   srv.URL + "/v1/logs",
		Timeout:        time.Second,
	})
	require.NoError(t, err)
	require.NotNil(t, providers.Tracer)
	require.NotNil(t, providers.Logger)

	t.Cleanup(func() { _ = providers.Shutdown(context.Background()) })

	_, span := providers.TracerProvider().Tracer("test").Start(t.Context(), "work")
	span.End()

	var record otellog.Record
	record.SetBody(otellog.StringValue("hello"))
	providers.LoggerProvider().Logger("test").Emit(t.Context(), record)

	require.NoError(t, providers.ForceFlush(t.Context()))

	assert.ElementsMatch(t, []string{"/v1/traces", "/v1/logs"}, col.Paths())
}
