package action

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	actionsStarted = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "action_started",
		Help: "The total number of actions whose start procedure ran",
	}, []string{"loop"})

	actionsSucceeded = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "action_succeeded",
		Help: "The total number of actions that emitted success",
	}, []string{"loop"})

	actionsFailed = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "action_failed",
		Help: "The total number of actions that emitted an error",
	}, []string{"loop"})

	actionsCancelled = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "action_cancelled",
		Help: "The total number of actions cancelled before an outcome",
	}, []string{"loop"})

	unhandledErrors = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "action_unhandled_errors",
		Help: "The total number of errors emitted with no error listener",
	}, []string{"loop"})
)
