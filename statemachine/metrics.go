package statemachine

import (
	"github.com/amp-labs/amp-async/action"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	outcomeSuccess   = string(action.OutcomeSuccess)
	outcomeCancelled = string(action.OutcomeCancelled)
)

var (
	stateEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "statemachine_state_entries_total",
		Help: "Total number of state handler invocations by machine and state",
	}, []string{"machine", "state"})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "statemachine_transitions_total",
		Help: "Total number of state changes by machine, from_state and to_state",
	}, []string{"machine", "from_state", "to_state"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "statemachine_runs_total",
		Help: "Total number of finished machine runs by machine and outcome",
	}, []string{"machine", "outcome"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{ //nolint:gochecknoglobals
		Name:    "statemachine_run_duration_seconds",
		Help:    "Duration of a machine run by machine and outcome",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"machine", "outcome"})

	pathLength = promauto.NewHistogramVec(prometheus.HistogramOpts{ //nolint:gochecknoglobals
		Name:    "statemachine_path_length",
		Help:    "Number of states visited in a machine run by machine and outcome",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
	}, []string{"machine", "outcome"})
)
