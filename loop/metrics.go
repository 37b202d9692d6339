package loop

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loopsAlive = promauto.NewGaugeVec(prometheus.GaugeOpts{ //nolint:gochecknoglobals
		Name: "loop_alive",
		Help: "The number of running loops",
	}, []string{"subsystem", "loop"})

	tasksPosted = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "loop_tasks_posted",
		Help: "The total number of tasks posted to a loop",
	}, []string{"subsystem", "loop"})

	tasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "loop_tasks_processed",
		Help: "The total number of tasks run by a loop",
	}, []string{"subsystem", "loop"})

	taskPanics = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "loop_task_panics",
		Help: "The total number of tasks that panicked",
	}, []string{"subsystem", "loop"})

	fatalErrors = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "loop_fatal_errors",
		Help: "The total number of errors handed to the fatal handler",
	}, []string{"subsystem", "loop"})

	delayedPending = promauto.NewGaugeVec(prometheus.GaugeOpts{ //nolint:gochecknoglobals
		Name: "loop_delayed_pending",
		Help: "The number of delayed tasks waiting for their timer",
	}, []string{"subsystem", "loop"})

	taskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{ //nolint:gochecknoglobals
		Name: "loop_task_duration_seconds",
		Help: "The time spent running a single task",
		Buckets: []float64{
			0.0001, // 100µs
			0.001,  // 1ms
			0.01,   // 10ms
			0.1,    // 100ms
			1,      // 1s
			10,     // 10s
		},
	}, []string{"subsystem", "loop"})
)
