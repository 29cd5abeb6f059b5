package worker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus collectors for one pool.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	TasksSubmitted prometheus.Counter
	TasksCompleted prometheus.Counter
	TasksPanicked  prometheus.Counter
	BusyWorkers    prometheus.Gauge
	AliveWorkers   prometheus.Gauge
	TaskDuration   prometheus.Histogram
}

// NewMetrics creates the pool collectors and registers them with reg.
// It panics if registration fails, like prometheus.MustRegister.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		TasksSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "tasks_submitted_total",
			Help:      "Total number of tasks submitted to the pool",
		}),
		TasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "tasks_completed_total",
			Help:      "Total number of tasks that returned normally",
		}),
		TasksPanicked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "tasks_panicked_total",
			Help:      "Total number of tasks that panicked",
		}),
		BusyWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "busy_workers",
			Help:      "Number of workers currently executing a task",
		}),
		AliveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "alive_workers",
			Help:      "Number of workers whose loop has not exited",
		}),
		TaskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "task_duration_seconds",
			Help:      "Histogram of task execution time",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.TasksSubmitted,
		m.TasksCompleted,
		m.TasksPanicked,
		m.BusyWorkers,
		m.AliveWorkers,
		m.TaskDuration,
	)
	return m
}

func (m *Metrics) taskSubmitted() {
	if m == nil {
		return
	}
	m.TasksSubmitted.Inc()
}

func (m *Metrics) taskStarted() {
	if m == nil {
		return
	}
	m.BusyWorkers.Inc()
}

func (m *Metrics) taskFinished(d time.Duration, panicked bool) {
	if m == nil {
		return
	}
	m.BusyWorkers.Dec()
	m.TaskDuration.Observe(d.Seconds())
	if panicked {
		m.TasksPanicked.Inc()
	} else {
		m.TasksCompleted.Inc()
	}
}

func (m *Metrics) workerStarted() {
	if m == nil {
		return
	}
	m.AliveWorkers.Inc()
}

func (m *Metrics) workerExited() {
	if m == nil {
		return
	}
	m.AliveWorkers.Dec()
}
