// Package metrics records run statistics in a Prometheus registry and writes
// them as a node-exporter textfile.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/imamik/calcifer/internal/engine"
)

// Run outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeHalted      = "halted"
	OutcomeUnknownGoal = "unknown_goal"
)

// Metrics is an engine.Observer backed by its own registry.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	taskResultsTotal *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	hostDuration     *prometheus.HistogramVec
	haltsTotal       *prometheus.CounterVec
}

// New returns Metrics with every collector registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "calcifer",
				Subsystem: "run",
				Name:      "total",
				Help:      "Total number of goal runs by outcome",
			},
			[]string{"goal", "outcome"},
		),

		taskResultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "calcifer",
				Subsystem: "task",
				Name:      "results_total",
				Help:      "Host results by task and status",
			},
			[]string{"goal", "group", "task", "status"},
		),

		dispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "calcifer",
				Subsystem: "task",
				Name:      "dispatch_duration_seconds",
				Help:      "Wall time of a task across all hosts of a group",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.4min
			},
			[]string{"goal", "task"},
		),

		hostDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "calcifer",
				Subsystem: "task",
				Name:      "host_duration_seconds",
				Help:      "Duration of a task on a single host",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"task"},
		),

		haltsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "calcifer",
				Subsystem: "run",
				Name:      "halts_total",
				Help:      "Halted runs by the group and task that stopped them",
			},
			[]string{"goal", "group", "task"},
		),
	}

	m.registry.MustRegister(
		m.runsTotal,
		m.taskResultsTotal,
		m.dispatchDuration,
		m.hostDuration,
		m.haltsTotal,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Event implements engine.Observer.
func (m *Metrics) Event(e engine.Event) {
	switch e.Type {
	case engine.EventHostResult:
		m.taskResultsTotal.WithLabelValues(e.Goal, e.Group, e.Task, string(e.Status)).Inc()
		m.hostDuration.WithLabelValues(e.Task).Observe(e.Duration.Seconds())
	case engine.EventTaskCompleted:
		m.dispatchDuration.WithLabelValues(e.Goal, e.Task).Observe(e.Duration.Seconds())
	case engine.EventRunHalted:
		m.haltsTotal.WithLabelValues(e.Goal, e.Group, e.Task).Inc()
	}
}

// RecordRun counts a finished run. err is what engine.Run returned.
func (m *Metrics) RecordRun(goal string, err error) {
	outcome := OutcomeSuccess
	switch engine.ExitCode(err) {
	case engine.ExitUnknownGoal:
		outcome = OutcomeUnknownGoal
	case engine.ExitFailed:
		outcome = OutcomeHalted
	}
	m.runsTotal.WithLabelValues(goal, outcome).Inc()
}

// WriteFile writes the registry in the Prometheus text format. The file is
// replaced atomically.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
