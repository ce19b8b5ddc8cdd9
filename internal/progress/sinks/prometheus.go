package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/probelab/deepresearch/internal/progress"
)

// PrometheusSink exports research run progress via Prometheus. It owns all
// collectors for runs started/completed and per-level fetch counters.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted prometheus.Counter
	runDuration   prometheus.Histogram

	fetchesTotal  *prometheus.CounterVec
	fetchBytes    prometheus.Counter
	fetchDuration *prometheus.HistogramVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "research_runs_started_total",
			Help: "Total research runs that have started.",
		}),
		runsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "research_runs_completed_total",
			Help: "Total research runs completed.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "research_run_duration_seconds",
			Help:    "Wall time per completed run.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		}),
		fetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "research_fetches_total",
			Help: "Fetch completions partitioned by level and outcome status.",
		}, []string{"level", "status"}),
		fetchBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "research_fetch_bytes_total",
			Help: "Bytes downloaded across all fetches.",
		}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "research_fetch_duration_seconds",
			Help:    "Fetch duration partitioned by level.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"level"}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runDuration,
		s.fetchesTotal,
		s.fetchBytes,
		s.fetchDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart:
			s.runsStarted.Inc()
		case progress.StageRunDone:
			s.runsCompleted.Inc()
			s.runDuration.Observe(evt.Dur.Seconds())
		case progress.StageFetchDone:
			level := fmt.Sprintf("%d", evt.Level)
			s.fetchesTotal.WithLabelValues(level, evt.Status).Inc()
			s.fetchBytes.Add(float64(evt.Bytes))
			s.fetchDuration.WithLabelValues(level).Observe(evt.Dur.Seconds())
		}
	}
	return nil
}

// Close implements the Sink interface; collectors stay registered.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
