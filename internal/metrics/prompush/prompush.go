// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package. An ingest is a short-lived process, so collected metrics
// are pushed to a Pushgateway on Flush instead of being scraped.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"svload/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter   *prometheus.CounterVec // svload_step_total{table,step,status}
	stepDuration  *prometheus.SummaryVec // svload_step_duration_seconds{table,step,status}
	recordCounter *prometheus.CounterVec // svload_records_total{table,kind}
	batchCounter  *prometheus.CounterVec // svload_batches_total{table}
}

// NewBackend constructs a Pushgateway backend. jobName is the Pushgateway
// grouping job and defaults to "svload". The metrics "job" label (the table
// being loaded) is exported as "table" to avoid clashing with it.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "svload"
	}

	reg := prometheus.NewRegistry()

	stepCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Total number of ingest step executions, partitioned by table, step, and status.",
		},
		[]string{"table", "step", "status"},
	)
	stepDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       metrics.StepDurationSeconds,
			Help:       "Duration of ingest steps in seconds, partitioned by table, step, and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"table", "step", "status"},
	)
	recordCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Row counts per kind (read, submitted, inserted, failed).",
		},
		[]string{"table", "kind"},
	)
	batchCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Total number of INSERT batches flushed.",
		},
		[]string{"table"},
	)

	for name, c := range map[string]prometheus.Collector{
		"step counter":   stepCounter,
		"step summary":   stepDuration,
		"record counter": recordCounter,
		"batch counter":  batchCounter,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		stepCounter:   stepCounter,
		stepDuration:  stepDuration,
		recordCounter: recordCounter,
		batchCounter:  batchCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		b.stepCounter.WithLabelValues(labels["job"], labels["step"], labels["status"]).Add(delta)
	case metrics.RecordsTotal:
		b.recordCounter.WithLabelValues(labels["job"], labels["kind"]).Add(delta)
	case metrics.BatchesTotal:
		b.batchCounter.WithLabelValues(labels["job"]).Add(delta)
	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDurationSeconds {
		return
	}
	b.stepDuration.WithLabelValues(labels["job"], labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
