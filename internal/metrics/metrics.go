// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from ingests.
//
// Callers depend only on the Backend interface; concrete systems live in
// subpackages (prompush, datadog). The installed backend defaults to a no-op,
// so recording is always safe even when nothing is configured.
package metrics

import "time"

// Metric names emitted by the helpers below.
const (
	StepTotal           = "svload_step_total"
	StepDurationSeconds = "svload_step_duration_seconds"
	RecordsTotal        = "svload_records_total"
	BatchesTotal        = "svload_batches_total"
)

// Record kinds used with RecordRow.
const (
	KindRead      = "read"
	KindSubmitted = "submitted"
	KindInserted  = "inserted"
	KindFailed    = "failed"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing
// backend. Call it before starting ingests.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep measures latency and success/failure of one ingest step
// (e.g. "connect", "write", "ingest").
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}

	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordRow increments the record counter for job and kind (one of
// KindRead, KindSubmitted, KindInserted, KindFailed). Non-positive deltas
// are ignored.
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordBatches increments the batch counter for job.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(BatchesTotal, float64(delta), Labels{
		"job": job,
	})
}
