// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from an extraction run.
//
// The package exposes a narrow interface (Backend) focused on counters and
// timing data, and a global, pluggable backend that defaults to a no-op
// implementation, so metrics are always safe to call even when no real
// backend is configured. Concrete metric systems live in subpackages
// (prompush, datadog).
package metrics

import "time"

// Metric names shared by all backends.
const (
	StepTotal    = "dsextract_step_total"
	StepDuration = "dsextract_step_duration_seconds"
	RecordsTotal = "dsextract_records_total"
	ShardsTotal  = "dsextract_shards_total"
	ImagesTotal  = "dsextract_images_total"
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

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Reset restores the no-op backend.
func Reset() { backend = nopBackend{} }

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep measures latency and success/failure of one run step
// (locate, extract, write).
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
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow increments a record-level counter for the given job and kind
// (seen, succeeded, failed).
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordShard counts one shard by outcome (processed, skipped).
func RecordShard(job, status string) {
	backend.IncCounter(ShardsTotal, 1, Labels{
		"job":    job,
		"status": status,
	})
}

// RecordImage counts image references by outcome (written, deduplicated).
func RecordImage(job, status string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(ImagesTotal, float64(delta), Labels{
		"job":    job,
		"status": status,
	})
}
