// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// A run is a short-lived batch job, so metrics are collected in a private
// registry and pushed to a Pushgateway on Flush instead of being exposed on
// a scrape endpoint. The job label of every metric becomes the Pushgateway
// "job" grouping key.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"dsextract/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter   *prometheus.CounterVec // dsextract_step_total{step,status}
	stepDuration  *prometheus.SummaryVec // dsextract_step_duration_seconds{step,status}
	recordCounter *prometheus.CounterVec // dsextract_records_total{kind}
	shardCounter  *prometheus.CounterVec // dsextract_shards_total{status}
	imageCounter  *prometheus.CounterVec // dsextract_images_total{status}
}

var _ metrics.Backend = (*Backend)(nil)

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name (usually the run's job).
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "dsextract"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.StepTotal,
				Help: "Total number of run step executions, partitioned by step and status.",
			},
			[]string{"step", "status"},
		),
		stepDuration: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name:       metrics.StepDuration,
				Help:       "Duration of run steps in seconds, partitioned by step and status.",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			},
			[]string{"step", "status"},
		),
		recordCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.RecordsTotal,
				Help: "Records per kind (seen, succeeded, failed).",
			},
			[]string{"kind"},
		),
		shardCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.ShardsTotal,
				Help: "Shards per outcome (processed, skipped).",
			},
			[]string{"status"},
		),
		imageCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.ImagesTotal,
				Help: "Image references per outcome (written, deduplicated).",
			},
			[]string{"status"},
		),
	}

	for name, c := range map[string]prometheus.Collector{
		"step counter":   b.stepCounter,
		"step summary":   b.stepDuration,
		"record counter": b.recordCounter,
		"shard counter":  b.shardCounter,
		"image counter":  b.imageCounter,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter != nil {
			b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
		}
	case metrics.RecordsTotal:
		if b.recordCounter != nil {
			b.recordCounter.WithLabelValues(labels["kind"]).Add(delta)
		}
	case metrics.ShardsTotal:
		if b.shardCounter != nil {
			b.shardCounter.WithLabelValues(labels["status"]).Add(delta)
		}
	case metrics.ImagesTotal:
		if b.imageCounter != nil {
			b.imageCounter.WithLabelValues(labels["status"]).Add(delta)
		}
	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
