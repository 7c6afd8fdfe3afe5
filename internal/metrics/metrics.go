// Package metrics records signing runs as Prometheus metrics. The tool is a
// batch job, so metrics are written to a node-exporter textfile instead of
// being served.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hanpama/querysign/internal/eventbus"
	"github.com/hanpama/querysign/internal/events"
)

// Recorder holds the metrics of one process.
type Recorder struct {
	registry *prometheus.Registry

	filesTotal      *prometheus.CounterVec
	fileDuration    prometheus.Histogram
	runDuration     prometheus.Gauge
	signatures      prometheus.Gauge
	lastRunSuccess  prometheus.Gauge
	lastRunFinished prometheus.Gauge
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.filesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querysign_files_total",
			Help: "Generated files processed, by outcome",
		},
		[]string{"outcome"},
	)
	r.fileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "querysign_file_duration_seconds",
			Help:    "Time spent reading, extracting and signing one file",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
	)
	r.runDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "querysign_run_duration_seconds",
		Help: "Duration of the last signing run",
	})
	r.signatures = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "querysign_signed_operations",
		Help: "Distinct operation names signed by the last run",
	})
	r.lastRunSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "querysign_last_run_success",
		Help: "1 if the last run finished without errors",
	})
	r.lastRunFinished = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "querysign_last_run_timestamp_seconds",
		Help: "Unix time the last run finished",
	})

	r.registry.MustRegister(
		r.filesTotal,
		r.fileDuration,
		r.runDuration,
		r.signatures,
		r.lastRunSuccess,
		r.lastRunFinished,
	)
	for _, o := range []events.Outcome{events.OutcomeSigned, events.OutcomeSkipped, events.OutcomeFailed} {
		r.filesTotal.WithLabelValues(string(o))
	}
	return r
}

// Register subscribes the recorder to run and file events on b.
func (r *Recorder) Register(b *eventbus.Bus) (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(b, func(_ context.Context, e events.FileFinish) {
			r.filesTotal.WithLabelValues(string(e.Outcome)).Inc()
			r.fileDuration.Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(b, func(_ context.Context, e events.RunFinish) {
			r.runDuration.Set(e.Duration.Seconds())
			r.signatures.Set(float64(e.Operations))
			if e.Err == nil {
				r.lastRunSuccess.Set(1)
			} else {
				r.lastRunSuccess.Set(0)
			}
			r.lastRunFinished.SetToCurrentTime()
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Gatherer exposes the registry, mostly for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer { return r.registry }

// WriteTextfile writes all metrics in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
