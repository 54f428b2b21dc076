// Package metrics records pipeline step timings and failures and exports them in the
// node-exporter textfile format, so CI hosts can scrape build health.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder owns a private registry; a nil *Recorder discards everything.
type Recorder struct {
	registry *prometheus.Registry

	// stepDuration holds the wall time of the last run of each step.
	stepDuration *prometheus.GaugeVec
	// stepFailures counts failed runs of each step.
	stepFailures *prometheus.CounterVec
	// lastSuccess is the unix time of the last fully successful run.
	lastSuccess prometheus.Gauge
}

// New returns a Recorder with all relicpack metrics registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stepDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "relicpack_step_duration_seconds",
				Help: "Wall time of the last run of a pipeline step in seconds",
			},
			[]string{"step"},
		),
		stepFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relicpack_step_failures_total",
				Help: "Total number of failed pipeline step runs",
			},
			[]string{"step"},
		),
		lastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "relicpack_last_success_timestamp_seconds",
				Help: "Unix time of the last successful relicpack run",
			},
		),
	}
	r.registry.MustRegister(r.stepDuration, r.stepFailures, r.lastSuccess)
	return r
}

// Observe records a finished step that started at start.
func (r *Recorder) Observe(step string, start time.Time, err error) {
	if r == nil {
		return
	}
	r.stepDuration.WithLabelValues(step).Set(time.Since(start).Seconds())
	if err != nil {
		r.stepFailures.WithLabelValues(step).Inc()
	}
}

// Time runs fn as step and records it.
func (r *Recorder) Time(step string, fn func() error) error {
	start := time.Now()
	err := fn()
	r.Observe(step, start, err)
	return err
}

// MarkSuccess stamps the last-success gauge with now.
func (r *Recorder) MarkSuccess(now time.Time) {
	if r == nil {
		return
	}
	r.lastSuccess.Set(float64(now.Unix()))
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// WriteTextfile writes every metric to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
