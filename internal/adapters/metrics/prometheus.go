// Package metrics exports build statistics as Prometheus metrics.
package metrics

import (
	prom "github.com/prometheus/client_golang/prometheus"
	"go.trai.ch/sift/internal/core/domain"
	"go.trai.ch/sift/internal/core/ports"
	"go.trai.ch/zerr"
)

const namespace = "sift"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var _ ports.StatsRecorder = (*Recorder)(nil)

// Recorder implements ports.StatsRecorder using Prometheus metrics.
type Recorder struct {
	registry     *prom.Registry
	passes       *prom.CounterVec
	passDuration *prom.HistogramVec
	files        *prom.CounterVec
	evictions    *prom.CounterVec
	lastPass     *prom.GaugeVec
}

// NewRecorder constructs the metrics and registers them with reg.
// A nil reg creates a private registry.
func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	r := &Recorder{
		registry: reg,
		passes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "passes_total",
			Help:      "Build passes by stage and outcome",
		}, []string{"stage", "outcome"}),
		passDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Duration of build passes",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		files: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "paths_total",
			Help:      "Paths handled by build passes, by resulting state",
		}, []string{"stage", "state"}),
		evictions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Cache entries evicted because their input disappeared",
		}, []string{"stage"}),
		lastPass: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_pass_timestamp_seconds",
			Help:      "Unix time of the last successful pass",
		}, []string{"stage"}),
	}
	reg.MustRegister(r.passes, r.passDuration, r.files, r.evictions, r.lastPass)
	return r
}

// Registry returns the registry the metrics are registered with.
func (r *Recorder) Registry() *prom.Registry {
	return r.registry
}

// ObservePass records the statistics of one pass.
func (r *Recorder) ObservePass(stats domain.BuildStats, err error) {
	if r == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	r.passes.WithLabelValues(stats.Stage, outcome).Inc()
	r.passDuration.WithLabelValues(stats.Stage).Observe(stats.Duration.Seconds())
	r.files.WithLabelValues(stats.Stage, string(domain.StateDirectory)).Add(float64(stats.Directories))
	r.files.WithLabelValues(stats.Stage, string(domain.StateNonProcessable)).Add(float64(stats.Passthrough))
	r.files.WithLabelValues(stats.Stage, string(domain.StateHit)).Add(float64(stats.Hits))
	r.files.WithLabelValues(stats.Stage, string(domain.StateMiss)).Add(float64(stats.Misses))
	r.evictions.WithLabelValues(stats.Stage).Add(float64(stats.Evicted))
	if err == nil {
		r.lastPass.WithLabelValues(stats.Stage).SetToCurrentTime()
	}
}

// WriteTextfile writes every metric in the text exposition format, for the
// node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prom.WriteToTextfile(path, r.registry); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write metrics textfile"), "path", path)
	}
	return nil
}
