// Package metrics records run statistics in a Prometheus registry.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the collectors for one run.
type Recorder struct {
	registry       *prometheus.Registry
	domains        *prometheus.GaugeVec
	sourceDomains  *prometheus.GaugeVec
	removed        *prometheus.GaugeVec
	sourceFailures *prometheus.CounterVec
	lastRun        prometheus.Gauge
	duration       prometheus.Gauge
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		domains: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "blockagg_domains",
				Help: "Domains in the final rule sets.",
			},
			[]string{"set"},
		),
		sourceDomains: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "blockagg_source_domains",
				Help: "Domains parsed from a single source.",
			},
			[]string{"source", "role", "set"},
		),
		removed: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "blockagg_removed_domains",
				Help: "Black domains removed by the whitelist.",
			},
			[]string{"phase"},
		),
		sourceFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blockagg_source_failures_total",
				Help: "Sources that could not be fetched.",
			},
			[]string{"role"},
		),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blockagg_last_run_timestamp_seconds",
			Help: "Unix time of the last successful run.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blockagg_run_duration_seconds",
			Help: "Duration of the last successful run.",
		}),
	}
	r.registry.MustRegister(r.domains, r.sourceDomains, r.removed, r.sourceFailures, r.lastRun, r.duration)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// SourceParsed records the domain counts of one source.
func (r *Recorder) SourceParsed(source, role string, black, white int) {
	r.sourceDomains.WithLabelValues(source, role, "black").Set(float64(black))
	r.sourceDomains.WithLabelValues(source, role, "white").Set(float64(white))
}

// SourceFailed counts a source that could not be fetched.
func (r *Recorder) SourceFailed(role string) {
	r.sourceFailures.WithLabelValues(role).Inc()
}

// Finished records the final set sizes and whitelist removals.
func (r *Recorder) Finished(black, white, exact, subdomain int, started, finished time.Time) {
	r.domains.WithLabelValues("black").Set(float64(black))
	r.domains.WithLabelValues("white").Set(float64(white))
	r.removed.WithLabelValues("exact").Set(float64(exact))
	r.removed.WithLabelValues("subdomain").Set(float64(subdomain))
	r.lastRun.Set(float64(finished.Unix()))
	r.duration.Set(finished.Sub(started).Seconds())
}

// WriteTextfile writes all metrics in the text exposition format, for the
// node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
