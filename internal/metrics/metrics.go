// Package metrics exposes Prometheus counters for validation runs.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cfnlsp/internal/diag"
)

// Run outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeSpawnError = "spawn_error"
	OutcomeParseError = "parse_error"
	OutcomePanic      = "panic"
)

// Skip reasons.
const (
	SkipInFlight   = "in_flight"
	SkipOutOfScope = "out_of_scope"
	SkipNoPath     = "no_path"
)

// Metrics holds the validation metrics. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry         *prometheus.Registry
	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	SkippedTotal     *prometheus.CounterVec
	DiagnosticsTotal *prometheus.CounterVec
	InFlight         prometheus.Gauge
}

// New creates and registers all metrics on registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cfnlsp_validation_runs_total",
				Help: "Total number of cfn-lint runs by outcome",
			},
			[]string{"outcome"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cfnlsp_validation_duration_seconds",
				Help:    "cfn-lint run duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
		),
		SkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cfnlsp_triggers_skipped_total",
				Help: "Validation triggers that did not start a run",
			},
			[]string{"reason"},
		),
		DiagnosticsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cfnlsp_diagnostics_published_total",
				Help: "Diagnostics published to the editor by severity",
			},
			[]string{"severity"},
		),
		InFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cfnlsp_validation_in_flight",
				Help: "Number of cfn-lint runs currently in progress",
			},
		),
	}
	registry.MustRegister(m.RunsTotal, m.RunDuration, m.SkippedTotal, m.DiagnosticsTotal, m.InFlight)
	return m
}

// RunStarted records a run entering the in-flight set.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.InFlight.Inc()
}

// RunFinished records a completed run.
func (m *Metrics) RunFinished(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.InFlight.Dec()
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(d.Seconds())
}

// Skipped records a trigger that did not start a run.
func (m *Metrics) Skipped(reason string) {
	if m == nil {
		return
	}
	m.SkippedTotal.WithLabelValues(reason).Inc()
}

// Published records the diagnostics of one publish call.
func (m *Metrics) Published(ds []diag.Diagnostic) {
	if m == nil {
		return
	}
	for _, d := range ds {
		m.DiagnosticsTotal.WithLabelValues(d.Severity.Label()).Inc()
	}
}

// Handler returns the exposition handler for the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
