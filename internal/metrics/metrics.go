// Package metrics exposes the worker's operational counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AssembliesTotal counts assembly pipeline outcomes by terminal
	// status (processed, error, stuck).
	AssembliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "podforge_assemblies_total",
		Help: "Assembly pipeline runs by outcome.",
	}, []string{"outcome"})

	// PublishesTotal counts publish workflow outcomes (published,
	// pending, skipped, exhausted).
	PublishesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "podforge_publishes_total",
		Help: "Publish workflow runs by outcome.",
	}, []string{"outcome"})

	// SweepArtifactsTotal counts retention sweep results per artifact
	// (reclaimed, kept, failed).
	SweepArtifactsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "podforge_sweep_artifacts_total",
		Help: "Durable-temporary artifacts handled by the retention sweeper, by result.",
	}, []string{"result"})

	// CommitAttemptsTotal counts authoritative-record commit attempts
	// by outcome (ok, retried, exhausted).
	CommitAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "podforge_commit_attempts_total",
		Help: "Episode record commit attempts by outcome.",
	}, []string{"outcome"})

	// StuckProcessing reports episodes sitting in processing with no
	// progress past the operational threshold.
	StuckProcessing = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "podforge_stuck_processing_episodes",
		Help: "Episodes stuck in processing beyond the alert threshold.",
	})
)

// Handler serves the default registry for the worker's /metrics
// endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
