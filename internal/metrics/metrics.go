// Package metrics exposes Prometheus instrumentation for the scoring
// pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	ConversationsProcessed prometheus.Counter
	UtterancesScored       prometheus.Counter
	RepliesSimulated       prometheus.Counter
	RunErrors              prometheus.Counter
	ScoringDuration        prometheus.Histogram
}

// New registers the pipeline metrics on the given registry. A nil registry
// gets a fresh one, which keeps tests isolated.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,
		ConversationsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "helm",
			Name:      "conversations_processed_total",
			Help:      "Conversations that completed context extraction and scoring.",
		}),
		UtterancesScored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "helm",
			Name:      "utterances_scored_total",
			Help:      "Utterances assigned a conditional log-likelihood.",
		}),
		RepliesSimulated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "helm",
			Name:      "replies_simulated_total",
			Help:      "Utterances annotated with simulated replies.",
		}),
		RunErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "helm",
			Name:      "run_errors_total",
			Help:      "Corpus runs or conversations that failed.",
		}),
		ScoringDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "helm",
			Name:      "scoring_duration_seconds",
			Help:      "Wall time of one likelihood scoring pass over a corpus.",
			// Forward passes run from sub-second to minutes per conversation.
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}),
	}

	registry.MustRegister(
		m.ConversationsProcessed,
		m.UtterancesScored,
		m.RepliesSimulated,
		m.RunErrors,
		m.ScoringDuration,
	)

	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
