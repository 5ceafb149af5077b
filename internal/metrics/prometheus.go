package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TurnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rag_agent_turn_duration_seconds",
			Help:    "End-to-end turn processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"response_mode"},
	)

	TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rag_agent_turns_total",
			Help: "Total turns processed",
		},
		[]string{"status"},
	)

	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rag_agent_decisions_total",
			Help: "Final decisions by audit label",
		},
		[]string{"decision"},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rag_agent_confidence_score",
			Help:    "Answer confidence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	ExpandedQueries = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rag_agent_expanded_queries",
			Help:    "Retrieval queries generated per question",
			Buckets: []float64{1, 2, 3, 5, 8, 10},
		},
	)

	RelaxationStage = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rag_agent_relaxation_stage",
			Help: "Relaxation stage selected for the last turn",
		},
		[]string{"stage"},
	)

	RetrievalFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rag_agent_retrieval_failures_total",
			Help: "Expanded queries that failed at the provider",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rag_agent_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rag_agent_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)
)

func Init() {
	prometheus.MustRegister(TurnDuration)
	prometheus.MustRegister(TurnsTotal)
	prometheus.MustRegister(Decisions)
	prometheus.MustRegister(ConfidenceScore)
	prometheus.MustRegister(ExpandedQueries)
	prometheus.MustRegister(RelaxationStage)
	prometheus.MustRegister(RetrievalFailures)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
