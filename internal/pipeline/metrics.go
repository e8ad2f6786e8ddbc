package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clarity_pipeline_runs_total",
		Help: "Pipeline runs by flow and outcome.",
	}, []string{"flow", "outcome"})

	degradedDecompositions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clarity_decompositions_degraded_total",
		Help: "Decompositions that fell back to the original query.",
	})

	fallbackSyntheses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clarity_syntheses_fallback_total",
		Help: "Syntheses that used regex citation extraction.",
	})

	storeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clarity_store_write_failures_total",
		Help: "Persistence writes that failed and were skipped.",
	})
)
