package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 1. Throughput (Counters)
	MatchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lookalike_match_requests_total",
		Help: "Total number of match requests received, by endpoint",
	}, []string{"endpoint"})

	MatchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lookalike_match_errors_total",
		Help: "Match requests rejected, by error kind",
	}, []string{"kind"})

	UnknownResults = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lookalike_unknown_results_total",
		Help: "Queries whose best candidate fell below the confidence threshold",
	})

	CatalogReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lookalike_catalog_reloads_total",
		Help: "Catalog reload attempts, by trigger and outcome",
	}, []string{"trigger", "outcome"})

	// 2. Latency (Histograms)
	MatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lookalike_match_duration_seconds",
		Help:    "Time taken to rank the catalog for one request",
		Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1},
	})

	// 3. State (Gauges)
	CatalogRows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lookalike_catalog_rows",
		Help: "Number of characters in the catalog being served",
	})

	RaftState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lookalike_raft_state",
		Help: "Current Raft state (0=Follower, 1=Candidate, 2=Leader, 3=Shutdown)",
	})
)
