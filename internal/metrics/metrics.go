// Package metrics exposes Prometheus collectors for the harvester service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	harvestPagesTotal      *prometheus.CounterVec
	extractFallbacksTotal  prometheus.Counter
	noticesInsertedTotal   *prometheus.CounterVec
	harvestPairsTotal      *prometheus.CounterVec
	activeHarvesters       prometheus.Gauge
	fetchRetriesTotal      prometheus.Counter
	harvestDurationSeconds *prometheus.HistogramVec
	discoveryUpsertsTotal  *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		harvestPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_pages_total",
				Help: "Total listing pages extracted, labeled by source path and outcome.",
			},
			[]string{"source", "outcome"},
		)

		extractFallbacksTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_extract_fallbacks_total",
				Help: "Total structured reads that fell back to the markup path.",
			},
		)

		noticesInsertedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_notices_inserted_total",
				Help: "Total notice records actually inserted, labeled by board type.",
			},
			[]string{"board"},
		)

		harvestPairsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_pairs_total",
				Help: "Total (sub-unit, board) harvests completed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		activeHarvesters = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_active_pairs",
				Help: "Number of (sub-unit, board) pairs currently being harvested.",
			},
		)

		fetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_fetch_retries_total",
				Help: "Total fetch attempts that were retried after a transient failure.",
			},
		)

		harvestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_pair_duration_seconds",
				Help:    "Histogram of per-pair harvest durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"board"},
		)

		discoveryUpsertsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_discovery_upserts_total",
				Help: "Total hierarchy upserts performed, labeled by entity.",
			},
			[]string{"entity"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage records one extracted listing page.
func ObservePage(source, outcome string) {
	if harvestPagesTotal == nil {
		return
	}
	harvestPagesTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveFallback counts one structured-to-markup fallback.
func ObserveFallback() {
	if extractFallbacksTotal == nil {
		return
	}
	extractFallbacksTotal.Inc()
}

// ObserveInserted adds the number of rows a batch actually inserted.
func ObserveInserted(board string, count int) {
	if noticesInsertedTotal == nil || count <= 0 {
		return
	}
	noticesInsertedTotal.WithLabelValues(board).Add(float64(count))
}

// ObservePair records one completed pair harvest and its duration.
func ObservePair(board, outcome string, duration time.Duration) {
	if harvestPairsTotal == nil {
		return
	}
	harvestPairsTotal.WithLabelValues(outcome).Inc()
	harvestDurationSeconds.WithLabelValues(board).Observe(duration.Seconds())
}

// IncActiveHarvesters increments the active pair gauge.
func IncActiveHarvesters() {
	if activeHarvesters == nil {
		return
	}
	activeHarvesters.Inc()
}

// DecActiveHarvesters decrements the active pair gauge.
func DecActiveHarvesters() {
	if activeHarvesters == nil {
		return
	}
	activeHarvesters.Dec()
}

// ObserveFetchRetry counts one retried fetch attempt.
func ObserveFetchRetry() {
	if fetchRetriesTotal == nil {
		return
	}
	fetchRetriesTotal.Inc()
}

// ObserveUpsert counts one hierarchy upsert.
func ObserveUpsert(entity string) {
	if discoveryUpsertsTotal == nil {
		return
	}
	discoveryUpsertsTotal.WithLabelValues(entity).Inc()
}
