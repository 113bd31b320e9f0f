// Package metrics exposes Prometheus collectors for extraction, cache and
// scan activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "depscan"

var (
	// extractionsTotal counts completed extractions.
	// Labels: language (javascript, typescript), grammar (script, module)
	extractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "extractor",
		Name:      "extractions_total",
		Help:      "Total successful extractions by language and resolved grammar",
	}, []string{"language", "grammar"})

	// parseFailuresTotal counts sources rejected by both grammars.
	parseFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "extractor",
		Name:      "parse_failures_total",
		Help:      "Total sources unparsable under both script and module grammars",
	}, []string{"language"})

	// specifiersTotal counts specifiers emitted across all extractions.
	specifiersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "extractor",
		Name:      "specifiers_total",
		Help:      "Total module specifiers extracted",
	})

	// extractionSeconds measures parse plus walk time.
	extractionSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "extractor",
		Name:      "duration_seconds",
		Help:      "Extraction latency including grammar resolution",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})

	// cacheLookupsTotal counts result cache lookups.
	// Labels: result (hit, miss)
	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Result cache lookups by outcome",
	}, []string{"result"})

	cacheEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "evictions_total",
		Help:      "Result cache evictions",
	})

	// filesScannedTotal counts files processed by workspace scans.
	// Labels: status (ok, error)
	filesScannedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scanner",
		Name:      "files_total",
		Help:      "Files processed by workspace scans by status",
	}, []string{"status"})

	// indexedFiles tracks the current size of the dependency index.
	indexedFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "index",
		Name:      "files",
		Help:      "Files currently held in the dependency index",
	})

	// watchEventsTotal counts file watcher events handled.
	// Labels: op (update, remove)
	watchEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "watcher",
		Name:      "events_total",
		Help:      "File watcher events handled by operation",
	}, []string{"op"})
)

// RecordExtraction records a successful extraction.
func RecordExtraction(language, grammar string, specifiers int, durationSec float64) {
	extractionsTotal.WithLabelValues(language, grammar).Inc()
	specifiersTotal.Add(float64(specifiers))
	extractionSeconds.Observe(durationSec)
}

// RecordParseFailure records a source rejected by both grammars.
func RecordParseFailure(language string) {
	parseFailuresTotal.WithLabelValues(language).Inc()
}

// RecordCacheLookup records a result cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		cacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	cacheLookupsTotal.WithLabelValues("miss").Inc()
}

// RecordCacheEviction records one result cache eviction.
func RecordCacheEviction() {
	cacheEvictionsTotal.Inc()
}

// RecordScannedFile records one file processed by a workspace scan.
func RecordScannedFile(ok bool) {
	if ok {
		filesScannedTotal.WithLabelValues("ok").Inc()
		return
	}
	filesScannedTotal.WithLabelValues("error").Inc()
}

// SetIndexedFiles sets the current dependency index size.
func SetIndexedFiles(n int) {
	indexedFiles.Set(float64(n))
}

// RecordWatchEvent records a handled watcher event.
func RecordWatchEvent(op string) {
	watchEventsTotal.WithLabelValues(op).Inc()
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
