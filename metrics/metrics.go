package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the pipeline's Prometheus collectors behind a private
// registry so tests can build isolated instances.
type Registry struct {
	reg *prometheus.Registry

	// import pipeline
	ImportRowsImported prometheus.Counter
	ImportRowsFailed   prometheus.Counter
	ImportDuplicates   prometheus.Counter
	ImportSessions     *prometheus.CounterVec

	// scan pipeline
	ListingsScraped   prometheus.Counter
	ScrapeMisses      prometheus.Counter
	AntiBotDetections prometheus.Counter
	ActiveScanJobs    prometheus.Gauge
	ScanJobs          *prometheus.CounterVec
}

// NewRegistry builds a Registry with all collectors registered.
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	rowsImported := prometheus.NewCounter(prometheus.CounterOpts{Name: "catalog_import_rows_imported_total"})
	rowsFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "catalog_import_rows_failed_total"})
	duplicates := prometheus.NewCounter(prometheus.CounterOpts{Name: "catalog_import_duplicates_total"})
	sessions := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "catalog_import_sessions_total"}, []string{"status"})

	listings := prometheus.NewCounter(prometheus.CounterOpts{Name: "catalog_scan_listings_scraped_total"})
	misses := prometheus.NewCounter(prometheus.CounterOpts{Name: "catalog_scan_misses_total"})
	antiBot := prometheus.NewCounter(prometheus.CounterOpts{Name: "catalog_scan_anti_bot_detections_total"})
	activeJobs := prometheus.NewGauge(prometheus.GaugeOpts{Name: "catalog_scan_active_jobs"})
	scanJobs := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "catalog_scan_jobs_total"}, []string{"status"})

	r.MustRegister(rowsImported, rowsFailed, duplicates, sessions, listings, misses, antiBot, activeJobs, scanJobs)

	return &Registry{
		reg:                r,
		ImportRowsImported: rowsImported,
		ImportRowsFailed:   rowsFailed,
		ImportDuplicates:   duplicates,
		ImportSessions:     sessions,
		ListingsScraped:    listings,
		ScrapeMisses:       misses,
		AntiBotDetections:  antiBot,
		ActiveScanJobs:     activeJobs,
		ScanJobs:           scanJobs,
	}
}

// Handler exposes the registry for the /metrics endpoint.
func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
