// Package metrics holds the process-wide Prometheus collectors, exposed
// on the control API's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansTotal counts completed media scans
	ScansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pondtv_scans_total",
		Help: "Number of completed media scans.",
	})

	// ScanDuration observes how long full scans take
	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pondtv_scan_duration_seconds",
		Help:    "Duration of full media scans.",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	})

	// CatalogEntries tracks the number of entries in the current catalog
	CatalogEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pondtv_catalog_entries",
		Help: "Entries (movies plus episodes) in the current catalog.",
	})

	// StoreSaves counts successful atomic catalog saves
	StoreSaves = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pondtv_store_saves_total",
		Help: "Number of successful catalog saves.",
	})

	// StoreSaveFailures counts catalog saves that could not complete
	StoreSaveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pondtv_store_save_failures_total",
		Help: "Number of failed catalog saves.",
	})

	// ItemsPlayed counts items that reached playback
	ItemsPlayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pondtv_items_played_total",
		Help: "Number of items handed to the media engine.",
	})

	// EngineFailures counts engine crashes and launch timeouts
	EngineFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pondtv_engine_failures_total",
		Help: "Number of media engine crashes and launch timeouts.",
	})
)
