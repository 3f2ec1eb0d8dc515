package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch pipeline counters. Hit/miss/join describe how a fetch request was
// admitted: served from cache, started a new download, or attached to one
// already in flight.
var (
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gallery_image_cache_hits_total",
		Help: "Number of image fetches served from the in-memory cache.",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gallery_image_cache_misses_total",
		Help: "Number of image fetches that started a new download.",
	})

	FetchJoins = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gallery_image_fetch_joins_total",
		Help: "Number of image fetches that joined an in-flight download.",
	})

	FetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gallery_image_fetch_failures_total",
		Help: "Number of failed image fetches by failure reason.",
	}, []string{"reason"})

	InFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gallery_image_fetches_in_flight",
		Help: "Number of image downloads currently in flight.",
	})

	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gallery_image_fetch_duration_seconds",
		Help:    "Duration of image downloads, from registration to delivery.",
		Buckets: prometheus.DefBuckets,
	})
)
