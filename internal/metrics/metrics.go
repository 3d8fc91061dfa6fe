// Package metrics holds the Prometheus collectors shared by the services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	KeyRotations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trackfetch_youtube_key_rotations_total",
		Help: "Number of times a YouTube API key was marked failed and rotated away from",
	})

	AvailableKeys = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trackfetch_youtube_available_keys",
		Help: "YouTube API keys currently outside their cooldown",
	})

	SearchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trackfetch_video_search_total",
		Help: "Video searches by final outcome",
	}, []string{"outcome"})

	QueryVariantsTried = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trackfetch_query_variants_tried",
		Help:    "Query variants issued before a search resolved",
		Buckets: []float64{1, 2, 3, 4},
	})

	Downloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trackfetch_downloads_total",
		Help: "Downloads by terminal status",
	}, []string{"status"})

	ActiveDownloads = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trackfetch_active_downloads",
		Help: "Downloads currently fetching or transcoding",
	})

	DownloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trackfetch_download_duration_seconds",
		Help:    "Wall time of successful downloads including transcoding",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
)
