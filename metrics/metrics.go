// Package metrics holds the Prometheus collectors for the media pipeline and
// the HTTP layer. They register with the default registry, served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MediaUploadsTotal counts upload items by collection and result
	// (stored, transcoded, rejected, failed).
	MediaUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radio_media_uploads_total",
			Help: "Media upload items by collection and result",
		},
		[]string{"collection", "result"},
	)

	// TranscodeDuration tracks ffmpeg run time.
	TranscodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "radio_transcode_duration_seconds",
			Help:    "Time spent converting uploads to MP3",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	// BroadcastsTotal counts forward attempts by result (ok, upstream_error).
	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radio_broadcasts_total",
			Help: "Broadcast forward attempts by result",
		},
		[]string{"result"},
	)

	// HTTPRequestsTotal counts requests by method, route template and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radio_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)
)

// Upload results.
const (
	ResultStored     = "stored"
	ResultTranscoded = "transcoded"
	ResultRejected   = "rejected"
	ResultFailed     = "failed"
)

// RecordUpload increments MediaUploadsTotal.
func RecordUpload(collection, result string) {
	MediaUploadsTotal.WithLabelValues(collection, result).Inc()
}

// RecordBroadcast increments BroadcastsTotal.
func RecordBroadcast(ok bool) {
	result := "ok"
	if !ok {
		result = "upstream_error"
	}
	BroadcastsTotal.WithLabelValues(result).Inc()
}
