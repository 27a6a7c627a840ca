package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	SessionEvents      *prometheus.CounterVec
	RecordingUploads   *prometheus.CounterVec
	RecordingDownloads prometheus.Counter
	UploadBytes        prometheus.Histogram
	ActiveWatchers     prometheus.Gauge
	WatchEvents        *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session record events by type.",
		}, []string{"event"}),
		RecordingUploads: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recording_uploads_total",
			Help:      "Recording uploads by kind (full or partial).",
		}, []string{"kind"}),
		RecordingDownloads: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recording_downloads_total",
			Help:      "Recording file downloads served.",
		}),
		UploadBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recording_upload_bytes",
			Help:      "Size of uploaded audio files in bytes.",
			Buckets:   prometheus.ExponentialBuckets(64<<10, 4, 8),
		}),
		ActiveWatchers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_watchers",
			Help:      "Number of connected live-progress watchers.",
		}),
		WatchEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watch_events_total",
			Help:      "Live-progress events by type and delivery outcome.",
		}, []string{"type", "outcome"}),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
