package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Thermal service metrics for production monitoring
var (
	// Analysis metrics
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubilitics_thermal_analyses_total",
			Help: "Total number of analyses by report tag and focus",
		},
		[]string{"tag", "focus", "source"}, // source: http/kafka/cli
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kubilitics_thermal_analysis_duration_seconds",
			Help:    "Analysis duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"source"},
	)

	AnomaliesDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kubilitics_thermal_anomalies_detected_total",
			Help: "Total number of consensus anomalies across all analyses",
		},
	)

	ClusterConfirmations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kubilitics_thermal_cluster_confirmations_total",
			Help: "Total number of analyses with spatially clustered anomalies",
		},
	)

	OnlineSensors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kubilitics_thermal_online_sensors",
			Help: "Online sensors in the most recent snapshot",
		},
	)

	MalformedInputs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubilitics_thermal_malformed_inputs_total",
			Help: "Total number of rejected snapshots",
		},
		[]string{"source"},
	)

	// Heatmap metrics
	HeatmapRenders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubilitics_thermal_heatmap_renders_total",
			Help: "Total number of heatmap renders",
		},
		[]string{"status"}, // status: ok/empty/error
	)

	// Kafka metrics
	KafkaMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubilitics_thermal_kafka_messages_total",
			Help: "Total number of Kafka messages",
		},
		[]string{"direction", "status"}, // direction: consumed/produced
	)

	// History store metrics
	HistoryWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubilitics_thermal_history_writes_total",
			Help: "Total number of report history writes",
		},
		[]string{"status"},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubilitics_thermal_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "code"},
	)

	// WebSocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kubilitics_thermal_websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WebSocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubilitics_thermal_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: inbound/outbound
	)
)

// Analysis is the subset of an analysis result recorded in metrics.
type Analysis struct {
	Tag              string
	Focus            string
	AnomalyCount     int
	ClusterConfirmed bool
	OnlineCount      int
	Duration         time.Duration
}

// ObserveAnalysis records one completed analysis.
func ObserveAnalysis(source string, a Analysis) {
	AnalysesTotal.WithLabelValues(a.Tag, a.Focus, source).Inc()
	AnalysisDuration.WithLabelValues(source).Observe(a.Duration.Seconds())
	AnomaliesDetected.Add(float64(a.AnomalyCount))
	if a.ClusterConfirmed {
		ClusterConfirmations.Inc()
	}
	OnlineSensors.Set(float64(a.OnlineCount))
}
