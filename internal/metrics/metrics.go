package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Detection service metrics for production monitoring
var (
	// Detection metrics
	DetectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridsight_detections_total",
			Help: "Total number of detection runs",
		},
		[]string{"scenario", "severity", "status"},
	)

	DetectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gridsight_detection_duration_seconds",
			Help:    "Detection run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~10s
		},
		[]string{"scenario"},
	)

	AnomalyPointsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridsight_anomaly_points_total",
			Help: "Total number of points flagged anomalous",
		},
		[]string{"scenario", "asset_id"},
	)

	MacroWindowsEmitted = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gridsight_macro_windows_per_run",
			Help:    "Number of compressed anomaly windows per detection run",
			Buckets: prometheus.LinearBuckets(0, 1, 10),
		},
		[]string{"scenario"},
	)

	// Ticket metrics
	TicketsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridsight_tickets_created_total",
			Help: "Total number of fault tickets created",
		},
		[]string{"scenario", "severity"},
	)

	// Model metrics
	ModelTrainings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridsight_model_trainings_total",
			Help: "Total number of baseline model training runs",
		},
		[]string{"status"},
	)

	ModelTrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gridsight_model_training_duration_seconds",
			Help:    "Model training duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~1min
		},
	)

	// Ingest metrics
	SignalRowsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridsight_signal_rows_ingested_total",
			Help: "Total number of signal rows ingested",
		},
		[]string{"scenario"},
	)

	// LLM metrics
	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridsight_llm_requests_total",
			Help: "Total number of LLM API requests",
		},
		[]string{"model", "status"},
	)

	LLMTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridsight_llm_tokens_total",
			Help: "Total number of LLM tokens consumed",
		},
		[]string{"model", "type"}, // type: input/output
	)

	// Knowledge base metrics
	KBSearchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gridsight_kb_searches_total",
			Help: "Total number of knowledge base searches",
		},
	)

	KBDocumentsLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridsight_kb_documents_loaded",
			Help: "Current number of loaded knowledge base documents",
		},
	)

	// WebSocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridsight_websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WebSocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridsight_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: inbound/outbound
	)
)
