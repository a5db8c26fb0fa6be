package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pondwatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pondwatch_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// Ingest metrics
	ReadingsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pondwatch_readings_ingested_total",
			Help: "Total number of readings received",
		},
		[]string{"source", "status"}, // source: http, kafka; status: accepted, rejected, dropped
	)

	ReadingsClassifiedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pondwatch_readings_classified_total",
			Help: "Total number of readings classified, by band",
		},
		[]string{"sensor", "band"},
	)

	SensorValue = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pondwatch_sensor_value",
			Help: "Last finite value observed per sensor",
		},
		[]string{"sensor"},
	)

	// Worker metrics
	WorkerQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pondwatch_worker_queue_size",
			Help: "Readings waiting in worker lanes",
		},
	)

	WorkerQueueCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pondwatch_worker_queue_capacity",
			Help: "Capacity of the reading queue",
		},
	)

	WorkerHandleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pondwatch_worker_handle_duration_seconds",
			Help:    "Time taken to evaluate a reading, including dispatch",
			Buckets: []float64{.0001, .001, .01, .05, .1, .5, 1, 5, 10},
		},
	)

	// Alert metrics
	AlertsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pondwatch_alerts_emitted_total",
			Help: "Alert events emitted by the evaluator",
		},
		[]string{"sensor"},
	)

	AlertsSuppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pondwatch_alerts_suppressed_total",
			Help: "Bad readings not alerted because of the cooldown",
		},
		[]string{"sensor"},
	)

	// Notification metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pondwatch_notifications_total",
			Help: "Notification sends by outcome",
		},
		[]string{"status"}, // status: sent, failed
	)

	NotificationRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pondwatch_notification_retries_total",
			Help: "Total number of notification retries",
		},
	)

	NotificationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pondwatch_notification_duration_seconds",
			Help:    "Time taken to send a notification",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	// Recorder metrics
	AlertsRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pondwatch_alerts_recorded_total",
			Help: "Alert events handed to recorders",
		},
		[]string{"recorder", "status"},
	)

	// Kafka metrics
	KafkaMessagesConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pondwatch_kafka_messages_consumed_total",
			Help: "Reading messages consumed from Kafka",
		},
		[]string{"status"}, // status: ok, invalid
	)

	KafkaPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pondwatch_kafka_publish_total",
			Help: "Total number of alert events published to Kafka",
		},
		[]string{"status"},
	)

	KafkaPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pondwatch_kafka_publish_retries_total",
			Help: "Total number of Kafka publish retries",
		},
	)

	// Live feed metrics
	LiveClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pondwatch_live_clients",
			Help: "Connected websocket dashboard clients",
		},
	)

	LiveDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pondwatch_live_dropped_total",
			Help: "Updates dropped because a client was too slow",
		},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pondwatch_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
