package constants

import "time"

// Pipeline tunables. Queue names and URLs come from the environment; these are
// the fixed defaults and limits the pipeline is calibrated for.

const (
	// MaxBrokerRetries is the cap on reconnect attempts after a lost connection
	MaxBrokerRetries = 5

	// BrokerRetryDelay is the base reconnect delay; attempt N waits N * BrokerRetryDelay
	BrokerRetryDelay = 5 * time.Second

	// PublishConfirmTimeout bounds the wait for a broker confirm on publish
	PublishConfirmTimeout = 10 * time.Second

	// PollInterval is how often the earthquake feed is checked
	PollInterval = 1 * time.Minute

	// NotificationRadiusKm is the alert fan-out radius around an event epicenter
	NotificationRadiusKm = 200.0

	// ProcessedEventTTL is how long an external event ID is remembered for dedup
	ProcessedEventTTL = 24 * time.Hour

	// UserLocationsKey is the Redis GEO key holding socketID -> last known coordinate
	UserLocationsKey = "sentria:user_locations"

	// ProcessedEventKeyPrefix prefixes dedup markers for external feed events
	ProcessedEventKeyPrefix = "earthquake:processed:"

	// USGSPastHourURL is the external earthquake feed polled for new events
	USGSPastHourURL = "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_hour.geojson"

	// DisasterCollectionName is the document-store collection for report details
	DisasterCollectionName = "disasters_incidents"

	// AlertEventName is the websocket event name used for earthquake alerts
	AlertEventName = "earthquake_alert"

	// FactCheckUpdateEventName is the websocket event emitted on a report's
	// room when its fact-check block changes
	FactCheckUpdateEventName = "report_factcheck_update"
)

// Environment variable names read at startup. RabbitURLEnv, the queue names and
// both store DSNs are fatal when missing.
const (
	RabbitURLEnv            = "RABBITMQ_URL"
	FactCheckQueueEnv       = "RABBITMQ_FACTCHECK_QUEUE_NAME"
	FactCheckResultQueueEnv = "RABBITMQ_FACTCHECK_RESULT_QUEUE_NAME"
	NotificationQueueEnv    = "RABBITMQ_NOTIFICATION_QUEUE_NAME"
	DatabaseURLEnv          = "DATABASE_URL"
	RedisURLEnv             = "REDIS_URL"
	MongoURIEnv             = "MONGO_URI"
	MongoDatabaseEnv        = "MONGO_DATABASE"
)
