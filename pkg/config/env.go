package config

// EnvPrefix is handed to envconfig; every variable below already carries it.
const EnvPrefix = "COSTUMERENT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Variable names referenced outside of struct tags (error messages, tests).
const (
	EnvAppEnv   = "COSTUMERENT_APP_ENV"
	EnvPort     = "COSTUMERENT_APP_PORT"
	EnvLogLevel = "COSTUMERENT_LOG_LEVEL"

	EnvDBDSN  = "COSTUMERENT_DB_DSN"
	EnvDBHost = "COSTUMERENT_DB_HOST"
	EnvDBUser = "COSTUMERENT_DB_USER"
	EnvDBName = "COSTUMERENT_DB_NAME"

	EnvRedisURL = "COSTUMERENT_REDIS_URL"

	EnvJWTSecret              = "COSTUMERENT_JWT_SECRET"
	EnvJWTIssuer              = "COSTUMERENT_JWT_ISSUER"
	EnvJWTExpMins             = "COSTUMERENT_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "COSTUMERENT_REFRESH_TOKEN_TTL_MINUTES"

	EnvBookingTimeout     = "COSTUMERENT_BOOKING_TIMEOUT"
	EnvBookingLockTimeout = "COSTUMERENT_BOOKING_LOCK_TIMEOUT"

	EnvGuestBookingPerPhone = "COSTUMERENT_RATE_LIMIT_GUEST_BOOKING_PER_PHONE"

	EnvPubSubRentalsTopic = "COSTUMERENT_PUBSUB_RENTALS_TOPIC"
	EnvPubSubOverdueTopic = "COSTUMERENT_PUBSUB_OVERDUE_TOPIC"
	EnvOutboxPollInterval = "COSTUMERENT_OUTBOX_POLL_INTERVAL"
)
