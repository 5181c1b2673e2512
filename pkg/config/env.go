package config

const EnvPrefix = "SABUNKU"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	BrokerNone   = "none"
	BrokerKafka  = "kafka"
	BrokerPubSub = "pubsub"
)

const (
	EnvAppEnv       = "SABUNKU_APP_ENV"
	EnvPort         = "SABUNKU_APP_PORT"
	EnvLogLevel     = "SABUNKU_LOG_LEVEL"
	EnvDBDSN        = "SABUNKU_DB_DSN"
	EnvDBHost       = "SABUNKU_DB_HOST"
	EnvDBUser       = "SABUNKU_DB_USER"
	EnvDBName       = "SABUNKU_DB_NAME"
	EnvDBPassword   = "SABUNKU_DB_PASSWORD"
	EnvRedisURL     = "SABUNKU_REDIS_URL"
	EnvJWTSecret    = "SABUNKU_JWT_SECRET"
	EnvJWTIssuer    = "SABUNKU_JWT_ISSUER"
	EnvJWTExpMins   = "SABUNKU_JWT_EXPIRATION_MINUTES"
	EnvEventsBroker = "SABUNKU_EVENTS_BROKER"
	EnvKafkaBrokers = "SABUNKU_KAFKA_BROKERS"
	EnvGCPProjectID = "SABUNKU_GCP_PROJECT_ID"
	EnvOrdersExpiry = "SABUNKU_ORDERS_PENDING_EXPIRY_HOURS"
	EnvWhatsApp     = "SABUNKU_STORE_WHATSAPP_NUMBER"
)
