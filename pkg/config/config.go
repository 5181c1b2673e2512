// Package config loads every SabunKu binary's settings from SABUNKU_*
// environment variables.
package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

// minProdSecretLen is the shortest JWT secret accepted in prod.
const minProdSecretLen = 32

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	Admin         AdminConfig
	AuthRateLimit AuthRateLimitConfig
	Checkout      CheckoutConfig
	FeatureFlags  FeatureFlagsConfig
	Events        EventsConfig
	Kafka         KafkaConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Orders        OrdersConfig
	Cron          CronConfig
	Store         StoreConfig
	GCS           GCSConfig
}

// Load reads the environment and reports every invalid setting at once.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.check(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) check() error {
	err := c.DB.resolveDSN()
	if c.App.IsProd() && len(c.JWT.Secret) < minProdSecretLen {
		err = multierr.Append(err, fmt.Errorf("%s must be at least %d characters in %s", EnvJWTSecret, minProdSecretLen, AppEnvProd))
	}
	if c.JWT.AccessTokenTTL() == 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvJWTExpMins))
	}
	if c.Outbox.BatchSize <= 0 || c.Outbox.MaxAttempts <= 0 || c.Outbox.PollInterval <= 0 {
		err = multierr.Append(err, fmt.Errorf("outbox batch size, max attempts and poll interval must be positive"))
	}
	if c.Cron.Interval <= 0 || c.Cron.LockTTL <= 0 {
		err = multierr.Append(err, fmt.Errorf("cron interval and lock ttl must be positive"))
	}
	return multierr.Append(err, c.Events.check(c.Kafka, c.GCP))
}

type AppConfig struct {
	Env          string `envconfig:"SABUNKU_APP_ENV" required:"true"`
	Port         string `envconfig:"SABUNKU_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SABUNKU_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SABUNKU_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"SABUNKU_LOG_FORMAT"`
	// CORSOrigins lists the storefront and dashboard origins allowed to call the API.
	CORSOrigins []string `envconfig:"SABUNKU_CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

func (a AppConfig) IsDev() bool  { return strings.EqualFold(a.Env, AppEnvDev) }
func (a AppConfig) IsProd() bool { return strings.EqualFold(a.Env, AppEnvProd) }

// ServiceConfig.Kind is overwritten by each binary and shows up in logs.
type ServiceConfig struct {
	Kind string `envconfig:"SABUNKU_SERVICE_KIND" default:"api"`
}

// DBConfig takes either a full DSN or its parts.
type DBConfig struct {
	DSN    string `envconfig:"SABUNKU_DB_DSN"`
	Driver string `envconfig:"SABUNKU_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"SABUNKU_DB_HOST"`
	Port     int    `envconfig:"SABUNKU_DB_PORT" default:"5432"`
	User     string `envconfig:"SABUNKU_DB_USER"`
	Password string `envconfig:"SABUNKU_DB_PASSWORD"`
	Name     string `envconfig:"SABUNKU_DB_NAME"`
	SSLMode  string `envconfig:"SABUNKU_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SABUNKU_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SABUNKU_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SABUNKU_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SABUNKU_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"SABUNKU_DB_SLOW_QUERY" default:"500ms"`
}

func (db *DBConfig) resolveDSN() error {
	if db.DSN != "" {
		return nil
	}
	var missing []string
	for env, v := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if v == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("set %s or all of %s", EnvDBDSN, strings.Join(missing, ", "))
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.User(db.User),
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   db.Name,
	}
	if db.Password != "" {
		u.User = url.UserPassword(db.User, db.Password)
	}
	if db.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	db.DSN = u.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"SABUNKU_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SABUNKU_REDIS_ADDR"`
	Password     string        `envconfig:"SABUNKU_REDIS_PASSWORD"`
	DB           int           `envconfig:"SABUNKU_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SABUNKU_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SABUNKU_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SABUNKU_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SABUNKU_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SABUNKU_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SABUNKU_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SABUNKU_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SABUNKU_JWT_EXPIRATION_MINUTES" default:"480"`
}

// AccessTokenTTL is zero when the expiration is not positive.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	return time.Duration(max(j.ExpirationMinutes, 0)) * time.Minute
}

// PasswordConfig holds Argon2id costs. The hasher clamps them.
type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SABUNKU_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SABUNKU_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SABUNKU_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SABUNKU_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SABUNKU_ARGON_KEY_LEN" default:"32"`
}

// AdminConfig seeds the first administrator account on API startup.
type AdminConfig struct {
	BootstrapEmail    string `envconfig:"SABUNKU_ADMIN_BOOTSTRAP_EMAIL"`
	BootstrapPassword string `envconfig:"SABUNKU_ADMIN_BOOTSTRAP_PASSWORD"`
}

func (a AdminConfig) BootstrapEnabled() bool {
	return strings.TrimSpace(a.BootstrapEmail) != "" && a.BootstrapPassword != ""
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"SABUNKU_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"SABUNKU_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"SABUNKU_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

type CheckoutConfig struct {
	RateLimitWindow time.Duration `envconfig:"SABUNKU_CHECKOUT_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitPerIP  int           `envconfig:"SABUNKU_CHECKOUT_RATE_LIMIT_PER_IP" default:"10"`
	IdempotencyTTL  time.Duration `envconfig:"SABUNKU_CHECKOUT_IDEMPOTENCY_TTL" default:"24h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SABUNKU_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SABUNKU_AUTO_MIGRATE" default:"false"`
}

// EventsConfig selects the broker the outbox publisher relays order events to.
type EventsConfig struct {
	Broker              string `envconfig:"SABUNKU_EVENTS_BROKER" default:"none"`
	OrderCreatedTopic   string `envconfig:"SABUNKU_EVENTS_ORDER_CREATED_TOPIC" default:"order.created"`
	OrderStatusTopic    string `envconfig:"SABUNKU_EVENTS_ORDER_STATUS_TOPIC" default:"order.status_changed"`
	OrderCancelledTopic string `envconfig:"SABUNKU_EVENTS_ORDER_CANCELLED_TOPIC" default:"order.cancelled"`
	OrderDeletedTopic   string `envconfig:"SABUNKU_EVENTS_ORDER_DELETED_TOPIC" default:"order.deleted"`
}

// BrokerKind normalises Broker. Empty means none.
func (e EventsConfig) BrokerKind() string {
	if kind := strings.ToLower(strings.TrimSpace(e.Broker)); kind != "" {
		return kind
	}
	return BrokerNone
}

func (e EventsConfig) check(kafka KafkaConfig, gcp GCPConfig) error {
	switch kind := e.BrokerKind(); {
	case kind == BrokerNone:
		return nil
	case kind == BrokerKafka && len(kafka.BrokerList()) == 0:
		return fmt.Errorf("%s is required when %s=%s", EnvKafkaBrokers, EnvEventsBroker, kind)
	case kind == BrokerPubSub && strings.TrimSpace(gcp.ProjectID) == "":
		return fmt.Errorf("%s is required when %s=%s", EnvGCPProjectID, EnvEventsBroker, kind)
	case kind != BrokerKafka && kind != BrokerPubSub:
		return fmt.Errorf("unsupported %s %q", EnvEventsBroker, e.Broker)
	}
	return nil
}

type KafkaConfig struct {
	Brokers      string        `envconfig:"SABUNKU_KAFKA_BROKERS"`
	ClientID     string        `envconfig:"SABUNKU_KAFKA_CLIENT_ID" default:"sabunku-outbox"`
	WriteTimeout time.Duration `envconfig:"SABUNKU_KAFKA_WRITE_TIMEOUT" default:"10s"`
}

// BrokerList splits the comma separated broker addresses.
func (k KafkaConfig) BrokerList() []string {
	var out []string
	for part := range strings.SplitSeq(k.Brokers, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SABUNKU_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"SABUNKU_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
}

// GCSConfig names the bucket product images are served from. An empty
// bucket disables image cleanup.
type GCSConfig struct {
	BucketName    string `envconfig:"SABUNKU_GCS_BUCKET_NAME"`
	PublicBaseURL string `envconfig:"SABUNKU_GCS_PUBLIC_BASE_URL" default:"https://storage.googleapis.com"`
	ImagePrefix   string `envconfig:"SABUNKU_GCS_IMAGE_PREFIX" default:"product-images"`
}

func (g GCSConfig) Enabled() bool {
	return strings.TrimSpace(g.BucketName) != ""
}

type PubSubConfig struct {
	VerifyTopics bool `envconfig:"SABUNKU_PUBSUB_VERIFY_TOPICS" default:"true"`
}

type OutboxConfig struct {
	BatchSize     int           `envconfig:"SABUNKU_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollInterval  time.Duration `envconfig:"SABUNKU_OUTBOX_PUBLISH_POLL_INTERVAL" default:"500ms"`
	MaxAttempts   int           `envconfig:"SABUNKU_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays int           `envconfig:"SABUNKU_OUTBOX_RETENTION_DAYS" default:"14"`
}

type OrdersConfig struct {
	PendingExpiryHours int `envconfig:"SABUNKU_ORDERS_PENDING_EXPIRY_HOURS" default:"72"`
}

// PendingExpiry is how long a pending order may hold stock before the cron
// worker cancels it. Zero disables expiry.
func (o OrdersConfig) PendingExpiry() time.Duration {
	return time.Duration(max(o.PendingExpiryHours, 0)) * time.Hour
}

// CronConfig drives the cron worker loop and its Redis lock.
type CronConfig struct {
	Interval time.Duration `envconfig:"SABUNKU_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"SABUNKU_CRON_LOCK_TTL" default:"50m"`
}

type StoreConfig struct {
	WhatsAppNumber string `envconfig:"SABUNKU_STORE_WHATSAPP_NUMBER" default:"62895321693131"`
}
