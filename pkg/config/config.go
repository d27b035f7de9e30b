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
)

// Config is loaded once per binary from COSTUMERENT_* variables.
type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Booking      BookingConfig
	Idempotency  IdempotencyConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.resolveDSN(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"COSTUMERENT_APP_ENV" required:"true"`
	Port         string `envconfig:"COSTUMERENT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"COSTUMERENT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"COSTUMERENT_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"COSTUMERENT_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool  { return strings.EqualFold(a.Env, AppEnvDev) }
func (a AppConfig) IsProd() bool { return strings.EqualFold(a.Env, AppEnvProd) }

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	return splitList(a.CORSOrigins)
}

// DBConfig takes either a full DSN or its parts; Load assembles the DSN from
// the parts when it is missing.
type DBConfig struct {
	DSN string `envconfig:"COSTUMERENT_DB_DSN"`

	Host     string `envconfig:"COSTUMERENT_DB_HOST"`
	Port     int    `envconfig:"COSTUMERENT_DB_PORT" default:"5432"`
	User     string `envconfig:"COSTUMERENT_DB_USER"`
	Password string `envconfig:"COSTUMERENT_DB_PASSWORD"`
	Name     string `envconfig:"COSTUMERENT_DB_NAME"`
	SSLMode  string `envconfig:"COSTUMERENT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"COSTUMERENT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COSTUMERENT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COSTUMERENT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COSTUMERENT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (db *DBConfig) resolveDSN() error {
	if db.DSN != "" {
		return nil
	}
	var missing []string
	for env, value := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	dsn := url.URL{
		Scheme: "postgres",
		User:   url.User(db.User),
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   db.Name,
	}
	if db.Password != "" {
		dsn.User = url.UserPassword(db.User, db.Password)
	}
	if db.SSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	db.DSN = dsn.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"COSTUMERENT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"COSTUMERENT_REDIS_ADDR"`
	Password     string        `envconfig:"COSTUMERENT_REDIS_PASSWORD"`
	DB           int           `envconfig:"COSTUMERENT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COSTUMERENT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COSTUMERENT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COSTUMERENT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COSTUMERENT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COSTUMERENT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"COSTUMERENT_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"COSTUMERENT_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"COSTUMERENT_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"COSTUMERENT_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

func (j JWTConfig) AccessTTL() time.Duration {
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// RefreshTokenTTL is how long a login session survives in Redis.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(max(j.RefreshTokenTTLMinutes, 0)) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"COSTUMERENT_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"COSTUMERENT_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"COSTUMERENT_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"COSTUMERENT_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"COSTUMERENT_ARGON_KEY_LEN" default:"32"`
}

// RateLimitConfig holds the fixed-window budgets of the unauthenticated write
// endpoints. A zero limit disables that counter.
type RateLimitConfig struct {
	LoginWindow   time.Duration `envconfig:"COSTUMERENT_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginPerIP    int           `envconfig:"COSTUMERENT_RATE_LIMIT_LOGIN_PER_IP" default:"20"`
	LoginPerEmail int           `envconfig:"COSTUMERENT_RATE_LIMIT_LOGIN_PER_EMAIL" default:"5"`

	RegisterWindow   time.Duration `envconfig:"COSTUMERENT_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterPerIP    int           `envconfig:"COSTUMERENT_RATE_LIMIT_REGISTER_PER_IP" default:"20"`
	RegisterPerEmail int           `envconfig:"COSTUMERENT_RATE_LIMIT_REGISTER_PER_EMAIL" default:"3"`

	GuestBookingWindow   time.Duration `envconfig:"COSTUMERENT_RATE_LIMIT_GUEST_BOOKING_WINDOW" default:"10m"`
	GuestBookingPerIP    int           `envconfig:"COSTUMERENT_RATE_LIMIT_GUEST_BOOKING_PER_IP" default:"10"`
	GuestBookingPerPhone int           `envconfig:"COSTUMERENT_RATE_LIMIT_GUEST_BOOKING_PER_PHONE" default:"3"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"COSTUMERENT_AUTO_MIGRATE" default:"false"`
	SeedCatalog bool `envconfig:"COSTUMERENT_SEED_CATALOG" default:"false"`
}

// BookingConfig bounds how long a booking or return may wait on row locks.
type BookingConfig struct {
	Timeout     time.Duration `envconfig:"COSTUMERENT_BOOKING_TIMEOUT" default:"5s"`
	LockTimeout time.Duration `envconfig:"COSTUMERENT_BOOKING_LOCK_TIMEOUT" default:"2s"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"COSTUMERENT_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"COSTUMERENT_GCP_PROJECT_ID"`
}

// PubSubConfig names the topics rental events are published to. Overdue
// notices fall back to the rentals topic when no dedicated topic is set.
type PubSubConfig struct {
	RentalsTopic        string `envconfig:"COSTUMERENT_PUBSUB_RENTALS_TOPIC" default:"rental-events"`
	OverdueTopic        string `envconfig:"COSTUMERENT_PUBSUB_OVERDUE_TOPIC"`
	RentalsSubscription string `envconfig:"COSTUMERENT_PUBSUB_RENTALS_SUBSCRIPTION"`
}

// OverdueTopicOrDefault returns the topic overdue notices go to.
func (p PubSubConfig) OverdueTopicOrDefault() string {
	if t := strings.TrimSpace(p.OverdueTopic); t != "" {
		return t
	}
	return strings.TrimSpace(p.RentalsTopic)
}

// Topics lists the distinct configured topics.
func (p PubSubConfig) Topics() []string {
	var topics []string
	for _, t := range []string{strings.TrimSpace(p.RentalsTopic), p.OverdueTopicOrDefault()} {
		if t != "" && (len(topics) == 0 || topics[0] != t) {
			topics = append(topics, t)
		}
	}
	return topics
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"COSTUMERENT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollInterval   time.Duration `envconfig:"COSTUMERENT_OUTBOX_POLL_INTERVAL" default:"500ms"`
	PublishTimeout time.Duration `envconfig:"COSTUMERENT_OUTBOX_PUBLISH_TIMEOUT" default:"15s"`
	MaxAttempts    int           `envconfig:"COSTUMERENT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval   time.Duration `envconfig:"COSTUMERENT_CRON_INTERVAL" default:"1h"`
	LockTTL    time.Duration `envconfig:"COSTUMERENT_CRON_LOCK_TTL" default:"10m"`
	JobTimeout time.Duration `envconfig:"COSTUMERENT_CRON_JOB_TIMEOUT" default:"5m"`

	OverdueBatchSize int           `envconfig:"COSTUMERENT_CRON_OVERDUE_BATCH_SIZE" default:"200"`
	OutboxRetention  time.Duration `envconfig:"COSTUMERENT_CRON_OUTBOX_RETENTION" default:"720h"`
}

func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
