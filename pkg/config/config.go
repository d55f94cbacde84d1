package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "SOAKSTEAD"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "SOAKSTEAD_DB_DSN"
	EnvDBHost = "SOAKSTEAD_DB_HOST"
	EnvDBUser = "SOAKSTEAD_DB_USER"
	EnvDBName = "SOAKSTEAD_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Booking      BookingConfig
	Square       SquareConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"SOAKSTEAD_APP_ENV" required:"true"`
	Port         string   `envconfig:"SOAKSTEAD_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"SOAKSTEAD_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"SOAKSTEAD_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"SOAKSTEAD_CORS_ORIGINS" default:"http://localhost:3000,https://app.soakstead.com"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SOAKSTEAD_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SOAKSTEAD_DB_DSN"`
	Driver string `envconfig:"SOAKSTEAD_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SOAKSTEAD_DB_HOST"`
	LegacyPort     int    `envconfig:"SOAKSTEAD_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SOAKSTEAD_DB_USER"`
	LegacyPassword string `envconfig:"SOAKSTEAD_DB_PASSWORD"`
	LegacyName     string `envconfig:"SOAKSTEAD_DB_NAME"`
	LegacySSLMode  string `envconfig:"SOAKSTEAD_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SOAKSTEAD_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SOAKSTEAD_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SOAKSTEAD_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SOAKSTEAD_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SOAKSTEAD_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SOAKSTEAD_REDIS_ADDR"`
	Password     string        `envconfig:"SOAKSTEAD_REDIS_PASSWORD"`
	DB           int           `envconfig:"SOAKSTEAD_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SOAKSTEAD_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SOAKSTEAD_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SOAKSTEAD_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SOAKSTEAD_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SOAKSTEAD_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// BookingConfig carries the tunable windows of the reservation lifecycle. The
// hold TTL and the unpaid-order grace period are independent knobs; the sweep
// must run at least once per TTL interval.
type BookingConfig struct {
	ReservationTTL  time.Duration `envconfig:"SOAKSTEAD_BOOKING_RESERVATION_TTL" default:"15m"`
	StaleOrderGrace time.Duration `envconfig:"SOAKSTEAD_BOOKING_STALE_ORDER_GRACE" default:"10m"`
	SweepInterval   time.Duration `envconfig:"SOAKSTEAD_BOOKING_SWEEP_INTERVAL" default:"5m"`
}

type SquareConfig struct {
	AccessToken   string `envconfig:"SOAKSTEAD_SQUARE_ACCESS_TOKEN"`
	Env           string `envconfig:"SOAKSTEAD_SQUARE_ENV" default:"sandbox"`
	WebhookSecret string `envconfig:"SOAKSTEAD_SQUARE_WEBHOOK_SECRET"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SOAKSTEAD_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"SOAKSTEAD_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SOAKSTEAD_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	FulfillmentTopic        string `envconfig:"SOAKSTEAD_PUBSUB_FULFILLMENT_TOPIC" default:"ss-fulfillment-events"`
	FulfillmentSubscription string `envconfig:"SOAKSTEAD_PUBSUB_FULFILLMENT_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SOAKSTEAD_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SOAKSTEAD_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SOAKSTEAD_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"SOAKSTEAD_OUTBOX_RETENTION_DAYS" default:"30"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SOAKSTEAD_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SOAKSTEAD_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
