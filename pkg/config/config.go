package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	Accounts     AccountsConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	PayPal       PayPalConfig
	Square       SquareConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	Webhooks     WebhooksConfig
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
	Env           string `envconfig:"JERSEYSTORE_APP_ENV" required:"true"`
	Port          string `envconfig:"JERSEYSTORE_APP_PORT" required:"true"`
	LogLevel      string `envconfig:"JERSEYSTORE_LOG_LEVEL" default:"info"`
	LogWarnStack  bool   `envconfig:"JERSEYSTORE_LOG_WARN_STACK" default:"false"`
	LogFormat     string `envconfig:"JERSEYSTORE_LOG_FORMAT" default:"json"`
	PublicBaseURL string `envconfig:"JERSEYSTORE_PUBLIC_BASE_URL" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"JERSEYSTORE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"JERSEYSTORE_DB_DSN"`
	Driver string `envconfig:"JERSEYSTORE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"JERSEYSTORE_DB_HOST"`
	LegacyPort     int    `envconfig:"JERSEYSTORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"JERSEYSTORE_DB_USER"`
	LegacyPassword string `envconfig:"JERSEYSTORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"JERSEYSTORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"JERSEYSTORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"JERSEYSTORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"JERSEYSTORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"JERSEYSTORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"JERSEYSTORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"JERSEYSTORE_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"JERSEYSTORE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"JERSEYSTORE_REDIS_ADDR"`
	Password     string        `envconfig:"JERSEYSTORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"JERSEYSTORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"JERSEYSTORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"JERSEYSTORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"JERSEYSTORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"JERSEYSTORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"JERSEYSTORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"JERSEYSTORE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"JERSEYSTORE_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"JERSEYSTORE_JWT_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenTTLMinutes int    `envconfig:"JERSEYSTORE_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"JERSEYSTORE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"JERSEYSTORE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"JERSEYSTORE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"JERSEYSTORE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"JERSEYSTORE_ARGON_KEY_LEN" default:"32"`
}

// AccountsConfig bounds the single-use password reset and email verification links.
type AccountsConfig struct {
	ResetTokenTTL  time.Duration `envconfig:"JERSEYSTORE_RESET_TOKEN_TTL" default:"1h"`
	VerifyTokenTTL time.Duration `envconfig:"JERSEYSTORE_VERIFY_TOKEN_TTL" default:"72h"`
}

// RateLimitConfig covers the per-IP+route window plus the stricter auth limits.
type RateLimitConfig struct {
	Window             time.Duration `envconfig:"JERSEYSTORE_RATE_LIMIT_WINDOW" default:"15m"`
	MaxRequests        int           `envconfig:"JERSEYSTORE_RATE_LIMIT_MAX_REQUESTS" default:"100"`
	LoginWindow        time.Duration `envconfig:"JERSEYSTORE_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginIPLimit       int           `envconfig:"JERSEYSTORE_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	LoginEmailLimit    int           `envconfig:"JERSEYSTORE_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	RegisterWindow     time.Duration `envconfig:"JERSEYSTORE_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterIPLimit    int           `envconfig:"JERSEYSTORE_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
	RegisterEmailLimit int           `envconfig:"JERSEYSTORE_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"JERSEYSTORE_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey   string `envconfig:"JERSEYSTORE_STRIPE_API_KEY"`
	Secret   string `envconfig:"JERSEYSTORE_STRIPE_SECRET"`
	Env      string `envconfig:"JERSEYSTORE_STRIPE_ENV" default:"test"`
	Currency string `envconfig:"JERSEYSTORE_STRIPE_CURRENCY" default:"usd"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type PayPalConfig struct {
	ClientID     string        `envconfig:"JERSEYSTORE_PAYPAL_CLIENT_ID"`
	ClientSecret string        `envconfig:"JERSEYSTORE_PAYPAL_CLIENT_SECRET"`
	Mode         string        `envconfig:"JERSEYSTORE_PAYPAL_MODE" default:"sandbox"`
	WebhookID    string        `envconfig:"JERSEYSTORE_PAYPAL_WEBHOOK_ID"`
	BrandName    string        `envconfig:"JERSEYSTORE_PAYPAL_BRAND_NAME" default:"Vintage Soccer Jersey Store"`
	Currency     string        `envconfig:"JERSEYSTORE_PAYPAL_CURRENCY" default:"USD"`
	ReturnURL    string        `envconfig:"JERSEYSTORE_PAYPAL_RETURN_URL"`
	CancelURL    string        `envconfig:"JERSEYSTORE_PAYPAL_CANCEL_URL"`
	Timeout      time.Duration `envconfig:"JERSEYSTORE_PAYPAL_TIMEOUT" default:"15s"`
}

// Environment returns the normalized PayPal mode (sandbox/live).
func (p PayPalConfig) Environment() string {
	mode := strings.TrimSpace(strings.ToLower(p.Mode))
	if mode == "" {
		return "sandbox"
	}
	return mode
}

type SquareConfig struct {
	AccessToken     string `envconfig:"JERSEYSTORE_SQUARE_ACCESS_TOKEN"`
	WebhookSecret   string `envconfig:"JERSEYSTORE_SQUARE_WEBHOOK_SECRET"`
	Env             string `envconfig:"JERSEYSTORE_SQUARE_ENV" default:"sandbox"`
	LocationID      string `envconfig:"JERSEYSTORE_SQUARE_LOCATION_ID"`
	Currency        string `envconfig:"JERSEYSTORE_SQUARE_CURRENCY" default:"USD"`
	NotificationURL string `envconfig:"JERSEYSTORE_SQUARE_WEBHOOK_URL"`
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
	ProjectID string `envconfig:"JERSEYSTORE_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic string `envconfig:"JERSEYSTORE_PUBSUB_DOMAIN_TOPIC" default:"jerseystore-domain-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"JERSEYSTORE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"JERSEYSTORE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"JERSEYSTORE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval          time.Duration `envconfig:"JERSEYSTORE_CRON_INTERVAL" default:"5m"`
	PendingPaymentAge time.Duration `envconfig:"JERSEYSTORE_CRON_PENDING_PAYMENT_AGE" default:"30m"`
	PendingOrderTTL   time.Duration `envconfig:"JERSEYSTORE_CRON_PENDING_ORDER_TTL" default:"72h"`
	BatchSize         int           `envconfig:"JERSEYSTORE_CRON_BATCH_SIZE" default:"100"`
	JobTimeout        time.Duration `envconfig:"JERSEYSTORE_CRON_JOB_TIMEOUT" default:"2m"`
	OutboxRetention   time.Duration `envconfig:"JERSEYSTORE_CRON_OUTBOX_RETENTION" default:"720h"`
}

type WebhooksConfig struct {
	DedupeTTL time.Duration `envconfig:"JERSEYSTORE_WEBHOOK_DEDUPE_TTL" default:"720h"`
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
