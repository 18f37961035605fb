package config

// EnvPrefix namespaces every variable read by Load.
const EnvPrefix = "JERSEYSTORE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "JERSEYSTORE_APP_ENV"
	EnvPort         = "JERSEYSTORE_APP_PORT"
	EnvDBDSN        = "JERSEYSTORE_DB_DSN"
	EnvDBHost       = "JERSEYSTORE_DB_HOST"
	EnvDBUser       = "JERSEYSTORE_DB_USER"
	EnvDBName       = "JERSEYSTORE_DB_NAME"
	EnvRedisURL     = "JERSEYSTORE_REDIS_URL"
	EnvJWTSecret    = "JERSEYSTORE_JWT_SECRET"
	EnvJWTIssuer    = "JERSEYSTORE_JWT_ISSUER"
	EnvJWTExpMins   = "JERSEYSTORE_JWT_EXPIRATION_MINUTES"
	EnvStripeEnv    = "JERSEYSTORE_STRIPE_ENV"
	EnvPayPalMode   = "JERSEYSTORE_PAYPAL_MODE"
	EnvSquareEnv    = "JERSEYSTORE_SQUARE_ENV"
	EnvCronInterval = "JERSEYSTORE_CRON_INTERVAL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
