package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port              int           `envconfig:"PORT" default:"8080"`
	LogLevel          string        `envconfig:"LOG_LEVEL" default:"info"`
	DatabaseURL       string        `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns        int32         `envconfig:"DB_MAX_CONNS" default:"0"`
	Version           string        `envconfig:"VERSION" default:"dev"`
	BcryptCost        int           `envconfig:"BCRYPT_COST" default:"12"`
	JWTSecret         string        `envconfig:"JWT_SECRET" required:"true"`
	TokenLifetimeDays int           `envconfig:"TOKEN_LIFETIME_DAYS" default:"7"`
	TokenSweepEvery   time.Duration `envconfig:"TOKEN_SWEEP_INTERVAL" default:"1h"`
	SiteURL           string        `envconfig:"SITE_URL" default:""`
	AdminEmail        string        `envconfig:"ADMIN_EMAIL" default:""`
	AdminPassword     string        `envconfig:"ADMIN_PASSWORD" default:""`
	MailHost          string        `envconfig:"MAIL_HOST" default:""`
	MailPort          int           `envconfig:"MAIL_PORT" default:"25"`
	MailUser          string        `envconfig:"MAIL_USER" default:""`
	MailPassword      string        `envconfig:"MAIL_PASSWORD" default:""`
	MailFrom          string        `envconfig:"MAIL_FROM" default:"noreply@snowballr.local"`
	RedisAddr         string        `envconfig:"REDIS_ADDR" default:""`
	RedisPassword     string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB           int           `envconfig:"REDIS_DB" default:"0"`
	LoginRatePerSec   int           `envconfig:"LOGIN_RATE_PER_SECOND" default:"5"`
	LoginRateBurst    int           `envconfig:"LOGIN_RATE_BURST" default:"10"`
	TrustProxy        bool          `envconfig:"TRUST_PROXY_HEADERS" default:"false"`
}

// Load reads configuration from environment variables into a Config struct.
// A .env file in the working directory is loaded first when present; values
// already set in the environment take precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
