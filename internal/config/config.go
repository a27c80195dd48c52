// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is the full set of tunables for the API process.
type Config struct {
	Env      string `env:"ENV,default=development"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
	HTTPAddr string `env:"COURSEHUB_HTTP_ADDR,default=:8000"`
	GRPCAddr string `env:"COURSEHUB_GRPC_ADDR,default=:8081"`
	Origin   string `env:"ORIGIN"`

	PostgresDSN string `env:"COURSEHUB_PG_DSN"`
	RedisURL    string `env:"COURSEHUB_REDIS_URL"`

	AccessTokenSecret  string        `env:"ACCESS_TOKEN,required"`
	RefreshTokenSecret string        `env:"REFRESH_TOKEN,required"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_EXPIRE,default=5m"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_EXPIRE,default=72h"`
	SessionTTL         time.Duration `env:"SESSION_TTL,default=168h"`
	CookieSecure       bool          `env:"COOKIE_SECURE,default=false"`

	CacheTTL      time.Duration `env:"CACHE_TTL,default=1h"`
	StoreTimeout  time.Duration `env:"STORE_TIMEOUT,default=3s"`
	NotifyTimeout time.Duration `env:"NOTIFY_TIMEOUT,default=10s"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`

	RateBurst     int `env:"RATE_BURST,default=20"`
	RatePerSecond int `env:"RATE_PER_SECOND,default=10"`

	AdminName     string `env:"COURSEHUB_ADMIN_NAME,default=Administrator"`
	AdminEmail    string `env:"COURSEHUB_ADMIN_EMAIL"`
	AdminPassword string `env:"COURSEHUB_ADMIN_PASSWORD"`
}

// Load reads envFile when it exists and decodes the environment into a Config.
// Variables already present in the environment win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints envdecode cannot express.
func (c Config) Validate() error {
	if strings.TrimSpace(c.AccessTokenSecret) == "" || strings.TrimSpace(c.RefreshTokenSecret) == "" {
		return errors.New("config: ACCESS_TOKEN and REFRESH_TOKEN are required")
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("config: ACCESS_TOKEN and REFRESH_TOKEN must differ")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("config: token lifetimes must be positive")
	}
	if c.RefreshTokenTTL < c.AccessTokenTTL {
		return errors.New("config: refresh token lifetime must not be shorter than access token lifetime")
	}
	if c.SessionTTL < c.RefreshTokenTTL {
		return errors.New("config: session lifetime must cover the refresh token lifetime")
	}
	if c.StoreTimeout <= 0 || c.NotifyTimeout <= 0 {
		return errors.New("config: timeouts must be positive")
	}
	if c.RateBurst <= 0 || c.RatePerSecond <= 0 {
		return errors.New("config: rate limits must be positive")
	}
	if (strings.TrimSpace(c.AdminEmail) == "") != (c.AdminPassword == "") {
		return errors.New("config: COURSEHUB_ADMIN_EMAIL and COURSEHUB_ADMIN_PASSWORD must be set together")
	}
	return nil
}

// AdminBootstrap reports whether an admin account should be ensured at startup.
func (c Config) AdminBootstrap() bool {
	return strings.TrimSpace(c.AdminEmail) != ""
}

// MailEnabled reports whether outbound SMTP is configured.
func (c Config) MailEnabled() bool {
	return strings.TrimSpace(c.SMTPHost) != ""
}

// Production reports whether the process runs in production mode.
func (c Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}
