package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/forkful/marketplace/internal/infrastructure/token"
)

// Config is loaded once at start and passed down explicitly. Nothing reads
// the environment after Load returns.
type Config struct {
	Port        string `env:"PORT,          default=8080"`
	Env         string `env:"ENV,           default=development"`
	LogLevel    string `env:"LOG_LEVEL,     default=info"`
	APIBasePath string `env:"API_BASE_PATH, default=/api"`

	Auth   AuthConfig
	Mongo  MongoConfig
	Redis  RedisConfig
	SignIn SignInConfig
	Audit  AuditConfig
}

type AuthConfig struct {
	AccessSecret  string `env:"ACCESS_TOKEN_SECRET,      required"`
	RefreshSecret string `env:"REFRESH_TOKEN_SECRET,     required"`
	AccessTTL     int    `env:"ACCESS_TOKEN_EXPIRES_IN,  default=3600"`
	RefreshTTL    int    `env:"REFRESH_TOKEN_EXPIRES_IN, default=86400"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=marketplace"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

type SignInConfig struct {
	MaxAttempts int           `env:"SIGNIN_MAX_ATTEMPTS, default=10"`
	Window      time.Duration `env:"SIGNIN_WINDOW,       default=15m"`
	RateLimit   float64       `env:"RATE_LIMIT_RPS,      default=20"`
}

type AuditConfig struct {
	Workers int    `env:"AUDIT_WORKERS, default=4"`
	Stream  string `env:"AUDIT_STREAM,  default=marketplace.auth"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.APIBasePath = "/" + strings.Trim(cfg.APIBasePath, "/")
	if cfg.APIBasePath == "/" {
		cfg.APIBasePath = ""
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}
	return nil
}

// IsDevelopment enables pretty console logs.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Tokens builds the token codec configuration.
func (c *Config) Tokens() token.Config {
	return token.Config{
		AccessSecret:  c.Auth.AccessSecret,
		RefreshSecret: c.Auth.RefreshSecret,
		AccessTTL:     time.Duration(c.Auth.AccessTTL) * time.Second,
		RefreshTTL:    time.Duration(c.Auth.RefreshTTL) * time.Second,
	}
}
