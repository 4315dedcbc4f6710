package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "SHOP_"

type Config struct {
	App struct {
		Name      string `koanf:"name"`
		Env       string `koanf:"env"`
		HTTPAddr  string `koanf:"http_addr"`
		AllowSeed bool   `koanf:"allow_seed"`
	} `koanf:"app"`

	Log struct {
		Level      string `koanf:"level"`
		File       string `koanf:"file"`
		MaxSizeMB  int    `koanf:"max_size_mb"`
		MaxBackups int    `koanf:"max_backups"`
		MaxAgeDays int    `koanf:"max_age_days"`
	} `koanf:"log"`

	HTTP struct {
		ReadTimeout     time.Duration `koanf:"read_timeout"`
		WriteTimeout    time.Duration `koanf:"write_timeout"`
		IdleTimeout     time.Duration `koanf:"idle_timeout"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	} `koanf:"http"`

	Database struct {
		URL             string        `koanf:"url"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	} `koanf:"database"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	Auth struct {
		JWTSecret string        `koanf:"jwt_secret"`
		TokenTTL  time.Duration `koanf:"token_ttl"`
	} `koanf:"auth"`

	Checkout struct {
		IdempotencyTTL    time.Duration `koanf:"idempotency_ttl"`
		LookupConcurrency int           `koanf:"lookup_concurrency"`
		LockTimeout       time.Duration `koanf:"lock_timeout"`
	} `koanf:"checkout"`
}

// Load reads dir/base.yaml, then dir/<APP_ENV>.yaml when present, then
// SHOP_* environment variables (nested keys separated by "__").
func Load(dir string) (Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(file.Provider(filepath.Join(dir, "base.yaml")), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	appEnv := os.Getenv("APP_ENV")
	if appEnv != "" {
		// optional per-environment overlay; a missing file is fine, a broken one is not
		overlay := filepath.Join(dir, appEnv+".yaml")
		if err := k.Load(file.Provider(overlay), yaml.Parser()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", filepath.Base(overlay), err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if appEnv != "" {
		cfg.App.Env = appEnv
	}
	applyLegacyEnv(&cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyLegacyEnv keeps the variable names older deployments already set.
func applyLegacyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.App.HTTPAddr = ":" + v
	}
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "marketplace"
	}
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Checkout.IdempotencyTTL <= 0 {
		c.Checkout.IdempotencyTTL = 24 * time.Hour
	}
	if c.Checkout.LookupConcurrency <= 0 {
		c.Checkout.LookupConcurrency = 8
	}
	if c.Checkout.LockTimeout <= 0 {
		c.Checkout.LockTimeout = 5 * time.Second
	}
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return errors.New("app.http_addr required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret required (or JWT_SECRET)")
	}
	return nil
}

// UsesPostgres reports whether a database URL was configured. Without one
// the service runs on in-memory stores.
func (c Config) UsesPostgres() bool { return c.Database.URL != "" }

// UsesRedis reports whether a redis address was configured.
func (c Config) UsesRedis() bool { return c.Redis.Addr != "" }
