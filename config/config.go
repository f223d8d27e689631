// Package config loads process configuration from the environment,
// with an optional YAML file overlay for values that are awkward as
// env vars.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DatabaseURL string `yaml:"database_url"`
	DBEnabled   bool   `yaml:"db_enabled"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	JWTSecret         string `yaml:"jwt_secret"`
	AdminSeedPassword string `yaml:"admin_seed_password"`

	SMSGate struct {
		Enabled bool   `yaml:"enabled"`
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
		Sender  string `yaml:"sender"`
	} `yaml:"smsgate"`
}

// Load reads configuration from the environment. When DB or Redis is
// disabled the process falls back to in-memory stores, which keeps
// plain `go run` usable without infrastructure.
func Load() *Config {
	cfg := &Config{}

	cfg.DatabaseURL = getEnv("DATABASE_URL", "")
	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true" && cfg.DatabaseURL != ""

	cfg.Redis.Enabled = getEnv("REDIS_ENABLED", "false") == "true"
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.JWTSecret = getEnv("JWT_SECRET", "dev-secret-change-me")
	cfg.AdminSeedPassword = getEnv("ADMIN_SEED_PASSWORD", "")

	cfg.SMSGate.Enabled = getEnv("SMSGATE_ENABLED", "false") == "true"
	cfg.SMSGate.BaseURL = getEnv("SMSGATE_BASE_URL", "https://api.sendsmsgate.com")
	cfg.SMSGate.APIKey = getEnv("SMSGATE_API_KEY", "")
	cfg.SMSGate.Sender = getEnv("SMSGATE_SENDER", "G_CONTRATS")

	return cfg
}

// LoadFile applies a YAML overlay on top of the env-derived config.
func LoadFile(path string) (*Config, error) {
	cfg := Load()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseInt(v string, fallback int) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
