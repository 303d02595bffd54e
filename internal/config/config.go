// Package config resolves runtime configuration from defaults, an optional
// YAML file and environment overrides, in that priority order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration.
type Config struct {
	Addr string
	DSN  string

	SignKey    string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	ChallengeTTL time.Duration
	CodeDigits   int
	MaxAttempts  int
}

// configFile mirrors the YAML schema.
type configFile struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Database struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`
	Tokens struct {
		SignKey    string `yaml:"sign_key"`
		Issuer     string `yaml:"issuer"`
		AccessTTL  string `yaml:"access_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
	} `yaml:"tokens"`
	Challenge struct {
		TTL         string `yaml:"ttl"`
		CodeDigits  int    `yaml:"code_digits"`
		MaxAttempts int    `yaml:"max_attempts"`
	} `yaml:"challenge"`
}

// Load resolves configuration: defaults -> file (if path non-empty) -> env.
func Load(path string) (Config, error) {
	cfg := Config{
		Addr:         ":8080",
		Issuer:       "accountd",
		AccessTTL:    15 * time.Minute,
		RefreshTTL:   720 * time.Hour,
		ChallengeTTL: 15 * time.Minute,
		CodeDigits:   6,
		MaxAttempts:  3,
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		var f configFile
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
		applyFile(&cfg, &f)
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyFile(cfg *Config, f *configFile) {
	if f.Server.Addr != "" {
		cfg.Addr = f.Server.Addr
	}
	if f.Database.DSN != "" {
		cfg.DSN = f.Database.DSN
	}
	if f.Tokens.SignKey != "" {
		cfg.SignKey = f.Tokens.SignKey
	}
	if f.Tokens.Issuer != "" {
		cfg.Issuer = f.Tokens.Issuer
	}
	applyDuration(&cfg.AccessTTL, f.Tokens.AccessTTL)
	applyDuration(&cfg.RefreshTTL, f.Tokens.RefreshTTL)
	applyDuration(&cfg.ChallengeTTL, f.Challenge.TTL)
	if f.Challenge.CodeDigits > 0 {
		cfg.CodeDigits = f.Challenge.CodeDigits
	}
	if f.Challenge.MaxAttempts > 0 {
		cfg.MaxAttempts = f.Challenge.MaxAttempts
	}
}

func applyDuration(dst *time.Duration, raw string) {
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil && d >= 0 {
		*dst = d
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ACCOUNTD_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("ACCOUNTD_DSN"); v != "" {
		cfg.DSN = v
	}
	if v := os.Getenv("ACCOUNTD_SIGN_KEY"); v != "" {
		cfg.SignKey = v
	}
	if v := os.Getenv("ACCOUNTD_ACCESS_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.AccessTTL = d
		}
	}
	if v := os.Getenv("ACCOUNTD_REFRESH_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RefreshTTL = d
		}
	}
	if v := os.Getenv("ACCOUNTD_CHALLENGE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ChallengeTTL = d
		}
	}
	if v := os.Getenv("ACCOUNTD_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxAttempts = n
		}
	}
}
