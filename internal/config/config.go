// Package config loads server settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const minSecretLength = 32

type Config struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"database_url"`
	InMemory    bool   `yaml:"in_memory"`

	Auth      AuthConfig      `yaml:"auth"`
	Google    GoogleConfig    `yaml:"google"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type AuthConfig struct {
	BaseURL        string   `yaml:"base_url"`
	Secret         string   `yaml:"secret"`
	TrustedOrigins []string `yaml:"trusted_origins"`
	// Bearer selects how bearer tokens are verified: "jwt" or "session".
	Bearer        string `yaml:"bearer"`
	SecureCookies bool   `yaml:"secure_cookies"`
}

type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
	Burst     int `yaml:"burst"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TelemetryConfig struct {
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

func Default() Config {
	return Config{
		Port: "3001",
		Auth: AuthConfig{
			BaseURL: "http://localhost:3001",
			Bearer:  "jwt",
		},
		RateLimit: RateLimitConfig{PerMinute: 30, Burst: 10},
		Log:       LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads path when it is not empty, then applies environment
// overrides. It does not validate.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
			return cfg, fmt.Errorf("unmarshal config: %w", err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	readString("PORT", &cfg.Port)
	readString("DATABASE_URL", &cfg.DatabaseURL)
	readBool("USE_IN_MEMORY_STORAGE", &cfg.InMemory)

	readString("AUTH_BASE_URL", &cfg.Auth.BaseURL)
	readString("AUTH_SECRET", &cfg.Auth.Secret)
	readString("AUTH_BEARER", &cfg.Auth.Bearer)
	readBool("AUTH_SECURE_COOKIES", &cfg.Auth.SecureCookies)
	if raw := os.Getenv("AUTH_TRUSTED_ORIGINS"); raw != "" {
		cfg.Auth.TrustedOrigins = splitList(raw)
	}

	readString("GOOGLE_CLIENT_ID", &cfg.Google.ClientID)
	readString("GOOGLE_CLIENT_SECRET", &cfg.Google.ClientSecret)

	readInt("RATE_LIMIT_PER_MIN", &cfg.RateLimit.PerMinute)
	readInt("RATE_LIMIT_BURST", &cfg.RateLimit.Burst)

	readString("LOG_LEVEL", &cfg.Log.Level)
	readString("LOG_FORMAT", &cfg.Log.Format)

	readString("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Telemetry.Endpoint)
	readBool("OTEL_EXPORTER_OTLP_INSECURE", &cfg.Telemetry.Insecure)
}

func readString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// readInt keeps the current value when the variable is unset or not a number.
func readInt(key string, dst *int) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	if v, err := strconv.Atoi(raw); err == nil {
		*dst = v
	}
}

func readBool(key string, dst *bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	if v, err := strconv.ParseBool(raw); err == nil {
		*dst = v
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// GoogleEnabled reports whether both Google credentials are set.
func (c Config) GoogleEnabled() bool {
	return c.Google.ClientID != "" && c.Google.ClientSecret != ""
}

// Validate checks the settings needed to serve.
func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if len(c.Auth.Secret) < minSecretLength {
		errs = append(errs, fmt.Errorf("auth secret must be at least %d characters", minSecretLength))
	}
	if !c.InMemory && c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required unless in-memory storage is enabled"))
	}
	switch c.Auth.Bearer {
	case "jwt", "session":
	default:
		errs = append(errs, fmt.Errorf("auth bearer must be jwt or session, got %q", c.Auth.Bearer))
	}
	if (c.Google.ClientID == "") != (c.Google.ClientSecret == "") {
		errs = append(errs, errors.New("google client id and secret must be set together"))
	}
	if c.RateLimit.PerMinute < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate limit values must not be negative"))
	}
	return errors.Join(errs...)
}
