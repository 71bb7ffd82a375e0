package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const validSecret = "secretshouldbeatleast32charslong"

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "starterp.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// clearEnv blanks every variable Load reads so the host environment does
// not leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "DATABASE_URL", "USE_IN_MEMORY_STORAGE",
		"AUTH_BASE_URL", "AUTH_SECRET", "AUTH_BEARER", "AUTH_SECURE_COOKIES", "AUTH_TRUSTED_ORIGINS",
		"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET",
		"RATE_LIMIT_PER_MIN", "RATE_LIMIT_BURST", "LOG_LEVEL", "LOG_FORMAT",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("Load(\"\") = %+v, want defaults", cfg)
	}
}

// Requirement: environment variables override the file.
func TestLoad_FileThenEnv(t *testing.T) {
	// Arrange
	clearEnv(t)
	t.Setenv("STARTERP_TEST_SECRET", validSecret)
	path := writeFile(t, `
port: "8080"
database_url: postgres://file/db
auth:
  secret: ${STARTERP_TEST_SECRET}
  bearer: session
  trusted_origins: [https://a.example.com]
rate_limit:
  per_minute: 5
log:
  level: debug
`)
	t.Setenv("PORT", "9090")
	t.Setenv("AUTH_TRUSTED_ORIGINS", " https://b.example.com, ,https://c.example.com ")
	t.Setenv("RATE_LIMIT_BURST", "7")
	t.Setenv("RATE_LIMIT_PER_MIN", "not-a-number")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")

	// Act
	cfg, err := Load(path)

	// Assert
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		got  any
		want any
	}{
		{"port from env", cfg.Port, "9090"},
		{"database from file", cfg.DatabaseURL, "postgres://file/db"},
		{"secret expanded", cfg.Auth.Secret, validSecret},
		{"bearer from file", cfg.Auth.Bearer, "session"},
		{"origins from env", cfg.Auth.TrustedOrigins, []string{"https://b.example.com", "https://c.example.com"}},
		{"per minute keeps file value", cfg.RateLimit.PerMinute, 5},
		{"burst from env", cfg.RateLimit.Burst, 7},
		{"log level from file", cfg.Log.Level, "debug"},
		{"log format default", cfg.Log.Format, "json"},
		{"otel insecure", cfg.Telemetry.Insecure, true},
	}
	for _, test := range tests {
		if !reflect.DeepEqual(test.got, test.want) {
			t.Errorf("%s: got %v, want %v", test.name, test.got, test.want)
		}
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
	if _, err := Load(writeFile(t, "port: [")); err == nil {
		t.Error("expected error for invalid yaml")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Default()
		c.Auth.Secret = validSecret
		c.DatabaseURL = "postgres://localhost/starterp"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "in memory needs no database", mutate: func(c *Config) { c.DatabaseURL = ""; c.InMemory = true }},
		{name: "short secret", mutate: func(c *Config) { c.Auth.Secret = "short" }, wantErr: "at least 32"},
		{name: "no database", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: "DATABASE_URL"},
		{name: "unknown bearer", mutate: func(c *Config) { c.Auth.Bearer = "opaque" }, wantErr: "jwt or session"},
		{name: "half google config", mutate: func(c *Config) { c.Google.ClientID = "id" }, wantErr: "google"},
		{name: "negative rate", mutate: func(c *Config) { c.RateLimit.Burst = -1 }, wantErr: "negative"},
		{name: "no port", mutate: func(c *Config) { c.Port = "" }, wantErr: "port"},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			c := valid()
			test.mutate(&c)

			err := c.Validate()

			if test.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, test.wantErr)
			}
		})
	}
}

func TestGoogleEnabled(t *testing.T) {
	c := Default()
	if c.GoogleEnabled() {
		t.Error("google enabled without credentials")
	}
	c.Google = GoogleConfig{ClientID: "id", ClientSecret: "secret"}
	if !c.GoogleEnabled() {
		t.Error("google disabled with credentials")
	}
}
