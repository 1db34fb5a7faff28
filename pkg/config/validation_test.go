package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidServerPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Port = 70000

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for port out of range")
	}
	if !strings.Contains(err.Error(), "max") {
		t.Errorf("Expected 'max' validation error, got: %v", err)
	}
}

func TestValidate_InvalidBindAddress(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.BindAddress = "not-an-ip"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for bind address")
	}
}

func TestValidate_ZeroShutdownTimeout(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.ShutdownTimeout = 0

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for zero shutdown timeout")
	}
}

func TestValidate_UnsupportedDatabase(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Database.Type = "mysql"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for unsupported database type")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_PostgresMissingHost(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Database.Type = "postgres"
	cfg.Database.Postgres.Database = "thunder"
	cfg.Database.Postgres.User = "thunder"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for missing postgres host")
	}
	if !strings.Contains(err.Error(), "database") {
		t.Errorf("Expected database error, got: %v", err)
	}
}

func TestValidate_TelemetryEnabledWithoutEndpoint(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Endpoint = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for telemetry enabled without endpoint")
	}
	if !strings.Contains(err.Error(), "endpoint") {
		t.Errorf("Expected error about telemetry endpoint, got: %v", err)
	}
}

func TestValidate_TelemetrySampleRate(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.SampleRate = 1.5

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for sample rate out of range")
	}
}

func TestValidate_UnknownProfileType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.Profiling.ProfileTypes = []string{"cpu", "heap"}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for unknown profile type")
	}
	if !strings.Contains(err.Error(), `"heap"`) {
		t.Errorf("Expected error naming the profile type, got: %v", err)
	}
}

func TestValidate_PublicURLRequiresSecret(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.PublicURL = "https://bot.example.com"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for public_url without webhook_secret")
	}

	cfg.Server.WebhookSecret = "s3cret"
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected public_url with secret to be valid, got: %v", err)
	}
}

func TestValidate_OwnerIDs(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Bot.OwnerIDs = []int64{42, -1}

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for negative owner id")
	}
}

func TestValidate_KeepaliveURL(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Keepalive.URL = "::not a url::"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for keepalive url")
	}
}

func TestValidate_LogLevelNormalization(t *testing.T) {
	testCases := []string{"info", "INFO", "debug", "DEBUG", "warn", "WARN", "error", "ERROR"}

	for _, level := range testCases {
		cfg := GetDefaultConfig()
		cfg.Logging.Level = level

		if err := Validate(cfg); err != nil {
			t.Errorf("Validation failed for level %q: %v", level, err)
		}
		if cfg.Logging.Level != level {
			t.Errorf("Expected level to remain %q after validation, got %q", level, cfg.Logging.Level)
		}
	}
}

func TestValidate_NonPositiveDurations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"token cleanup interval", func(c *Config) { c.Tokens.CleanupInterval = -time.Second }, "CleanupInterval"},
		{"token ttl", func(c *Config) { c.Tokens.TTL = -time.Hour }, "TTL"},
		{"keepalive interval", func(c *Config) { c.Keepalive.Interval = -time.Second }, "Interval"},
		{"keepalive timeout", func(c *Config) { c.Keepalive.Timeout = -time.Second }, "Timeout"},
		{"per chat interval", func(c *Config) { c.RateLimit.PerChatInterval = -time.Millisecond }, "PerChatInterval"},
		{"bot request timeout", func(c *Config) { c.Bot.RequestTimeout = -time.Second }, "RequestTimeout"},
		{"server read timeout", func(c *Config) { c.Server.ReadTimeout = -time.Second }, "ReadTimeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatalf("Expected validation error for negative %s", tt.name)
			}
			if !strings.Contains(err.Error(), tt.field) || !strings.Contains(err.Error(), "gt") {
				t.Errorf("Expected 'gt' error on %s, got: %v", tt.field, err)
			}
		})
	}
}

func TestValidate_KeepaliveMaxRetries(t *testing.T) {
	cfg := GetDefaultConfig()
	zero := 0
	cfg.Keepalive.MaxRetries = &zero
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected zero retries to be valid, got: %v", err)
	}

	negative := -1
	cfg.Keepalive.MaxRetries = &negative
	if err := Validate(cfg); err == nil {
		t.Error("Expected validation error for negative max_retries")
	}
}
