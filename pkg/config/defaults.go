package config

import (
	"strings"

	"github.com/marmos91/thunder/pkg/messaging/botapi"
	"github.com/marmos91/thunder/pkg/plugin"
	"github.com/marmos91/thunder/pkg/runtime/lifecycle"
	"github.com/marmos91/thunder/pkg/runtime/startup"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values (0, "", false, nil) are replaced with defaults; explicit values
// are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyBotDefaults(&cfg.Bot)
	applyPluginsDefaults(&cfg.Plugins)

	cfg.Server.ApplyDefaults()
	cfg.Database.ApplyDefaults()
	cfg.Keepalive.ApplyDefaults()
	cfg.Tokens.ApplyDefaults()
	cfg.RateLimit.ApplyDefaults()

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = lifecycle.DefaultShutdownTimeout
	}
	if cfg.RestartCompleteText == "" {
		cfg.RestartCompleteText = startup.DefaultRestartCompleteText
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}

	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyBotDefaults(cfg *BotConfig) {
	if cfg.APIURL == "" {
		cfg.APIURL = botapi.DefaultAPIURL
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = botapi.DefaultRequestTimeout
	}
}

func applyPluginsDefaults(cfg *PluginsConfig) {
	if cfg.Pattern == "" {
		cfg.Pattern = plugin.DefaultPattern
	}
	if cfg.ExecutionTimeout == 0 {
		cfg.ExecutionTimeout = plugin.DefaultExecutionTimeout
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
