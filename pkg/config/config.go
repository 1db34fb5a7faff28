package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/thunder/pkg/api"
	"github.com/marmos91/thunder/pkg/keepalive"
	"github.com/marmos91/thunder/pkg/ratelimit"
	"github.com/marmos91/thunder/pkg/store"
	"github.com/marmos91/thunder/pkg/tokens"
)

// Config represents the Thunder configuration.
//
// This structure captures everything the orchestrator needs to boot:
//   - Logging, tracing, profiling and metrics
//   - The HTTP listener (webhook, probes, status)
//   - Persistence for the restart notice and access tokens
//   - Bot API credentials and owner ids
//   - Plugin discovery and the background task settings
//
// Configuration sources (in order of precedence):
//  1. Environment variables (THUNDER_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics toggles Prometheus collection. Metrics are served on the main
	// listener at /metrics.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Server configures the HTTP listener
	Server api.ServerConfig `mapstructure:"server" yaml:"server"`

	// Database selects the persistence backend (sqlite, postgres or badger)
	Database store.Config `mapstructure:"database" yaml:"database"`

	// Bot contains the Bot API connection settings
	Bot BotConfig `mapstructure:"bot" yaml:"bot"`

	// Plugins controls plugin discovery and sandboxing
	Plugins PluginsConfig `mapstructure:"plugins" yaml:"plugins"`

	// Keepalive configures the self-ping task
	Keepalive keepalive.Config `mapstructure:"keepalive" yaml:"keepalive"`

	// Tokens configures access token lifetimes and the cleanup task
	Tokens tokens.Config `mapstructure:"tokens" yaml:"tokens"`

	// RateLimit configures the outbound request executor
	RateLimit ratelimit.Config `mapstructure:"ratelimit" yaml:"ratelimit"`

	// ShutdownTimeout bounds the whole teardown sequence
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// RestartCompleteText replaces the restart notice once the bot is back
	RestartCompleteText string `mapstructure:"restart_complete_text" validate:"required" yaml:"restart_complete_text"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure disables TLS towards the collector
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server URL
	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	// Valid values: cpu, alloc_objects, alloc_space, inuse_objects, inuse_space,
	//               goroutines, mutex_count, mutex_duration, block_count, block_duration
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig toggles Prometheus collection.
// When Enabled is false, no metrics are collected and /metrics answers 404.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// BotConfig contains the Bot API connection settings.
type BotConfig struct {
	// APIURL is the Bot API base URL
	// Default: https://api.telegram.org
	APIURL string `mapstructure:"api_url" validate:"omitempty,url" yaml:"api_url"`

	// Token is the bot token. Required by 'thunder start'.
	// Override: THUNDER_BOT_TOKEN
	Token string `mapstructure:"token" yaml:"token"`

	// RequestTimeout bounds each API call
	// Default: 30s
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"omitempty,gt=0" yaml:"request_timeout"`

	// OwnerIDs are the user ids allowed to run owner-only commands.
	// Override: THUNDER_BOT_OWNER_IDS=1,2,3
	OwnerIDs []int64 `mapstructure:"owner_ids" yaml:"owner_ids"`
}

// PluginsConfig controls plugin discovery.
type PluginsConfig struct {
	// Pattern is the glob used to discover Lua plugins
	// Default: plugins/*.lua
	Pattern string `mapstructure:"pattern" validate:"required" yaml:"pattern"`

	// ExecutionTimeout bounds a plugin's load and each command handler call
	// Default: 5s
	ExecutionTimeout time.Duration `mapstructure:"execution_timeout" validate:"gt=0" yaml:"execution_timeout"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (THUNDER_*)
//  2. Configuration file
//  3. Default values
//
// A missing configuration file is not an error: the environment and the
// defaults are enough to run the bot.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Configure viper
	setupViper(v, configPath)

	// Read configuration file if it exists
	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	// Unmarshal into config struct with custom decode hooks
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// It checks if an explicitly requested config file exists and provides
// user-friendly instructions if not.
func MustLoad(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  thunder config init --config %s",
				configPath, configPath)
		}
	} else if DefaultConfigExists() {
		configPath = GetDefaultConfigPath()
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path.
// The configuration is saved in YAML format using proper yaml tags.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file carries the bot token and the webhook secret.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use THUNDER_ prefix and underscores
	// Example: THUNDER_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("THUNDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, reflect.TypeOf(Config{}), "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/thunder/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// bindEnvs registers every mapstructure key with viper so that environment
// variables are honoured even when the key is absent from the config file.
func bindEnvs(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			continue
		}

		key := name
		if prefix != "" {
			key = prefix + "." + name
		}

		if field.Type.Kind() == reflect.Struct {
			bindEnvs(v, field.Type, key)
			continue
		}
		_ = v.BindEnv(key)
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		// Explicit config file that doesn't exist
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types:
// durations and comma-separated lists (THUNDER_BOT_OWNER_IDS=1,2).
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// durationDecodeHook returns a mapstructure decode hook that converts strings
// to time.Duration. This enables config files to use human-readable durations
// like "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "thunder")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "thunder")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for the init command).
func GetConfigDir() string {
	return getConfigDir()
}
