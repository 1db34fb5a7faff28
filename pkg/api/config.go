package api

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// ServerConfig configures the HTTP listener that serves the webhook,
// health probes, metrics and status.
type ServerConfig struct {
	// BindAddress is the interface to listen on.
	// Default: 0.0.0.0
	BindAddress string `mapstructure:"bind_address" validate:"omitempty,ip" yaml:"bind_address"`

	// Port is the TCP port.
	// Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// PublicURL is the externally reachable base URL. When set, the webhook
	// is registered at PublicURL/webhook/WebhookSecret on connect.
	PublicURL string `mapstructure:"public_url" validate:"omitempty,url" yaml:"public_url"`

	// WebhookSecret is the path segment that authenticates webhook calls.
	// The webhook route is disabled when empty.
	WebhookSecret string `mapstructure:"webhook_secret" yaml:"webhook_secret,omitempty"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 10s
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"omitempty,gt=0" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Default: 30s
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"omitempty,gt=0" yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 60s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"omitempty,gt=0" yaml:"idle_timeout"`
}

// ApplyDefaults fills in zero values with defaults.
func (c *ServerConfig) ApplyDefaults() {
	if c.BindAddress == "" {
		c.BindAddress = "0.0.0.0"
	}
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
}

// Addr returns the host:port the listener binds.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.BindAddress, strconv.Itoa(c.Port))
}

// WebhookURL returns the public webhook URL, or "" when the webhook is not
// configured.
func (c *ServerConfig) WebhookURL() string {
	if c.PublicURL == "" || c.WebhookSecret == "" {
		return ""
	}
	return strings.TrimRight(c.PublicURL, "/") + "/webhook/" + c.WebhookSecret
}
