// Package keepalive periodically requests the service's public URL so that
// hosting platforms which idle inactive apps keep it running.
package keepalive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/marmos91/thunder/internal/logger"
)

// DefaultMaxRetries is used when max_retries is not set.
const DefaultMaxRetries = 3

// ErrInvalidInterval is returned by Run when the ping interval is not
// positive.
var ErrInvalidInterval = errors.New("keepalive interval must be positive")

// Config configures the pinger.
type Config struct {
	// URL is the address to ping. Empty disables pinging.
	URL string `mapstructure:"url" validate:"omitempty,url" yaml:"url"`

	// Interval between pings. Default: 20m
	Interval time.Duration `mapstructure:"interval" validate:"omitempty,gt=0" yaml:"interval"`

	// MaxRetries is the number of retries per ping before the round is
	// logged as failed. 0 disables retries. Default: 3
	MaxRetries *int `mapstructure:"max_retries" validate:"omitempty,min=0" yaml:"max_retries"`

	// Timeout bounds a single request. Default: 10s
	Timeout time.Duration `mapstructure:"timeout" validate:"omitempty,gt=0" yaml:"timeout"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Interval == 0 {
		c.Interval = 20 * time.Minute
	}
	if c.MaxRetries == nil {
		retries := DefaultMaxRetries
		c.MaxRetries = &retries
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

// Pinger issues GET requests to Config.URL on a fixed interval.
type Pinger struct {
	config     Config
	httpClient *http.Client
	newBackOff func() backoff.BackOff
}

// New creates a pinger.
func New(config Config) *Pinger {
	config.ApplyDefaults()
	return &Pinger{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 30 * time.Second
			return b
		},
	}
}

// Run pings until ctx is cancelled. A failed round is logged and the loop
// continues on its schedule.
func (p *Pinger) Run(ctx context.Context) error {
	if p.config.URL == "" {
		logger.Info("Keepalive disabled: no URL configured")
		<-ctx.Done()
		return nil
	}

	if p.config.Interval <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInterval, p.config.Interval)
	}

	logger.Info("Keepalive started", logger.KeyURL, p.config.URL, logger.KeyInterval, p.config.Interval)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.PingOnce(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("Keepalive ping failed", logger.KeyURL, p.config.URL, logger.Err(err))
			}
		}
	}
}

// PingOnce performs one ping round with retries.
func (p *Pinger) PingOnce(ctx context.Context) error {
	attempt := 0
	op := func() error {
		attempt++
		return p.ping(ctx)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(p.newBackOff(), uint64(*p.config.MaxRetries)), ctx)
	notify := func(err error, next time.Duration) {
		logger.Debug("Keepalive ping retry", logger.Attempt(attempt), logger.Wait(next), logger.Err(err))
	}
	return backoff.RetryNotify(op, b, notify)
}

func (p *Pinger) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.URL, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("invalid keepalive request: %w", err))
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return fmt.Errorf("keepalive got status %d", resp.StatusCode)
	}
	return nil
}
