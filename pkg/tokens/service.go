// Package tokens issues and expires the access tokens handed to chat users.
package tokens

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/thunder/internal/logger"
	"github.com/marmos91/thunder/pkg/store"
	"github.com/marmos91/thunder/pkg/store/models"
)

// Config configures token lifetimes and the cleanup schedule.
type Config struct {
	// TTL is the lifetime of an issued token. Default: 24h
	TTL time.Duration `mapstructure:"ttl" validate:"omitempty,gt=0" yaml:"ttl"`

	// CleanupInterval is the pause between expired-token sweeps. Default: 3h
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" validate:"omitempty,gt=0" yaml:"cleanup_interval"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.TTL == 0 {
		c.TTL = 24 * time.Hour
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = 3 * time.Hour
	}
}

// Service wraps a TokenStore with issuing and expiry rules.
type Service struct {
	store  store.TokenStore
	config Config
	now    func() time.Time
}

// NewService creates a token service.
func NewService(s store.TokenStore, config Config) *Service {
	config.ApplyDefaults()
	return &Service{store: s, config: config, now: time.Now}
}

// CleanupInterval returns the configured sweep interval.
func (s *Service) CleanupInterval() time.Duration {
	return s.config.CleanupInterval
}

// Issue creates a new token for ownerID valid for the configured TTL.
func (s *Service) Issue(ctx context.Context, ownerID int64) (*models.AccessToken, error) {
	t := &models.AccessToken{
		Token:     strings.ReplaceAll(uuid.NewString(), "-", ""),
		OwnerID:   ownerID,
		ExpiresAt: s.now().Add(s.config.TTL),
	}
	if err := s.store.CreateToken(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return t, nil
}

// Validate returns the token if it exists and has not expired.
func (s *Service) Validate(ctx context.Context, token string) (*models.AccessToken, error) {
	t, err := s.store.GetToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if t.Expired(s.now()) {
		return nil, models.ErrTokenExpired
	}
	return t, nil
}

// CleanupExpired removes every expired token and returns the count.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	removed, err := s.store.DeleteExpiredTokens(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	logger.InfoCtx(ctx, "Expired tokens removed", logger.Count(removed))
	return removed, nil
}
