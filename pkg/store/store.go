// Package store persists the restart notice and access tokens. SQLite and
// PostgreSQL are served through GORM; BadgerDB is available as an embedded
// key-value alternative.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/thunder/pkg/store/models"
)

// RestartNoticeStore persists the notice left by an operator restart.
type RestartNoticeStore interface {
	// GetRestartNotice returns the most recent notice, or nil, nil when none
	// is stored.
	GetRestartNotice(ctx context.Context) (*models.RestartNotice, error)

	// SaveRestartNotice stores n, replacing any notice with the same message id.
	SaveRestartNotice(ctx context.Context, n *models.RestartNotice) error

	// DeleteRestartNotice removes the notice for messageID. Deleting an
	// absent notice is not an error.
	DeleteRestartNotice(ctx context.Context, messageID int64) error
}

// TokenStore persists access tokens.
type TokenStore interface {
	CreateToken(ctx context.Context, t *models.AccessToken) error

	// GetToken returns models.ErrTokenNotFound when the token is unknown.
	GetToken(ctx context.Context, token string) (*models.AccessToken, error)

	// DeleteExpiredTokens removes every token whose expiry is at or before
	// now and returns how many were removed.
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// Store is the full persistence surface used by the orchestrator.
type Store interface {
	RestartNoticeStore
	TokenStore

	Healthcheck(ctx context.Context) error
	Close() error
}

// New opens the backend selected by cfg.Type.
func New(cfg *Config) (Store, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	switch cfg.Type {
	case DatabaseTypeBadger:
		return NewBadgerStore(&cfg.Badger)
	default:
		return NewGORMStore(cfg)
	}
}
