package tokens

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/thunder/pkg/store"
	"github.com/marmos91/thunder/pkg/store/models"
)

func newService(t *testing.T) (*Service, *time.Time) {
	t.Helper()
	s, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: filepath.Join(t.TempDir(), "tokens.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(s, Config{TTL: time.Hour})
	svc.now = func() time.Time { return now }
	return svc, &now
}

func TestDefaults(t *testing.T) {
	var c Config
	c.ApplyDefaults()
	assert.Equal(t, 24*time.Hour, c.TTL)
	assert.Equal(t, 3*time.Hour, c.CleanupInterval)
}

func TestIssueAndValidate(t *testing.T) {
	svc, now := newService(t)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, 77)
	require.NoError(t, err)
	assert.Len(t, tok.Token, 32)
	assert.Equal(t, now.Add(time.Hour), tok.ExpiresAt)

	got, err := svc.Validate(ctx, tok.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(77), got.OwnerID)

	*now = now.Add(2 * time.Hour)
	_, err = svc.Validate(ctx, tok.Token)
	assert.ErrorIs(t, err, models.ErrTokenExpired)

	_, err = svc.Validate(ctx, "nope")
	assert.ErrorIs(t, err, models.ErrTokenNotFound)
}

func TestCleanupExpired(t *testing.T) {
	svc, now := newService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Issue(ctx, int64(i))
		require.NoError(t, err)
	}

	removed, err := svc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)

	*now = now.Add(time.Hour)
	removed, err = svc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)
}

type failingStore struct{ store.TokenStore }

func (failingStore) DeleteExpiredTokens(context.Context, time.Time) (int64, error) {
	return 0, errors.New("database is locked")
}

func TestCleanupExpiredWrapsStoreError(t *testing.T) {
	svc := NewService(failingStore{}, Config{})
	_, err := svc.CleanupExpired(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
}
