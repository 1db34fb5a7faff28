package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/thunder/pkg/store/models"
)

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	s, err := New(&Config{
		Type:   DatabaseTypeSQLite,
		SQLite: SQLiteConfig{Path: filepath.Join(t.TempDir(), "thunder.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newBadgerStore(t *testing.T) Store {
	t.Helper()
	s, err := New(&Config{
		Type:   DatabaseTypeBadger,
		Badger: BadgerConfig{InMemory: true},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var backends = map[string]func(*testing.T) Store{
	"sqlite": newSQLiteStore,
	"badger": newBadgerStore,
}

func TestConfigDefaults(t *testing.T) {
	t.Run("default config uses sqlite", func(t *testing.T) {
		cfg := &Config{}
		cfg.ApplyDefaults()
		assert.Equal(t, DatabaseTypeSQLite, cfg.Type)
		assert.Equal(t, "thunder.db", filepath.Base(cfg.SQLite.Path))
	})

	t.Run("postgres defaults", func(t *testing.T) {
		cfg := &Config{Type: DatabaseTypePostgres}
		cfg.ApplyDefaults()
		assert.Equal(t, 5432, cfg.Postgres.Port)
		assert.Equal(t, "disable", cfg.Postgres.SSLMode)
		assert.Error(t, cfg.Validate(), "host is still missing")
	})

	t.Run("in-memory badger needs no path", func(t *testing.T) {
		cfg := &Config{Type: DatabaseTypeBadger, Badger: BadgerConfig{InMemory: true}}
		cfg.ApplyDefaults()
		assert.Empty(t, cfg.Badger.Path)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("invalid type", func(t *testing.T) {
		_, err := New(&Config{Type: "mongo"})
		assert.Error(t, err)
	})
}

func TestPostgresDSN(t *testing.T) {
	c := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "thunder", SSLMode: "require"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=thunder sslmode=require", c.DSN())
}

func TestRestartNotices(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			n, err := s.GetRestartNotice(ctx)
			require.NoError(t, err)
			assert.Nil(t, n, "absent notice is nil, nil")

			base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			require.NoError(t, s.SaveRestartNotice(ctx, &models.RestartNotice{ChatID: 10, MessageID: 100, CreatedAt: base}))
			require.NoError(t, s.SaveRestartNotice(ctx, &models.RestartNotice{ChatID: 11, MessageID: 200, CreatedAt: base.Add(time.Minute)}))

			n, err = s.GetRestartNotice(ctx)
			require.NoError(t, err)
			require.NotNil(t, n)
			assert.Equal(t, int64(200), n.MessageID)
			assert.Equal(t, int64(11), n.ChatID)

			require.NoError(t, s.DeleteRestartNotice(ctx, 200))
			n, err = s.GetRestartNotice(ctx)
			require.NoError(t, err)
			require.NotNil(t, n)
			assert.Equal(t, int64(100), n.MessageID)

			require.NoError(t, s.DeleteRestartNotice(ctx, 100))
			require.NoError(t, s.DeleteRestartNotice(ctx, 100), "deleting an absent notice succeeds")

			n, err = s.GetRestartNotice(ctx)
			require.NoError(t, err)
			assert.Nil(t, n)
		})
	}
}

func TestSaveRestartNoticeReplaces(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			require.NoError(t, s.SaveRestartNotice(ctx, &models.RestartNotice{ChatID: 1, MessageID: 5}))
			require.NoError(t, s.SaveRestartNotice(ctx, &models.RestartNotice{ChatID: 2, MessageID: 5}))

			n, err := s.GetRestartNotice(ctx)
			require.NoError(t, err)
			require.NotNil(t, n)
			assert.Equal(t, int64(2), n.ChatID)
		})
	}
}

func TestTokens(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			now := time.Now().UTC()

			live := &models.AccessToken{Token: "live", OwnerID: 1, ExpiresAt: now.Add(time.Hour)}
			stale := &models.AccessToken{Token: "stale", OwnerID: 1, ExpiresAt: now.Add(-time.Hour)}
			edge := &models.AccessToken{Token: "edge", OwnerID: 2, ExpiresAt: now}
			for _, tok := range []*models.AccessToken{live, stale, edge} {
				require.NoError(t, s.CreateToken(ctx, tok))
			}

			err := s.CreateToken(ctx, &models.AccessToken{Token: "live", OwnerID: 9, ExpiresAt: now})
			assert.ErrorIs(t, err, models.ErrDuplicateToken)

			got, err := s.GetToken(ctx, "live")
			require.NoError(t, err)
			assert.Equal(t, int64(1), got.OwnerID)

			_, err = s.GetToken(ctx, "missing")
			assert.ErrorIs(t, err, models.ErrTokenNotFound)

			removed, err := s.DeleteExpiredTokens(ctx, now)
			require.NoError(t, err)
			assert.Equal(t, int64(2), removed)

			_, err = s.GetToken(ctx, "stale")
			assert.ErrorIs(t, err, models.ErrTokenNotFound)
			_, err = s.GetToken(ctx, "live")
			assert.NoError(t, err)

			removed, err = s.DeleteExpiredTokens(ctx, now)
			require.NoError(t, err)
			assert.Zero(t, removed)
		})
	}
}

func TestHealthcheck(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			assert.NoError(t, s.Healthcheck(context.Background()))

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			if name == "badger" {
				assert.ErrorIs(t, s.Healthcheck(ctx), context.Canceled)
			}
		})
	}
}

func TestInMemorySQLite(t *testing.T) {
	s, err := NewGORMStore(&Config{Type: DatabaseTypeSQLite, SQLite: SQLiteConfig{Path: ":memory:"}})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.SaveRestartNotice(ctx, &models.RestartNotice{ChatID: 1, MessageID: 2}))
	n, err := s.GetRestartNotice(ctx)
	require.NoError(t, err)
	require.NotNil(t, n)
}
