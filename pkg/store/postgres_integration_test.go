//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/marmos91/thunder/pkg/store/models"
)

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("thunder"),
		postgres.WithUsername("thunder"),
		postgres.WithPassword("thunder"),
		testcontainers.WithWaitStrategyAndDeadline(2*time.Minute,
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	s, err := New(&Config{
		Type: DatabaseTypePostgres,
		Postgres: PostgresConfig{
			Host:     host,
			Port:     port.Int(),
			Database: "thunder",
			User:     "thunder",
			Password: "thunder",
		},
	})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Healthcheck(ctx))

	require.NoError(t, s.SaveRestartNotice(ctx, &models.RestartNotice{ChatID: 7, MessageID: 70}))
	n, err := s.GetRestartNotice(ctx)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, int64(70), n.MessageID)
	require.NoError(t, s.DeleteRestartNotice(ctx, 70))
	require.NoError(t, s.DeleteRestartNotice(ctx, 70))

	now := time.Now()
	require.NoError(t, s.CreateToken(ctx, &models.AccessToken{Token: "a", OwnerID: 1, ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, s.CreateToken(ctx, &models.AccessToken{Token: "b", OwnerID: 1, ExpiresAt: now.Add(time.Hour)}))
	removed, err := s.DeleteExpiredTokens(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}
