//go:build integration

package store

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedis_Gateway(t *testing.T) {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	gw, err := DialRedis(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })

	exerciseGateway(t, gw)

	// Values are stored under the namespaced key.
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	raw := redis.NewClient(opts)
	defer raw.Close()
	n, err := raw.Exists(ctx, "docintake:sessions:s-1").Result()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestPostgres_Gateway(t *testing.T) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("intake"),
		tcpostgres.WithUsername("intake"),
		tcpostgres.WithPassword("intake"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	gw, err := DialPostgres(ctx, dsn, 10*time.Second, slog.Default())
	require.NoError(t, err)
	t.Cleanup(gw.Close)

	require.NoError(t, gw.EnsureSchema(ctx))
	require.NoError(t, gw.EnsureSchema(ctx), "schema creation is idempotent")

	exerciseGateway(t, gw)
}
