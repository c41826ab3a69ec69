package statusstore_test

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/redis"

	goredis "github.com/go-redis/redis/v8"

	"github.com/Zeebrow/ec2-price-tracker/internal/statusstore"
)

func TestPostgresStoreIntegration(t *testing.T) {
	ctx := context.Background()

	pgc, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("ec2"),
		postgres.WithUsername("ec2"),
		postgres.WithPassword("ec2"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgc.Terminate(ctx) })

	dsn, err := pgc.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE system_status (id INTEGER PRIMARY KEY, status TEXT NOT NULL)`)
	require.NoError(t, err)
	db.Close()

	store, err := statusstore.NewPostgresStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Write(ctx, statusstore.Starting))
	got, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, statusstore.Starting, got)
}

func TestRedisStoreIntegration(t *testing.T) {
	ctx := context.Background()

	rc, err := redis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Terminate(ctx) })

	connStr, err := rc.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := goredis.ParseURL(connStr)
	require.NoError(t, err)

	client := goredis.NewClient(opts)
	defer client.Close()

	store := statusstore.NewRedisStore(client)
	require.NoError(t, store.Write(ctx, statusstore.Running))
	got, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, statusstore.Running, got)
}
