//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/layer-3/vaultgate/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "vaultgate",
				"POSTGRES_PASSWORD": "vaultgate",
				"POSTGRES_DB":       "vaultgate",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://vaultgate:vaultgate@%s:%s/vaultgate?sslmode=disable", host, port.Port())
}

func TestIdentityStore(t *testing.T) {
	ctx := context.Background()
	dsn := startPostgres(t)

	require.NoError(t, Migrate(ctx, dsn, zap.NewNop()))
	// Running twice is a no-op
	require.NoError(t, Migrate(ctx, dsn, zap.NewNop()))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := NewIdentityStore(pool)
	addr := "0x00000000000000000000000000000000000000aa"

	_, err = store.FindByAddress(ctx, addr)
	require.ErrorIs(t, err, core.ErrNotFound)

	created, err := store.Create(ctx, &core.Identity{Address: addr, Nonce: 7, Role: core.DefaultRole, Status: core.DefaultStatus})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, uint64(7), created.Nonce)

	_, err = store.Create(ctx, &core.Identity{Address: addr, Nonce: 8, Role: core.DefaultRole, Status: core.DefaultStatus})
	require.ErrorIs(t, err, core.ErrConflict)

	updated, err := store.UpdateNonce(ctx, created.ID, 1<<52)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<52), updated.Nonce)

	found, err := store.FindByAddress(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, uint64(1<<52), found.Nonce)

	_, err = store.UpdateNonce(ctx, created.ID+100, 1)
	require.ErrorIs(t, err, core.ErrNotFound)
}
