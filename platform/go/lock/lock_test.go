package lock

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func exerciseLocker(t *testing.T, locker Locker) {
	t.Helper()
	ctx := context.Background()

	lease, ok, err := locker.TryAcquire(ctx, "request-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "request-1", lease.Key())

	_, ok, err = locker.TryAcquire(ctx, "request-1", time.Minute)
	require.NoError(t, err)
	require.False(t, ok, "second acquire must not succeed while held")

	other, ok, err := locker.TryAcquire(ctx, "request-2", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Renew(ctx))
	require.NoError(t, lease.Release(ctx))
	require.ErrorIs(t, lease.Release(ctx), ErrNotHeld)

	again, ok, err := locker.TryAcquire(ctx, "request-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, again.Release(ctx))
}

func TestMemoryLocker(t *testing.T) {
	t.Parallel()
	exerciseLocker(t, NewMemoryLocker())
}

func TestMemoryLockerExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	locker := NewMemoryLocker()
	locker.clock = func() time.Time { return now }

	stale, ok, err := locker.TryAcquire(context.Background(), "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok, err = locker.TryAcquire(context.Background(), "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok, "expired lease must be reclaimable")

	require.ErrorIs(t, stale.Renew(context.Background()), ErrNotHeld)
	require.ErrorIs(t, stale.Release(context.Background()), ErrNotHeld)
}

func TestRedisLockerIntegration(t *testing.T) {
	t.Parallel()

	if testing.Short() {
		t.Skip("skipping redis locker integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })

	exerciseLocker(t, NewRedisLocker(client, "test:lease:"))
}
