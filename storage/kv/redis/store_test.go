//go:build integration

package rediskv_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/trezcool/elimu/storage/kv/redis"
	"github.com/trezcool/elimu/tests"
)

func startRedis(ctx context.Context, t *testing.T) string {
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp"),
	}
	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, redisC.Terminate(ctx)) })

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: startRedis(ctx, t)})
	defer func() { _ = rdb.Close() }()

	store := rediskv.NewStore(rdb, "test")
	require.NoError(t, store.Ping(ctx))
	testutil.TestKVStore(t, store)

	// entries are namespaced
	require.NoError(t, store.Set(ctx, "token", "abc"))
	v, err := rdb.Get(ctx, "test:token").Result()
	require.NoError(t, err)
	require.Equal(t, "abc", v)
}
