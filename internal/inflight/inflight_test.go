//+build integration

package inflight

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	ctx    = context.Background()
	client redis.UniversalClient
)

func TestMain(m *testing.M) {
	shutdown := setup()

	code := m.Run()
	shutdown()
	os.Exit(code)
}

func setup() func() {
	req := testcontainers.ContainerRequest{
		Image:        "redis:6",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		logrus.WithError(err).Fatalf("failed to create container")
	}

	host, err := c.Host(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("failed to get host")
	}

	port, err := c.MappedPort(ctx, "6379")
	if err != nil {
		logrus.WithError(err).Fatal("failed to map port")
	}

	client = redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{fmt.Sprintf("%s:%d", host, port.Int())},
	})

	if err := client.Ping(ctx).Err(); err != nil {
		logrus.WithError(err).Fatal("failed to ping redis")
	}

	return func() {
		_ = client.Close()
		_ = c.Terminate(ctx)
	}
}

func TestRedisGuard(t *testing.T) {
	g := NewRedisGuard(client)

	ok, err := g.Acquire(ctx, "comment:user:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Acquire(ctx, "comment:user:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = g.Acquire(ctx, "comment:user:2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, g.Release(ctx, "comment:user:1"))

	ok, err = g.Acquire(ctx, "comment:user:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisGuard_TTL(t *testing.T) {
	g := NewRedisGuard(client)

	ok, err := g.Acquire(ctx, "ttl", 100*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(300 * time.Millisecond)

	ok, err = g.Acquire(ctx, "ttl", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
