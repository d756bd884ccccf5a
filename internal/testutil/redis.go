// Package testutil starts throwaway backing services for integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
)

// StartRedis returns the address of a Redis server for tests. REDIS_TEST_ADDR
// points at an existing server; otherwise a container is started through the
// local Docker daemon and stop removes it.
func StartRedis() (addr string, stop func(), err error) {
	if addr := os.Getenv("REDIS_TEST_ADDR"); addr != "" {
		return addr, func() {}, nil
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		return "", nil, fmt.Errorf("connect to docker: %w", err)
	}
	if err := pool.Client.Ping(); err != nil {
		return "", nil, fmt.Errorf("ping docker: %w", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "redis",
		Tag:        "7-alpine",
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return "", nil, fmt.Errorf("start redis container: %w", err)
	}
	_ = resource.Expire(300)

	addr = resource.GetHostPort("6379/tcp")
	pool.MaxWait = 30 * time.Second
	if err := pool.Retry(func() error {
		client := redis.NewClient(&redis.Options{Addr: addr})
		defer client.Close()
		return client.Ping(context.Background()).Err()
	}); err != nil {
		_ = pool.Purge(resource)
		return "", nil, fmt.Errorf("wait for redis: %w", err)
	}

	return addr, func() { _ = pool.Purge(resource) }, nil
}

// RedisClient connects to addr with an empty database. The test is skipped
// when addr is empty.
func RedisClient(t testing.TB, addr string) *redis.Client {
	t.Helper()
	if addr == "" {
		t.Skip("redis not available")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("flush redis: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}
