// Package testutil provides container backed fixtures for StackPulse integration tests
package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func init() {
	// Set globally so tests can still call t.Parallel()
	_ = os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
}

// RedisContainer holds the test Redis container and connection details
type RedisContainer struct {
	Container testcontainers.Container
	URL       string
}

// SetupRedis starts a dedicated Redis container for the test. Tests calling
// it are skipped in -short mode.
func SetupRedis(t *testing.T) *RedisContainer {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Redis container test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(15 * time.Second),
			Cmd: []string{"redis-server", "--loglevel", "notice", "--maxmemory", "100mb"},
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	t.Cleanup(func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cleanupCancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get Redis host: %v", err)
	}
	// Force IPv4 to avoid IPv6 issues in CI environments
	if host == "localhost" || host == "::1" {
		host = "127.0.0.1"
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get Redis port: %v", err)
	}

	return &RedisContainer{
		Container: container,
		URL:       fmt.Sprintf("redis://%s:%s", host, port.Port()),
	}
}
