package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"
)

// LocalStackContainer holds the test LocalStack container and connection details
type LocalStackContainer struct {
	Container testcontainers.Container
	Endpoint  string
}

// SetupLocalStack starts LocalStack with DynamoDB and S3. Tests calling it
// are skipped in -short mode.
func SetupLocalStack(t *testing.T) *LocalStackContainer {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping LocalStack container test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := localstack.Run(ctx,
		"localstack/localstack:3.8.1",
		testcontainers.WithEnv(map[string]string{
			"SERVICES": "s3,dynamodb",
			"DEBUG":    "0",
		}),
	)
	if err != nil {
		t.Fatalf("Failed to start LocalStack container: %v", err)
	}

	t.Cleanup(func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cleanupCancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("Failed to terminate LocalStack container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "4566/tcp")
	if err != nil {
		t.Fatalf("Failed to get LocalStack port: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get LocalStack host: %v", err)
	}

	return &LocalStackContainer{
		Container: container,
		Endpoint:  fmt.Sprintf("http://%s:%s", host, mappedPort.Port()),
	}
}
