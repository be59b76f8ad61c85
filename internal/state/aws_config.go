package state

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// isLocalEndpoint reports whether the endpoint points at LocalStack or localhost
func isLocalEndpoint(endpoint string) bool {
	lower := strings.ToLower(endpoint)
	return strings.Contains(lower, "localstack") ||
		strings.Contains(lower, "localhost") ||
		strings.Contains(lower, "127.0.0.1")
}

// useStaticTestCredentials detects LocalStack or test environments
func useStaticTestCredentials(endpoint string) bool {
	if endpoint != "" && isLocalEndpoint(endpoint) {
		return true
	}
	return os.Getenv("STACKPULSE_USE_LOCALSTACK") == "true" || os.Getenv("LOCALSTACK_ENDPOINT") != ""
}

// loadAWSConfigForEndpoint loads AWS configuration for a given region and endpoint
func loadAWSConfigForEndpoint(ctx context.Context, region, endpoint string) (aws.Config, error) {
	configOptions := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	if useStaticTestCredentials(endpoint) {
		configOptions = append(configOptions,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
		)
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

// newDynamoDBClient creates a DynamoDB client with optional custom endpoint
func newDynamoDBClient(awsCfg aws.Config, endpoint string) *dynamodb.Client {
	if endpoint == "" {
		return dynamodb.NewFromConfig(awsCfg)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
}

// newS3Client creates an S3 client with optional custom endpoint
func newS3Client(awsCfg aws.Config, endpoint string) *s3.Client {
	if endpoint == "" {
		return s3.NewFromConfig(awsCfg)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true // Required for LocalStack
	})
}
