package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/stackpulse/stackpulse/internal/interfaces"
)

// S3ArchiveConfig holds configuration for the deleted-deployment archive
type S3ArchiveConfig struct {
	Bucket   string `json:"bucket"`
	Prefix   string `json:"prefix,omitempty"`
	Region   string `json:"region"`
	Endpoint string `json:"endpoint,omitempty"`
}

// S3Archive writes a JSON snapshot of each deleted deployment to S3
type S3Archive struct {
	config S3ArchiveConfig
	client *s3.Client
	now    func() time.Time
}

// NewS3Archive creates the archive and makes sure the bucket exists
func NewS3Archive(ctx context.Context, cfg S3ArchiveConfig) (*S3Archive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("S3 region is required")
	}

	awsCfg, err := loadAWSConfigForEndpoint(ctx, cfg.Region, cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	a := &S3Archive{
		config: cfg,
		client: newS3Client(awsCfg, cfg.Endpoint),
		now:    time.Now,
	}
	if err := a.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// ensureBucket ensures the S3 bucket exists
func (a *S3Archive) ensureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(a.config.Bucket),
	})
	if err == nil {
		return nil
	}

	var noBucket *s3types.NoSuchBucket
	var notFound *s3types.NotFound
	if !errors.As(err, &noBucket) && !errors.As(err, &notFound) {
		return fmt.Errorf("failed to access S3 bucket: %w", err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(a.config.Bucket)}
	// us-east-1 and LocalStack reject an explicit location constraint
	if a.config.Region != "us-east-1" && !isLocalEndpoint(a.config.Endpoint) {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(a.config.Region),
		}
	}
	if _, err := a.client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("failed to create S3 bucket: %w", err)
	}
	return nil
}

// archivePrefix returns prefix/deployments/<id>/
func (a *S3Archive) archivePrefix(id interfaces.DeploymentID) string {
	key := fmt.Sprintf("deployments/%s/", id)
	if prefix := strings.Trim(a.config.Prefix, "/"); prefix != "" {
		return prefix + "/" + key
	}
	return key
}

func (a *S3Archive) objectKey(id interfaces.DeploymentID, at time.Time) string {
	return fmt.Sprintf("%s%d.json", a.archivePrefix(id), at.UnixNano())
}

// Archive stores a snapshot of the deployment
func (a *S3Archive) Archive(ctx context.Context, d *interfaces.Deployment) error {
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode deployment %s: %w", d.ID, err)
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.config.Bucket),
		Key:         aws.String(a.objectKey(d.ID, a.now())),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive deployment %s: %w", d.ID, err)
	}
	return nil
}

// Load returns archived snapshots of a deployment, oldest first
func (a *S3Archive) Load(ctx context.Context, id interfaces.DeploymentID) ([]*interfaces.Deployment, error) {
	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.config.Bucket),
		Prefix: aws.String(a.archivePrefix(id)),
	})

	var snapshots []*interfaces.Deployment
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list archive for %s: %w", id, err)
		}
		for _, obj := range page.Contents {
			out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(a.config.Bucket),
				Key:    obj.Key,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to read archive object: %w", err)
			}
			var d interfaces.Deployment
			err = json.NewDecoder(out.Body).Decode(&d)
			_ = out.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("failed to decode archive object: %w", err)
			}
			snapshots = append(snapshots, &d)
		}
	}
	return snapshots, nil
}

// Ping checks bucket connectivity
func (a *S3Archive) Ping(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(a.config.Bucket),
	})
	if err != nil {
		return fmt.Errorf("S3 connectivity failed: %w", err)
	}
	return nil
}
