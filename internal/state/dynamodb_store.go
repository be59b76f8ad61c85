package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/stackpulse/stackpulse/internal/interfaces"
	"github.com/stackpulse/stackpulse/pkg/logging"
)

// DynamoDBStoreConfig holds configuration for the DynamoDB deployment store
type DynamoDBStoreConfig struct {
	Table    string `json:"table"`
	Region   string `json:"region"`
	Endpoint string `json:"endpoint,omitempty"` // For LocalStack or custom endpoints
}

// DynamoDBStore persists deployments as one item per deployment. Filterable
// attributes are stored alongside the JSON encoded aggregate.
type DynamoDBStore struct {
	config DynamoDBStoreConfig
	client *dynamodb.Client
}

// NewDynamoDBStore creates the store and makes sure the table exists
func NewDynamoDBStore(ctx context.Context, cfg DynamoDBStoreConfig) (*DynamoDBStore, error) {
	if cfg.Table == "" {
		return nil, fmt.Errorf("DynamoDB table name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("DynamoDB region is required")
	}

	awsCfg, err := loadAWSConfigForEndpoint(ctx, cfg.Region, cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	store := &DynamoDBStore{
		config: cfg,
		client: newDynamoDBClient(awsCfg, cfg.Endpoint),
	}
	if err := store.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize DynamoDB store: %w", err)
	}
	return store, nil
}

// ensureTable creates the deployments table if it is missing
func (s *DynamoDBStore) ensureTable(ctx context.Context) error {
	describe := &dynamodb.DescribeTableInput{TableName: aws.String(s.config.Table)}

	resp, err := s.client.DescribeTable(ctx, describe)
	if err == nil {
		if resp.Table.TableStatus == types.TableStatusActive {
			return nil
		}
		return dynamodb.NewTableExistsWaiter(s.client).Wait(ctx, describe, 5*time.Minute)
	}

	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to describe table: %w", err)
	}

	_, err = s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.config.Table),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("PK"), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			return fmt.Errorf("failed to create DynamoDB table: %w", err)
		}
	}

	logging.State.Info("Waiting for DynamoDB table %s", s.config.Table)
	if err := dynamodb.NewTableExistsWaiter(s.client).Wait(ctx, describe, 5*time.Minute); err != nil {
		return fmt.Errorf("failed to wait for table to be active: %w", err)
	}
	return nil
}

// Put writes the deployment, replacing any previous version
func (s *DynamoDBStore) Put(ctx context.Context, d *interfaces.Deployment) error {
	item, err := marshalDeployment(d)
	if err != nil {
		return err
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.config.Table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put deployment %s: %w", d.ID, err)
	}
	return nil
}

// Get reads one deployment
func (s *DynamoDBStore) Get(ctx context.Context, id interfaces.DeploymentID) (*interfaces.Deployment, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.config.Table),
		Key:            deploymentKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get deployment %s: %w", id, err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("deployment %s: %w", id, interfaces.ErrNotFound)
	}
	return unmarshalDeployment(result.Item)
}

// List scans the table, pushing the filter down as a filter expression
func (s *DynamoDBStore) List(ctx context.Context, filter interfaces.DeploymentFilter) ([]*interfaces.Deployment, error) {
	input := &dynamodb.ScanInput{
		TableName:      aws.String(s.config.Table),
		ConsistentRead: aws.Bool(true),
	}
	if expr, names, values := buildScanFilter(filter); expr != "" {
		input.FilterExpression = aws.String(expr)
		input.ExpressionAttributeNames = names
		input.ExpressionAttributeValues = values
	}

	var deployments []*interfaces.Deployment
	for {
		result, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deployments from DynamoDB: %w", err)
		}
		for _, item := range result.Items {
			d, err := unmarshalDeployment(item)
			if err != nil {
				logging.State.Warn("Skipping unreadable deployment item: %v", err)
				continue
			}
			if filter.Matches(d) {
				deployments = append(deployments, d)
			}
		}
		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return deployments, nil
}

// Delete removes the deployment item
func (s *DynamoDBStore) Delete(ctx context.Context, id interfaces.DeploymentID) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.config.Table),
		Key:                 deploymentKey(id),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return fmt.Errorf("deployment %s: %w", id, interfaces.ErrNotFound)
		}
		return fmt.Errorf("failed to delete deployment %s: %w", id, err)
	}
	return nil
}

// Ping checks table connectivity
func (s *DynamoDBStore) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.config.Table),
	})
	if err != nil {
		return fmt.Errorf("DynamoDB connectivity failed: %w", err)
	}
	return nil
}

func deploymentKey(id interfaces.DeploymentID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: string(id)},
	}
}

// marshalDeployment converts a deployment to a DynamoDB item
func marshalDeployment(d *interfaces.Deployment) (map[string]types.AttributeValue, error) {
	if d == nil || d.ID == "" {
		return nil, fmt.Errorf("deployment id cannot be empty")
	}
	body, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode deployment %s: %w", d.ID, err)
	}

	item := map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: string(d.ID)},
		"Status":    &types.AttributeValueMemberS{Value: string(d.Status)},
		"IsActive":  &types.AttributeValueMemberBOOL{Value: d.IsActive},
		"CreatedAt": &types.AttributeValueMemberS{Value: d.CreatedAt.UTC().Format(time.RFC3339Nano)},
		"UpdatedAt": &types.AttributeValueMemberS{Value: d.UpdatedAt.UTC().Format(time.RFC3339Nano)},
		"Body":      &types.AttributeValueMemberS{Value: string(body)},
	}
	if d.OwnerID != "" {
		item["OwnerID"] = &types.AttributeValueMemberS{Value: d.OwnerID}
	}
	if d.Environment != "" {
		item["Environment"] = &types.AttributeValueMemberS{Value: string(d.Environment)}
	}
	return item, nil
}

// unmarshalDeployment converts a DynamoDB item back into a deployment
func unmarshalDeployment(item map[string]types.AttributeValue) (*interfaces.Deployment, error) {
	v, ok := item["Body"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("item has no deployment body")
	}
	var d interfaces.Deployment
	if err := json.Unmarshal([]byte(v.Value), &d); err != nil {
		return nil, fmt.Errorf("failed to decode deployment: %w", err)
	}
	return &d, nil
}

// buildScanFilter translates a filter into a DynamoDB filter expression
func buildScanFilter(f interfaces.DeploymentFilter) (string, map[string]string, map[string]types.AttributeValue) {
	var clauses []string
	names := map[string]string{}
	values := map[string]types.AttributeValue{}

	if f.OwnerID != "" {
		clauses = append(clauses, "#owner = :owner")
		names["#owner"] = "OwnerID"
		values[":owner"] = &types.AttributeValueMemberS{Value: f.OwnerID}
	}
	if f.Status != "" {
		clauses = append(clauses, "#status = :status")
		names["#status"] = "Status"
		values[":status"] = &types.AttributeValueMemberS{Value: string(f.Status)}
	}
	if f.Environment != "" {
		clauses = append(clauses, "#env = :env")
		names["#env"] = "Environment"
		values[":env"] = &types.AttributeValueMemberS{Value: string(f.Environment)}
	}
	if f.ActiveOnly {
		clauses = append(clauses, "#active = :active")
		names["#active"] = "IsActive"
		values[":active"] = &types.AttributeValueMemberBOOL{Value: true}
	}
	if len(clauses) == 0 {
		return "", nil, nil
	}
	return strings.Join(clauses, " AND "), names, values
}
