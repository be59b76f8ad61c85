package state

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackpulse/stackpulse/internal/interfaces"
)

func TestDynamoDBStore_Interface(t *testing.T) {
	t.Parallel()
	var _ interfaces.DeploymentStore = (*DynamoDBStore)(nil)
	var _ interfaces.Archiver = (*S3Archive)(nil)
}

func TestMarshalDeployment_RoundTrip(t *testing.T) {
	t.Parallel()

	build := int64(4200)
	d := newDeployment("dep-7", "owner-7", interfaces.DeploymentStatusBuilding)
	d.Services.Frontend.BuildTimeMillis = &build
	d.Logs = []interfaces.LogEntry{{Level: interfaces.LogLevelInfo, Message: "created", Timestamp: d.CreatedAt}}

	item, err := marshalDeployment(d)
	require.NoError(t, err)

	pk, ok := item["PK"].(*types.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "dep-7", pk.Value)
	status, ok := item["Status"].(*types.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "building", status.Value)

	got, err := unmarshalDeployment(item)
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, d.Status, got.Status)
	require.NotNil(t, got.Services.Frontend.BuildTimeMillis)
	assert.Equal(t, build, *got.Services.Frontend.BuildTimeMillis)
	assert.True(t, d.CreatedAt.Equal(got.CreatedAt))
	assert.Len(t, got.Logs, 1)
}

func TestMarshalDeployment_OmitsEmptyOwner(t *testing.T) {
	t.Parallel()

	d := newDeployment("dep-8", "", interfaces.DeploymentStatusPending)
	item, err := marshalDeployment(d)
	require.NoError(t, err)
	_, hasOwner := item["OwnerID"]
	assert.False(t, hasOwner)

	_, err = marshalDeployment(&interfaces.Deployment{})
	assert.Error(t, err)
}

func TestUnmarshalDeployment_MissingBody(t *testing.T) {
	t.Parallel()

	_, err := unmarshalDeployment(map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "x"},
	})
	assert.Error(t, err)
}

func TestBuildScanFilter(t *testing.T) {
	t.Parallel()

	expr, names, values := buildScanFilter(interfaces.DeploymentFilter{})
	assert.Empty(t, expr)
	assert.Nil(t, names)
	assert.Nil(t, values)

	expr, names, values = buildScanFilter(interfaces.DeploymentFilter{
		OwnerID:    "alice",
		Status:     interfaces.DeploymentStatusDeployed,
		ActiveOnly: true,
	})
	assert.Equal(t, "#owner = :owner AND #status = :status AND #active = :active", expr)
	assert.Equal(t, "Status", names["#status"])
	assert.Len(t, values, 3)
}

func TestS3Archive_ObjectKey(t *testing.T) {
	t.Parallel()

	a := &S3Archive{config: S3ArchiveConfig{Prefix: "/archive/"}}
	assert.Equal(t, "archive/deployments/dep-1/", a.archivePrefix("dep-1"))

	bare := &S3Archive{}
	assert.Equal(t, "deployments/dep-1/", bare.archivePrefix("dep-1"))
}

func TestIsLocalEndpoint(t *testing.T) {
	t.Parallel()

	assert.True(t, isLocalEndpoint("http://localhost:4566"))
	assert.True(t, isLocalEndpoint("http://localstack:4566"))
	assert.False(t, isLocalEndpoint("https://dynamodb.eu-west-1.amazonaws.com"))
}
