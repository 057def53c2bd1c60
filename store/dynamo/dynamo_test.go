package dynamo

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holvi-cloud/holvi/types"
)

// fakeClient returns canned responses per call.
type fakeClient struct {
	putErr    error
	updateErr error
	getOut    *dynamodb.GetItemOutput
	queryOut  *dynamodb.QueryOutput
	scanOut   *dynamodb.ScanOutput

	lastPut    *dynamodb.PutItemInput
	lastUpdate *dynamodb.UpdateItemInput
	lastQuery  *dynamodb.QueryInput
}

func (f *fakeClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPut = params
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.getOut != nil {
		return f.getOut, nil
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (f *fakeClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.lastQuery = params
	if f.queryOut != nil {
		return f.queryOut, nil
	}
	return &dynamodb.QueryOutput{}, nil
}

func (f *fakeClient) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if f.scanOut != nil {
		return f.scanOut, nil
	}
	return &dynamodb.ScanOutput{}, nil
}

func (f *fakeClient) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.lastUpdate = params
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func testRecord() *types.Record {
	now := time.Now().UTC().Truncate(time.Second)
	return &types.Record{
		OwnerKey:       "u-1#analytics",
		BucketName:     "dev-analytics-abcd1234",
		IdentityID:     "u-1",
		IdentityMail:   "owner@example.com",
		DisplayName:    "analytics",
		CreatedAt:      now,
		LastCheckedAt:  now,
		Status:         types.StatusActive,
		EnvironmentTag: "dev",
		Versioning:     true,
		PolicyMode:     types.PolicyAutoArchive,
	}
}

func TestCreate_ConditionalWrite(t *testing.T) {
	client := &fakeClient{}
	s := New(client, "holvi-records")

	require.NoError(t, s.Create(context.Background(), testRecord()))

	// The uniqueness condition must ride along with the write.
	require.NotNil(t, client.lastPut)
	assert.Equal(t, "holvi-records", *client.lastPut.TableName)
	require.NotNil(t, client.lastPut.ConditionExpression)
	assert.Contains(t, *client.lastPut.ConditionExpression, "attribute_not_exists")

	// The item is marshaled under the wire attribute names.
	assert.Contains(t, client.lastPut.Item, "owner_key")
	assert.Contains(t, client.lastPut.Item, "identity_email")
	assert.Contains(t, client.lastPut.Item, "versioning_enabled")
}

func TestCreate_ConflictMapping(t *testing.T) {
	client := &fakeClient{putErr: &ddbtypes.ConditionalCheckFailedException{}}
	s := New(client, "holvi-records")

	err := s.Create(context.Background(), testRecord())
	var conflict *types.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "u-1#analytics", conflict.Key)
}

func TestGet_NotFound(t *testing.T) {
	s := New(&fakeClient{}, "holvi-records")

	_, err := s.Get(context.Background(), "u-1#missing")
	var notFound *types.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "u-1#missing", notFound.Key)
}

func TestGet_RoundTrip(t *testing.T) {
	record := testRecord()
	item, err := attributevalue.MarshalMap(record)
	require.NoError(t, err)

	s := New(&fakeClient{getOut: &dynamodb.GetItemOutput{Item: item}}, "holvi-records")

	got, err := s.Get(context.Background(), record.OwnerKey)
	require.NoError(t, err)
	assert.Equal(t, record.BucketName, got.BucketName)
	assert.Equal(t, record.IdentityMail, got.IdentityMail)
	assert.Equal(t, record.PolicyMode, got.PolicyMode)
	assert.True(t, got.CreatedAt.Equal(record.CreatedAt))
	assert.True(t, got.Versioning)
}

func TestListByOwner_QueriesIdentityIndex(t *testing.T) {
	record := testRecord()
	item, err := attributevalue.MarshalMap(record)
	require.NoError(t, err)

	client := &fakeClient{queryOut: &dynamodb.QueryOutput{Items: []map[string]ddbtypes.AttributeValue{item}}}
	s := New(client, "holvi-records")

	records, err := s.ListByOwner(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "analytics", records[0].DisplayName)

	require.NotNil(t, client.lastQuery)
	assert.Equal(t, identityIndex, *client.lastQuery.IndexName)
}

func TestMarkDeleted_MissingRecordMapping(t *testing.T) {
	client := &fakeClient{updateErr: &ddbtypes.ConditionalCheckFailedException{}}
	s := New(client, "holvi-records")

	err := s.MarkDeleted(context.Background(), "u-1#missing",
		types.Identity{ID: "op-1", Email: "ops@example.com"}, time.Now(), true)

	var notFound *types.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestMarkHealed_RepairBumpsHealCount(t *testing.T) {
	client := &fakeClient{}
	s := New(client, "holvi-records")

	require.NoError(t, s.MarkHealed(context.Background(), "u-1#analytics", time.Now(), true))

	require.NotNil(t, client.lastUpdate)
	update := *client.lastUpdate.UpdateExpression
	assert.Contains(t, update, "if_not_exists")
	assert.Contains(t, update, "REMOVE")

	// Without a repair, heal bookkeeping is untouched.
	require.NoError(t, s.MarkHealed(context.Background(), "u-1#analytics", time.Now(), false))
	assert.NotContains(t, *client.lastUpdate.UpdateExpression, "if_not_exists")
}
