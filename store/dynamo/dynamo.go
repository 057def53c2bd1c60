// Package dynamo is the production record store backed by DynamoDB.
//
// Table layout: partition key owner_key, a global secondary index on
// identity_id (identity-index) for owner-scoped listing, and one on
// bucket_name (bucket-index) for reverse lookup.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/holvi-cloud/holvi/types"
)

// Index names on the records table.
const (
	identityIndex = "identity-index"
	bucketIndex   = "bucket-index"
)

// Client is the subset of the DynamoDB API the store uses.
type Client interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Store implements store.Store on a DynamoDB table.
type Store struct {
	client Client
	table  string
}

// New creates a store for the given table.
func New(client Client, table string) *Store {
	return &Store{client: client, table: table}
}

// Close is a no-op; the DynamoDB client owns no local resources.
func (s *Store) Close() error { return nil }

// Create persists a new record. The conditional expression on the partition
// key is the uniqueness boundary: two concurrent creates for the same owner
// key cannot both succeed.
func (s *Store) Create(ctx context.Context, record *types.Record) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return &types.PersistenceError{Op: "create", Err: err}
	}

	cond, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("owner_key"))).
		Build()
	if err != nil {
		return &types.PersistenceError{Op: "create", Err: err}
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(s.table),
		Item:                      item,
		ConditionExpression:       cond.Condition(),
		ExpressionAttributeNames:  cond.Names(),
		ExpressionAttributeValues: cond.Values(),
	})
	if err != nil {
		var ccf *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return &types.ConflictError{Key: record.OwnerKey}
		}
		return &types.PersistenceError{Op: "create", Err: err}
	}
	return nil
}

// Get returns the record at the owner key.
func (s *Store) Get(ctx context.Context, ownerKey string) (*types.Record, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       ownerKeyAttr(ownerKey),
	})
	if err != nil {
		return nil, &types.PersistenceError{Op: "get", Err: err}
	}
	if out.Item == nil {
		return nil, &types.NotFoundError{Key: ownerKey}
	}

	record := &types.Record{}
	if err := attributevalue.UnmarshalMap(out.Item, record); err != nil {
		return nil, &types.PersistenceError{Op: "get", Err: err}
	}
	return record, nil
}

// GetByBucket queries the bucket-name index.
func (s *Store) GetByBucket(ctx context.Context, bucketName string) (*types.Record, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("bucket_name").Equal(expression.Value(bucketName))).
		Build()
	if err != nil {
		return nil, &types.PersistenceError{Op: "get_by_bucket", Err: err}
	}

	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		IndexName:                 aws.String(bucketIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, &types.PersistenceError{Op: "get_by_bucket", Err: err}
	}
	if len(out.Items) == 0 {
		return nil, &types.NotFoundError{Key: bucketName}
	}

	record := &types.Record{}
	if err := attributevalue.UnmarshalMap(out.Items[0], record); err != nil {
		return nil, &types.PersistenceError{Op: "get_by_bucket", Err: err}
	}
	return record, nil
}

// ListByOwner queries the identity index for everything the identity owns.
func (s *Store) ListByOwner(ctx context.Context, identityID string) ([]types.Record, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("identity_id").Equal(expression.Value(identityID))).
		Build()
	if err != nil {
		return nil, &types.PersistenceError{Op: "list_by_owner", Err: err}
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		IndexName:                 aws.String(identityIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	var records []types.Record
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, &types.PersistenceError{Op: "list_by_owner", Err: err}
		}
		var batch []types.Record
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, &types.PersistenceError{Op: "list_by_owner", Err: err}
		}
		records = append(records, batch...)
	}
	return records, nil
}

// FindByDisplayName scans across all owners. Elevated actors only; the
// table is small enough (one row per project) that a filtered scan is fine.
func (s *Store) FindByDisplayName(ctx context.Context, displayName string) (*types.Record, error) {
	expr, err := expression.NewBuilder().
		WithFilter(expression.Name("display_name").Equal(expression.Value(displayName))).
		Build()
	if err != nil {
		return nil, &types.PersistenceError{Op: "find_by_display_name", Err: err}
	}

	input := &dynamodb.ScanInput{
		TableName:                 aws.String(s.table),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, &types.PersistenceError{Op: "find_by_display_name", Err: err}
		}
		if len(page.Items) > 0 {
			record := &types.Record{}
			if err := attributevalue.UnmarshalMap(page.Items[0], record); err != nil {
				return nil, &types.PersistenceError{Op: "find_by_display_name", Err: err}
			}
			return record, nil
		}
	}
	return nil, &types.NotFoundError{Key: displayName}
}

// Scan returns every record in the table.
func (s *Store) Scan(ctx context.Context) ([]types.Record, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(s.table)}

	var records []types.Record
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, &types.PersistenceError{Op: "scan", Err: err}
		}
		var batch []types.Record
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, &types.PersistenceError{Op: "scan", Err: err}
		}
		records = append(records, batch...)
	}
	return records, nil
}

// MarkDeleted stamps the deletion audit fields and flips status.
func (s *Store) MarkDeleted(ctx context.Context, ownerKey string, by types.Identity, at time.Time, shouldHeal bool) error {
	update := expression.
		Set(expression.Name("status"), expression.Value(string(types.StatusDeleted))).
		Set(expression.Name("deleted_at"), expression.Value(at.UTC().Format(time.RFC3339))).
		Set(expression.Name("deleted_by_identity"), expression.Value(by.ID)).
		Set(expression.Name("deleted_by_email"), expression.Value(by.Email)).
		Set(expression.Name("should_heal"), expression.Value(shouldHeal))

	return s.update(ctx, ownerKey, "mark_deleted", update)
}

// MarkHealed flips the record back to active, clearing should_heal and
// keeping the deletion audit fields for history. A repair also bumps
// heal_count and stamps healed_at.
func (s *Store) MarkHealed(ctx context.Context, ownerKey string, at time.Time, repaired bool) error {
	ts := at.UTC().Format(time.RFC3339)
	update := expression.
		Set(expression.Name("status"), expression.Value(string(types.StatusActive))).
		Set(expression.Name("last_checked_at"), expression.Value(ts)).
		Remove(expression.Name("should_heal"))

	if repaired {
		update = update.
			Set(expression.Name("healed_at"), expression.Value(ts)).
			Set(expression.Name("heal_count"), expression.Plus(
				expression.IfNotExists(expression.Name("heal_count"), expression.Value(0)),
				expression.Value(1)))
	}

	return s.update(ctx, ownerKey, "mark_healed", update)
}

// TouchLastChecked records a reconciliation probe.
func (s *Store) TouchLastChecked(ctx context.Context, ownerKey string, at time.Time) error {
	update := expression.Set(
		expression.Name("last_checked_at"),
		expression.Value(at.UTC().Format(time.RFC3339)))

	return s.update(ctx, ownerKey, "touch_last_checked", update)
}

func (s *Store) update(ctx context.Context, ownerKey, op string, update expression.UpdateBuilder) error {
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name("owner_key"))).
		Build()
	if err != nil {
		return &types.PersistenceError{Op: op, Err: fmt.Errorf("build expression: %w", err)}
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       ownerKeyAttr(ownerKey),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return &types.NotFoundError{Key: ownerKey}
		}
		return &types.PersistenceError{Op: op, Err: err}
	}
	return nil
}

func ownerKeyAttr(ownerKey string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		"owner_key": &ddbtypes.AttributeValueMemberS{Value: ownerKey},
	}
}
