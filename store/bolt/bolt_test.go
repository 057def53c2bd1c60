package bolt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holvi-cloud/holvi/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testRecord(identityID, displayName string) *types.Record {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &types.Record{
		OwnerKey:       types.MakeOwnerKey(identityID, displayName),
		BucketName:     "dev-" + displayName + "-abcd1234",
		IdentityID:     identityID,
		IdentityMail:   identityID + "@example.com",
		DisplayName:    displayName,
		CreatedAt:      now,
		LastCheckedAt:  now,
		Status:         types.StatusActive,
		EnvironmentTag: "dev",
		Versioning:     true,
		PolicyMode:     types.PolicyNone,
	}
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	record := testRecord("u-1", "analytics")
	require.NoError(t, s.Create(ctx, record))

	got, err := s.Get(ctx, record.OwnerKey)
	require.NoError(t, err)
	assert.Equal(t, record.BucketName, got.BucketName)
	assert.Equal(t, types.StatusActive, got.Status)
	assert.True(t, got.Versioning)
}

func TestCreateConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	record := testRecord("u-1", "analytics")
	require.NoError(t, s.Create(ctx, record))

	err := s.Create(ctx, testRecord("u-1", "analytics"))
	var conflict *types.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, record.OwnerKey, conflict.Key)
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "u-1#missing")
	var notFound *types.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestGetByBucket(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	record := testRecord("u-1", "analytics")
	require.NoError(t, s.Create(ctx, record))

	got, err := s.GetByBucket(ctx, record.BucketName)
	require.NoError(t, err)
	assert.Equal(t, record.OwnerKey, got.OwnerKey)

	_, err = s.GetByBucket(ctx, "no-such-bucket")
	var notFound *types.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestListByOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, testRecord("u-1", "alpha")))
	require.NoError(t, s.Create(ctx, testRecord("u-1", "beta")))
	require.NoError(t, s.Create(ctx, testRecord("u-2", "gamma")))

	records, err := s.ListByOwner(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, "u-1", r.IdentityID)
	}

	// A prefix scan must not leak a neighboring identity whose id extends
	// this one.
	require.NoError(t, s.Create(ctx, testRecord("u-10", "delta")))
	records, err = s.ListByOwner(ctx, "u-1")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestFindByDisplayName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, testRecord("u-1", "alpha")))
	require.NoError(t, s.Create(ctx, testRecord("u-2", "beta")))

	got, err := s.FindByDisplayName(ctx, "beta")
	require.NoError(t, err)
	assert.Equal(t, "u-2", got.IdentityID)

	_, err = s.FindByDisplayName(ctx, "missing")
	var notFound *types.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestScan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, testRecord("u-1", "alpha")))
	require.NoError(t, s.Create(ctx, testRecord("u-2", "beta")))

	records, err := s.Scan(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestMarkDeleted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	record := testRecord("u-1", "analytics")
	require.NoError(t, s.Create(ctx, record))

	deleter := types.Identity{ID: "op-1", Email: "ops@example.com"}
	at := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, s.MarkDeleted(ctx, record.OwnerKey, deleter, at, true))

	got, err := s.Get(ctx, record.OwnerKey)
	require.NoError(t, err)
	assert.Equal(t, types.StatusDeleted, got.Status)
	require.NotNil(t, got.DeletedAt)
	assert.True(t, got.DeletedAt.Equal(at))
	assert.Equal(t, "op-1", got.DeletedByIdentity)
	assert.Equal(t, "ops@example.com", got.DeletedByEmail)
	assert.True(t, got.HealRequested())
}

func TestMarkHealed_Repaired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	record := testRecord("u-1", "analytics")
	require.NoError(t, s.Create(ctx, record))
	require.NoError(t, s.MarkDeleted(ctx, record.OwnerKey, types.Identity{ID: "op-1", Email: "ops@example.com"}, time.Now().UTC(), true))

	at := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, s.MarkHealed(ctx, record.OwnerKey, at, true))

	got, err := s.Get(ctx, record.OwnerKey)
	require.NoError(t, err)
	assert.Equal(t, types.StatusActive, got.Status)
	assert.Nil(t, got.ShouldHeal)
	require.NotNil(t, got.HealedAt)
	assert.True(t, got.HealedAt.Equal(at))
	assert.Equal(t, 1, got.HealCount)
	assert.True(t, got.LastCheckedAt.Equal(at))

	// Deletion audit trail survives the restoration.
	assert.NotNil(t, got.DeletedAt)
	assert.Equal(t, "op-1", got.DeletedByIdentity)
}

func TestMarkHealed_AdoptedWithoutRepair(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	record := testRecord("u-1", "analytics")
	require.NoError(t, s.Create(ctx, record))
	require.NoError(t, s.MarkDeleted(ctx, record.OwnerKey, types.Identity{ID: "op-1"}, time.Now().UTC(), true))

	at := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, s.MarkHealed(ctx, record.OwnerKey, at, false))

	got, err := s.Get(ctx, record.OwnerKey)
	require.NoError(t, err)
	assert.Equal(t, types.StatusActive, got.Status)
	assert.Nil(t, got.ShouldHeal)
	assert.Nil(t, got.HealedAt)
	assert.Equal(t, 0, got.HealCount)
}

func TestTouchLastChecked(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	record := testRecord("u-1", "analytics")
	require.NoError(t, s.Create(ctx, record))

	at := time.Now().UTC().Add(time.Hour).Truncate(time.Millisecond)
	require.NoError(t, s.TouchLastChecked(ctx, record.OwnerKey, at))

	got, err := s.Get(ctx, record.OwnerKey)
	require.NoError(t, err)
	assert.True(t, got.LastCheckedAt.Equal(at))
}

func TestUpdateMissingRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var notFound *types.NotFoundError
	assert.ErrorAs(t, s.TouchLastChecked(ctx, "u-1#missing", time.Now()), &notFound)
	assert.ErrorAs(t, s.MarkDeleted(ctx, "u-1#missing", types.Identity{}, time.Now(), false), &notFound)
	assert.ErrorAs(t, s.MarkHealed(ctx, "u-1#missing", time.Now(), true), &notFound)
}

func TestReopenPersists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, testRecord("u-1", "analytics")))
	require.NoError(t, s.Close())

	s2, err := New(dir)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	got, err := s2.Get(ctx, "u-1#analytics")
	require.NoError(t, err)
	assert.Equal(t, "analytics", got.DisplayName)
}
