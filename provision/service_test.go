package provision

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holvi-cloud/holvi/authz"
	"github.com/holvi-cloud/holvi/lifecycle"
	"github.com/holvi-cloud/holvi/notify"
	"github.com/holvi-cloud/holvi/store"
	"github.com/holvi-cloud/holvi/store/bolt"
	"github.com/holvi-cloud/holvi/telemetry"
	"github.com/holvi-cloud/holvi/types"
)

// fakeBackend is an in-memory object-storage double. Failures are injected
// per method name.
type fakeBackend struct {
	mu      sync.Mutex
	buckets map[string]bool
	fail    map[string]error

	blockedPublic map[string]bool
	encrypted     map[string]bool
	versioned     map[string]bool
	lifecycles    map[string]*lifecycle.Document
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		buckets:       make(map[string]bool),
		fail:          make(map[string]error),
		blockedPublic: make(map[string]bool),
		encrypted:     make(map[string]bool),
		versioned:     make(map[string]bool),
		lifecycles:    make(map[string]*lifecycle.Document),
	}
}

func (f *fakeBackend) failOn(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[method] = err
}

func (f *fakeBackend) check(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail[method]
}

func (f *fakeBackend) CreateBucket(ctx context.Context, name string) error {
	if err := f.check("CreateBucket"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets[name] = true
	return nil
}

func (f *fakeBackend) DeleteBucket(ctx context.Context, name string) error {
	if err := f.check("DeleteBucket"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.buckets, name)
	return nil
}

func (f *fakeBackend) EmptyBucket(ctx context.Context, name string) error {
	return f.check("EmptyBucket")
}

func (f *fakeBackend) BucketExists(ctx context.Context, name string) (bool, error) {
	if err := f.check("BucketExists"); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buckets[name], nil
}

func (f *fakeBackend) BlockPublicAccess(ctx context.Context, name string) error {
	if err := f.check("BlockPublicAccess"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockedPublic[name] = true
	return nil
}

func (f *fakeBackend) EnableEncryption(ctx context.Context, name string) error {
	if err := f.check("EnableEncryption"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.encrypted[name] = true
	return nil
}

func (f *fakeBackend) SetVersioning(ctx context.Context, name string, enabled bool) error {
	if err := f.check("SetVersioning"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versioned[name] = enabled
	return nil
}

func (f *fakeBackend) ApplyLifecycle(ctx context.Context, name string, doc *lifecycle.Document) error {
	if err := f.check("ApplyLifecycle"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lifecycles[name] = doc
	return nil
}

func (f *fakeBackend) hasBucket(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buckets[name]
}

// captureNotifier records every delivered message.
type captureNotifier struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (c *captureNotifier) Notify(ctx context.Context, msg notify.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return nil
}

func (c *captureNotifier) Close() error { return nil }

func (c *captureNotifier) events() []notify.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	events := make([]notify.Event, 0, len(c.messages))
	for _, m := range c.messages {
		events = append(events, m.Event)
	}
	return events
}

// failingCreateStore injects a persistence failure on Create.
type failingCreateStore struct {
	store.Store
	err error
}

func (f *failingCreateStore) Create(ctx context.Context, record *types.Record) error {
	return f.err
}

type fixture struct {
	service  *Service
	store    store.Store
	backend  *fakeBackend
	notifier *captureNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := bolt.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	be := newFakeBackend()
	notifier := &captureNotifier{}
	resolver := authz.NewResolver(authz.Config{
		HelperGroup:    "business-admins",
		AuthorityGroup: "admins",
	})
	logger := telemetry.NewLogger("test")

	return &fixture{
		service:  NewService(st, be, notifier, resolver, logger, "dev"),
		store:    st,
		backend:  be,
		notifier: notifier,
	}
}

var (
	owner  = types.Identity{ID: "u-1", Email: "owner@example.com"}
	helper = types.Identity{ID: "op-1", Email: "ops@example.com", Groups: []string{"business-admins"}}
	admin  = types.Identity{ID: "adm-1", Email: "admin@example.com", Groups: []string{"admins"}}
)

func TestCreate(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	out, err := fx.service.Create(ctx, owner, CreateInput{DisplayName: "analytics"})
	require.NoError(t, err)

	assert.Equal(t, "analytics", out.DisplayName)
	assert.Equal(t, types.StatusActive, out.Status)
	assert.Empty(t, out.Warnings)

	// dev-analytics-<8 char suffix>
	assert.True(t, strings.HasPrefix(out.BucketName, "dev-analytics-"), out.BucketName)
	assert.Len(t, out.BucketName, len("dev-analytics-")+8)

	assert.True(t, fx.backend.hasBucket(out.BucketName))
	assert.True(t, fx.backend.blockedPublic[out.BucketName])
	assert.True(t, fx.backend.encrypted[out.BucketName])
	assert.True(t, fx.backend.versioned[out.BucketName])

	record, err := fx.store.Get(ctx, types.MakeOwnerKey(owner.ID, "analytics"))
	require.NoError(t, err)
	assert.Equal(t, out.BucketName, record.BucketName)
	assert.Equal(t, owner.Email, record.IdentityMail)
	assert.Equal(t, types.PolicyNone, record.PolicyMode)

	assert.Equal(t, []notify.Event{notify.EventCreated}, fx.notifier.events())
}

func TestCreate_VersioningDisabled(t *testing.T) {
	fx := newFixture(t)
	disabled := false

	out, err := fx.service.Create(context.Background(), owner, CreateInput{
		DisplayName: "scratch",
		Versioning:  &disabled,
	})
	require.NoError(t, err)

	assert.False(t, fx.backend.versioned[out.BucketName])
}

func TestCreate_PolicyModes(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	out, err := fx.service.Create(ctx, owner, CreateInput{
		DisplayName: "archive-me",
		PolicyMode:  types.PolicyAutoArchive,
	})
	require.NoError(t, err)

	doc := fx.backend.lifecycles[out.BucketName]
	require.NotNil(t, doc)
	assert.Equal(t, "AutoArchiveRule", doc.Rules[0].ID)
}

func TestCreate_CustomPolicy(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	policy := []byte(`{"Rules":[{"Id":"mine","Status":"Enabled","Expiration":{"Days":7}}]}`)
	out, err := fx.service.Create(ctx, owner, CreateInput{
		DisplayName:  "custom",
		PolicyMode:   types.PolicyCustom,
		CustomPolicy: policy,
	})
	require.NoError(t, err)

	// Persisted form is the canonical serialization: Id normalized to ID.
	record, err := fx.store.Get(ctx, types.MakeOwnerKey(owner.ID, "custom"))
	require.NoError(t, err)
	assert.Contains(t, string(record.CustomPolicy), `"ID":"mine"`)

	doc := fx.backend.lifecycles[out.BucketName]
	require.NotNil(t, doc)
	assert.Equal(t, "mine", doc.Rules[0].ID)
}

func TestCreate_ValidationFailures(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreateInput
		field string
	}{
		{
			name:  "bad display name",
			input: CreateInput{DisplayName: "Bad Name"},
			field: "display_name",
		},
		{
			name:  "unknown policy mode",
			input: CreateInput{DisplayName: "proj-a", PolicyMode: "weekly"},
			field: "policy_mode",
		},
		{
			name:  "custom mode without document",
			input: CreateInput{DisplayName: "proj-b", PolicyMode: types.PolicyCustom},
			field: "custom_policy",
		},
		{
			name: "document without custom mode",
			input: CreateInput{
				DisplayName:  "proj-c",
				PolicyMode:   types.PolicyAutoArchive,
				CustomPolicy: []byte(`{"Rules":[]}`),
			},
			field: "custom_policy",
		},
		{
			name: "invalid document",
			input: CreateInput{
				DisplayName:  "proj-d",
				PolicyMode:   types.PolicyCustom,
				CustomPolicy: []byte(`{"Rules":[{"ID":"r1","Status":"maybe"}]}`),
			},
			field: "Rules[0].Status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.service.Create(ctx, owner, tt.input)
			var verr *types.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	// Validation failures must not leave buckets behind.
	assert.Empty(t, fx.backend.buckets)
}

func TestCreate_Duplicate(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.service.Create(ctx, owner, CreateInput{DisplayName: "analytics"})
	require.NoError(t, err)

	_, err = fx.service.Create(ctx, owner, CreateInput{DisplayName: "analytics"})
	var conflict *types.ConflictError
	assert.ErrorAs(t, err, &conflict)

	// Same name under a different owner is fine.
	_, err = fx.service.Create(ctx, types.Identity{ID: "u-2", Email: "other@example.com"},
		CreateInput{DisplayName: "analytics"})
	assert.NoError(t, err)
}

func TestCreate_TeardownOnPersistFailure(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	persistErr := &types.PersistenceError{Op: "create", Err: errors.New("table unavailable")}
	fx.service.store = &failingCreateStore{Store: fx.store, err: persistErr}

	_, err := fx.service.Create(ctx, owner, CreateInput{DisplayName: "analytics"})
	require.ErrorIs(t, err, persistErr)

	// The orphaned bucket was torn down, and no creation notice went out.
	assert.Empty(t, fx.backend.buckets)
	assert.Empty(t, fx.notifier.events())
}

func TestCreate_ConfigurationWarnings(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.backend.failOn("BlockPublicAccess", errors.New("access denied"))

	out, err := fx.service.Create(ctx, owner, CreateInput{DisplayName: "analytics"})
	require.NoError(t, err)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "public access block")

	// The bucket and record still exist despite the warning.
	assert.True(t, fx.backend.hasBucket(out.BucketName))
	_, err = fx.store.Get(ctx, types.MakeOwnerKey(owner.ID, "analytics"))
	assert.NoError(t, err)
}

func TestDelete_ByOwnerIsFinal(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	created, err := fx.service.Create(ctx, owner, CreateInput{DisplayName: "analytics"})
	require.NoError(t, err)

	out, err := fx.service.Delete(ctx, owner, DeleteInput{DisplayName: "analytics"})
	require.NoError(t, err)

	assert.Equal(t, created.BucketName, out.BucketName)
	assert.Equal(t, owner.Email, out.DeletedBy)
	assert.False(t, out.ShouldHeal)

	assert.False(t, fx.backend.hasBucket(created.BucketName))

	record, err := fx.store.Get(ctx, types.MakeOwnerKey(owner.ID, "analytics"))
	require.NoError(t, err)
	assert.Equal(t, types.StatusDeleted, record.Status)
	assert.False(t, record.HealRequested())
	assert.Equal(t, owner.ID, record.DeletedByIdentity)

	assert.Equal(t, []notify.Event{notify.EventCreated, notify.EventDeleted}, fx.notifier.events())
}

func TestDelete_ByHelperTriggersHealing(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.service.Create(ctx, owner, CreateInput{DisplayName: "analytics"})
	require.NoError(t, err)

	out, err := fx.service.Delete(ctx, helper, DeleteInput{DisplayName: "analytics"})
	require.NoError(t, err)
	assert.True(t, out.ShouldHeal)

	record, err := fx.store.Get(ctx, types.MakeOwnerKey(owner.ID, "analytics"))
	require.NoError(t, err)
	assert.True(t, record.HealRequested())
	assert.Equal(t, helper.ID, record.DeletedByIdentity)
}

func TestDelete_ByAuthorityIsFinal(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.service.Create(ctx, owner, CreateInput{DisplayName: "analytics"})
	require.NoError(t, err)

	out, err := fx.service.Delete(ctx, admin, DeleteInput{DisplayName: "analytics"})
	require.NoError(t, err)
	assert.False(t, out.ShouldHeal)
}

func TestDelete_StrangerCannotSeeRecord(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.service.Create(ctx, owner, CreateInput{DisplayName: "analytics"})
	require.NoError(t, err)

	stranger := types.Identity{ID: "u-9", Email: "dev@example.com"}
	_, err = fx.service.Delete(ctx, stranger, DeleteInput{DisplayName: "analytics"})

	// The record is not even acknowledged to exist.
	var notFound *types.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestDelete_IdempotentWhenBucketAlreadyGone(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	created, err := fx.service.Create(ctx, owner, CreateInput{DisplayName: "analytics"})
	require.NoError(t, err)

	// Simulate an out-of-band deletion.
	require.NoError(t, fx.backend.DeleteBucket(ctx, created.BucketName))

	_, err = fx.service.Delete(ctx, owner, DeleteInput{DisplayName: "analytics"})
	require.NoError(t, err)

	record, err := fx.store.Get(ctx, types.MakeOwnerKey(owner.ID, "analytics"))
	require.NoError(t, err)
	assert.Equal(t, types.StatusDeleted, record.Status)
}

func TestList_OwnerScoping(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	other := types.Identity{ID: "u-2", Email: "other@example.com"}
	_, err := fx.service.Create(ctx, owner, CreateInput{DisplayName: "alpha"})
	require.NoError(t, err)
	_, err = fx.service.Create(ctx, other, CreateInput{DisplayName: "beta"})
	require.NoError(t, err)

	summaries, err := fx.service.List(ctx, owner, ListInput{})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "alpha", summaries[0].DisplayName)

	// Plain users never see ownership attribution.
	assert.Empty(t, summaries[0].OwnerIdentityID)
	assert.Empty(t, summaries[0].ActorRole)
}

func TestList_ElevatedSeesAllWithAttribution(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	other := types.Identity{ID: "u-2", Email: "other@example.com"}
	_, err := fx.service.Create(ctx, owner, CreateInput{DisplayName: "alpha"})
	require.NoError(t, err)
	_, err = fx.service.Create(ctx, other, CreateInput{DisplayName: "beta"})
	require.NoError(t, err)

	summaries, err := fx.service.List(ctx, helper, ListInput{})
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	for _, s := range summaries {
		assert.NotEmpty(t, s.OwnerIdentityID)
		assert.Equal(t, string(authz.RoleHelper), s.ActorRole)
	}
}

func TestList_ByNameHidesForeignRecordsFromPlainUsers(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.service.Create(ctx, owner, CreateInput{DisplayName: "alpha"})
	require.NoError(t, err)

	stranger := types.Identity{ID: "u-9", Email: "dev@example.com"}
	_, err = fx.service.List(ctx, stranger, ListInput{DisplayName: "alpha"})
	var notFound *types.NotFoundError
	assert.ErrorAs(t, err, &notFound)

	// An elevated actor resolves the same name across owners.
	summaries, err := fx.service.List(ctx, helper, ListInput{DisplayName: "alpha"})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, owner.ID, summaries[0].OwnerIdentityID)
}
