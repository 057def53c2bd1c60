// Package bolt is the embedded record store used in local mode and tests.
package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/holvi-cloud/holvi/types"
)

// Bucket names in bbolt
var (
	bucketRecords  = []byte("records")
	bucketByBucket = []byte("by_bucket")
)

// Store implements store.Store on a local bbolt file.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the store under dir.
func New(dir string) (*Store, error) {
	dbPath := filepath.Join(dir, "holvi.db")

	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketRecords, bucketByBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create persists a new record, failing on an existing owner key. The check
// and the write share one bbolt transaction, so the uniqueness guarantee is
// atomic.
func (s *Store) Create(ctx context.Context, record *types.Record) error {
	value, err := json.Marshal(record)
	if err != nil {
		return &types.PersistenceError{Op: "create", Err: err}
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		records := tx.Bucket(bucketRecords)
		key := []byte(record.OwnerKey)
		if records.Get(key) != nil {
			return &types.ConflictError{Key: record.OwnerKey}
		}
		if err := records.Put(key, value); err != nil {
			return err
		}
		return tx.Bucket(bucketByBucket).Put([]byte(record.BucketName), key)
	})
	if err != nil {
		if _, ok := err.(*types.ConflictError); ok {
			return err
		}
		return &types.PersistenceError{Op: "create", Err: err}
	}
	return nil
}

// Get returns the record at the owner key.
func (s *Store) Get(ctx context.Context, ownerKey string) (*types.Record, error) {
	var record *types.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketRecords).Get([]byte(ownerKey))
		if raw == nil {
			return &types.NotFoundError{Key: ownerKey}
		}
		record = &types.Record{}
		return json.Unmarshal(raw, record)
	})
	if err != nil {
		if _, ok := err.(*types.NotFoundError); ok {
			return nil, err
		}
		return nil, &types.PersistenceError{Op: "get", Err: err}
	}
	return record, nil
}

// GetByBucket looks a record up through the bucket-name index.
func (s *Store) GetByBucket(ctx context.Context, bucketName string) (*types.Record, error) {
	var ownerKey string
	err := s.db.View(func(tx *bbolt.Tx) error {
		key := tx.Bucket(bucketByBucket).Get([]byte(bucketName))
		if key == nil {
			return &types.NotFoundError{Key: bucketName}
		}
		ownerKey = string(key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, ownerKey)
}

// ListByOwner prefix-scans the records bucket. The owner key starts with
// the identity id, so the key shape itself provides the index.
func (s *Store) ListByOwner(ctx context.Context, identityID string) ([]types.Record, error) {
	prefix := []byte(identityID + types.OwnerKeySep)
	var records []types.Record

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketRecords).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var record types.Record
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, &types.PersistenceError{Op: "list_by_owner", Err: err}
	}
	return records, nil
}

// FindByDisplayName scans all records for a display-name match.
func (s *Store) FindByDisplayName(ctx context.Context, displayName string) (*types.Record, error) {
	records, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].DisplayName == displayName {
			return &records[i], nil
		}
	}
	return nil, &types.NotFoundError{Key: displayName}
}

// Scan returns every record.
func (s *Store) Scan(ctx context.Context) ([]types.Record, error) {
	var records []types.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRecords).ForEach(func(k, v []byte) error {
			var record types.Record
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, record)
			return nil
		})
	})
	if err != nil {
		return nil, &types.PersistenceError{Op: "scan", Err: err}
	}
	return records, nil
}

// MarkDeleted stamps the deletion audit fields and flips status.
func (s *Store) MarkDeleted(ctx context.Context, ownerKey string, by types.Identity, at time.Time, shouldHeal bool) error {
	return s.update(ownerKey, "mark_deleted", func(record *types.Record) {
		record.Status = types.StatusDeleted
		record.DeletedAt = &at
		record.DeletedByIdentity = by.ID
		record.DeletedByEmail = by.Email
		record.ShouldHeal = &shouldHeal
	})
}

// MarkHealed flips the record back to active, preserving the deletion audit
// fields for history.
func (s *Store) MarkHealed(ctx context.Context, ownerKey string, at time.Time, repaired bool) error {
	return s.update(ownerKey, "mark_healed", func(record *types.Record) {
		record.Status = types.StatusActive
		record.ShouldHeal = nil
		record.LastCheckedAt = at
		if repaired {
			record.HealedAt = &at
			record.HealCount++
		}
	})
}

// TouchLastChecked records a probe timestamp.
func (s *Store) TouchLastChecked(ctx context.Context, ownerKey string, at time.Time) error {
	return s.update(ownerKey, "touch_last_checked", func(record *types.Record) {
		record.LastCheckedAt = at
	})
}

func (s *Store) update(ownerKey, op string, mutate func(*types.Record)) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		records := tx.Bucket(bucketRecords)
		key := []byte(ownerKey)
		raw := records.Get(key)
		if raw == nil {
			return &types.NotFoundError{Key: ownerKey}
		}
		var record types.Record
		if err := json.Unmarshal(raw, &record); err != nil {
			return err
		}
		mutate(&record)
		value, err := json.Marshal(&record)
		if err != nil {
			return err
		}
		return records.Put(key, value)
	})
	if err != nil {
		if _, ok := err.(*types.NotFoundError); ok {
			return err
		}
		return &types.PersistenceError{Op: op, Err: err}
	}
	return nil
}
