package boltstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"atrium/internal/moderation"

	bolt "go.etcd.io/bbolt"
)

// ModerationStore provides persistent storage for moderation data.
// Each Commit* method runs in a single bbolt write transaction and is
// conditioned on the entity revision the caller read, so a decision is
// all-or-nothing even under concurrent admins.
type ModerationStore struct {
	db *bolt.DB
}

// Ensure ModerationStore implements the interface at compile time.
var _ moderation.Store = (*ModerationStore)(nil)

// CreateEntity stores a new entity record. Fails if the key already exists.
func (s *ModerationStore) CreateEntity(ctx context.Context, e moderation.Entity) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketEntities)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketEntities)
		}

		key := []byte(e.Key())
		if bucket.Get(key) != nil {
			return fmt.Errorf("entity already exists: %s", e.Key())
		}

		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal entity: %w", err)
		}

		return bucket.Put(key, data)
	})
}

// GetEntity retrieves an entity record, or nil if it does not exist.
func (s *ModerationStore) GetEntity(ctx context.Context, kind moderation.EntityKind, id string) (*moderation.Entity, error) {
	var entity *moderation.Entity

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketEntities)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(moderation.EntityKey(kind, id)))
		if data == nil {
			return nil
		}

		entity = &moderation.Entity{}
		return json.Unmarshal(data, entity)
	})

	return entity, err
}

// ListEntities returns all entity records of one kind.
func (s *ModerationStore) ListEntities(ctx context.Context, kind moderation.EntityKind) ([]moderation.Entity, error) {
	var entities []moderation.Entity

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketEntities)
		if bucket == nil {
			return nil
		}

		cursor := bucket.Cursor()
		prefix := []byte(string(kind) + "/")

		for k, v := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Next() {
			var e moderation.Entity
			if err := json.Unmarshal(v, &e); err != nil {
				continue // Skip malformed entries
			}
			entities = append(entities, e)
		}

		return nil
	})

	return entities, err
}

// CommitReport appends a report and writes the updated entity in one
// transaction, conditioned on the entity revision the caller read.
func (s *ModerationStore) CommitReport(ctx context.Context, e moderation.Entity, expectedRev int64, r moderation.Report) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := putEntityChecked(tx, e, expectedRev); err != nil {
			return err
		}
		return putReport(tx, r)
	})
}

// CommitDecision writes the decided entity, resolves the pending reports
// and appends the audit entry, all in one transaction.
func (s *ModerationStore) CommitDecision(ctx context.Context, e moderation.Entity, expectedRev int64, resolve moderation.ReportResolution, audit moderation.AuditEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := putEntityChecked(tx, e, expectedRev); err != nil {
			return err
		}
		if err := resolveReports(tx, resolve); err != nil {
			return err
		}
		return putAudit(tx, audit)
	})
}

// CommitDelete removes the entity and all of its reports and appends the
// audit entry in one transaction. The audit log is the only trace left.
func (s *ModerationStore) CommitDelete(ctx context.Context, e moderation.Entity, expectedRev int64, audit moderation.AuditEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		entities := tx.Bucket(BucketEntities)
		if entities == nil {
			return fmt.Errorf("bucket not found: %s", BucketEntities)
		}

		key := []byte(moderation.EntityKey(e.Kind, e.ID))
		data := entities.Get(key)
		if data == nil {
			return &moderation.NotFoundError{Resource: "entity", ID: e.Key()}
		}
		var stored moderation.Entity
		if err := json.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("failed to unmarshal entity: %w", err)
		}
		if stored.Rev != expectedRev {
			return &moderation.ConcurrencyConflictError{Kind: e.Kind, ID: e.ID}
		}

		if err := entities.Delete(key); err != nil {
			return err
		}

		// Drop the entity's reports and their index entries
		reports := tx.Bucket(BucketReports)
		index := tx.Bucket(BucketReportsByEntity)
		if index != nil {
			cursor := index.Cursor()
			prefix := []byte(e.Key() + ":")
			for k, v := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Next() {
				if reports != nil {
					if err := reports.Delete(v); err != nil {
						return err
					}
				}
				if err := cursor.Delete(); err != nil {
					return err
				}
			}
		}

		return putAudit(tx, audit)
	})
}

// GetReport retrieves a report by ID, or nil if it does not exist.
func (s *ModerationStore) GetReport(ctx context.Context, id string) (*moderation.Report, error) {
	var report *moderation.Report

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketReports)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return nil
		}

		report = &moderation.Report{}
		return json.Unmarshal(data, report)
	})

	return report, err
}

// ListReports returns every report against an entity in submission order.
func (s *ModerationStore) ListReports(ctx context.Context, kind moderation.EntityKind, entityID string) ([]moderation.Report, error) {
	return s.listReportsByEntity(kind, entityID, false)
}

// ListPendingReports returns the unresolved reports against an entity in
// submission order.
func (s *ModerationStore) ListPendingReports(ctx context.Context, kind moderation.EntityKind, entityID string) ([]moderation.Report, error) {
	return s.listReportsByEntity(kind, entityID, true)
}

func (s *ModerationStore) listReportsByEntity(kind moderation.EntityKind, entityID string, pendingOnly bool) ([]moderation.Report, error) {
	var reports []moderation.Report

	err := s.db.View(func(tx *bolt.Tx) error {
		index := tx.Bucket(BucketReportsByEntity)
		bucket := tx.Bucket(BucketReports)
		if index == nil || bucket == nil {
			return nil
		}

		cursor := index.Cursor()
		prefix := []byte(moderation.EntityKey(kind, entityID) + ":")

		for k, v := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Next() {
			data := bucket.Get(v)
			if data == nil {
				continue
			}
			var r moderation.Report
			if err := json.Unmarshal(data, &r); err != nil {
				continue // Skip malformed entries
			}
			if pendingOnly && r.Status != moderation.ReportStatusPending {
				continue
			}
			reports = append(reports, r)
		}

		return nil
	})

	return reports, err
}

// CountPendingReports returns the number of unresolved reports across all
// entities.
func (s *ModerationStore) CountPendingReports(ctx context.Context) (int, error) {
	var count int

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketReports)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var r moderation.Report
			if err := json.Unmarshal(v, &r); err != nil {
				return nil // Skip malformed entries
			}
			if r.Status == moderation.ReportStatusPending {
				count++
			}
			return nil
		})
	})

	return count, err
}

// CountReportsByReporterSince counts reports submitted by a user since a
// given time. Used for rate limiting report submissions.
func (s *ModerationStore) CountReportsByReporterSince(ctx context.Context, reporterID string, since time.Time) (int, error) {
	var count int

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketReports)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var r moderation.Report
			if err := json.Unmarshal(v, &r); err != nil {
				return nil // Skip malformed entries
			}
			if r.ReporterID == reporterID && r.SubmittedAt.After(since) {
				count++
			}
			return nil
		})
	})

	return count, err
}

// ListAuditLog returns the most recent audit log entries.
// Entries are returned in reverse chronological order (newest first).
func (s *ModerationStore) ListAuditLog(ctx context.Context, limit int) ([]moderation.AuditEntry, error) {
	var entries []moderation.AuditEntry

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketAuditLog)
		if bucket == nil {
			return nil
		}

		// Walk backwards from the end; keys are timestamp-ordered
		cursor := bucket.Cursor()
		for k, v := cursor.Last(); k != nil && len(entries) < limit; k, v = cursor.Prev() {
			var entry moderation.AuditEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				continue // Skip malformed entries
			}
			entries = append(entries, entry)
		}

		return nil
	})

	return entries, err
}

// putEntityChecked writes an entity after verifying the stored revision
// matches what the caller read. Caller must be inside a write transaction.
func putEntityChecked(tx *bolt.Tx, e moderation.Entity, expectedRev int64) error {
	bucket := tx.Bucket(BucketEntities)
	if bucket == nil {
		return fmt.Errorf("bucket not found: %s", BucketEntities)
	}

	key := []byte(e.Key())
	data := bucket.Get(key)
	if data == nil {
		return &moderation.NotFoundError{Resource: "entity", ID: e.Key()}
	}

	var stored moderation.Entity
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to unmarshal entity: %w", err)
	}
	if stored.Rev != expectedRev {
		return &moderation.ConcurrencyConflictError{Kind: e.Kind, ID: e.ID}
	}

	newData, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}

	return bucket.Put(key, newData)
}

// putReport stores a report and its entity-scoped index entry.
// The index key is timestamp-ordered so prefix scans return reports in
// submission order.
func putReport(tx *bolt.Tx, r moderation.Report) error {
	bucket := tx.Bucket(BucketReports)
	if bucket == nil {
		return fmt.Errorf("bucket not found: %s", BucketReports)
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := bucket.Put([]byte(r.ID), data); err != nil {
		return err
	}

	index := tx.Bucket(BucketReportsByEntity)
	if index == nil {
		return fmt.Errorf("bucket not found: %s", BucketReportsByEntity)
	}

	key := fmt.Sprintf("%s:%020d:%s", moderation.EntityKey(r.EntityKind, r.EntityID), r.SubmittedAt.UnixNano(), r.ID)
	return index.Put([]byte(key), []byte(r.ID))
}

// resolveReports applies a bulk status update to the pending queue.
// Every id must exist and be pending, otherwise the whole transaction
// fails and nothing is applied.
func resolveReports(tx *bolt.Tx, resolve moderation.ReportResolution) error {
	if len(resolve.IDs) == 0 {
		return nil
	}

	bucket := tx.Bucket(BucketReports)
	if bucket == nil {
		return fmt.Errorf("bucket not found: %s", BucketReports)
	}

	for _, id := range resolve.IDs {
		data := bucket.Get([]byte(id))
		if data == nil {
			return &moderation.NotFoundError{Resource: "report", ID: id}
		}

		var r moderation.Report
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("failed to unmarshal report: %w", err)
		}
		if r.Status != moderation.ReportStatusPending {
			return &moderation.InvalidStateError{ReportID: id, Status: r.Status}
		}

		r.Status = resolve.Status
		r.ResolvedBy = resolve.ResolvedBy
		resolvedAt := resolve.ResolvedAt
		r.ResolvedAt = &resolvedAt

		newData, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if err := bucket.Put([]byte(id), newData); err != nil {
			return err
		}
	}

	return nil
}

// putAudit appends an audit entry under a timestamp-ordered key.
func putAudit(tx *bolt.Tx, entry moderation.AuditEntry) error {
	bucket := tx.Bucket(BucketAuditLog)
	if bucket == nil {
		return fmt.Errorf("bucket not found: %s", BucketAuditLog)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	// Use timestamp-based key for chronological ordering
	// Format: timestamp:id for uniqueness
	key := fmt.Sprintf("%020d:%s", entry.Timestamp.UnixNano(), entry.ID)

	return bucket.Put([]byte(key), data)
}
