package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"atrium/internal/moderation"
)

// ModerationStore implements moderation.Store using SQLite.
type ModerationStore struct {
	db *sql.DB
}

// NewModerationStore creates a ModerationStore backed by the given database.
// The database must already have the moderation schema applied.
func NewModerationStore(db *sql.DB) *ModerationStore {
	return &ModerationStore{db: db}
}

// Ensure ModerationStore implements the interface at compile time.
var _ moderation.Store = (*ModerationStore)(nil)

// ========== Entities ==========

func (s *ModerationStore) CreateEntity(ctx context.Context, e moderation.Entity) error {
	sanction, warnings, err := marshalEntityBlobs(e)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO moderation_entities (kind, id, owner_id, status, sanction, warnings, rev, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, string(e.Kind), e.ID, e.OwnerID, string(e.Status), sanction, warnings, e.Rev,
		e.CreatedAt.Format(time.RFC3339Nano), e.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("create entity: %w", err)
	}
	return nil
}

func (s *ModerationStore) GetEntity(ctx context.Context, kind moderation.EntityKind, id string) (*moderation.Entity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT kind, id, owner_id, status, sanction, warnings, rev, created_at, updated_at
		FROM moderation_entities WHERE kind = ? AND id = ?
	`, string(kind), id)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (s *ModerationStore) ListEntities(ctx context.Context, kind moderation.EntityKind) ([]moderation.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, id, owner_id, status, sanction, warnings, rev, created_at, updated_at
		FROM moderation_entities WHERE kind = ? ORDER BY id
	`, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []moderation.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			continue
		}
		entities = append(entities, *e)
	}
	return entities, rows.Err()
}

// ========== Commits ==========

func (s *ModerationStore) CommitReport(ctx context.Context, e moderation.Entity, expectedRev int64, r moderation.Report) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := updateEntityChecked(ctx, tx, e, expectedRev); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO moderation_reports
				(id, entity_kind, entity_id, reporter_id, reason, details, status, submitted_at, resolved_by, resolved_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, r.ID, string(r.EntityKind), r.EntityID, r.ReporterID, string(r.Reason), r.Details,
			string(r.Status), r.SubmittedAt.Format(time.RFC3339Nano), r.ResolvedBy, nil)
		if err != nil {
			return fmt.Errorf("insert report: %w", err)
		}
		return nil
	})
}

func (s *ModerationStore) CommitDecision(ctx context.Context, e moderation.Entity, expectedRev int64, resolve moderation.ReportResolution, audit moderation.AuditEntry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := updateEntityChecked(ctx, tx, e, expectedRev); err != nil {
			return err
		}
		if err := resolveReports(ctx, tx, resolve); err != nil {
			return err
		}
		return insertAudit(ctx, tx, audit)
	})
}

func (s *ModerationStore) CommitDelete(ctx context.Context, e moderation.Entity, expectedRev int64, audit moderation.AuditEntry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM moderation_entities WHERE kind = ? AND id = ? AND rev = ?
		`, string(e.Kind), e.ID, expectedRev)
		if err != nil {
			return fmt.Errorf("delete entity: %w", err)
		}
		if err := checkConditionalWrite(ctx, tx, res, e); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM moderation_reports WHERE entity_kind = ? AND entity_id = ?
		`, string(e.Kind), e.ID); err != nil {
			return fmt.Errorf("delete reports: %w", err)
		}

		return insertAudit(ctx, tx, audit)
	})
}

// ========== Reports ==========

func (s *ModerationStore) GetReport(ctx context.Context, id string) (*moderation.Report, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, entity_kind, entity_id, reporter_id, reason, details, status, submitted_at, resolved_by, resolved_at
		FROM moderation_reports WHERE id = ?
	`, id)
	r, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

func (s *ModerationStore) ListReports(ctx context.Context, kind moderation.EntityKind, entityID string) ([]moderation.Report, error) {
	return s.listReports(ctx, `
		WHERE entity_kind = ? AND entity_id = ? ORDER BY submitted_at
	`, string(kind), entityID)
}

func (s *ModerationStore) ListPendingReports(ctx context.Context, kind moderation.EntityKind, entityID string) ([]moderation.Report, error) {
	return s.listReports(ctx, `
		WHERE entity_kind = ? AND entity_id = ? AND status = 'pending' ORDER BY submitted_at
	`, string(kind), entityID)
}

func (s *ModerationStore) listReports(ctx context.Context, clause string, args ...any) ([]moderation.Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_kind, entity_id, reporter_id, reason, details, status, submitted_at, resolved_by, resolved_at
		FROM moderation_reports `+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []moderation.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			continue
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

func (s *ModerationStore) CountPendingReports(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM moderation_reports WHERE status = 'pending'
	`).Scan(&count)
	return count, err
}

func (s *ModerationStore) CountReportsByReporterSince(ctx context.Context, reporterID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM moderation_reports WHERE reporter_id = ? AND submitted_at > ?
	`, reporterID, since.Format(time.RFC3339Nano)).Scan(&count)
	return count, err
}

// ========== Audit Log ==========

func (s *ModerationStore) ListAuditLog(ctx context.Context, limit int) ([]moderation.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, actor_id, entity_kind, entity_id, reason, timestamp
		FROM moderation_audit_log ORDER BY timestamp DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []moderation.AuditEntry
	for rows.Next() {
		var e moderation.AuditEntry
		var timestampStr string
		if err := rows.Scan(&e.ID, &e.Action, &e.ActorID, &e.EntityKind, &e.EntityID, &e.Reason, &timestampStr); err != nil {
			continue
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, timestampStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ========== Helpers ==========

func (s *ModerationStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// updateEntityChecked writes the entity conditioned on the revision the
// caller read. Zero rows affected means either the entity vanished or a
// concurrent writer got there first.
func updateEntityChecked(ctx context.Context, tx *sql.Tx, e moderation.Entity, expectedRev int64) error {
	sanction, warnings, err := marshalEntityBlobs(e)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE moderation_entities
		SET owner_id = ?, status = ?, sanction = ?, warnings = ?, rev = ?, updated_at = ?
		WHERE kind = ? AND id = ? AND rev = ?
	`, e.OwnerID, string(e.Status), sanction, warnings, e.Rev,
		e.UpdatedAt.Format(time.RFC3339Nano), string(e.Kind), e.ID, expectedRev)
	if err != nil {
		return fmt.Errorf("update entity: %w", err)
	}
	return checkConditionalWrite(ctx, tx, res, e)
}

// checkConditionalWrite distinguishes "not found" from "revision moved"
// after a rev-conditioned write touched zero rows.
func checkConditionalWrite(ctx context.Context, tx *sql.Tx, res sql.Result, e moderation.Entity) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = tx.QueryRowContext(ctx, `
		SELECT 1 FROM moderation_entities WHERE kind = ? AND id = ?
	`, string(e.Kind), e.ID).Scan(&exists)
	if err == sql.ErrNoRows {
		return &moderation.NotFoundError{Resource: "entity", ID: e.Key()}
	}
	if err != nil {
		return err
	}
	return &moderation.ConcurrencyConflictError{Kind: e.Kind, ID: e.ID}
}

func resolveReports(ctx context.Context, tx *sql.Tx, resolve moderation.ReportResolution) error {
	for _, id := range resolve.IDs {
		var status string
		err := tx.QueryRowContext(ctx, `
			SELECT status FROM moderation_reports WHERE id = ?
		`, id).Scan(&status)
		if err == sql.ErrNoRows {
			return &moderation.NotFoundError{Resource: "report", ID: id}
		}
		if err != nil {
			return err
		}
		if moderation.ReportStatus(status) != moderation.ReportStatusPending {
			return &moderation.InvalidStateError{ReportID: id, Status: moderation.ReportStatus(status)}
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE moderation_reports SET status = ?, resolved_by = ?, resolved_at = ? WHERE id = ?
		`, string(resolve.Status), resolve.ResolvedBy, resolve.ResolvedAt.Format(time.RFC3339Nano), id); err != nil {
			return fmt.Errorf("resolve report %s: %w", id, err)
		}
	}
	return nil
}

func insertAudit(ctx context.Context, tx *sql.Tx, entry moderation.AuditEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO moderation_audit_log (id, action, actor_id, entity_kind, entity_id, reason, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, string(entry.Action), entry.ActorID, string(entry.EntityKind), entry.EntityID,
		entry.Reason, entry.Timestamp.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("log action: %w", err)
	}
	return nil
}

func marshalEntityBlobs(e moderation.Entity) (sanction, warnings sql.NullString, err error) {
	if e.Sanction != nil {
		data, merr := json.Marshal(e.Sanction)
		if merr != nil {
			return sanction, warnings, fmt.Errorf("marshal sanction: %w", merr)
		}
		sanction = sql.NullString{String: string(data), Valid: true}
	}
	if len(e.Warnings) > 0 {
		data, merr := json.Marshal(e.Warnings)
		if merr != nil {
			return sanction, warnings, fmt.Errorf("marshal warnings: %w", merr)
		}
		warnings = sql.NullString{String: string(data), Valid: true}
	}
	return sanction, warnings, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(row scanner) (*moderation.Entity, error) {
	var e moderation.Entity
	var sanction, warnings sql.NullString
	var createdAtStr, updatedAtStr string
	err := row.Scan(&e.Kind, &e.ID, &e.OwnerID, &e.Status, &sanction, &warnings, &e.Rev, &createdAtStr, &updatedAtStr)
	if err != nil {
		return nil, err
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
	e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAtStr)
	if sanction.Valid {
		e.Sanction = &moderation.Sanction{}
		if err := json.Unmarshal([]byte(sanction.String), e.Sanction); err != nil {
			return nil, fmt.Errorf("unmarshal sanction: %w", err)
		}
	}
	if warnings.Valid {
		if err := json.Unmarshal([]byte(warnings.String), &e.Warnings); err != nil {
			return nil, fmt.Errorf("unmarshal warnings: %w", err)
		}
	}
	return &e, nil
}

func scanReport(row scanner) (*moderation.Report, error) {
	var r moderation.Report
	var submittedAtStr string
	var resolvedAtStr sql.NullString
	err := row.Scan(&r.ID, &r.EntityKind, &r.EntityID, &r.ReporterID, &r.Reason, &r.Details,
		&r.Status, &submittedAtStr, &r.ResolvedBy, &resolvedAtStr)
	if err != nil {
		return nil, err
	}
	r.SubmittedAt, _ = time.Parse(time.RFC3339Nano, submittedAtStr)
	if resolvedAtStr.Valid {
		t, _ := time.Parse(time.RFC3339Nano, resolvedAtStr.String)
		r.ResolvedAt = &t
	}
	return &r, nil
}
