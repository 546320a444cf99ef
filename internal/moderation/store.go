package moderation

import (
	"context"
	"time"
)

// ReportResolution is the bulk status update applied to the pending
// report queue as part of committing a decision. Every id must reference
// an existing, currently pending report: a missing id fails the whole
// commit with *NotFoundError, a non-pending one with *InvalidStateError.
type ReportResolution struct {
	IDs        []string
	Status     ReportStatus
	ResolvedBy string
	ResolvedAt time.Time
}

// Store defines the persistence interface for moderation data.
// Implementations must be safe for concurrent use.
//
// The Commit* methods are the only write paths that touch an entity, and
// each one is a single all-or-nothing transaction conditioned on the
// entity revision the caller read: if the stored revision differs from
// expectedRev the commit fails with *ConcurrencyConflictError and no
// state changes.
type Store interface {
	// Entities
	CreateEntity(ctx context.Context, e Entity) error
	GetEntity(ctx context.Context, kind EntityKind, id string) (*Entity, error)
	ListEntities(ctx context.Context, kind EntityKind) ([]Entity, error)

	// CommitReport appends a report and writes the entity (with its
	// possibly flipped status) in one transaction.
	CommitReport(ctx context.Context, e Entity, expectedRev int64, r Report) error

	// CommitDecision writes the decided entity, resolves the pending
	// reports and appends the audit entry in one transaction.
	CommitDecision(ctx context.Context, e Entity, expectedRev int64, resolve ReportResolution, audit AuditEntry) error

	// CommitDelete removes the entity and all of its reports and appends
	// the audit entry in one transaction. Irreversible.
	CommitDelete(ctx context.Context, e Entity, expectedRev int64, audit AuditEntry) error

	// Reports
	GetReport(ctx context.Context, id string) (*Report, error)
	ListReports(ctx context.Context, kind EntityKind, entityID string) ([]Report, error)
	ListPendingReports(ctx context.Context, kind EntityKind, entityID string) ([]Report, error)
	CountPendingReports(ctx context.Context) (int, error)
	CountReportsByReporterSince(ctx context.Context, reporterID string, since time.Time) (int, error)

	// Audit log
	ListAuditLog(ctx context.Context, limit int) ([]AuditEntry, error)
}
