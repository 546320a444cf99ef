package boltstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"atrium/internal/moderation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestModerationStore(t *testing.T) *ModerationStore {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := Open(Options{Path: dbPath})
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store.ModerationStore()
}

func testEntity(id string) moderation.Entity {
	now := time.Now()
	return moderation.Entity{
		ID:        id,
		Kind:      moderation.KindUser,
		OwnerID:   id,
		Status:    moderation.StatusActive,
		Rev:       1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func testReport(id, entityID string, submittedAt time.Time) moderation.Report {
	return moderation.Report{
		ID:          id,
		EntityKind:  moderation.KindUser,
		EntityID:    entityID,
		ReporterID:  "reporter",
		Reason:      moderation.ReasonSpam,
		Status:      moderation.ReportStatusPending,
		SubmittedAt: submittedAt,
	}
}

func TestEntityCRUD(t *testing.T) {
	ctx := context.Background()
	store := setupTestModerationStore(t)

	t.Run("create and get", func(t *testing.T) {
		e := testEntity("alice")
		require.NoError(t, store.CreateEntity(ctx, e))

		got, err := store.GetEntity(ctx, moderation.KindUser, "alice")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "alice", got.ID)
		assert.Equal(t, moderation.StatusActive, got.Status)
		assert.Equal(t, int64(1), got.Rev)
	})

	t.Run("duplicate create fails", func(t *testing.T) {
		e := testEntity("alice")
		assert.Error(t, store.CreateEntity(ctx, e))
	})

	t.Run("missing entity is nil, not an error", func(t *testing.T) {
		got, err := store.GetEntity(ctx, moderation.KindUser, "nobody")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("list is scoped to one kind", func(t *testing.T) {
		proj := testEntity("proj1")
		proj.Kind = moderation.KindProject
		require.NoError(t, store.CreateEntity(ctx, proj))

		users, err := store.ListEntities(ctx, moderation.KindUser)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "alice", users[0].ID)

		projects, err := store.ListEntities(ctx, moderation.KindProject)
		require.NoError(t, err)
		require.Len(t, projects, 1)
		assert.Equal(t, "proj1", projects[0].ID)
	})
}

func TestCommitReport(t *testing.T) {
	ctx := context.Background()
	store := setupTestModerationStore(t)

	e := testEntity("alice")
	require.NoError(t, store.CreateEntity(ctx, e))

	t.Run("writes entity and report together", func(t *testing.T) {
		e.Status = moderation.StatusReported
		e.Rev = 2
		rep := testReport("r1", "alice", time.Now())

		require.NoError(t, store.CommitReport(ctx, e, 1, rep))

		got, err := store.GetEntity(ctx, moderation.KindUser, "alice")
		require.NoError(t, err)
		assert.Equal(t, moderation.StatusReported, got.Status)
		assert.Equal(t, int64(2), got.Rev)

		stored, err := store.GetReport(ctx, "r1")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, moderation.ReportStatusPending, stored.Status)
	})

	t.Run("stale revision is rejected and nothing is written", func(t *testing.T) {
		rep := testReport("r2", "alice", time.Now())
		err := store.CommitReport(ctx, e, 1, rep)

		var conflictErr *moderation.ConcurrencyConflictError
		require.ErrorAs(t, err, &conflictErr)

		stored, err := store.GetReport(ctx, "r2")
		require.NoError(t, err)
		assert.Nil(t, stored)
	})

	t.Run("unknown entity is NotFound", func(t *testing.T) {
		ghost := testEntity("ghost")
		err := store.CommitReport(ctx, ghost, 1, testReport("r3", "ghost", time.Now()))

		var notFoundErr *moderation.NotFoundError
		require.ErrorAs(t, err, &notFoundErr)
	})
}

func TestReportOrdering(t *testing.T) {
	ctx := context.Background()
	store := setupTestModerationStore(t)

	e := testEntity("alice")
	require.NoError(t, store.CreateEntity(ctx, e))

	base := time.Now()
	for i, id := range []string{"zz-first", "aa-second", "mm-third"} {
		e.Rev = int64(i + 2)
		require.NoError(t, store.CommitReport(ctx, e, int64(i+1), testReport(id, "alice", base.Add(time.Duration(i)*time.Second))))
	}

	// Submission order, not report-ID order.
	reports, err := store.ListReports(ctx, moderation.KindUser, "alice")
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, "zz-first", reports[0].ID)
	assert.Equal(t, "aa-second", reports[1].ID)
	assert.Equal(t, "mm-third", reports[2].ID)
}

func TestCommitDecision(t *testing.T) {
	ctx := context.Background()
	store := setupTestModerationStore(t)

	e := testEntity("alice")
	require.NoError(t, store.CreateEntity(ctx, e))
	e.Status = moderation.StatusReported
	e.Rev = 2
	require.NoError(t, store.CommitReport(ctx, e, 1, testReport("r1", "alice", time.Now())))

	t.Run("resolves reports and appends audit atomically", func(t *testing.T) {
		decided := e
		decided.Status = moderation.StatusWarned
		decided.Rev = 3

		now := time.Now()
		resolve := moderation.ReportResolution{
			IDs:        []string{"r1"},
			Status:     moderation.ReportStatusActioned,
			ResolvedBy: "admin1",
			ResolvedAt: now,
		}
		audit := moderation.AuditEntry{
			ID:         "audit1",
			Action:     moderation.ActionWarn,
			ActorID:    "admin1",
			EntityKind: moderation.KindUser,
			EntityID:   "alice",
			Reason:     "spam",
			Timestamp:  now,
		}

		require.NoError(t, store.CommitDecision(ctx, decided, 2, resolve, audit))

		rep, err := store.GetReport(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, moderation.ReportStatusActioned, rep.Status)
		assert.Equal(t, "admin1", rep.ResolvedBy)
		require.NotNil(t, rep.ResolvedAt)

		pending, err := store.ListPendingReports(ctx, moderation.KindUser, "alice")
		require.NoError(t, err)
		assert.Empty(t, pending)

		entries, err := store.ListAuditLog(ctx, 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, moderation.ActionWarn, entries[0].Action)
	})

	t.Run("resolving an already-resolved report fails the whole commit", func(t *testing.T) {
		decided := e
		decided.Status = moderation.StatusSuspended
		decided.Rev = 4

		resolve := moderation.ReportResolution{
			IDs:        []string{"r1"},
			Status:     moderation.ReportStatusDismissed,
			ResolvedBy: "admin2",
			ResolvedAt: time.Now(),
		}
		err := store.CommitDecision(ctx, decided, 3, resolve, moderation.AuditEntry{ID: "audit2", Timestamp: time.Now()})

		var stateErr *moderation.InvalidStateError
		require.ErrorAs(t, err, &stateErr)
		assert.Equal(t, "r1", stateErr.ReportID)

		// Entity write rolled back with the report resolution.
		got, err := store.GetEntity(ctx, moderation.KindUser, "alice")
		require.NoError(t, err)
		assert.Equal(t, moderation.StatusWarned, got.Status)
		assert.Equal(t, int64(3), got.Rev)
	})

	t.Run("unknown report id fails the whole commit", func(t *testing.T) {
		decided := e
		decided.Rev = 4

		resolve := moderation.ReportResolution{
			IDs:        []string{"missing"},
			Status:     moderation.ReportStatusDismissed,
			ResolvedBy: "admin2",
			ResolvedAt: time.Now(),
		}
		err := store.CommitDecision(ctx, decided, 3, resolve, moderation.AuditEntry{ID: "audit3", Timestamp: time.Now()})

		var notFoundErr *moderation.NotFoundError
		require.ErrorAs(t, err, &notFoundErr)
	})
}

func TestCommitDelete(t *testing.T) {
	ctx := context.Background()
	store := setupTestModerationStore(t)

	e := testEntity("proj1")
	e.Kind = moderation.KindProject
	require.NoError(t, store.CreateEntity(ctx, e))

	e.Rev = 2
	rep := testReport("r1", "proj1", time.Now())
	rep.EntityKind = moderation.KindProject
	require.NoError(t, store.CommitReport(ctx, e, 1, rep))

	t.Run("stale revision is rejected", func(t *testing.T) {
		err := store.CommitDelete(ctx, e, 1, moderation.AuditEntry{ID: "audit1", Timestamp: time.Now()})
		var conflictErr *moderation.ConcurrencyConflictError
		require.ErrorAs(t, err, &conflictErr)
	})

	t.Run("removes entity and reports, audit survives", func(t *testing.T) {
		audit := moderation.AuditEntry{
			ID:         "audit2",
			Action:     moderation.ActionPermanentDelete,
			ActorID:    "admin1",
			EntityKind: moderation.KindProject,
			EntityID:   "proj1",
			Timestamp:  time.Now(),
		}
		require.NoError(t, store.CommitDelete(ctx, e, 2, audit))

		got, err := store.GetEntity(ctx, moderation.KindProject, "proj1")
		require.NoError(t, err)
		assert.Nil(t, got)

		stored, err := store.GetReport(ctx, "r1")
		require.NoError(t, err)
		assert.Nil(t, stored)

		reports, err := store.ListReports(ctx, moderation.KindProject, "proj1")
		require.NoError(t, err)
		assert.Empty(t, reports)

		entries, err := store.ListAuditLog(ctx, 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, moderation.ActionPermanentDelete, entries[0].Action)
	})
}

func TestReportCounts(t *testing.T) {
	ctx := context.Background()
	store := setupTestModerationStore(t)

	e := testEntity("alice")
	require.NoError(t, store.CreateEntity(ctx, e))

	now := time.Now()
	for i, id := range []string{"r1", "r2", "r3"} {
		e.Rev = int64(i + 2)
		rep := testReport(id, "alice", now.Add(time.Duration(i)*time.Minute))
		if id == "r1" {
			rep.SubmittedAt = now.Add(-2 * time.Hour)
		}
		require.NoError(t, store.CommitReport(ctx, e, int64(i+1), rep))
	}

	count, err := store.CountPendingReports(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	recent, err := store.CountReportsByReporterSince(ctx, "reporter", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, recent)

	none, err := store.CountReportsByReporterSince(ctx, "someone-else", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, none)
}

func TestAuditLogOrder(t *testing.T) {
	ctx := context.Background()
	store := setupTestModerationStore(t)

	e := testEntity("alice")
	require.NoError(t, store.CreateEntity(ctx, e))

	base := time.Now()
	for i, action := range []moderation.ActionKind{moderation.ActionWarn, moderation.ActionSuspend, moderation.ActionBan} {
		decided := e
		decided.Rev = int64(i + 2)
		audit := moderation.AuditEntry{
			ID:         string(action),
			Action:     action,
			ActorID:    "admin1",
			EntityKind: moderation.KindUser,
			EntityID:   "alice",
			Timestamp:  base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, store.CommitDecision(ctx, decided, int64(i+1), moderation.ReportResolution{}, audit))
	}

	t.Run("newest first", func(t *testing.T) {
		entries, err := store.ListAuditLog(ctx, 10)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, moderation.ActionBan, entries[0].Action)
		assert.Equal(t, moderation.ActionSuspend, entries[1].Action)
		assert.Equal(t, moderation.ActionWarn, entries[2].Action)
	})

	t.Run("limit is respected", func(t *testing.T) {
		entries, err := store.ListAuditLog(ctx, 2)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, moderation.ActionBan, entries[0].Action)
	})
}
