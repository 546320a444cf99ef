package handlers_test

import (
	"net/http"
	"testing"

	"github.com/ptdewey/shutter"
	"github.com/stretchr/testify/require"
)

// TestReportReasons_Snapshot pins the report category list clients build
// their report forms from.
func TestReportReasons_Snapshot(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, "GET", "/api/reports/reasons", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	shutter.SnapJSON(t, "report_reasons", rec.Body.String())
}

// TestInvalidTransition_Snapshot pins the error shape clients rely on to
// show the conflicting status.
func TestInvalidTransition_Snapshot(t *testing.T) {
	ts := setupTestServer(t)
	ts.register(t, "user", "alice", "")

	rec := ts.do(t, "POST", "/api/admin/entities/user/alice/actions", "admin1", map[string]any{
		"action": "warn", "reason": "strike",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	shutter.SnapJSON(t, "invalid_transition_error", rec.Body.String())
}

// TestQueueEntry_Snapshot pins the review queue row shape.
func TestQueueEntry_Snapshot(t *testing.T) {
	ts := setupTestServer(t)
	ts.register(t, "user", "alice", "")

	rec := ts.do(t, "POST", "/api/reports", "bob", map[string]any{
		"entity_kind": "user", "entity_id": "alice", "reason": "spam", "details": "link farms",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, "GET", "/api/admin/queue?kind=user", "admin1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	shutter.SnapJSON(t, "moderation_queue", rec.Body.String(),
		shutter.ScrubTimestamp(),
		shutter.IgnoreKey("id"),
		shutter.IgnoreKey("created_at"),
		shutter.IgnoreKey("updated_at"),
		shutter.IgnoreKey("submitted_at"),
	)
}
