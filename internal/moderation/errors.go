package moderation

import "fmt"

// ValidationError rejects malformed input before any state is touched.
// The caller can resubmit corrected input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Message
}

// NotFoundError indicates that an entity or report id does not exist.
type NotFoundError struct {
	Resource string // "entity" or "report"
	ID       string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found: " + e.ID
}

// InvalidTransitionError indicates that the requested action is not legal
// from the entity's current status. Current is included so an admin UI can
// refresh and retry with a valid action.
type InvalidTransitionError struct {
	Kind    EntityKind
	Current Status
	Action  ActionKind
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("action %s not allowed for %s in status %s", e.Action, e.Kind, e.Current)
}

// InvalidStateError indicates a report resolution was attempted against a
// report that is no longer pending.
type InvalidStateError struct {
	ReportID string
	Status   ReportStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("report %s is %s, not pending", e.ReportID, e.Status)
}

// ConcurrencyConflictError indicates the entity changed between the read
// and the write of a decision. Nothing was applied; the caller re-reads
// current state and retries.
type ConcurrencyConflictError struct {
	Kind EntityKind
	ID   string
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("concurrent modification of %s %s", e.Kind, e.ID)
}
