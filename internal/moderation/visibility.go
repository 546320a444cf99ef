package moderation

// Visibility rules: pure functions of the entity's moderation status,
// consulted by the content-serving layer before returning any profile or
// project payload.

// PubliclyVisible reports whether the entity appears in public listings.
// Only fully active entities are shown.
func PubliclyVisible(e *Entity) bool {
	return e.Status == StatusActive
}

// VisibleToOwner reports whether the entity's owner can still see it in
// their own views. Owners see their reported, hidden and sanctioned
// content labeled as such; only deletion removes it.
func VisibleToOwner(e *Entity) bool {
	return e.Status != StatusDeleted
}

// InAdminQueue reports whether the entity belongs in the admin review
// queue: anything with unresolved reports or sanction history worth
// reviewing. Active and deleted entities are excluded.
func InAdminQueue(e *Entity) bool {
	switch e.Status {
	case StatusReported, StatusHidden, StatusSuspended, StatusBanned:
		return true
	}
	return false
}
