package moderation

import "time"

// EntityKind identifies the two kinds of objects that can be reported
// and sanctioned.
type EntityKind string

const (
	KindUser    EntityKind = "user"
	KindProject EntityKind = "project"
)

// Valid returns true if the kind is one of the known entity kinds.
func (k EntityKind) Valid() bool {
	return k == KindUser || k == KindProject
}

// Status is the moderation status of an entity. Which statuses apply to
// which entity kind is governed by the transition table in transitions.go.
type Status string

const (
	StatusActive    Status = "active"
	StatusReported  Status = "reported"
	StatusWarned    Status = "warned"
	StatusSuspended Status = "suspended"
	StatusBanned    Status = "banned"
	StatusHidden    Status = "hidden"
	StatusDeleted   Status = "deleted"
)

// Reason is an enumerated report category. Exactly one per report.
type Reason string

const (
	ReasonSpam          Reason = "spam"
	ReasonHarassment    Reason = "harassment"
	ReasonPlagiarism    Reason = "plagiarism"
	ReasonInappropriate Reason = "inappropriate"
	ReasonImpersonation Reason = "impersonation"
	ReasonOther         Reason = "other"
)

// Reasons returns all accepted report categories.
func Reasons() []Reason {
	return []Reason{
		ReasonSpam,
		ReasonHarassment,
		ReasonPlagiarism,
		ReasonInappropriate,
		ReasonImpersonation,
		ReasonOther,
	}
}

// Valid returns true if the reason is one of the enumerated categories.
func (r Reason) Valid() bool {
	switch r {
	case ReasonSpam, ReasonHarassment, ReasonPlagiarism,
		ReasonInappropriate, ReasonImpersonation, ReasonOther:
		return true
	}
	return false
}

// ReportStatus represents the resolution state of a report.
// Reports only ever move out of pending, never back.
type ReportStatus string

const (
	ReportStatusPending   ReportStatus = "pending"
	ReportStatusDismissed ReportStatus = "dismissed"
	ReportStatusActioned  ReportStatus = "actioned"
)

// Report records who reported what and why. Reports are kept forever;
// resolution marks the status but preserves the record for audit.
type Report struct {
	ID          string       `json:"id"`
	EntityKind  EntityKind   `json:"entity_kind"`
	EntityID    string       `json:"entity_id"`
	ReporterID  string       `json:"reporter_id"`
	Reason      Reason       `json:"reason"`
	Details     string       `json:"details,omitempty"`
	Status      ReportStatus `json:"status"`
	SubmittedAt time.Time    `json:"submitted_at"`
	ResolvedBy  string       `json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time   `json:"resolved_at,omitempty"`
}

// SanctionKind distinguishes the two restriction types.
type SanctionKind string

const (
	SanctionSuspension SanctionKind = "suspension"
	SanctionBan        SanctionKind = "ban"
)

// Sanction is a time-boxed or permanent restriction attached to a user.
// A nil DurationHours denotes a permanent sanction (bans only). An entity
// carries at most one sanction; setting a new one replaces the old.
type Sanction struct {
	Kind          SanctionKind `json:"kind"`
	Reason        string       `json:"reason"`
	StartedAt     time.Time    `json:"started_at"`
	DurationHours *int         `json:"duration_hours,omitempty"`
}

// Permanent returns true if the sanction has no expiry.
func (s *Sanction) Permanent() bool {
	return s.DurationHours == nil
}

// Warning is an informational note issued against an entity. Warnings do
// not themselves change visibility.
type Warning struct {
	Reason   string    `json:"reason"`
	IssuedBy string    `json:"issued_by"`
	IssuedAt time.Time `json:"issued_at"`
}

// Entity is the moderation record for a user account or a project.
// Rev is the optimistic-concurrency version; every committed write
// increments it by one.
type Entity struct {
	ID        string     `json:"id"`
	Kind      EntityKind `json:"kind"`
	OwnerID   string     `json:"owner_id"` // equals ID for users
	Status    Status     `json:"status"`
	Sanction  *Sanction  `json:"sanction,omitempty"`
	Warnings  []Warning  `json:"warnings,omitempty"`
	Rev       int64      `json:"rev"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Key returns the storage key for the entity, unique across kinds.
func (e *Entity) Key() string {
	return EntityKey(e.Kind, e.ID)
}

// EntityKey builds the storage key for an entity id within a kind.
func EntityKey(kind EntityKind, id string) string {
	return string(kind) + "/" + id
}

// AuditEntry is an immutable record of a successful enforcement action.
// The audit log is append-only and survives entity deletion.
type AuditEntry struct {
	ID         string     `json:"id"`
	Action     ActionKind `json:"action"`
	ActorID    string     `json:"actor_id"`
	EntityKind EntityKind `json:"entity_kind"`
	EntityID   string     `json:"entity_id"`
	Reason     string     `json:"reason,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}
