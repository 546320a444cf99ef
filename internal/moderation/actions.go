package moderation

import "fmt"

// ActionKind names an enforcement action.
type ActionKind string

const (
	ActionDismiss         ActionKind = "dismiss"
	ActionWarn            ActionKind = "warn"
	ActionSuspend         ActionKind = "suspend"
	ActionBan             ActionKind = "ban"
	ActionUnsuspend       ActionKind = "unsuspend"
	ActionHide            ActionKind = "hide"
	ActionRestore         ActionKind = "restore"
	ActionPermanentDelete ActionKind = "permanent_delete"
)

// Action is an enforcement decision with its own validated parameter set.
// Each action kind is a distinct variant; whether it applies to the
// entity's current status and kind is decided by the transition table,
// not here.
type Action interface {
	Kind() ActionKind
	// Validate checks the action's own parameters. It returns a
	// *ValidationError for malformed input and nil otherwise.
	Validate() error
}

// Dismiss resolves all pending reports without sanctioning.
type Dismiss struct{}

func (Dismiss) Kind() ActionKind { return ActionDismiss }
func (Dismiss) Validate() error  { return nil }

// Warn issues an informational warning against a user.
type Warn struct {
	Reason string
}

func (Warn) Kind() ActionKind { return ActionWarn }

func (a Warn) Validate() error {
	if a.Reason == "" {
		return &ValidationError{Field: "reason", Message: "warn requires a non-empty reason"}
	}
	return nil
}

// Suspend puts a user under a time-boxed suspension.
type Suspend struct {
	Reason        string
	DurationHours int
}

func (Suspend) Kind() ActionKind { return ActionSuspend }

func (a Suspend) Validate() error {
	if a.Reason == "" {
		return &ValidationError{Field: "reason", Message: "suspend requires a non-empty reason"}
	}
	if a.DurationHours < 1 {
		return &ValidationError{Field: "duration_hours", Message: "suspension duration must be at least 1 hour"}
	}
	return nil
}

// Ban restricts a user for a fixed number of hours, or permanently when
// DurationHours is nil.
type Ban struct {
	Reason        string
	DurationHours *int
}

func (Ban) Kind() ActionKind { return ActionBan }

func (a Ban) Validate() error {
	if a.Reason == "" {
		return &ValidationError{Field: "reason", Message: "ban requires a non-empty reason"}
	}
	if a.DurationHours != nil && *a.DurationHours < 1 {
		return &ValidationError{Field: "duration_hours", Message: "ban duration must be at least 1 hour, or omitted for permanent"}
	}
	return nil
}

// Unsuspend lifts a suspension and clears the sanction.
type Unsuspend struct{}

func (Unsuspend) Kind() ActionKind { return ActionUnsuspend }
func (Unsuspend) Validate() error  { return nil }

// Hide removes a project from public listings.
type Hide struct {
	Reason string
}

func (Hide) Kind() ActionKind { return ActionHide }

func (a Hide) Validate() error {
	if a.Reason == "" {
		return &ValidationError{Field: "reason", Message: "hide requires a non-empty reason"}
	}
	return nil
}

// Restore makes a hidden project active again.
type Restore struct{}

func (Restore) Kind() ActionKind { return ActionRestore }
func (Restore) Validate() error  { return nil }

// PermanentDelete removes a hidden project and its reports for good.
// Irreversible; only the audit log keeps a trace.
type PermanentDelete struct{}

func (PermanentDelete) Kind() ActionKind { return ActionPermanentDelete }
func (PermanentDelete) Validate() error  { return nil }

// reason returns the human-supplied reason for actions that carry one.
func reason(a Action) string {
	switch v := a.(type) {
	case Warn:
		return v.Reason
	case Suspend:
		return v.Reason
	case Ban:
		return v.Reason
	case Hide:
		return v.Reason
	}
	return ""
}

// ParseAction builds the tagged action variant for a generic
// (name, reason, duration) triple as it arrives at the HTTP boundary.
// Unknown names are a validation error.
func ParseAction(name string, reasonText string, durationHours *int) (Action, error) {
	switch ActionKind(name) {
	case ActionDismiss:
		return Dismiss{}, nil
	case ActionWarn:
		return Warn{Reason: reasonText}, nil
	case ActionSuspend:
		if durationHours == nil {
			return nil, &ValidationError{Field: "duration_hours", Message: "suspend requires a duration"}
		}
		return Suspend{Reason: reasonText, DurationHours: *durationHours}, nil
	case ActionBan:
		return Ban{Reason: reasonText, DurationHours: durationHours}, nil
	case ActionUnsuspend:
		return Unsuspend{}, nil
	case ActionHide:
		return Hide{Reason: reasonText}, nil
	case ActionRestore:
		return Restore{}, nil
	case ActionPermanentDelete:
		return PermanentDelete{}, nil
	}
	return nil, &ValidationError{Field: "action", Message: fmt.Sprintf("unknown action %q", name)}
}
