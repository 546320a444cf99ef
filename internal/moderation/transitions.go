package moderation

import "sort"

// transitions is the full lifecycle table per entity kind: for a current
// status, the actions that are legal and the status each one leads to.
// Any (status, action) pair absent from this table is rejected; no code
// path may move an entity along an edge that is not listed here.
var transitions = map[EntityKind]map[Status]map[ActionKind]Status{
	KindUser: {
		StatusActive: {
			ActionDismiss: StatusActive,
		},
		StatusReported: {
			ActionDismiss: StatusActive,
			ActionWarn:    StatusWarned,
			ActionSuspend: StatusSuspended,
			ActionBan:     StatusBanned,
		},
		StatusWarned: {
			ActionSuspend: StatusSuspended,
			ActionBan:     StatusBanned,
		},
		StatusSuspended: {
			ActionUnsuspend: StatusActive,
			ActionBan:       StatusBanned,
		},
		// Banned has no outgoing edges: a permanent ban is terminal, and
		// a time-boxed ban reads as ended on the clock while the status
		// stands for audit.
		StatusBanned: {},
	},
	KindProject: {
		StatusActive: {
			ActionDismiss: StatusActive,
		},
		StatusReported: {
			ActionDismiss: StatusActive,
			ActionHide:    StatusHidden,
		},
		StatusHidden: {
			ActionRestore:         StatusActive,
			ActionPermanentDelete: StatusDeleted,
		},
	},
}

// NextStatus resolves the status an action leads to from the current one.
// Returns *InvalidTransitionError when the edge is not in the table,
// including for actions that exist but do not apply to the entity kind
// (e.g. ban against a project).
func NextStatus(kind EntityKind, current Status, action ActionKind) (Status, error) {
	byStatus, ok := transitions[kind]
	if !ok {
		return "", &InvalidTransitionError{Kind: kind, Current: current, Action: action}
	}
	byAction, ok := byStatus[current]
	if !ok {
		return "", &InvalidTransitionError{Kind: kind, Current: current, Action: action}
	}
	next, ok := byAction[action]
	if !ok {
		return "", &InvalidTransitionError{Kind: kind, Current: current, Action: action}
	}
	return next, nil
}

// AllowedActions lists the actions legal for an entity kind in a given
// status, sorted for stable output. Used by the admin queue so the UI can
// offer only valid choices.
func AllowedActions(kind EntityKind, current Status) []ActionKind {
	byAction, ok := transitions[kind][current]
	if !ok || len(byAction) == 0 {
		return nil
	}
	actions := make([]ActionKind, 0, len(byAction))
	for a := range byAction {
		actions = append(actions, a)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}
