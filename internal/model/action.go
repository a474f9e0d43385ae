package model

import "strings"

// Action is the lifecycle action requested by an operation.
type Action string

// Lifecycle actions.
const (
	ActionReserve      Action = "Reserve"
	ActionAssign       Action = "Assign"
	ActionActivate     Action = "Activate"
	ActionDeactivate   Action = "Deactivate"
	ActionChangeAssign Action = "ChangeAssign"
	ActionChangeDelete Action = "ChangeDelete"
	ActionRollback     Action = "Rollback"
	ActionUnassign     Action = "Unassign"
	ActionDelete       Action = "Delete"
	ActionCreate       Action = "Create"
)

var actions = []Action{
	ActionReserve,
	ActionAssign,
	ActionActivate,
	ActionDeactivate,
	ActionChangeAssign,
	ActionChangeDelete,
	ActionRollback,
	ActionUnassign,
	ActionDelete,
	ActionCreate,
}

// ParseAction maps s to a known Action, ignoring case. It reports false
// for empty or unknown values.
func ParseAction(s string) (Action, bool) {
	for _, a := range actions {
		if strings.EqualFold(string(a), s) {
			return a, true
		}
	}
	return "", false
}

// In reports whether a is one of set.
func (a Action) In(set []Action) bool {
	for _, s := range set {
		if a == s {
			return true
		}
	}
	return false
}
