// Package workflow defines the prepress job state machine and the role
// authorization table governing it.
//
// Status graph:
//
//	PENDING ──► ASSIGNED ──► IN_PROGRESS ──► HOD_REVIEW ──► COMPLETED
//	                │  ▲          │ ▲              │
//	                │  │          ▼ │              │
//	                │  │        PAUSED             │
//	                │  └──────────┴────────────────┤
//	                └────────────► REJECTED ◄──────┘
//
// COMPLETED is terminal. REJECTED may be reopened to ASSIGNED or
// IN_PROGRESS.
package workflow

import "fmt"

// Status values mirror the prepress_status enum in PostgreSQL.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusAssigned   Status = "ASSIGNED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusPaused     Status = "PAUSED"
	StatusHODReview  Status = "HOD_REVIEW"
	StatusCompleted  Status = "COMPLETED"
	StatusRejected   Status = "REJECTED"
)

// Role enumerates the actors that may drive prepress transitions.
type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RoleHODPrepress  Role = "HOD_PREPRESS"
	RoleDesigner     Role = "DESIGNER"
	RoleMerchandiser Role = "MERCHANDISER"
)

// Action labels recorded in the activity ledger. These are distinct from
// statuses: the edge ASSIGNED->IN_PROGRESS is logged as STARTED, and a
// designer submitting work logs COMPLETED while the job lands in HOD_REVIEW.
type Action string

const (
	ActionCreated       Action = "CREATED"
	ActionAssigned      Action = "ASSIGNED"
	ActionStarted       Action = "STARTED"
	ActionPaused        Action = "PAUSED"
	ActionResumed       Action = "RESUMED"
	ActionCompleted     Action = "COMPLETED"
	ActionApproved      Action = "APPROVED"
	ActionRejected      Action = "REJECTED"
	ActionReassigned    Action = "REASSIGNED"
	ActionRemark        Action = "REMARK"
	ActionStatusChanged Action = "STATUS_CHANGED"
)

// validTransitions lists every allowed (from -> to) edge. No self-loops.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusAssigned},
	StatusAssigned:   {StatusInProgress},
	StatusInProgress: {StatusPaused, StatusHODReview, StatusRejected},
	StatusPaused:     {StatusInProgress, StatusRejected},
	StatusHODReview:  {StatusCompleted, StatusRejected},
	StatusRejected:   {StatusAssigned, StatusInProgress},
	// COMPLETED is terminal
}

// roleTargets maps each non-admin role to the statuses it may drive a job
// into. The designer set is expressed as target statuses: start/resume land
// in IN_PROGRESS and submit-for-review lands in HOD_REVIEW; designers never
// set COMPLETED, only HOD or admin terminally complete a job.
var roleTargets = map[Role]map[Status]struct{}{
	RoleHODPrepress: {
		StatusAssigned:  {},
		StatusHODReview: {},
		StatusRejected:  {},
		StatusCompleted: {},
	},
	RoleDesigner: {
		StatusInProgress: {},
		StatusPaused:     {},
		StatusHODReview:  {},
	},
	RoleMerchandiser: {},
}

// transitionActions derives the ledger action from a (from, to) pair.
var transitionActions = map[Status]map[Status]Action{
	StatusPending:    {StatusAssigned: ActionAssigned},
	StatusAssigned:   {StatusInProgress: ActionStarted},
	StatusInProgress: {StatusPaused: ActionPaused, StatusHODReview: ActionCompleted},
	StatusPaused:     {StatusInProgress: ActionResumed},
	StatusHODReview:  {StatusCompleted: ActionApproved, StatusRejected: ActionRejected},
}

// HasEdge reports whether the state graph permits moving from -> to,
// regardless of who is asking.
func HasEdge(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsValidTransition reports whether the actor role may drive the job from
// one status to another. Both checks must pass: the graph must contain the
// edge, and the role must be allowed to target the destination status.
// ADMIN bypasses the role table but never the graph.
func IsValidTransition(from, to Status, role Role) bool {
	if !HasEdge(from, to) {
		return false
	}
	if role == RoleAdmin {
		return true
	}
	targets, ok := roleTargets[role]
	if !ok {
		return false
	}
	_, allowed := targets[to]
	return allowed
}

// ActionFor returns the ledger action for a transition. Pairs outside the
// fixed derivation table fall back to STATUS_CHANGED (e.g. the
// REJECTED->ASSIGNED reopen edge).
func ActionFor(from, to Status) Action {
	if action, ok := transitionActions[from][to]; ok {
		return action
	}
	return ActionStatusChanged
}

// IsTerminal reports whether a status has no outgoing edges.
func IsTerminal(s Status) bool {
	return len(validTransitions[s]) == 0
}

// Statuses returns every defined status value.
func Statuses() []Status {
	return []Status{
		StatusPending,
		StatusAssigned,
		StatusInProgress,
		StatusPaused,
		StatusHODReview,
		StatusCompleted,
		StatusRejected,
	}
}

// Roles returns every defined role value.
func Roles() []Role {
	return []Role{RoleAdmin, RoleHODPrepress, RoleDesigner, RoleMerchandiser}
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusPending, StatusAssigned, StatusInProgress, StatusPaused,
		StatusHODReview, StatusCompleted, StatusRejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown prepress status %q", s)
}

// ParseRole converts a raw string to a Role, returning an error for unknown
// values.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	switch r {
	case RoleAdmin, RoleHODPrepress, RoleDesigner, RoleMerchandiser:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}
