package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasEdgeCoversDefinedGraph(t *testing.T) {
	edges := []struct {
		from Status
		to   Status
	}{
		{StatusPending, StatusAssigned},
		{StatusAssigned, StatusInProgress},
		{StatusInProgress, StatusPaused},
		{StatusInProgress, StatusHODReview},
		{StatusInProgress, StatusRejected},
		{StatusPaused, StatusInProgress},
		{StatusPaused, StatusRejected},
		{StatusHODReview, StatusCompleted},
		{StatusHODReview, StatusRejected},
		{StatusRejected, StatusAssigned},
		{StatusRejected, StatusInProgress},
	}
	allowed := make(map[Status]map[Status]bool)
	for _, e := range edges {
		if allowed[e.from] == nil {
			allowed[e.from] = make(map[Status]bool)
		}
		allowed[e.from][e.to] = true
	}

	for _, from := range Statuses() {
		for _, to := range Statuses() {
			require.Equal(t, allowed[from][to], HasEdge(from, to),
				"edge %s->%s", from, to)
		}
	}
}

func TestAdminBypassesRoleTableButNotGraph(t *testing.T) {
	require.True(t, IsValidTransition(StatusPending, StatusAssigned, RoleAdmin))
	require.True(t, IsValidTransition(StatusRejected, StatusInProgress, RoleAdmin))

	// no role may jump outside the graph, admin included
	require.False(t, IsValidTransition(StatusPending, StatusCompleted, RoleAdmin))
	require.False(t, IsValidTransition(StatusCompleted, StatusInProgress, RoleAdmin))
	for _, s := range Statuses() {
		require.False(t, IsValidTransition(s, s, RoleAdmin), "self-loop %s", s)
	}
}

func TestRoleTargetTruthTable(t *testing.T) {
	targets := map[Role][]Status{
		RoleHODPrepress:  {StatusAssigned, StatusHODReview, StatusRejected, StatusCompleted},
		RoleDesigner:     {StatusInProgress, StatusPaused, StatusHODReview},
		RoleMerchandiser: {},
	}

	for role, set := range targets {
		inSet := make(map[Status]bool, len(set))
		for _, s := range set {
			inSet[s] = true
		}
		for _, from := range Statuses() {
			for _, to := range Statuses() {
				want := HasEdge(from, to) && inSet[to]
				require.Equal(t, want, IsValidTransition(from, to, role),
					"%s: %s->%s", role, from, to)
			}
		}
	}
}

func TestDesignerCannotAssignOrComplete(t *testing.T) {
	// graph permits PENDING->ASSIGNED, but only HOD/admin may target ASSIGNED
	require.False(t, IsValidTransition(StatusPending, StatusAssigned, RoleDesigner))
	// terminal completion is reserved to HOD/admin
	require.False(t, IsValidTransition(StatusHODReview, StatusCompleted, RoleDesigner))
	// submitting for review is the designer's "complete"
	require.True(t, IsValidTransition(StatusInProgress, StatusHODReview, RoleDesigner))
}

func TestUnknownRoleIsRejected(t *testing.T) {
	require.False(t, IsValidTransition(StatusPending, StatusAssigned, Role("INTERN")))
}

func TestActionDerivation(t *testing.T) {
	cases := []struct {
		from   Status
		to     Status
		action Action
	}{
		{StatusPending, StatusAssigned, ActionAssigned},
		{StatusAssigned, StatusInProgress, ActionStarted},
		{StatusInProgress, StatusPaused, ActionPaused},
		{StatusPaused, StatusInProgress, ActionResumed},
		{StatusInProgress, StatusHODReview, ActionCompleted},
		{StatusHODReview, StatusCompleted, ActionApproved},
		{StatusHODReview, StatusRejected, ActionRejected},
		// reopen edges fall back to the generic action
		{StatusRejected, StatusAssigned, ActionStatusChanged},
		{StatusRejected, StatusInProgress, ActionStatusChanged},
		{StatusInProgress, StatusRejected, ActionStatusChanged},
	}
	for _, tc := range cases {
		require.Equal(t, tc.action, ActionFor(tc.from, tc.to), "%s->%s", tc.from, tc.to)
	}
}

func TestIsTerminal(t *testing.T) {
	require.True(t, IsTerminal(StatusCompleted))
	for _, s := range Statuses() {
		if s == StatusCompleted {
			continue
		}
		require.False(t, IsTerminal(s), "status %s", s)
	}
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("HOD_REVIEW")
	require.NoError(t, err)
	require.Equal(t, StatusHODReview, st)

	_, err = ParseStatus("DONE")
	require.Error(t, err)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("HOD_PREPRESS")
	require.NoError(t, err)
	require.Equal(t, RoleHODPrepress, r)

	_, err = ParseRole("OPERATOR")
	require.Error(t, err)
}
