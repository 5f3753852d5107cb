package domain

import "testing"

func TestCanTransitionHappyPath(t *testing.T) {
	path := []string{
		LeadStatusPending,
		LeadStatusApproved,
		LeadStatusDMReady,
		LeadStatusDMSent,
		LeadStatusContacted,
		LeadStatusResponded,
	}

	for i := 0; i < len(path)-1; i++ {
		if !CanTransition(path[i], path[i+1]) {
			t.Errorf("CanTransition(%s, %s) = false, want true", path[i], path[i+1])
		}
	}
}

func TestRejectionAllowedBeforeContact(t *testing.T) {
	rejectable := []string{LeadStatusPending, LeadStatusApproved, LeadStatusDMReady, LeadStatusDMSent}
	for _, from := range rejectable {
		if !CanTransition(from, LeadStatusRejected) {
			t.Errorf("CanTransition(%s, rejected) = false, want true", from)
		}
	}

	if CanTransition(LeadStatusContacted, LeadStatusRejected) {
		t.Error("contacted lead must not be rejectable")
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	all := []string{
		LeadStatusPending, LeadStatusApproved, LeadStatusDMReady,
		LeadStatusDMSent, LeadStatusContacted, LeadStatusResponded, LeadStatusRejected,
	}

	for _, terminal := range []string{LeadStatusResponded, LeadStatusRejected} {
		if !IsTerminalLeadStatus(terminal) {
			t.Errorf("IsTerminalLeadStatus(%s) = false, want true", terminal)
		}
		for _, to := range all {
			if CanTransition(terminal, to) {
				t.Errorf("CanTransition(%s, %s) = true, want false", terminal, to)
			}
		}
	}
}

func TestInvalidTransitionsRejected(t *testing.T) {
	cases := []struct{ from, to string }{
		{LeadStatusContacted, LeadStatusApproved},
		{LeadStatusPending, LeadStatusDMSent},
		{LeadStatusPending, LeadStatusContacted},
		{LeadStatusApproved, LeadStatusContacted},
		{LeadStatusDMSent, LeadStatusApproved},
		{LeadStatusPending, LeadStatusPending},
		{"bogus", LeadStatusApproved},
	}

	for _, tc := range cases {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("CanTransition(%s, %s) = true, want false", tc.from, tc.to)
		}
	}
}

func TestIsKnownLeadStatus(t *testing.T) {
	if !IsKnownLeadStatus(LeadStatusDMReady) {
		t.Error("dm_ready should be a known status")
	}
	if IsKnownLeadStatus("archived") {
		t.Error("archived should not be a known status")
	}
}
