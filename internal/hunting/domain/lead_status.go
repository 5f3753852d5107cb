// Package domain provides core business rules for the hunting bounded context.
package domain

// Lead lifecycle statuses, from discovery through outreach to response.
const (
	LeadStatusPending   = "pending"
	LeadStatusApproved  = "approved"
	LeadStatusDMReady   = "dm_ready"
	LeadStatusDMSent    = "dm_sent"
	LeadStatusContacted = "contacted"
	LeadStatusResponded = "responded"
	LeadStatusRejected  = "rejected"
)

var knownLeadStatuses = map[string]struct{}{
	LeadStatusPending:   {},
	LeadStatusApproved:  {},
	LeadStatusDMReady:   {},
	LeadStatusDMSent:    {},
	LeadStatusContacted: {},
	LeadStatusResponded: {},
	LeadStatusRejected:  {},
}

// IsKnownLeadStatus reports whether the value is a recognized lifecycle status.
func IsKnownLeadStatus(status string) bool {
	_, ok := knownLeadStatuses[status]
	return ok
}

// allowedTransitions maps each status to the set of statuses it may move to.
// A rejection is allowed from any pre-contact state; once the tenant has made
// contact the lead can only resolve by the prospect responding.
var allowedTransitions = map[string]map[string]struct{}{
	LeadStatusPending: {
		LeadStatusApproved: {},
		LeadStatusRejected: {},
	},
	LeadStatusApproved: {
		LeadStatusDMReady:  {},
		LeadStatusRejected: {},
	},
	LeadStatusDMReady: {
		LeadStatusDMSent:   {},
		LeadStatusRejected: {},
	},
	LeadStatusDMSent: {
		LeadStatusContacted: {},
		LeadStatusResponded: {},
		LeadStatusRejected:  {},
	},
	LeadStatusContacted: {
		LeadStatusResponded: {},
	},
	LeadStatusResponded: {},
	LeadStatusRejected:  {},
}

// terminalLeadStatuses are statuses with no outgoing transitions.
var terminalLeadStatuses = map[string]bool{
	LeadStatusResponded: true,
	LeadStatusRejected:  true,
}

// IsTerminalLeadStatus returns true if no further transitions are possible.
func IsTerminalLeadStatus(status string) bool {
	return terminalLeadStatuses[status]
}

// CanTransition reports whether moving a lead from one status to another is
// legal. Self-transitions are not legal; callers wanting idempotent behavior
// must check the current status first.
func CanTransition(from, to string) bool {
	targets, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}
