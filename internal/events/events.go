// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"leadhunt_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var (
	NewBaseEvent   = events.NewBaseEvent
	NewInMemoryBus = events.NewInMemoryBus
)

// =============================================================================
// Hunting Domain Events
// =============================================================================

// LeadCreated is published when the orchestrator qualifies a post into a lead.
type LeadCreated struct {
	BaseEvent
	LeadID           uuid.UUID `json:"leadId"`
	TenantID         uuid.UUID `json:"tenantId"`
	PostID           string    `json:"postId"`
	PostTitle        string    `json:"postTitle"`
	PostURL          string    `json:"postUrl"`
	Subreddit        string    `json:"subreddit"`
	RelevanceScore   int       `json:"relevanceScore"`
	RequiresApproval bool      `json:"requiresApproval"`
}

func (e LeadCreated) EventName() string { return "hunting.lead.created" }

// LeadStatusChanged is published on every successful lifecycle transition.
type LeadStatusChanged struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	TenantID  uuid.UUID `json:"tenantId"`
	OldStatus string    `json:"oldStatus"`
	NewStatus string    `json:"newStatus"`
}

func (e LeadStatusChanged) EventName() string { return "hunting.lead.status_changed" }

// LeadResponded is published when the response monitor matches an inbound
// message to a lead.
type LeadResponded struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	TenantID   uuid.UUID `json:"tenantId"`
	PostTitle  string    `json:"postTitle"`
	AuthorName string    `json:"authorName"`
	Preview    string    `json:"preview"`
}

func (e LeadResponded) EventName() string { return "hunting.lead.responded" }

// ApprovalBacklogGrew is published when a hunting run adds leads that are
// waiting for the tenant's review.
type ApprovalBacklogGrew struct {
	BaseEvent
	TenantID uuid.UUID `json:"tenantId"`
	Pending  int       `json:"pending"`
}

func (e ApprovalBacklogGrew) EventName() string { return "hunting.approval.backlog_grew" }

// SessionPaused is published when a tenant's hunting session is paused,
// by user action or because the provider credential expired.
type SessionPaused struct {
	BaseEvent
	TenantID uuid.UUID `json:"tenantId"`
	Reason   string    `json:"reason"`
}

func (e SessionPaused) EventName() string { return "hunting.session.paused" }

// InboxMessageUnmatched is published for inbound provider messages that could
// not be attributed to a known lead; the tenant still gets visibility.
type InboxMessageUnmatched struct {
	BaseEvent
	TenantID   uuid.UUID `json:"tenantId"`
	AuthorName string    `json:"authorName"`
	Subject    string    `json:"subject"`
	Preview    string    `json:"preview"`
}

func (e InboxMessageUnmatched) EventName() string { return "hunting.inbox.unmatched" }
