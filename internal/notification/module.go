// Package notification turns domain events into tenant-facing alerts:
// persisted in-app notifications plus optional email delivery. It subscribes
// to events so the hunting module never needs to know about email providers
// or notification storage.
package notification

import (
	"context"
	"fmt"

	"leadhunt_backend/internal/email"
	"leadhunt_backend/internal/events"
	apphttp "leadhunt_backend/internal/http"
	huntrepo "leadhunt_backend/internal/hunting/repository"
	"leadhunt_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionReader resolves the tenant's alert email address.
type SessionReader interface {
	GetSessionByTenant(ctx context.Context, tenantID uuid.UUID) (huntrepo.HuntingSession, error)
}

type Module struct {
	svc      *Service
	handler  *Handler
	sender   email.Sender
	sessions SessionReader
	log      *logger.Logger
}

func NewModule(pool *pgxpool.Pool, sender email.Sender, sessions SessionReader, log *logger.Logger) *Module {
	svc := NewService(NewRepository(pool), log)
	return &Module{
		svc:      svc,
		handler:  NewHandler(svc),
		sender:   sender,
		sessions: sessions,
		log:      log,
	}
}

func (m *Module) Name() string {
	return "notification"
}

// Service exposes the notification service for tests and other modules.
func (m *Module) Service() *Service {
	return m.svc
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/notifications"))
}

// RegisterHandlers subscribes to the domain events this module reacts to.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadCreated{}.EventName(), m)
	bus.Subscribe(events.LeadResponded{}.EventName(), m)
	bus.Subscribe(events.ApprovalBacklogGrew{}.EventName(), m)
	bus.Subscribe(events.SessionPaused{}.EventName(), m)
	bus.Subscribe(events.InboxMessageUnmatched{}.EventName(), m)
}

// Handle dispatches a domain event to its notification handler.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadCreated:
		return m.handleLeadCreated(ctx, e)
	case events.LeadResponded:
		return m.handleLeadResponded(ctx, e)
	case events.ApprovalBacklogGrew:
		return m.handleBacklogGrew(ctx, e)
	case events.SessionPaused:
		return m.handleSessionPaused(ctx, e)
	case events.InboxMessageUnmatched:
		return m.handleInboxUnmatched(ctx, e)
	default:
		return nil
	}
}

func (m *Module) handleLeadCreated(ctx context.Context, e events.LeadCreated) error {
	content := fmt.Sprintf("Scored %d/10 in r/%s: %s", e.RelevanceScore, e.Subreddit, e.PostTitle)
	if e.RequiresApproval {
		content += " (waiting for your approval)"
	}
	leadID := e.LeadID
	m.svc.Notify(ctx, CreateParams{
		TenantID:     e.TenantID,
		Title:        "New lead found",
		Content:      content,
		Category:     "success",
		ResourceID:   &leadID,
		ResourceType: strPtr("lead"),
	})

	if to := m.alertEmail(ctx, e.TenantID); to != "" {
		if err := m.sender.SendLeadFoundEmail(ctx, to, e.Subreddit, e.PostTitle, e.PostURL, e.RelevanceScore); err != nil {
			m.log.Error("lead found email failed", "tenant_id", e.TenantID, "error", err)
		}
	}
	return nil
}

func (m *Module) handleLeadResponded(ctx context.Context, e events.LeadResponded) error {
	leadID := e.LeadID
	m.svc.Notify(ctx, CreateParams{
		TenantID:     e.TenantID,
		Title:        fmt.Sprintf("u/%s responded", e.AuthorName),
		Content:      e.Preview,
		Category:     "success",
		ResourceID:   &leadID,
		ResourceType: strPtr("lead"),
	})

	if to := m.alertEmail(ctx, e.TenantID); to != "" {
		if err := m.sender.SendLeadRespondedEmail(ctx, to, e.AuthorName, e.Preview); err != nil {
			m.log.Error("lead responded email failed", "tenant_id", e.TenantID, "error", err)
		}
	}
	return nil
}

func (m *Module) handleBacklogGrew(ctx context.Context, e events.ApprovalBacklogGrew) error {
	m.svc.Notify(ctx, CreateParams{
		TenantID: e.TenantID,
		Title:    "Leads waiting for approval",
		Content:  fmt.Sprintf("%d leads are waiting for your review.", e.Pending),
		Category: "info",
	})

	if to := m.alertEmail(ctx, e.TenantID); to != "" {
		if err := m.sender.SendBacklogEmail(ctx, to, e.Pending); err != nil {
			m.log.Error("backlog email failed", "tenant_id", e.TenantID, "error", err)
		}
	}
	return nil
}

func (m *Module) handleSessionPaused(ctx context.Context, e events.SessionPaused) error {
	m.svc.Notify(ctx, CreateParams{
		TenantID: e.TenantID,
		Title:    "Hunting paused",
		Content:  fmt.Sprintf("Your hunting session was paused: %s.", e.Reason),
		Category: "warning",
	})

	if to := m.alertEmail(ctx, e.TenantID); to != "" {
		if err := m.sender.SendSessionPausedEmail(ctx, to, e.Reason); err != nil {
			m.log.Error("session paused email failed", "tenant_id", e.TenantID, "error", err)
		}
	}
	return nil
}

// Unmatched inbox messages stay in-app only: they are informational and
// frequent enough that emailing each one would be noise.
func (m *Module) handleInboxUnmatched(ctx context.Context, e events.InboxMessageUnmatched) error {
	m.svc.Notify(ctx, CreateParams{
		TenantID: e.TenantID,
		Title:    fmt.Sprintf("Unmatched message from u/%s", e.AuthorName),
		Content:  e.Preview,
		Category: "info",
	})
	return nil
}

// alertEmail returns the tenant's configured alert address, or "" when no
// address is configured or the session cannot be loaded.
func (m *Module) alertEmail(ctx context.Context, tenantID uuid.UUID) string {
	session, err := m.sessions.GetSessionByTenant(ctx, tenantID)
	if err != nil || session.NotificationEmail == nil {
		return ""
	}
	return *session.NotificationEmail
}

func strPtr(s string) *string { return &s }

var _ apphttp.Module = (*Module)(nil)
var _ events.Handler = (*Module)(nil)
