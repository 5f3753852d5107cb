// Package responses polls the provider inbox for each connected tenant,
// matches inbound messages to leads, advances matched leads to responded,
// and reconciles server message history into local conversation state.
package responses

import (
	"context"
	"errors"
	"unicode/utf8"

	"leadhunt_backend/internal/events"
	"leadhunt_backend/internal/hunting/domain"
	"leadhunt_backend/internal/hunting/repository"
	"leadhunt_backend/internal/reddit"
	"leadhunt_backend/platform/apperr"
	"leadhunt_backend/platform/logger"

	"github.com/google/uuid"
)

const previewMaxLen = 140

// Store is the persistence surface the monitor needs.
type Store interface {
	FindLeadByAuthor(ctx context.Context, tenantID uuid.UUID, author string) (repository.Lead, error)
	FindLeadByCommentID(ctx context.Context, tenantID uuid.UUID, commentID string) (repository.Lead, error)
	UpdateLeadStatus(ctx context.Context, leadID, tenantID uuid.UUID, fromStatus, newStatus string) error
	EnsureConversation(ctx context.Context, tenantID, leadID uuid.UUID, counterparty string) (repository.Conversation, error)
	HasProviderMessage(ctx context.Context, conversationID uuid.UUID, providerMessageID string) (bool, error)
	AppendMessage(ctx context.Context, p repository.AppendMessageParams) (uuid.UUID, bool, error)
	FindUnconfirmedOutbound(ctx context.Context, conversationID uuid.UUID, body string) (uuid.UUID, error)
	ConfirmMessageDelivery(ctx context.Context, messageID uuid.UUID, providerMessageID *string) error
}

// Inbox is the provider message surface.
type Inbox interface {
	ListUnread(ctx context.Context, token string) ([]reddit.Message, error)
	ListSent(ctx context.Context, token string) ([]reddit.Message, error)
	MarkRead(ctx context.Context, token, fullname string) error
}

// TokenSource yields a valid provider access token for a tenant.
type TokenSource interface {
	ValidToken(ctx context.Context, tenantID uuid.UUID) (string, error)
}

// Service is the per-tenant response monitor.
type Service struct {
	store  Store
	inbox  Inbox
	tokens TokenSource
	bus    events.Bus
	log    *logger.Logger
}

func New(store Store, inbox Inbox, tokens TokenSource, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, inbox: inbox, tokens: tokens, bus: bus, log: log}
}

// PollTenant runs one response-monitoring pass for a tenant: fetch unread and
// recently sent messages, match them to leads, and merge them into local
// conversation state. Safe to re-run with the same server payload.
func (s *Service) PollTenant(ctx context.Context, tenantID uuid.UUID) error {
	log := s.log.WithTenantID(tenantID.String())

	token, err := s.tokens.ValidToken(ctx, tenantID)
	if err != nil {
		if apperr.Is(err, apperr.KindAuthExpired) || apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}

	unread, err := s.inbox.ListUnread(ctx, token)
	if err != nil {
		log.ProviderError("reddit", "list unread", err)
		return err
	}
	sent, err := s.inbox.ListSent(ctx, token)
	if err != nil {
		// Sent history only feeds reconciliation; inbound matching can
		// still proceed without it.
		log.ProviderError("reddit", "list sent", err)
		sent = nil
	}

	matched := s.matchMessages(ctx, tenantID, append(unread, sent...))

	for _, lm := range matched {
		if err := s.processLead(ctx, tenantID, lm); err != nil {
			log.DatabaseError("reconcile lead conversation", err)
		}
	}

	for _, msg := range unread {
		s.markRead(ctx, token, msg)
	}
	return nil
}

// leadMessages pairs a matched lead with every server message attributed to it.
type leadMessages struct {
	lead     repository.Lead
	messages []reddit.Message
}

// matchMessages attributes each server message to a lead. Direct messages
// match on the counterparty handle against the lead's source post author;
// comment replies match on the parent reference against the stored outreach
// comment id. Unmatched inbound DMs are surfaced as generic notifications.
func (s *Service) matchMessages(ctx context.Context, tenantID uuid.UUID, msgs []reddit.Message) []leadMessages {
	byLead := make(map[uuid.UUID]*leadMessages)

	for _, msg := range msgs {
		lead, err := s.resolveLead(ctx, tenantID, msg)
		if errors.Is(err, repository.ErrNotFound) {
			if !msg.Outbound && msg.Kind == reddit.MessageKindPrivate {
				s.bus.Publish(ctx, events.InboxMessageUnmatched{
					BaseEvent:  events.NewBaseEvent(),
					TenantID:   tenantID,
					AuthorName: msg.Author,
					Subject:    msg.Subject,
					Preview:    preview(msg.Body),
				})
			}
			continue
		}
		if err != nil {
			s.log.DatabaseError("match inbox message", err)
			continue
		}

		lm, ok := byLead[lead.ID]
		if !ok {
			lm = &leadMessages{lead: lead}
			byLead[lead.ID] = lm
		}
		lm.messages = append(lm.messages, msg)
	}

	out := make([]leadMessages, 0, len(byLead))
	for _, lm := range byLead {
		out = append(out, *lm)
	}
	return out
}

func (s *Service) resolveLead(ctx context.Context, tenantID uuid.UUID, msg reddit.Message) (repository.Lead, error) {
	if msg.Kind == reddit.MessageKindCommentReply && !msg.Outbound && msg.ParentID != "" {
		return s.store.FindLeadByCommentID(ctx, tenantID, msg.ParentID)
	}
	partner := msg.Author
	if msg.Outbound {
		partner = msg.Dest
	}
	return s.store.FindLeadByAuthor(ctx, tenantID, partner)
}

// processLead advances a lead with inbound activity to responded and merges
// the lead's server messages into its conversation.
func (s *Service) processLead(ctx context.Context, tenantID uuid.UUID, lm leadMessages) error {
	var inbound *reddit.Message
	for i := range lm.messages {
		if !lm.messages[i].Outbound {
			inbound = &lm.messages[i]
			break
		}
	}

	if inbound != nil && lm.lead.Status != domain.LeadStatusResponded {
		if err := s.advanceToResponded(ctx, tenantID, lm.lead, preview(inbound.Body)); err != nil {
			return err
		}
	}

	conv, err := s.store.EnsureConversation(ctx, tenantID, lm.lead.ID, lm.lead.PostAuthor)
	if err != nil {
		return err
	}
	return s.Reconcile(ctx, conv, lm.messages)
}

// advanceToResponded moves the lead to responded. A concurrent poll losing
// the optimistic status check is treated as already done.
func (s *Service) advanceToResponded(ctx context.Context, tenantID uuid.UUID, lead repository.Lead, msgPreview string) error {
	if !domain.CanTransition(lead.Status, domain.LeadStatusResponded) {
		return nil
	}

	err := s.store.UpdateLeadStatus(ctx, lead.ID, tenantID, lead.Status, domain.LeadStatusResponded)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	s.bus.Publish(ctx, events.LeadResponded{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     lead.ID,
		TenantID:   tenantID,
		PostTitle:  lead.PostTitle,
		AuthorName: lead.PostAuthor,
		Preview:    msgPreview,
	})
	s.bus.Publish(ctx, events.LeadStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		TenantID:  tenantID,
		OldStatus: lead.Status,
		NewStatus: domain.LeadStatusResponded,
	})
	return nil
}

func (s *Service) markRead(ctx context.Context, token string, msg reddit.Message) {
	if err := s.inbox.MarkRead(ctx, token, msg.Fullname); err != nil {
		s.log.ProviderError("reddit", "mark read", err)
	}
}

// preview cuts the body to a notification-sized excerpt without splitting
// a multi-byte rune.
func preview(s string) string {
	if len(s) <= previewMaxLen {
		return s
	}
	cut := previewMaxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
