// Package service implements the user-facing hunting operations: lead
// lifecycle actions, outreach dispatch, and conversation messaging.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"leadhunt_backend/internal/events"
	"leadhunt_backend/internal/hunting/domain"
	"leadhunt_backend/internal/hunting/repository"
	"leadhunt_backend/platform/apperr"
	"leadhunt_backend/platform/logger"

	"github.com/google/uuid"
)

const dmSubjectMaxLen = 80

// Store is the persistence surface the service uses.
type Store interface {
	GetLeadByID(ctx context.Context, leadID, tenantID uuid.UUID) (repository.Lead, error)
	ListLeads(ctx context.Context, tenantID uuid.UUID, status string, limit int) ([]repository.Lead, error)
	UpdateLeadStatus(ctx context.Context, leadID, tenantID uuid.UUID, fromStatus, newStatus string) error
	SetLeadDM(ctx context.Context, leadID, tenantID uuid.UUID, message string) error
	SetOutreachResult(ctx context.Context, leadID, tenantID uuid.UUID, commentID, partialFailureNote *string) error

	EnsureConversation(ctx context.Context, tenantID, leadID uuid.UUID, counterparty string) (repository.Conversation, error)
	GetConversationByLead(ctx context.Context, tenantID, leadID uuid.UUID) (repository.Conversation, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]repository.ConversationMessage, error)
	AppendMessage(ctx context.Context, p repository.AppendMessageParams) (uuid.UUID, bool, error)
	ConfirmMessageDelivery(ctx context.Context, messageID uuid.UUID, providerMessageID *string) error
	FailMessageDelivery(ctx context.Context, messageID uuid.UUID) error

	GetSessionByTenant(ctx context.Context, tenantID uuid.UUID) (repository.HuntingSession, error)
	UpsertSession(ctx context.Context, p repository.UpsertSessionParams) (repository.HuntingSession, error)
	UpdateSessionStatus(ctx context.Context, tenantID uuid.UUID, status string) error
	IncrementSessionStats(ctx context.Context, tenantID uuid.UUID, delta repository.SessionStatsDelta) error
}

// Messenger sends provider messages on behalf of a tenant.
type Messenger interface {
	ComposeDM(ctx context.Context, token, recipient, subject, body string) error
	Reply(ctx context.Context, token, parentFullname, body string) (string, error)
}

// TokenSource yields a valid provider access token for a tenant.
type TokenSource interface {
	ValidToken(ctx context.Context, tenantID uuid.UUID) (string, error)
}

// Service implements the hunting API operations.
type Service struct {
	store     Store
	tokens    TokenSource
	messenger Messenger
	bus       events.Bus
	log       *logger.Logger
}

func New(store Store, tokens TokenSource, messenger Messenger, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, tokens: tokens, messenger: messenger, bus: bus, log: log}
}

// List returns the tenant's leads, optionally filtered by status.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, status string, limit int) ([]repository.Lead, error) {
	if status != "" && !domain.IsKnownLeadStatus(status) {
		return nil, apperr.Validation("unknown lead status: " + status)
	}
	return s.store.ListLeads(ctx, tenantID, status, limit)
}

// Get returns one lead scoped to the tenant.
func (s *Service) Get(ctx context.Context, tenantID, leadID uuid.UUID) (repository.Lead, error) {
	lead, err := s.store.GetLeadByID(ctx, leadID, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}
	return lead, err
}

// Approve moves a pending lead into the approved state.
func (s *Service) Approve(ctx context.Context, tenantID, leadID uuid.UUID) (repository.Lead, error) {
	return s.transition(ctx, tenantID, leadID, domain.LeadStatusApproved)
}

// Reject terminates a lead. Allowed from any pre-contact state.
func (s *Service) Reject(ctx context.Context, tenantID, leadID uuid.UUID) (repository.Lead, error) {
	return s.transition(ctx, tenantID, leadID, domain.LeadStatusRejected)
}

// SetDM stores the tenant-authored outreach text and advances an approved
// lead to dm_ready. Re-editing the text of a dm_ready lead is allowed.
func (s *Service) SetDM(ctx context.Context, tenantID, leadID uuid.UUID, message string) (repository.Lead, error) {
	lead, err := s.Get(ctx, tenantID, leadID)
	if err != nil {
		return repository.Lead{}, err
	}

	switch lead.Status {
	case domain.LeadStatusApproved, domain.LeadStatusDMReady:
	default:
		return repository.Lead{}, apperr.InvalidTransition(
			fmt.Sprintf("cannot set outreach text in status %q", lead.Status))
	}

	if err := s.store.SetLeadDM(ctx, leadID, tenantID, message); err != nil {
		return repository.Lead{}, err
	}
	if lead.Status == domain.LeadStatusApproved {
		return s.transition(ctx, tenantID, leadID, domain.LeadStatusDMReady)
	}
	return s.Get(ctx, tenantID, leadID)
}

// SendOutreach dispatches the prepared DM and, when comment text is given,
// a public follow-up comment on the source thread. Both succeeding advances
// the lead to contacted. A failed comment after a successful DM is a partial
// failure: the lead still advances to dm_sent and the failure note is
// returned so the caller can retry the comment.
func (s *Service) SendOutreach(ctx context.Context, tenantID, leadID uuid.UUID, commentText string) (repository.Lead, *string, error) {
	lead, err := s.Get(ctx, tenantID, leadID)
	if err != nil {
		return repository.Lead{}, nil, err
	}
	if lead.Status != domain.LeadStatusDMReady {
		return repository.Lead{}, nil, apperr.InvalidTransition(
			fmt.Sprintf("outreach requires status %q, lead is %q", domain.LeadStatusDMReady, lead.Status))
	}
	if lead.DMMessage == nil || *lead.DMMessage == "" {
		return repository.Lead{}, nil, apperr.Validation("lead has no outreach text")
	}

	token, err := s.tokens.ValidToken(ctx, tenantID)
	if err != nil {
		return repository.Lead{}, nil, err
	}

	if err := s.messenger.ComposeDM(ctx, token, lead.PostAuthor, dmSubject(lead.PostTitle), *lead.DMMessage); err != nil {
		return repository.Lead{}, nil, err
	}

	// The DM is out; from here on everything is best-effort and must not
	// roll it back.
	var commentID, partialNote *string
	if commentText != "" {
		if id, err := s.messenger.Reply(ctx, token, "t3_"+lead.PostID, commentText); err != nil {
			note := "follow-up comment failed: " + err.Error()
			partialNote = &note
			s.log.ProviderError("reddit", "outreach comment", err)
		} else {
			commentID = &id
		}
	}
	if err := s.store.SetOutreachResult(ctx, leadID, tenantID, commentID, partialNote); err != nil {
		s.log.DatabaseError("record outreach result", err)
	}

	updated, err := s.transition(ctx, tenantID, leadID, domain.LeadStatusDMSent)
	if err != nil {
		return repository.Lead{}, partialNote, err
	}
	if commentID != nil {
		if contacted, err := s.transition(ctx, tenantID, leadID, domain.LeadStatusContacted); err == nil {
			updated = contacted
		}
	}

	if conv, err := s.store.EnsureConversation(ctx, tenantID, leadID, lead.PostAuthor); err != nil {
		s.log.DatabaseError("ensure conversation", err)
	} else {
		sent := repository.DeliverySent
		if _, _, err := s.store.AppendMessage(ctx, repository.AppendMessageParams{
			ConversationID: conv.ID,
			IsFromUser:     true,
			Body:           *lead.DMMessage,
			DeliveryStatus: &sent,
			SentAt:         time.Now(),
		}); err != nil {
			s.log.DatabaseError("append outreach message", err)
		}
	}

	if err := s.store.IncrementSessionStats(ctx, tenantID, repository.SessionStatsDelta{DMsStarted: 1}); err != nil {
		s.log.DatabaseError("increment dm stats", err)
	}

	return updated, partialNote, nil
}

// Conversation returns the lead's conversation and full message history.
func (s *Service) Conversation(ctx context.Context, tenantID, leadID uuid.UUID) (repository.Conversation, []repository.ConversationMessage, error) {
	conv, err := s.store.GetConversationByLead(ctx, tenantID, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Conversation{}, nil, apperr.NotFound("conversation not found")
	}
	if err != nil {
		return repository.Conversation{}, nil, err
	}
	msgs, err := s.store.ListMessages(ctx, conv.ID)
	return conv, msgs, err
}

// SendMessage appends a tenant-authored message optimistically, dispatches it
// to the provider, and records the delivery outcome.
func (s *Service) SendMessage(ctx context.Context, tenantID, leadID uuid.UUID, body string) (repository.ConversationMessage, error) {
	lead, err := s.Get(ctx, tenantID, leadID)
	if err != nil {
		return repository.ConversationMessage{}, err
	}
	switch lead.Status {
	case domain.LeadStatusDMSent, domain.LeadStatusContacted, domain.LeadStatusResponded:
	default:
		return repository.ConversationMessage{}, apperr.InvalidTransition(
			fmt.Sprintf("cannot message a lead in status %q", lead.Status))
	}

	conv, err := s.store.EnsureConversation(ctx, tenantID, leadID, lead.PostAuthor)
	if err != nil {
		return repository.ConversationMessage{}, err
	}

	sending := repository.DeliverySending
	now := time.Now()
	msgID, _, err := s.store.AppendMessage(ctx, repository.AppendMessageParams{
		ConversationID: conv.ID,
		IsFromUser:     true,
		Body:           body,
		DeliveryStatus: &sending,
		SentAt:         now,
	})
	if err != nil {
		return repository.ConversationMessage{}, err
	}

	token, err := s.tokens.ValidToken(ctx, tenantID)
	if err != nil {
		s.failDelivery(ctx, msgID)
		return repository.ConversationMessage{}, err
	}
	if err := s.messenger.ComposeDM(ctx, token, lead.PostAuthor, dmSubject(lead.PostTitle), body); err != nil {
		s.failDelivery(ctx, msgID)
		return repository.ConversationMessage{}, err
	}

	if err := s.store.ConfirmMessageDelivery(ctx, msgID, nil); err != nil {
		s.log.DatabaseError("confirm delivery", err)
	}

	// First manual reply after outreach marks the lead as contacted.
	if lead.Status == domain.LeadStatusDMSent {
		if _, err := s.transition(ctx, tenantID, leadID, domain.LeadStatusContacted); err != nil {
			s.log.Warn("contacted transition failed", "leadId", leadID, "error", err)
		}
	}

	sent := repository.DeliverySent
	return repository.ConversationMessage{
		ID:             msgID,
		ConversationID: conv.ID,
		IsFromUser:     true,
		Body:           body,
		DeliveryStatus: &sent,
		SentAt:         now,
	}, nil
}

// transition applies one lifecycle step with an optimistic status check, so
// a concurrent mutation loses cleanly instead of double-applying.
func (s *Service) transition(ctx context.Context, tenantID, leadID uuid.UUID, newStatus string) (repository.Lead, error) {
	lead, err := s.Get(ctx, tenantID, leadID)
	if err != nil {
		return repository.Lead{}, err
	}
	if !domain.CanTransition(lead.Status, newStatus) {
		return repository.Lead{}, apperr.InvalidTransition(
			fmt.Sprintf("cannot transition lead from %q to %q", lead.Status, newStatus))
	}

	err = s.store.UpdateLeadStatus(ctx, leadID, tenantID, lead.Status, newStatus)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Lead{}, apperr.Conflict("lead was modified concurrently")
	}
	if err != nil {
		return repository.Lead{}, err
	}

	s.bus.Publish(ctx, events.LeadStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		TenantID:  tenantID,
		OldStatus: lead.Status,
		NewStatus: newStatus,
	})
	return s.Get(ctx, tenantID, leadID)
}

func (s *Service) failDelivery(ctx context.Context, msgID uuid.UUID) {
	if err := s.store.FailMessageDelivery(ctx, msgID); err != nil {
		s.log.DatabaseError("mark delivery failed", err)
	}
}

func dmSubject(postTitle string) string {
	subject := "Re: " + postTitle
	if len(subject) > dmSubjectMaxLen {
		cut := dmSubjectMaxLen
		for cut > 0 && !utf8.RuneStart(subject[cut]) {
			cut--
		}
		subject = subject[:cut]
	}
	return subject
}
