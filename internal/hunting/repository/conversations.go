package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Delivery statuses for tenant-authored messages. Provider-confirmed inbound
// messages carry no delivery status.
const (
	DeliverySending = "sending"
	DeliverySent    = "sent"
	DeliveryFailed  = "failed"
)

// Conversation groups the message history between a tenant and one lead.
type Conversation struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	LeadID       uuid.UUID
	Counterparty string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ConversationMessage is one message in a conversation. ProviderMessageID is
// nil for locally authored messages the provider has not confirmed yet; once
// confirmed the id is set and a uniqueness constraint makes re-merging the
// same server payload a no-op.
type ConversationMessage struct {
	ID                uuid.UUID
	ConversationID    uuid.UUID
	ProviderMessageID *string
	IsFromUser        bool
	Body              string
	DeliveryStatus    *string
	SentAt            time.Time
	CreatedAt         time.Time
}

const messageColumns = `
	id, conversation_id, provider_message_id, is_from_user, body,
	delivery_status, sent_at, created_at`

func scanMessage(row pgx.Row) (ConversationMessage, error) {
	var m ConversationMessage
	err := row.Scan(
		&m.ID, &m.ConversationID, &m.ProviderMessageID, &m.IsFromUser,
		&m.Body, &m.DeliveryStatus, &m.SentAt, &m.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ConversationMessage{}, ErrNotFound
	}
	return m, err
}

// EnsureConversation returns the conversation for a lead, creating it on
// first outreach.
func (r *Repository) EnsureConversation(ctx context.Context, tenantID, leadID uuid.UUID, counterparty string) (Conversation, error) {
	var c Conversation
	err := r.pool.QueryRow(ctx, `
		INSERT INTO conversations (id, tenant_id, lead_id, counterparty)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, lead_id) DO UPDATE SET updated_at = now()
		RETURNING id, tenant_id, lead_id, counterparty, created_at, updated_at
	`, uuid.New(), tenantID, leadID, counterparty).Scan(
		&c.ID, &c.TenantID, &c.LeadID, &c.Counterparty, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

// GetConversationByLead returns the conversation for a lead.
func (r *Repository) GetConversationByLead(ctx context.Context, tenantID, leadID uuid.UUID) (Conversation, error) {
	var c Conversation
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, lead_id, counterparty, created_at, updated_at
		FROM conversations
		WHERE tenant_id = $1 AND lead_id = $2
	`, tenantID, leadID).Scan(&c.ID, &c.TenantID, &c.LeadID, &c.Counterparty, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	return c, err
}

// ListMessages returns a conversation's messages ordered by provider
// timestamp, oldest first.
func (r *Repository) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]ConversationMessage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM conversation_messages
		WHERE conversation_id = $1
		ORDER BY sent_at ASC, created_at ASC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]ConversationMessage, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// AppendMessageParams carries one message to append.
type AppendMessageParams struct {
	ConversationID    uuid.UUID
	ProviderMessageID *string
	IsFromUser        bool
	Body              string
	DeliveryStatus    *string
	SentAt            time.Time
}

// AppendMessage inserts a message. Messages carrying a provider id are
// deduplicated against the (conversation_id, provider_message_id) constraint:
// a duplicate insert is a silent no-op, which is what makes the
// reconciliation merge idempotent. Returns the new message id and whether a
// row was actually inserted.
func (r *Repository) AppendMessage(ctx context.Context, p AppendMessageParams) (uuid.UUID, bool, error) {
	id := uuid.New()
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO conversation_messages (
			id, conversation_id, provider_message_id, is_from_user, body,
			delivery_status, sent_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (conversation_id, provider_message_id) DO NOTHING
	`, id, p.ConversationID, p.ProviderMessageID, p.IsFromUser,
		p.Body, p.DeliveryStatus, p.SentAt)
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, tag.RowsAffected() > 0, nil
}

// HasProviderMessage reports whether a server message id is already present
// in the conversation.
func (r *Repository) HasProviderMessage(ctx context.Context, conversationID uuid.UUID, providerMessageID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM conversation_messages
			WHERE conversation_id = $1 AND provider_message_id = $2
		)
	`, conversationID, providerMessageID).Scan(&exists)
	return exists, err
}

// FindUnconfirmedOutbound returns the oldest tenant-authored message in the
// conversation that matches the body and has no provider id yet. Used by the
// reconciliation merge to attach a server id to an optimistic local message
// instead of inserting a duplicate.
func (r *Repository) FindUnconfirmedOutbound(ctx context.Context, conversationID uuid.UUID, body string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT id FROM conversation_messages
		WHERE conversation_id = $1
		  AND is_from_user
		  AND provider_message_id IS NULL
		  AND body = $2
		ORDER BY sent_at ASC
		LIMIT 1
	`, conversationID, body).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrNotFound
	}
	return id, err
}

// ConfirmMessageDelivery marks a locally authored message as confirmed by the
// provider, attaching the provider id so later merges recognize it.
func (r *Repository) ConfirmMessageDelivery(ctx context.Context, messageID uuid.UUID, providerMessageID *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE conversation_messages
		SET delivery_status = $1, provider_message_id = COALESCE($2, provider_message_id)
		WHERE id = $3
	`, DeliverySent, providerMessageID, messageID)
	return err
}

// FailMessageDelivery marks a locally authored message as failed to send.
func (r *Repository) FailMessageDelivery(ctx context.Context, messageID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE conversation_messages
		SET delivery_status = $1
		WHERE id = $2
	`, DeliveryFailed, messageID)
	return err
}
