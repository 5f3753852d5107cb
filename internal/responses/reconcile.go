package responses

import (
	"context"
	"errors"
	"sort"

	"leadhunt_backend/internal/hunting/repository"
	"leadhunt_backend/internal/reddit"
)

// Reconcile merges server-fetched messages into one conversation. The merge
// is additive: a server message is inserted only when its provider id is not
// already present, and local messages absent from the server fetch are never
// discarded, because they may be newer than the fetch window or still
// propagating on the provider side. Running the merge twice with the same
// payload leaves the conversation unchanged the second time.
func (s *Service) Reconcile(ctx context.Context, conv repository.Conversation, msgs []reddit.Message) error {
	sorted := make([]reddit.Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	for _, msg := range sorted {
		if msg.Fullname == "" {
			continue
		}

		seen, err := s.store.HasProviderMessage(ctx, conv.ID, msg.Fullname)
		if err != nil {
			return err
		}
		if seen {
			continue
		}

		id := msg.Fullname
		var status *string
		if msg.Outbound {
			// A tenant-authored message the server now confirms. Prefer
			// attaching the provider id to the optimistic local copy over
			// inserting a duplicate row.
			if localID, err := s.store.FindUnconfirmedOutbound(ctx, conv.ID, msg.Body); err == nil {
				if err := s.store.ConfirmMessageDelivery(ctx, localID, &id); err != nil {
					return err
				}
				continue
			} else if !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			sent := repository.DeliverySent
			status = &sent
		}
		// The uniqueness constraint on (conversation_id, provider_message_id)
		// absorbs a concurrent poll inserting the same message first.
		if _, _, err := s.store.AppendMessage(ctx, repository.AppendMessageParams{
			ConversationID:    conv.ID,
			ProviderMessageID: &id,
			IsFromUser:        msg.Outbound,
			Body:              msg.Body,
			DeliveryStatus:    status,
			SentAt:            msg.CreatedAt,
		}); err != nil {
			return err
		}
	}
	return nil
}
