package responses

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"leadhunt_backend/internal/events"
	"leadhunt_backend/internal/hunting/domain"
	"leadhunt_backend/internal/hunting/repository"
	"leadhunt_backend/internal/reddit"
	"leadhunt_backend/platform/logger"

	"github.com/google/uuid"
)

// memStore is an in-memory Store with the same dedup semantics as the
// Postgres repository: unique (conversation_id, provider_message_id).
type memStore struct {
	leadsByAuthor  map[string]repository.Lead
	leadsByComment map[string]repository.Lead
	leadStatus     map[uuid.UUID]string

	conversations map[uuid.UUID]repository.Conversation
	messages      []repository.ConversationMessage
}

func newMemStore() *memStore {
	return &memStore{
		leadsByAuthor:  map[string]repository.Lead{},
		leadsByComment: map[string]repository.Lead{},
		leadStatus:     map[uuid.UUID]string{},
		conversations:  map[uuid.UUID]repository.Conversation{},
	}
}

func (m *memStore) addLead(lead repository.Lead) {
	m.leadsByAuthor[strings.ToLower(lead.PostAuthor)] = lead
	if lead.OutreachCommentID != nil {
		m.leadsByComment[*lead.OutreachCommentID] = lead
	}
	m.leadStatus[lead.ID] = lead.Status
}

func (m *memStore) FindLeadByAuthor(ctx context.Context, tenantID uuid.UUID, author string) (repository.Lead, error) {
	lead, ok := m.leadsByAuthor[strings.ToLower(author)]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	lead.Status = m.leadStatus[lead.ID]
	return lead, nil
}

func (m *memStore) FindLeadByCommentID(ctx context.Context, tenantID uuid.UUID, commentID string) (repository.Lead, error) {
	lead, ok := m.leadsByComment[commentID]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	lead.Status = m.leadStatus[lead.ID]
	return lead, nil
}

func (m *memStore) UpdateLeadStatus(ctx context.Context, leadID, tenantID uuid.UUID, fromStatus, newStatus string) error {
	if m.leadStatus[leadID] != fromStatus {
		return repository.ErrNotFound
	}
	m.leadStatus[leadID] = newStatus
	return nil
}

func (m *memStore) EnsureConversation(ctx context.Context, tenantID, leadID uuid.UUID, counterparty string) (repository.Conversation, error) {
	for _, c := range m.conversations {
		if c.LeadID == leadID {
			return c, nil
		}
	}
	conv := repository.Conversation{ID: uuid.New(), TenantID: tenantID, LeadID: leadID, Counterparty: counterparty}
	m.conversations[conv.ID] = conv
	return conv, nil
}

func (m *memStore) GetConversationByLead(ctx context.Context, tenantID, leadID uuid.UUID) (repository.Conversation, error) {
	for _, c := range m.conversations {
		if c.LeadID == leadID {
			return c, nil
		}
	}
	return repository.Conversation{}, repository.ErrNotFound
}

func (m *memStore) HasProviderMessage(ctx context.Context, conversationID uuid.UUID, providerMessageID string) (bool, error) {
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID && msg.ProviderMessageID != nil && *msg.ProviderMessageID == providerMessageID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) AppendMessage(ctx context.Context, p repository.AppendMessageParams) (uuid.UUID, bool, error) {
	if p.ProviderMessageID != nil {
		if seen, _ := m.HasProviderMessage(ctx, p.ConversationID, *p.ProviderMessageID); seen {
			return uuid.Nil, false, nil
		}
	}
	msg := repository.ConversationMessage{
		ID:                uuid.New(),
		ConversationID:    p.ConversationID,
		ProviderMessageID: p.ProviderMessageID,
		IsFromUser:        p.IsFromUser,
		Body:              p.Body,
		DeliveryStatus:    p.DeliveryStatus,
		SentAt:            p.SentAt,
	}
	m.messages = append(m.messages, msg)
	return msg.ID, true, nil
}

func (m *memStore) FindUnconfirmedOutbound(ctx context.Context, conversationID uuid.UUID, body string) (uuid.UUID, error) {
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID && msg.IsFromUser && msg.ProviderMessageID == nil && msg.Body == body {
			return msg.ID, nil
		}
	}
	return uuid.Nil, repository.ErrNotFound
}

func (m *memStore) ConfirmMessageDelivery(ctx context.Context, messageID uuid.UUID, providerMessageID *string) error {
	for i := range m.messages {
		if m.messages[i].ID == messageID {
			sent := repository.DeliverySent
			m.messages[i].DeliveryStatus = &sent
			if providerMessageID != nil {
				m.messages[i].ProviderMessageID = providerMessageID
			}
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memStore) conversationMessages(convID uuid.UUID) []repository.ConversationMessage {
	var out []repository.ConversationMessage
	for _, msg := range m.messages {
		if msg.ConversationID == convID {
			out = append(out, msg)
		}
	}
	return out
}

type fakeInbox struct {
	unread []reddit.Message
	sent   []reddit.Message

	mu         sync.Mutex
	markedRead []string
}

func (f *fakeInbox) ListUnread(ctx context.Context, token string) ([]reddit.Message, error) {
	return f.unread, nil
}

func (f *fakeInbox) ListSent(ctx context.Context, token string) ([]reddit.Message, error) {
	return f.sent, nil
}

func (f *fakeInbox) MarkRead(ctx context.Context, token, fullname string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markedRead = append(f.markedRead, fullname)
	return nil
}

type fakeTokens struct{}

func (fakeTokens) ValidToken(ctx context.Context, tenantID uuid.UUID) (string, error) {
	return "tok", nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(ctx context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(eventName string, handler events.Handler) {}

func (b *recordingBus) count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.EventName() == name {
			n++
		}
	}
	return n
}

func dmSentLead(author string) repository.Lead {
	commentID := "t1_out1"
	return repository.Lead{
		ID:                uuid.New(),
		TenantID:          uuid.New(),
		PostID:            "post1",
		PostTitle:         "Looking for invoicing software",
		PostAuthor:        author,
		Status:            domain.LeadStatusDMSent,
		OutreachCommentID: &commentID,
	}
}

func inboundDM(fullname, author, body string, at time.Time) reddit.Message {
	return reddit.Message{
		ID:        strings.TrimPrefix(fullname, "t4_"),
		Fullname:  fullname,
		Kind:      reddit.MessageKindPrivate,
		Author:    author,
		Body:      body,
		CreatedAt: at,
	}
}

func TestPollMatchesDMAndAdvancesLead(t *testing.T) {
	store := newMemStore()
	lead := dmSentLead("shopkeeper")
	store.addLead(lead)

	inbox := &fakeInbox{unread: []reddit.Message{
		inboundDM("t4_m1", "ShopKeeper", "Sounds interesting, tell me more", time.Now()),
	}}
	bus := &recordingBus{}
	svc := New(store, inbox, fakeTokens{}, bus, logger.New("development"))

	if err := svc.PollTenant(context.Background(), lead.TenantID); err != nil {
		t.Fatalf("PollTenant: %v", err)
	}

	if got := store.leadStatus[lead.ID]; got != domain.LeadStatusResponded {
		t.Errorf("lead status = %q, want responded", got)
	}
	if n := bus.count("hunting.lead.responded"); n != 1 {
		t.Errorf("responded events = %d, want 1", n)
	}
	conv, err := store.GetConversationByLead(context.Background(), lead.TenantID, lead.ID)
	if err != nil {
		t.Fatalf("conversation not created: %v", err)
	}
	if msgs := store.conversationMessages(conv.ID); len(msgs) != 1 || msgs[0].IsFromUser {
		t.Errorf("messages = %+v, want one inbound", msgs)
	}
	if len(inbox.markedRead) != 1 || inbox.markedRead[0] != "t4_m1" {
		t.Errorf("markedRead = %v, want [t4_m1]", inbox.markedRead)
	}
}

func TestPollMatchesCommentReplyByParentID(t *testing.T) {
	store := newMemStore()
	lead := dmSentLead("shopkeeper")
	store.addLead(lead)

	reply := reddit.Message{
		ID:        "c1",
		Fullname:  "t1_c1",
		Kind:      reddit.MessageKindCommentReply,
		Author:    "someone_else",
		Body:      "The OP should check their messages",
		ParentID:  "t1_out1",
		CreatedAt: time.Now(),
	}
	inbox := &fakeInbox{unread: []reddit.Message{reply}}
	svc := New(store, inbox, fakeTokens{}, &recordingBus{}, logger.New("development"))

	if err := svc.PollTenant(context.Background(), lead.TenantID); err != nil {
		t.Fatalf("PollTenant: %v", err)
	}
	if got := store.leadStatus[lead.ID]; got != domain.LeadStatusResponded {
		t.Errorf("lead status = %q, want responded", got)
	}
}

func TestPollIsIdempotent(t *testing.T) {
	store := newMemStore()
	lead := dmSentLead("shopkeeper")
	store.addLead(lead)

	now := time.Now()
	inbox := &fakeInbox{
		unread: []reddit.Message{
			inboundDM("t4_m1", "shopkeeper", "first reply", now),
			inboundDM("t4_m2", "shopkeeper", "second reply", now.Add(time.Minute)),
		},
	}
	bus := &recordingBus{}
	svc := New(store, inbox, fakeTokens{}, bus, logger.New("development"))

	for i := 0; i < 3; i++ {
		if err := svc.PollTenant(context.Background(), lead.TenantID); err != nil {
			t.Fatalf("PollTenant run %d: %v", i, err)
		}
	}

	conv, _ := store.GetConversationByLead(context.Background(), lead.TenantID, lead.ID)
	msgs := store.conversationMessages(conv.ID)
	if len(msgs) != 2 {
		t.Errorf("messages after 3 polls = %d, want 2", len(msgs))
	}
	if n := bus.count("hunting.lead.responded"); n != 1 {
		t.Errorf("responded events after 3 polls = %d, want 1", n)
	}
}

func TestPollSurfacesUnmatchedDM(t *testing.T) {
	store := newMemStore()
	inbox := &fakeInbox{unread: []reddit.Message{
		inboundDM("t4_m9", "random_user", "unrelated question", time.Now()),
	}}
	bus := &recordingBus{}
	svc := New(store, inbox, fakeTokens{}, bus, logger.New("development"))

	if err := svc.PollTenant(context.Background(), uuid.New()); err != nil {
		t.Fatalf("PollTenant: %v", err)
	}
	if n := bus.count("hunting.inbox.unmatched"); n != 1 {
		t.Errorf("unmatched events = %d, want 1", n)
	}
	if len(store.messages) != 0 {
		t.Errorf("messages = %d, unmatched DM must not create conversation rows", len(store.messages))
	}
}

func TestReconcileAttachesProviderIDToOptimisticMessage(t *testing.T) {
	store := newMemStore()
	lead := dmSentLead("shopkeeper")
	store.addLead(lead)
	conv, _ := store.EnsureConversation(context.Background(), lead.TenantID, lead.ID, lead.PostAuthor)

	// Optimistic local copy of a message the tenant just sent.
	sending := repository.DeliverySending
	localID, _, _ := store.AppendMessage(context.Background(), repository.AppendMessageParams{
		ConversationID: conv.ID,
		IsFromUser:     true,
		Body:           "thanks, sending details",
		DeliveryStatus: &sending,
		SentAt:         time.Now(),
	})

	svc := New(store, &fakeInbox{}, fakeTokens{}, &recordingBus{}, logger.New("development"))
	server := []reddit.Message{{
		ID:        "m5",
		Fullname:  "t4_m5",
		Kind:      reddit.MessageKindPrivate,
		Author:    "me",
		Dest:      "shopkeeper",
		Body:      "thanks, sending details",
		Outbound:  true,
		CreatedAt: time.Now(),
	}}

	for i := 0; i < 2; i++ {
		if err := svc.Reconcile(context.Background(), conv, server); err != nil {
			t.Fatalf("Reconcile run %d: %v", i, err)
		}
	}

	msgs := store.conversationMessages(conv.ID)
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1 (no duplicate of the optimistic copy)", len(msgs))
	}
	if msgs[0].ID != localID {
		t.Error("reconcile must reuse the local message row")
	}
	if msgs[0].ProviderMessageID == nil || *msgs[0].ProviderMessageID != "t4_m5" {
		t.Errorf("ProviderMessageID = %v, want t4_m5", msgs[0].ProviderMessageID)
	}
	if msgs[0].DeliveryStatus == nil || *msgs[0].DeliveryStatus != repository.DeliverySent {
		t.Errorf("DeliveryStatus = %v, want sent", msgs[0].DeliveryStatus)
	}
}

func TestReconcileNeverDiscardsLocalMessages(t *testing.T) {
	store := newMemStore()
	lead := dmSentLead("shopkeeper")
	store.addLead(lead)
	conv, _ := store.EnsureConversation(context.Background(), lead.TenantID, lead.ID, lead.PostAuthor)

	sending := repository.DeliverySending
	store.AppendMessage(context.Background(), repository.AppendMessageParams{
		ConversationID: conv.ID,
		IsFromUser:     true,
		Body:           "newer than the fetch window",
		DeliveryStatus: &sending,
		SentAt:         time.Now(),
	})

	svc := New(store, &fakeInbox{}, fakeTokens{}, &recordingBus{}, logger.New("development"))
	server := []reddit.Message{{
		ID:        "m1",
		Fullname:  "t4_m1",
		Kind:      reddit.MessageKindPrivate,
		Author:    "shopkeeper",
		Body:      "older inbound",
		CreatedAt: time.Now().Add(-time.Hour),
	}}

	if err := svc.Reconcile(context.Background(), conv, server); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	msgs := store.conversationMessages(conv.ID)
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2 (local kept, server added)", len(msgs))
	}
}

func TestPreviewTruncatesOnRuneBoundary(t *testing.T) {
	body := strings.Repeat("a", previewMaxLen-1) + "é plus more text"
	got := preview(body)
	if !utf8.ValidString(got) {
		t.Fatalf("preview is not valid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("preview = %q, want ellipsis suffix", got)
	}

	short := "héllo"
	if preview(short) != short {
		t.Errorf("preview(%q) = %q, want unchanged", short, preview(short))
	}
}
