package notification

import (
	"context"
	"strings"
	"testing"

	"leadhunt_backend/internal/events"
	huntrepo "leadhunt_backend/internal/hunting/repository"
	"leadhunt_backend/platform/apperr"
	"leadhunt_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	created []CreateParams
	marked  []uuid.UUID
	missing bool
}

func (s *fakeStore) Create(_ context.Context, p CreateParams) (Notification, error) {
	s.created = append(s.created, p)
	return Notification{ID: uuid.New(), TenantID: p.TenantID, Title: p.Title}, nil
}

func (s *fakeStore) List(context.Context, uuid.UUID, int, int) ([]Notification, int, error) {
	return nil, 0, nil
}

func (s *fakeStore) CountUnread(context.Context, uuid.UUID) (int, error) { return 0, nil }

func (s *fakeStore) MarkRead(_ context.Context, _ uuid.UUID, id uuid.UUID) error {
	if s.missing {
		return ErrNotFound
	}
	s.marked = append(s.marked, id)
	return nil
}

func (s *fakeStore) MarkAllRead(context.Context, uuid.UUID) error { return nil }

type fakeSender struct {
	leadFoundCalls     int
	respondedCalls     int
	sessionPausedCalls int
	backlogCalls       int
	lastTo             string
}

func (s *fakeSender) SendLeadFoundEmail(_ context.Context, to, _, _, _ string, _ int) error {
	s.leadFoundCalls++
	s.lastTo = to
	return nil
}

func (s *fakeSender) SendLeadRespondedEmail(_ context.Context, to, _, _ string) error {
	s.respondedCalls++
	s.lastTo = to
	return nil
}

func (s *fakeSender) SendSessionPausedEmail(_ context.Context, to, _ string) error {
	s.sessionPausedCalls++
	s.lastTo = to
	return nil
}

func (s *fakeSender) SendBacklogEmail(_ context.Context, to string, _ int) error {
	s.backlogCalls++
	s.lastTo = to
	return nil
}

type fakeSessions struct {
	email *string
}

func (s fakeSessions) GetSessionByTenant(context.Context, uuid.UUID) (huntrepo.HuntingSession, error) {
	return huntrepo.HuntingSession{NotificationEmail: s.email}, nil
}

func newTestModule(store *fakeStore, sender *fakeSender, sessions SessionReader) *Module {
	log := logger.New("development")
	svc := NewService(store, log)
	return &Module{
		svc:      svc,
		handler:  NewHandler(svc),
		sender:   sender,
		sessions: sessions,
		log:      log,
	}
}

func TestLeadCreatedPersistsAndEmails(t *testing.T) {
	store := &fakeStore{}
	sender := &fakeSender{}
	addr := "hunter@example.com"
	m := newTestModule(store, sender, fakeSessions{email: &addr})

	leadID := uuid.New()
	err := m.Handle(context.Background(), events.LeadCreated{
		BaseEvent:        events.NewBaseEvent(),
		LeadID:           leadID,
		TenantID:         uuid.New(),
		PostTitle:        "Need a CRM for my bakery",
		Subreddit:        "smallbusiness",
		RelevanceScore:   8,
		RequiresApproval: true,
	})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if len(store.created) != 1 {
		t.Fatalf("persisted %d notifications, want 1", len(store.created))
	}
	n := store.created[0]
	if n.Category != "success" {
		t.Errorf("category = %q, want success", n.Category)
	}
	if n.ResourceID == nil || *n.ResourceID != leadID {
		t.Errorf("resource id = %v, want %s", n.ResourceID, leadID)
	}
	if !strings.Contains(n.Content, "waiting for your approval") {
		t.Errorf("content %q missing approval hint", n.Content)
	}
	if sender.leadFoundCalls != 1 || sender.lastTo != addr {
		t.Errorf("leadFoundCalls = %d to %q, want 1 to %q", sender.leadFoundCalls, sender.lastTo, addr)
	}
}

func TestNoEmailWithoutConfiguredAddress(t *testing.T) {
	store := &fakeStore{}
	sender := &fakeSender{}
	m := newTestModule(store, sender, fakeSessions{email: nil})

	err := m.Handle(context.Background(), events.LeadCreated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    uuid.New(),
		TenantID:  uuid.New(),
		PostTitle: "title",
		Subreddit: "golang",
	})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if len(store.created) != 1 {
		t.Fatalf("persisted %d notifications, want 1", len(store.created))
	}
	if sender.leadFoundCalls != 0 {
		t.Errorf("leadFoundCalls = %d, want 0", sender.leadFoundCalls)
	}
}

func TestSessionPausedIsWarningWithEmail(t *testing.T) {
	store := &fakeStore{}
	sender := &fakeSender{}
	addr := "hunter@example.com"
	m := newTestModule(store, sender, fakeSessions{email: &addr})

	err := m.Handle(context.Background(), events.SessionPaused{
		BaseEvent: events.NewBaseEvent(),
		TenantID:  uuid.New(),
		Reason:    "provider authorization expired",
	})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if len(store.created) != 1 || store.created[0].Category != "warning" {
		t.Fatalf("created = %+v, want one warning notification", store.created)
	}
	if sender.sessionPausedCalls != 1 {
		t.Errorf("sessionPausedCalls = %d, want 1", sender.sessionPausedCalls)
	}
}

func TestUnmatchedInboxStaysInApp(t *testing.T) {
	store := &fakeStore{}
	sender := &fakeSender{}
	addr := "hunter@example.com"
	m := newTestModule(store, sender, fakeSessions{email: &addr})

	err := m.Handle(context.Background(), events.InboxMessageUnmatched{
		BaseEvent:  events.NewBaseEvent(),
		TenantID:   uuid.New(),
		AuthorName: "stranger",
		Preview:    "hello there",
	})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if len(store.created) != 1 {
		t.Fatalf("persisted %d notifications, want 1", len(store.created))
	}
	total := sender.leadFoundCalls + sender.respondedCalls + sender.sessionPausedCalls + sender.backlogCalls
	if total != 0 {
		t.Errorf("sent %d emails, want 0", total)
	}
}

func TestMarkReadMissingMapsToNotFound(t *testing.T) {
	store := &fakeStore{missing: true}
	svc := NewService(store, logger.New("development"))

	err := svc.MarkRead(context.Background(), uuid.New(), uuid.New())
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("MarkRead() error = %v, want not-found kind", err)
	}
}
