package events

import (
	"context"
	"testing"

	"leadhunt_backend/platform/logger"

	"github.com/google/uuid"
)

func TestBusDeliversDomainEvents(t *testing.T) {
	bus := NewInMemoryBus(logger.New("development"))

	var got []Event
	bus.Subscribe(LeadCreated{}.EventName(), HandlerFunc(func(_ context.Context, e Event) error {
		got = append(got, e)
		return nil
	}))

	event := LeadCreated{
		BaseEvent: NewBaseEvent(),
		LeadID:    uuid.New(),
		TenantID:  uuid.New(),
		PostID:    "p1",
	}
	if err := bus.PublishSync(context.Background(), event); err != nil {
		t.Fatalf("PublishSync: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("delivered %d events, want 1", len(got))
	}
	created, ok := got[0].(LeadCreated)
	if !ok || created.PostID != "p1" {
		t.Errorf("delivered = %+v", got[0])
	}
}
