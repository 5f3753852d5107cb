package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"leadhunt_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeCredentialSource struct {
	tenants []uuid.UUID
	err     error
}

func (f *fakeCredentialSource) ListConnectedTenants(ctx context.Context) ([]uuid.UUID, error) {
	return f.tenants, f.err
}

type fakePoller struct {
	mu     sync.Mutex
	polled []uuid.UUID
	failOn uuid.UUID
}

func (f *fakePoller) PollTenant(ctx context.Context, tenantID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polled = append(f.polled, tenantID)
	if tenantID == f.failOn {
		return errors.New("inbox unreachable")
	}
	return nil
}

func newTestMonitor(src CredentialSource, poller InboxPoller) *ResponseMonitor {
	m := NewResponseMonitor(testSchedulerConfig{}, src, poller, logger.New("development"))
	m.pollDelay = 0
	return m
}

// The monitor enumerates the credential table directly: a tenant whose
// hunting session is paused still has outreach in flight and must see
// replies arrive.
func TestMonitorPollsEveryConnectedTenant(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	src := &fakeCredentialSource{tenants: []uuid.UUID{a, b}}
	poller := &fakePoller{}

	newTestMonitor(src, poller).poll(context.Background())

	if len(poller.polled) != 2 {
		t.Fatalf("polled %d tenants, want 2", len(poller.polled))
	}
	if poller.polled[0] != a || poller.polled[1] != b {
		t.Errorf("polled = %v, want [%s %s]", poller.polled, a, b)
	}
}

func TestMonitorContinuesPastFailingTenant(t *testing.T) {
	bad, good := uuid.New(), uuid.New()
	src := &fakeCredentialSource{tenants: []uuid.UUID{bad, good}}
	poller := &fakePoller{failOn: bad}

	newTestMonitor(src, poller).poll(context.Background())

	if len(poller.polled) != 2 || poller.polled[1] != good {
		t.Errorf("polled = %v, want the healthy tenant after the failure", poller.polled)
	}
}

func TestMonitorSkipsCycleOnListFailure(t *testing.T) {
	src := &fakeCredentialSource{err: errors.New("db down")}
	poller := &fakePoller{}

	newTestMonitor(src, poller).poll(context.Background())

	if len(poller.polled) != 0 {
		t.Errorf("polled = %v, want none", poller.polled)
	}
}
