package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"leadhunt_backend/internal/hunting"
	"leadhunt_backend/internal/hunting/repository"
	"leadhunt_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeSessionSource struct {
	sessions     []repository.HuntingSession
	disconnected map[uuid.UUID]bool
}

func (f *fakeSessionSource) ListActiveSessions(ctx context.Context) ([]repository.HuntingSession, error) {
	return f.sessions, nil
}

func (f *fakeSessionSource) HasConnectedCredential(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	return !f.disconnected[tenantID], nil
}

type fakeRunner struct {
	mu      sync.Mutex
	ran     []uuid.UUID
	block   time.Duration
	panicOn uuid.UUID
}

func (f *fakeRunner) Run(ctx context.Context, session repository.HuntingSession) (hunting.RunResult, error) {
	if session.TenantID == f.panicOn {
		panic("tenant blew up")
	}
	if f.block > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(f.block):
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ran = append(f.ran, session.TenantID)
	return hunting.RunResult{}, nil
}

func (f *fakeRunner) ranCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ran)
}

func sessionsFor(tenants ...uuid.UUID) []repository.HuntingSession {
	out := make([]repository.HuntingSession, 0, len(tenants))
	for _, id := range tenants {
		out = append(out, repository.HuntingSession{ID: uuid.New(), TenantID: id})
	}
	return out
}

func newTestCycle(src SessionSource, runner CycleRunner) *HuntingCycle {
	c := NewHuntingCycle(testSchedulerConfig{}, src, runner, logger.New("development"))
	c.launchDelay = 0
	return c
}

func TestCycleRunsAllConnectedTenants(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	src := &fakeSessionSource{
		sessions:     sessionsFor(a, b, c),
		disconnected: map[uuid.UUID]bool{b: true},
	}
	runner := &fakeRunner{}

	newTestCycle(src, runner).cycle(context.Background())

	if runner.ranCount() != 2 {
		t.Fatalf("ran %d tenants, want 2 (disconnected tenant skipped)", runner.ranCount())
	}
	for _, id := range runner.ran {
		if id == b {
			t.Error("disconnected tenant must not run")
		}
	}
}

func TestCycleSurvivesTenantPanic(t *testing.T) {
	bad, good := uuid.New(), uuid.New()
	src := &fakeSessionSource{sessions: sessionsFor(bad, good)}
	runner := &fakeRunner{panicOn: bad}

	newTestCycle(src, runner).cycle(context.Background())

	if runner.ranCount() != 1 || runner.ran[0] != good {
		t.Errorf("ran = %v, want only the healthy tenant", runner.ran)
	}
}

func TestCycleRespectsWallClockBudget(t *testing.T) {
	var tenants []uuid.UUID
	for i := 0; i < 10; i++ {
		tenants = append(tenants, uuid.New())
	}
	src := &fakeSessionSource{sessions: sessionsFor(tenants...)}
	runner := &fakeRunner{block: 50 * time.Millisecond}

	c := newTestCycle(src, runner)
	c.runBudget = 120 * time.Millisecond
	c.concurrency = 1

	start := time.Now()
	c.cycle(context.Background())
	elapsed := time.Since(start)

	if runner.ranCount() >= 10 {
		t.Errorf("ran %d tenants, budget should defer some to the next cycle", runner.ranCount())
	}
	if elapsed > time.Second {
		t.Errorf("cycle took %v, must stop near the budget", elapsed)
	}
}
