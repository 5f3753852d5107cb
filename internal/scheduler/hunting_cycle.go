// Package scheduler runs the periodic hunting and response-monitoring loops
// and the asynq worker for on-demand runs.
package scheduler

import (
	"context"
	"sync"
	"time"

	"leadhunt_backend/internal/hunting"
	"leadhunt_backend/internal/hunting/repository"
	"leadhunt_backend/platform/config"
	"leadhunt_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

const tenantLaunchDelay = 3 * time.Second

// SessionSource enumerates sessions eligible for a cycle.
type SessionSource interface {
	ListActiveSessions(ctx context.Context) ([]repository.HuntingSession, error)
	HasConnectedCredential(ctx context.Context, tenantID uuid.UUID) (bool, error)
}

// CycleRunner is the per-tenant unit of work.
type CycleRunner interface {
	Run(ctx context.Context, session repository.HuntingSession) (hunting.RunResult, error)
}

// HuntingCycle triggers one orchestrator run per active tenant on a fixed
// interval. Tenants run on a small bounded pool; each tenant's own subreddit
// loop stays sequential to preserve pacing.
type HuntingCycle struct {
	sessions SessionSource
	runner   CycleRunner
	log      *logger.Logger

	interval    time.Duration
	runBudget   time.Duration
	concurrency int64
	launchDelay time.Duration
}

func NewHuntingCycle(cfg config.SchedulerConfig, sessions SessionSource, runner CycleRunner, log *logger.Logger) *HuntingCycle {
	interval := cfg.GetHuntInterval()
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	budget := cfg.GetHuntRunBudget()
	if budget <= 0 || budget > interval {
		budget = interval - interval/6
	}
	concurrency := int64(cfg.GetTenantConcurrency())
	if concurrency < 1 {
		concurrency = 1
	}

	return &HuntingCycle{
		sessions:    sessions,
		runner:      runner,
		log:         log,
		interval:    interval,
		runBudget:   budget,
		concurrency: concurrency,
		launchDelay: tenantLaunchDelay,
	}
}

// Run blocks until the context is cancelled, executing one cycle immediately
// and then one per interval.
func (h *HuntingCycle) Run(ctx context.Context) {
	h.cycle(ctx)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.cycle(ctx)
		}
	}
}

// cycle processes every active session once, within a wall-clock budget.
// Tenants not reached before the deadline wait for the next cycle; nothing
// is carried over in memory.
func (h *HuntingCycle) cycle(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, h.runBudget)
	defer cancel()

	sessions, err := h.sessions.ListActiveSessions(runCtx)
	if err != nil {
		h.log.DatabaseError("list active sessions", err)
		return
	}
	if len(sessions) == 0 {
		return
	}

	sem := semaphore.NewWeighted(h.concurrency)
	var wg sync.WaitGroup

	launched := 0
	for _, session := range sessions {
		if runCtx.Err() != nil {
			h.log.Warn("hunting cycle budget reached",
				"processed", launched, "total", len(sessions))
			break
		}

		connected, err := h.sessions.HasConnectedCredential(runCtx, session.TenantID)
		if err != nil {
			h.log.DatabaseError("check credential", err)
			continue
		}
		if !connected {
			continue
		}

		if err := sem.Acquire(runCtx, 1); err != nil {
			break
		}
		launched++

		wg.Add(1)
		go func(session repository.HuntingSession) {
			defer wg.Done()
			defer sem.Release(1)
			h.runTenant(runCtx, session)
		}(session)

		// Stagger launches so tenants do not hit the provider in lockstep.
		if launched < len(sessions) {
			sleep(runCtx, h.launchDelay)
		}
	}

	wg.Wait()
	h.log.Info("hunting cycle finished", "tenants", launched)
}

// runTenant isolates one tenant's failure from the rest of the batch.
func (h *HuntingCycle) runTenant(ctx context.Context, session repository.HuntingSession) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("hunting run panicked", "tenantId", session.TenantID, "panic", r)
		}
	}()

	result, err := h.runner.Run(ctx, session)
	if err != nil {
		h.log.Error("hunting run failed", "tenantId", session.TenantID, "error", err)
		return
	}
	if result.SkipReason != "" {
		h.log.Debug("hunting run skipped", "tenantId", session.TenantID, "reason", result.SkipReason)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
