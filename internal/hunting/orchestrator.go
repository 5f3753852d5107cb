// Package hunting runs the per-tenant lead hunting cycle: pull the session
// config, apply tier limits, search the configured subreddits, dedup and
// score candidates, and persist qualifying leads.
package hunting

import (
	"context"
	"errors"
	"strings"
	"time"

	"leadhunt_backend/internal/events"
	"leadhunt_backend/internal/hunting/domain"
	"leadhunt_backend/internal/hunting/repository"
	"leadhunt_backend/internal/hunting/scoring"
	"leadhunt_backend/internal/reddit"
	"leadhunt_backend/internal/tiers"
	"leadhunt_backend/platform/apperr"
	"leadhunt_backend/platform/logger"

	"github.com/google/uuid"
)

const searchPageSize = 25

// Store is the persistence surface the orchestrator needs.
type Store interface {
	GetSessionByTenant(ctx context.Context, tenantID uuid.UUID) (repository.HuntingSession, error)
	UpdateSessionStatus(ctx context.Context, tenantID uuid.UUID, status string) error
	IncrementSessionStats(ctx context.Context, tenantID uuid.UUID, delta repository.SessionStatsDelta) error
	ScannedToday(ctx context.Context, tenantID uuid.UUID) (int, error)
	LeadExists(ctx context.Context, tenantID uuid.UUID, postID string) (bool, error)
	CreateLead(ctx context.Context, p repository.CreateLeadParams) (repository.Lead, error)
	CountLeadsByStatus(ctx context.Context, tenantID uuid.UUID, status string) (int, error)
}

// TokenSource yields a valid provider access token for a tenant.
type TokenSource interface {
	ValidToken(ctx context.Context, tenantID uuid.UUID) (string, error)
}

// PostSearcher queries one subreddit for candidate posts.
type PostSearcher interface {
	SearchPosts(ctx context.Context, token, subreddit string, keywords []string, limit int) ([]reddit.Post, error)
}

// Scorer qualifies a candidate post.
type Scorer interface {
	Score(ctx context.Context, post reddit.Post, biz scoring.BusinessContext) scoring.Verdict
}

// RunResult summarizes one orchestrator run.
type RunResult struct {
	PostsScanned int
	LeadsFound   int
	// SkipReason is set when the run did no work (tier, budget, credential).
	SkipReason string
}

// Orchestrator is the per-tenant unit of work the scheduler dispatches.
type Orchestrator struct {
	store  Store
	tokens TokenSource
	search PostSearcher
	scorer Scorer
	policy *tiers.Policy
	bus    events.Bus
	log    *logger.Logger

	// Pacing between provider and model calls. Not correctness, just
	// politeness toward rate limits.
	subredditDelay time.Duration
	scoreDelay     time.Duration
}

// NewOrchestrator wires a hunting orchestrator with default pacing.
func NewOrchestrator(store Store, tokens TokenSource, search PostSearcher, scorer Scorer, policy *tiers.Policy, bus events.Bus, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		store:          store,
		tokens:         tokens,
		search:         search,
		scorer:         scorer,
		policy:         policy,
		bus:            bus,
		log:            log,
		subredditDelay: 2 * time.Second,
		scoreDelay:     time.Second,
	}
}

// Run executes one background hunting cycle for the given session. Tiers
// without background hunting are skipped; the manual trigger path uses
// RunNow instead.
func (o *Orchestrator) Run(ctx context.Context, session repository.HuntingSession) (RunResult, error) {
	limits := o.policy.LimitsFor(tiers.Tier(session.Tier))
	if !limits.BackgroundHunting {
		return RunResult{SkipReason: "tier has no background hunting"}, nil
	}
	return o.run(ctx, session, limits)
}

// RunNow executes an on-demand hunting cycle for a tenant, bypassing the
// background-hunting tier gate but not the daily budget.
func (o *Orchestrator) RunNow(ctx context.Context, tenantID uuid.UUID) (RunResult, error) {
	session, err := o.store.GetSessionByTenant(ctx, tenantID)
	if err != nil {
		return RunResult{}, err
	}
	if session.Status == domain.SessionStatusPaused {
		return RunResult{SkipReason: "session paused"}, nil
	}
	return o.run(ctx, session, o.policy.LimitsFor(tiers.Tier(session.Tier)))
}

func (o *Orchestrator) run(ctx context.Context, session repository.HuntingSession, limits tiers.Limits) (RunResult, error) {
	start := time.Now()
	log := o.log.WithTenantID(session.TenantID.String())

	token, err := o.tokens.ValidToken(ctx, session.TenantID)
	if err != nil {
		if apperr.Is(err, apperr.KindAuthExpired) {
			o.pauseSession(ctx, session.TenantID, "provider credential expired")
			return RunResult{SkipReason: "credential expired"}, nil
		}
		if apperr.Is(err, apperr.KindNotFound) {
			return RunResult{SkipReason: "no provider credential"}, nil
		}
		log.ProviderError("reddit", "token", err)
		return RunResult{SkipReason: "token unavailable"}, nil
	}

	budget, ok, err := o.dailyBudget(ctx, session.TenantID, limits)
	if err != nil {
		return RunResult{}, err
	}
	if !ok {
		return RunResult{SkipReason: "daily post budget exhausted"}, nil
	}

	subreddits := session.Subreddits
	if len(subreddits) > limits.MaxSubreddits {
		subreddits = subreddits[:limits.MaxSubreddits]
	}
	minScore := limits.MinScore
	if session.MinScore > minScore {
		minScore = session.MinScore
	}

	o.setStatus(ctx, session.TenantID, domain.SessionStatusSearching)

	var result RunResult
	for i, subreddit := range subreddits {
		if ctx.Err() != nil {
			break
		}
		if budget == 0 {
			break
		}
		if i > 0 {
			if !sleepCtx(ctx, o.subredditDelay) {
				break
			}
		}

		fetchLimit := searchPageSize
		if budget > 0 && budget < fetchLimit {
			fetchLimit = budget
		}

		posts, err := o.search.SearchPosts(ctx, token, subreddit, session.Keywords, fetchLimit)
		if err != nil {
			if apperr.Is(err, apperr.KindRateLimited) {
				log.RateLimitExceeded("", "r/"+subreddit)
				break
			}
			log.ProviderError("reddit", "search r/"+subreddit, err)
			continue
		}

		scanned, found := o.processPosts(ctx, session, posts, &budget, minScore)
		result.PostsScanned += scanned
		result.LeadsFound += found
	}

	// A run that grew the approval backlog parks the session until the
	// tenant reviews the pending leads and resumes.
	endStatus := domain.SessionStatusMonitoring
	if session.RequireApproval && result.LeadsFound > 0 {
		endStatus = domain.SessionStatusWaitingApproval
	}
	o.setStatus(ctx, session.TenantID, endStatus)

	if err := o.store.IncrementSessionStats(ctx, session.TenantID, repository.SessionStatsDelta{
		PostsScanned: result.PostsScanned,
		LeadsFound:   result.LeadsFound,
	}); err != nil {
		log.DatabaseError("increment session stats", err)
	}

	if session.RequireApproval && result.LeadsFound > 0 {
		if pending, err := o.store.CountLeadsByStatus(ctx, session.TenantID, domain.LeadStatusPending); err == nil {
			o.bus.Publish(ctx, events.ApprovalBacklogGrew{
				BaseEvent: events.NewBaseEvent(),
				TenantID:  session.TenantID,
				Pending:   pending,
			})
		}
	}

	log.HuntCycle(session.TenantID.String(), result.PostsScanned, result.LeadsFound,
		float64(time.Since(start).Milliseconds()))
	return result, nil
}

// processPosts scores one subreddit's candidates. Per-post failures are
// logged and skipped; they never abort the batch.
func (o *Orchestrator) processPosts(ctx context.Context, session repository.HuntingSession, posts []reddit.Post, budget *int, minScore int) (scanned, found int) {
	log := o.log.WithTenantID(session.TenantID.String())

	for _, post := range posts {
		if ctx.Err() != nil || *budget == 0 {
			return scanned, found
		}

		scanned++
		if *budget > 0 {
			*budget--
		}

		if !eligible(post, session.MaxPostAgeHours) {
			continue
		}

		exists, err := o.store.LeadExists(ctx, session.TenantID, post.ID)
		if err != nil {
			log.DatabaseError("lead dedup check", err)
			continue
		}
		if exists {
			continue
		}

		verdict := o.scorer.Score(ctx, post, scoring.BusinessContext{
			BusinessDescription: session.BusinessDescription,
			TargetCustomer:      session.TargetCustomer,
		})
		if !verdict.ShouldEngage || verdict.Score < minScore {
			continue
		}

		lead, err := o.store.CreateLead(ctx, repository.CreateLeadParams{
			TenantID:        session.TenantID,
			PostID:          post.ID,
			PostTitle:       post.Title,
			PostBody:        post.Body,
			Subreddit:       post.Subreddit,
			PostAuthor:      post.Author,
			PostURL:         post.Permalink,
			MatchedKeywords: matchedKeywords(post, session.Keywords),
			RelevanceScore:  verdict.Score,
			Reasoning:       verdict.Reasoning,
			Intent:          verdict.Intent,
		})
		if err != nil {
			// A concurrent run won the insert. Normal, not an error.
			if !errors.Is(err, repository.ErrDuplicateLead) {
				log.DatabaseError("create lead", err)
			}
			continue
		}

		found++
		o.bus.Publish(ctx, events.LeadCreated{
			BaseEvent:        events.NewBaseEvent(),
			LeadID:           lead.ID,
			TenantID:         session.TenantID,
			PostID:           post.ID,
			PostTitle:        post.Title,
			PostURL:          post.Permalink,
			Subreddit:        post.Subreddit,
			RelevanceScore:   verdict.Score,
			RequiresApproval: session.RequireApproval,
		})

		sleepCtx(ctx, o.scoreDelay)
	}
	return scanned, found
}

// dailyBudget returns how many posts the tenant may still scan today.
// budget < 0 means unlimited; ok is false when the budget is spent.
func (o *Orchestrator) dailyBudget(ctx context.Context, tenantID uuid.UUID, limits tiers.Limits) (int, bool, error) {
	if limits.Unlimited() {
		return -1, true, nil
	}
	scanned, err := o.store.ScannedToday(ctx, tenantID)
	if err != nil {
		return 0, false, err
	}
	remaining := limits.PostsPerDay - scanned
	if remaining <= 0 {
		return 0, false, nil
	}
	return remaining, true, nil
}

func (o *Orchestrator) pauseSession(ctx context.Context, tenantID uuid.UUID, reason string) {
	if err := o.store.UpdateSessionStatus(ctx, tenantID, domain.SessionStatusPaused); err != nil {
		o.log.DatabaseError("pause session", err)
		return
	}
	o.bus.Publish(ctx, events.SessionPaused{
		BaseEvent: events.NewBaseEvent(),
		TenantID:  tenantID,
		Reason:    reason,
	})
}

func (o *Orchestrator) setStatus(ctx context.Context, tenantID uuid.UUID, status string) {
	if err := o.store.UpdateSessionStatus(ctx, tenantID, status); err != nil {
		o.log.DatabaseError("update session status", err)
	}
}

// eligible filters candidates the scorer should never see: link posts,
// removed authors, and posts older than the session's window.
func eligible(post reddit.Post, maxAgeHours int) bool {
	if !post.IsSelf {
		return false
	}
	if post.Author == "" || post.Author == "[deleted]" {
		return false
	}
	if maxAgeHours > 0 && time.Since(post.CreatedAt) > time.Duration(maxAgeHours)*time.Hour {
		return false
	}
	return true
}

func matchedKeywords(post reddit.Post, keywords []string) []string {
	text := strings.ToLower(post.Title + " " + post.Body)
	matched := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	return matched
}

// sleepCtx sleeps for d unless the context ends first. Returns false when
// the context ended.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
