package hunting

import (
	"context"
	"sync"
	"testing"
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

type fakeStore struct {
	session       repository.HuntingSession
	scannedToday  int
	existingPosts map[string]bool

	createdLeads []repository.CreateLeadParams
	statsDeltas  []repository.SessionStatsDelta
	statuses     []string
	pendingCount int
}

func (f *fakeStore) GetSessionByTenant(ctx context.Context, tenantID uuid.UUID) (repository.HuntingSession, error) {
	return f.session, nil
}

func (f *fakeStore) UpdateSessionStatus(ctx context.Context, tenantID uuid.UUID, status string) error {
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeStore) IncrementSessionStats(ctx context.Context, tenantID uuid.UUID, delta repository.SessionStatsDelta) error {
	f.statsDeltas = append(f.statsDeltas, delta)
	return nil
}

func (f *fakeStore) ScannedToday(ctx context.Context, tenantID uuid.UUID) (int, error) {
	return f.scannedToday, nil
}

func (f *fakeStore) LeadExists(ctx context.Context, tenantID uuid.UUID, postID string) (bool, error) {
	return f.existingPosts[postID], nil
}

func (f *fakeStore) CreateLead(ctx context.Context, p repository.CreateLeadParams) (repository.Lead, error) {
	f.createdLeads = append(f.createdLeads, p)
	return repository.Lead{ID: uuid.New(), TenantID: p.TenantID, PostID: p.PostID, Status: domain.LeadStatusPending}, nil
}

func (f *fakeStore) CountLeadsByStatus(ctx context.Context, tenantID uuid.UUID, status string) (int, error) {
	return f.pendingCount, nil
}

type fakeTokens struct {
	token string
	err   error
}

func (f *fakeTokens) ValidToken(ctx context.Context, tenantID uuid.UUID) (string, error) {
	return f.token, f.err
}

type fakeSearcher struct {
	postsBySub map[string][]reddit.Post
	errBySub   map[string]error
	calls      []string
	limits     []int
}

func (f *fakeSearcher) SearchPosts(ctx context.Context, token, subreddit string, keywords []string, limit int) ([]reddit.Post, error) {
	f.calls = append(f.calls, subreddit)
	f.limits = append(f.limits, limit)
	if err := f.errBySub[subreddit]; err != nil {
		return nil, err
	}
	return f.postsBySub[subreddit], nil
}

type fakeScorer struct {
	verdicts map[string]scoring.Verdict
	scored   []string
}

func (f *fakeScorer) Score(ctx context.Context, post reddit.Post, biz scoring.BusinessContext) scoring.Verdict {
	f.scored = append(f.scored, post.ID)
	if v, ok := f.verdicts[post.ID]; ok {
		return v
	}
	return scoring.Verdict{Score: 1, Intent: scoring.IntentNone}
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

func (b *recordingBus) named(name string) []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.Event
	for _, e := range b.events {
		if e.EventName() == name {
			out = append(out, e)
		}
	}
	return out
}

func selfPost(id, title, body string) reddit.Post {
	return reddit.Post{
		ID:        id,
		Title:     title,
		Body:      body,
		Subreddit: "smallbusiness",
		Author:    "shopkeeper",
		IsSelf:    true,
		CreatedAt: time.Now().Add(-time.Hour),
	}
}

func starterSession() repository.HuntingSession {
	return repository.HuntingSession{
		ID:                  uuid.New(),
		TenantID:            uuid.New(),
		Tier:                string(tiers.TierStarter),
		Status:              domain.SessionStatusMonitoring,
		Subreddits:          []string{"smallbusiness"},
		Keywords:            []string{"invoicing"},
		MinScore:            6,
		MaxPostAgeHours:     48,
		RequireApproval:     true,
		BusinessDescription: "Invoicing SaaS for freelancers",
		TargetCustomer:      "small business owners",
	}
}

func newTestOrchestrator(store *fakeStore, tokens *fakeTokens, search *fakeSearcher, scorer *fakeScorer, bus events.Bus) *Orchestrator {
	o := NewOrchestrator(store, tokens, search, scorer, tiers.NewPolicy(), bus, logger.New("development"))
	o.subredditDelay = 0
	o.scoreDelay = 0
	return o
}

func TestRunCreatesFreshLead(t *testing.T) {
	session := starterSession()
	store := &fakeStore{session: session, existingPosts: map[string]bool{}, pendingCount: 1}
	search := &fakeSearcher{postsBySub: map[string][]reddit.Post{
		"smallbusiness": {selfPost("p1", "Need invoicing software", "My invoicing workflow is a mess.")},
	}}
	scorer := &fakeScorer{verdicts: map[string]scoring.Verdict{
		"p1": {Score: 8, Reasoning: "clear buying intent", Intent: scoring.IntentHigh, ShouldEngage: true},
	}}
	bus := &recordingBus{}

	o := newTestOrchestrator(store, &fakeTokens{token: "tok"}, search, scorer, bus)
	result, err := o.Run(context.Background(), session)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.PostsScanned != 1 || result.LeadsFound != 1 {
		t.Errorf("result = %+v, want 1 scanned 1 found", result)
	}
	if len(store.createdLeads) != 1 {
		t.Fatalf("created %d leads, want 1", len(store.createdLeads))
	}
	lead := store.createdLeads[0]
	if lead.PostID != "p1" || lead.RelevanceScore != 8 {
		t.Errorf("lead = %+v", lead)
	}
	if len(lead.MatchedKeywords) != 1 || lead.MatchedKeywords[0] != "invoicing" {
		t.Errorf("MatchedKeywords = %v, want [invoicing]", lead.MatchedKeywords)
	}
	if len(store.statsDeltas) != 1 || store.statsDeltas[0].PostsScanned != 1 || store.statsDeltas[0].LeadsFound != 1 {
		t.Errorf("statsDeltas = %+v", store.statsDeltas)
	}
	if got := bus.named("hunting.lead.created"); len(got) != 1 {
		t.Errorf("lead.created events = %d, want 1", len(got))
	}
	if got := bus.named("hunting.approval.backlog_grew"); len(got) != 1 {
		t.Errorf("backlog events = %d, want 1", len(got))
	}
}

func TestRunParksSessionWhenApprovalBacklogGrows(t *testing.T) {
	session := starterSession()
	store := &fakeStore{session: session, existingPosts: map[string]bool{}, pendingCount: 1}
	search := &fakeSearcher{postsBySub: map[string][]reddit.Post{
		"smallbusiness": {selfPost("p1", "Need invoicing software", "My invoicing workflow is a mess.")},
	}}
	scorer := &fakeScorer{verdicts: map[string]scoring.Verdict{
		"p1": {Score: 8, Intent: scoring.IntentHigh, ShouldEngage: true},
	}}

	o := newTestOrchestrator(store, &fakeTokens{token: "tok"}, search, scorer, &recordingBus{})
	if _, err := o.Run(context.Background(), session); err != nil {
		t.Fatalf("Run: %v", err)
	}

	last := store.statuses[len(store.statuses)-1]
	if last != domain.SessionStatusWaitingApproval {
		t.Errorf("final status = %q, want waiting_approval", last)
	}
}

func TestRunReturnsToMonitoringWithoutNewLeads(t *testing.T) {
	session := starterSession()
	store := &fakeStore{session: session, existingPosts: map[string]bool{}}
	search := &fakeSearcher{postsBySub: map[string][]reddit.Post{
		"smallbusiness": {selfPost("p1", "Tangential complaint", "not about invoicing tools")},
	}}
	scorer := &fakeScorer{verdicts: map[string]scoring.Verdict{
		"p1": {Score: 5, Intent: scoring.IntentLow, ShouldEngage: true},
	}}

	o := newTestOrchestrator(store, &fakeTokens{token: "tok"}, search, scorer, &recordingBus{})
	if _, err := o.Run(context.Background(), session); err != nil {
		t.Fatalf("Run: %v", err)
	}

	last := store.statuses[len(store.statuses)-1]
	if last != domain.SessionStatusMonitoring {
		t.Errorf("final status = %q, want monitoring", last)
	}
}

func TestRunSkipsBelowThreshold(t *testing.T) {
	session := starterSession()
	store := &fakeStore{session: session, existingPosts: map[string]bool{}}
	search := &fakeSearcher{postsBySub: map[string][]reddit.Post{
		"smallbusiness": {selfPost("p1", "Tangential complaint", "not really about invoicing tools")},
	}}
	// Engaged but below max(tierMin=6, sessionMin=6).
	scorer := &fakeScorer{verdicts: map[string]scoring.Verdict{
		"p1": {Score: 5, Intent: scoring.IntentLow, ShouldEngage: true},
	}}

	o := newTestOrchestrator(store, &fakeTokens{token: "tok"}, search, scorer, &recordingBus{})
	result, err := o.Run(context.Background(), session)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.PostsScanned != 1 || result.LeadsFound != 0 {
		t.Errorf("result = %+v, want 1 scanned 0 found", result)
	}
	if len(store.createdLeads) != 0 {
		t.Errorf("created leads = %d, want 0", len(store.createdLeads))
	}
}

func TestRunDedupSkipsWithoutScoring(t *testing.T) {
	session := starterSession()
	store := &fakeStore{session: session, existingPosts: map[string]bool{"p1": true}}
	search := &fakeSearcher{postsBySub: map[string][]reddit.Post{
		"smallbusiness": {
			selfPost("p1", "seen before", "invoicing"),
			selfPost("p2", "new post", "invoicing help"),
		},
	}}
	scorer := &fakeScorer{verdicts: map[string]scoring.Verdict{
		"p2": {Score: 7, Intent: scoring.IntentMedium, ShouldEngage: true},
	}}

	o := newTestOrchestrator(store, &fakeTokens{token: "tok"}, search, scorer, &recordingBus{})
	result, err := o.Run(context.Background(), session)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.PostsScanned != 2 || result.LeadsFound != 1 {
		t.Errorf("result = %+v, want 2 scanned 1 found", result)
	}
	if len(scorer.scored) != 1 || scorer.scored[0] != "p2" {
		t.Errorf("scored = %v, want only p2 (duplicate must not reach the scorer)", scorer.scored)
	}
}

func TestRunSkipsIneligiblePosts(t *testing.T) {
	session := starterSession()
	linkPost := selfPost("p1", "link", "")
	linkPost.IsSelf = false
	deleted := selfPost("p2", "gone", "body")
	deleted.Author = "[deleted]"
	stale := selfPost("p3", "old", "body")
	stale.CreatedAt = time.Now().Add(-72 * time.Hour)

	store := &fakeStore{session: session, existingPosts: map[string]bool{}}
	search := &fakeSearcher{postsBySub: map[string][]reddit.Post{
		"smallbusiness": {linkPost, deleted, stale},
	}}
	scorer := &fakeScorer{}

	o := newTestOrchestrator(store, &fakeTokens{token: "tok"}, search, scorer, &recordingBus{})
	result, err := o.Run(context.Background(), session)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(scorer.scored) != 0 {
		t.Errorf("scored = %v, want none", scorer.scored)
	}
	if result.PostsScanned != 3 {
		t.Errorf("PostsScanned = %d, want 3", result.PostsScanned)
	}
}

func TestRunSkipsTierWithoutBackgroundHunting(t *testing.T) {
	session := starterSession()
	session.Tier = string(tiers.TierFree)
	store := &fakeStore{session: session}
	search := &fakeSearcher{}

	o := newTestOrchestrator(store, &fakeTokens{token: "tok"}, search, &fakeScorer{}, &recordingBus{})
	result, err := o.Run(context.Background(), session)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.SkipReason == "" {
		t.Error("expected a skip reason for free tier")
	}
	if len(search.calls) != 0 {
		t.Errorf("search called %d times, want 0", len(search.calls))
	}
}

func TestRunNowBypassesBackgroundGate(t *testing.T) {
	session := starterSession()
	session.Tier = string(tiers.TierFree)
	session.MinScore = 0
	store := &fakeStore{session: session, existingPosts: map[string]bool{}}
	search := &fakeSearcher{postsBySub: map[string][]reddit.Post{
		"smallbusiness": {selfPost("p1", "Need invoicing software", "help")},
	}}
	scorer := &fakeScorer{verdicts: map[string]scoring.Verdict{
		"p1": {Score: 8, Intent: scoring.IntentHigh, ShouldEngage: true},
	}}

	o := newTestOrchestrator(store, &fakeTokens{token: "tok"}, search, scorer, &recordingBus{})
	result, err := o.RunNow(context.Background(), session.TenantID)
	if err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if result.LeadsFound != 1 {
		t.Errorf("LeadsFound = %d, want 1", result.LeadsFound)
	}
}

func TestRunPausesSessionOnExpiredCredential(t *testing.T) {
	session := starterSession()
	store := &fakeStore{session: session}
	bus := &recordingBus{}

	o := newTestOrchestrator(store, &fakeTokens{err: apperr.AuthExpired("refresh rejected")}, &fakeSearcher{}, &fakeScorer{}, bus)
	result, err := o.Run(context.Background(), session)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.SkipReason == "" {
		t.Error("expected skip reason")
	}
	if len(store.statuses) != 1 || store.statuses[0] != domain.SessionStatusPaused {
		t.Errorf("statuses = %v, want [paused]", store.statuses)
	}
	if got := bus.named("hunting.session.paused"); len(got) != 1 {
		t.Errorf("session.paused events = %d, want 1", len(got))
	}
}

func TestRunSkipsWithoutPausingOnTransientTokenFailure(t *testing.T) {
	session := starterSession()
	store := &fakeStore{session: session}
	bus := &recordingBus{}

	o := newTestOrchestrator(store, &fakeTokens{err: apperr.Unavailable("credential store down")}, &fakeSearcher{}, &fakeScorer{}, bus)
	result, err := o.Run(context.Background(), session)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.SkipReason == "" {
		t.Error("expected skip reason")
	}
	if len(store.statuses) != 0 {
		t.Errorf("statuses = %v, want none", store.statuses)
	}
	if got := bus.named("hunting.session.paused"); len(got) != 0 {
		t.Errorf("session.paused events = %d, want 0", len(got))
	}
}

func TestRunSkipsTenantWithNoCredential(t *testing.T) {
	session := starterSession()
	store := &fakeStore{session: session}

	o := newTestOrchestrator(store, &fakeTokens{err: apperr.NotFound("no reddit credential on file")}, &fakeSearcher{}, &fakeScorer{}, &recordingBus{})
	result, err := o.Run(context.Background(), session)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.SkipReason != "no provider credential" {
		t.Errorf("skip reason = %q", result.SkipReason)
	}
	if len(store.statuses) != 0 {
		t.Errorf("statuses = %v, want none", store.statuses)
	}
}

func TestRunRespectsDailyBudget(t *testing.T) {
	session := starterSession()
	// Starter allows 25/day; 22 already scanned leaves a budget of 3.
	store := &fakeStore{session: session, scannedToday: 22, existingPosts: map[string]bool{}}
	var posts []reddit.Post
	for _, id := range []string{"p1", "p2", "p3", "p4", "p5"} {
		posts = append(posts, selfPost(id, "post "+id, "invoicing"))
	}
	search := &fakeSearcher{postsBySub: map[string][]reddit.Post{"smallbusiness": posts}}
	scorer := &fakeScorer{}

	o := newTestOrchestrator(store, &fakeTokens{token: "tok"}, search, scorer, &recordingBus{})
	result, err := o.Run(context.Background(), session)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.PostsScanned != 3 {
		t.Errorf("PostsScanned = %d, want 3", result.PostsScanned)
	}
	if len(search.limits) != 1 || search.limits[0] != 3 {
		t.Errorf("search limits = %v, want [3]", search.limits)
	}
}

func TestRunSkipsWhenBudgetExhausted(t *testing.T) {
	session := starterSession()
	store := &fakeStore{session: session, scannedToday: 25}
	search := &fakeSearcher{}

	o := newTestOrchestrator(store, &fakeTokens{token: "tok"}, search, &fakeScorer{}, &recordingBus{})
	result, err := o.Run(context.Background(), session)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.SkipReason == "" {
		t.Error("expected skip reason when budget spent")
	}
	if len(search.calls) != 0 {
		t.Errorf("search called %d times, want 0", len(search.calls))
	}
}

func TestRunTruncatesSubredditsToTier(t *testing.T) {
	session := starterSession()
	session.Subreddits = []string{"a", "b", "c", "d", "e"}
	store := &fakeStore{session: session, existingPosts: map[string]bool{}}
	search := &fakeSearcher{}

	o := newTestOrchestrator(store, &fakeTokens{token: "tok"}, search, &fakeScorer{}, &recordingBus{})
	if _, err := o.Run(context.Background(), session); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Starter tier allows 3 subreddits, in configured order.
	want := []string{"a", "b", "c"}
	if len(search.calls) != len(want) {
		t.Fatalf("search calls = %v, want %v", search.calls, want)
	}
	for i := range want {
		if search.calls[i] != want[i] {
			t.Fatalf("search calls = %v, want %v", search.calls, want)
		}
	}
}

func TestRunStopsTenantOnRateLimit(t *testing.T) {
	session := starterSession()
	session.Subreddits = []string{"a", "b"}
	store := &fakeStore{session: session, existingPosts: map[string]bool{}}
	search := &fakeSearcher{errBySub: map[string]error{"a": apperr.RateLimited("429")}}

	o := newTestOrchestrator(store, &fakeTokens{token: "tok"}, search, &fakeScorer{}, &recordingBus{})
	if _, err := o.Run(context.Background(), session); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(search.calls) != 1 {
		t.Errorf("search calls = %v, rate limit must stop the tenant's cycle", search.calls)
	}
}

func TestRunContinuesPastSubredditFailure(t *testing.T) {
	session := starterSession()
	session.Subreddits = []string{"a", "b"}
	store := &fakeStore{session: session, existingPosts: map[string]bool{}}
	search := &fakeSearcher{
		errBySub: map[string]error{"a": apperr.Unavailable("connection reset")},
		postsBySub: map[string][]reddit.Post{
			"b": {selfPost("p1", "Need invoicing software", "invoicing")},
		},
	}
	scorer := &fakeScorer{verdicts: map[string]scoring.Verdict{
		"p1": {Score: 9, Intent: scoring.IntentHigh, ShouldEngage: true},
	}}

	o := newTestOrchestrator(store, &fakeTokens{token: "tok"}, search, scorer, &recordingBus{})
	result, err := o.Run(context.Background(), session)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(search.calls) != 2 {
		t.Errorf("search calls = %v, want both subreddits attempted", search.calls)
	}
	if result.LeadsFound != 1 {
		t.Errorf("LeadsFound = %d, want 1 from the healthy subreddit", result.LeadsFound)
	}
}
