package service

import (
	"context"
	"errors"

	"leadhunt_backend/internal/events"
	"leadhunt_backend/internal/hunting/domain"
	"leadhunt_backend/internal/hunting/repository"
	"leadhunt_backend/internal/hunting/transport"
	"leadhunt_backend/platform/apperr"

	"github.com/google/uuid"
)

// HuntEnqueuer schedules an on-demand hunting run for a tenant.
type HuntEnqueuer interface {
	EnqueueHuntRun(ctx context.Context, tenantID uuid.UUID) error
}

// SessionService manages the tenant's hunting session configuration.
type SessionService struct {
	store   Store
	enqueue HuntEnqueuer
	bus     events.Bus
}

func NewSessionService(store Store, enqueue HuntEnqueuer, bus events.Bus) *SessionService {
	return &SessionService{store: store, enqueue: enqueue, bus: bus}
}

// Get returns the tenant's session.
func (s *SessionService) Get(ctx context.Context, tenantID uuid.UUID) (repository.HuntingSession, error) {
	session, err := s.store.GetSessionByTenant(ctx, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.HuntingSession{}, apperr.NotFound("no hunting session configured")
	}
	return session, err
}

// Update creates or reconfigures the tenant's session. Stats and pause state
// survive reconfiguration.
func (s *SessionService) Update(ctx context.Context, tenantID uuid.UUID, req transport.UpdateSessionRequest) (repository.HuntingSession, error) {
	return s.store.UpsertSession(ctx, repository.UpsertSessionParams{
		TenantID:            tenantID,
		Tier:                req.Tier,
		Subreddits:          req.Subreddits,
		Keywords:            req.Keywords,
		MinScore:            req.MinScore,
		MaxPostAgeHours:     req.MaxPostAgeHours,
		CommentStyle:        req.CommentStyle,
		RequireApproval:     req.RequireApproval,
		BusinessDescription: req.BusinessDescription,
		TargetCustomer:      req.TargetCustomer,
		NotificationEmail:   req.NotificationEmail,
	})
}

// Pause stops background hunting for the tenant until an explicit resume.
func (s *SessionService) Pause(ctx context.Context, tenantID uuid.UUID) (repository.HuntingSession, error) {
	if err := s.setStatus(ctx, tenantID, domain.SessionStatusPaused); err != nil {
		return repository.HuntingSession{}, err
	}
	s.bus.Publish(ctx, events.SessionPaused{
		BaseEvent: events.NewBaseEvent(),
		TenantID:  tenantID,
		Reason:    "paused by user",
	})
	return s.Get(ctx, tenantID)
}

// Resume re-enables background hunting.
func (s *SessionService) Resume(ctx context.Context, tenantID uuid.UUID) (repository.HuntingSession, error) {
	if err := s.setStatus(ctx, tenantID, domain.SessionStatusMonitoring); err != nil {
		return repository.HuntingSession{}, err
	}
	return s.Get(ctx, tenantID)
}

// HuntNow enqueues an immediate hunting run for the tenant. The scheduler
// worker picks it up with the same dedup and budget guarantees as the
// background cycle.
func (s *SessionService) HuntNow(ctx context.Context, tenantID uuid.UUID) error {
	session, err := s.Get(ctx, tenantID)
	if err != nil {
		return err
	}
	if session.Status == domain.SessionStatusPaused {
		return apperr.Conflict("session is paused")
	}
	if s.enqueue == nil {
		return apperr.Unavailable("on-demand hunting is not configured")
	}
	return s.enqueue.EnqueueHuntRun(ctx, tenantID)
}

func (s *SessionService) setStatus(ctx context.Context, tenantID uuid.UUID, status string) error {
	err := s.store.UpdateSessionStatus(ctx, tenantID, status)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("no hunting session configured")
	}
	return err
}
