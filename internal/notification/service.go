package notification

import (
	"context"
	"errors"

	"leadhunt_backend/platform/apperr"
	"leadhunt_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, p CreateParams) (Notification, error)
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]Notification, int, error)
	CountUnread(ctx context.Context, tenantID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, tenantID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, tenantID uuid.UUID) error
}

type Service struct {
	store Store
	log   *logger.Logger
}

func NewService(store Store, log *logger.Logger) *Service {
	return &Service{store: store, log: log}
}

// Notify persists an in-app notification. Failures are logged, not
// propagated; notification delivery must never fail the originating action.
func (s *Service) Notify(ctx context.Context, p CreateParams) {
	if _, err := s.store.Create(ctx, p); err != nil {
		s.log.Error("failed to persist notification",
			"tenant_id", p.TenantID,
			"title", p.Title,
			"error", err,
		)
	}
}

func (s *Service) List(ctx context.Context, tenantID uuid.UUID, page, pageSize int) ([]Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return s.store.List(ctx, tenantID, pageSize, (page-1)*pageSize)
}

func (s *Service) UnreadCount(ctx context.Context, tenantID uuid.UUID) (int, error) {
	return s.store.CountUnread(ctx, tenantID)
}

func (s *Service) MarkRead(ctx context.Context, tenantID, id uuid.UUID) error {
	err := s.store.MarkRead(ctx, tenantID, id)
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("notification not found")
	}
	return err
}

func (s *Service) MarkAllRead(ctx context.Context, tenantID uuid.UUID) error {
	return s.store.MarkAllRead(ctx, tenantID)
}
