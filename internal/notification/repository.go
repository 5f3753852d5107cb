package notification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a notification does not exist for the tenant.
var ErrNotFound = errors.New("notification not found")

type Notification struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Title        string
	Content      string
	Category     string
	ResourceID   *uuid.UUID
	ResourceType *string
	IsRead       bool
	CreatedAt    time.Time
}

type CreateParams struct {
	TenantID     uuid.UUID
	Title        string
	Content      string
	Category     string
	ResourceID   *uuid.UUID
	ResourceType *string
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const notificationColumns = `
	id, tenant_id, title, content, category, resource_id, resource_type,
	is_read, created_at`

func scanNotification(row pgx.Row) (Notification, error) {
	var n Notification
	err := row.Scan(
		&n.ID, &n.TenantID, &n.Title, &n.Content, &n.Category,
		&n.ResourceID, &n.ResourceType, &n.IsRead, &n.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Notification{}, ErrNotFound
	}
	return n, err
}

func (r *Repository) Create(ctx context.Context, p CreateParams) (Notification, error) {
	category := p.Category
	if category == "" {
		category = "info"
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO notifications (
			id, tenant_id, title, content, category, resource_id, resource_type
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+notificationColumns,
		uuid.New(), p.TenantID, p.Title, p.Content, category,
		p.ResourceID, p.ResourceType,
	)
	return scanNotification(row)
}

// List returns a page of the tenant's notifications, newest first, together
// with the total count.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]Notification, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE tenant_id = $1`,
		tenantID,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]Notification, 0, limit)
	for rows.Next() {
		n, scanErr := scanNotification(rows)
		if scanErr != nil {
			return nil, 0, scanErr
		}
		items = append(items, n)
	}
	return items, total, rows.Err()
}

func (r *Repository) CountUnread(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE tenant_id = $1 AND is_read = FALSE
	`, tenantID).Scan(&count)
	return count, err
}

func (r *Repository) MarkRead(ctx context.Context, tenantID, notificationID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET is_read = TRUE, read_at = now()
		WHERE id = $1 AND tenant_id = $2
	`, notificationID, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) MarkAllRead(ctx context.Context, tenantID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET is_read = TRUE, read_at = now()
		WHERE tenant_id = $1 AND is_read = FALSE
	`, tenantID)
	return err
}
