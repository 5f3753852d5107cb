package repository

import (
	"context"
	"errors"
	"time"

	"leadhunt_backend/internal/hunting/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// HuntingSession is a tenant's persisted hunting configuration and running
// statistics. One per tenant; never deleted, only paused.
type HuntingSession struct {
	ID                  uuid.UUID
	TenantID            uuid.UUID
	Tier                string
	Status              string
	Subreddits          []string
	Keywords            []string
	MinScore            int
	MaxPostAgeHours     int
	CommentStyle        string
	RequireApproval     bool
	BusinessDescription string
	TargetCustomer      string
	NotificationEmail   *string
	PostsScanned        int
	LeadsFound          int
	DMsStarted          int
	ScannedToday        int
	CounterDate         time.Time
	LastRunAt           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

const sessionColumns = `
	id, tenant_id, tier, status, subreddits, keywords, min_score,
	max_post_age_hours, comment_style, require_approval,
	business_description, target_customer, notification_email, posts_scanned,
	leads_found, dms_started, scanned_today, counter_date, last_run_at,
	created_at, updated_at`

func scanSession(row pgx.Row) (HuntingSession, error) {
	var s HuntingSession
	err := row.Scan(
		&s.ID, &s.TenantID, &s.Tier, &s.Status, &s.Subreddits, &s.Keywords,
		&s.MinScore, &s.MaxPostAgeHours, &s.CommentStyle, &s.RequireApproval,
		&s.BusinessDescription, &s.TargetCustomer, &s.NotificationEmail,
		&s.PostsScanned, &s.LeadsFound, &s.DMsStarted, &s.ScannedToday,
		&s.CounterDate, &s.LastRunAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return HuntingSession{}, ErrNotFound
	}
	return s, err
}

// GetSessionByTenant returns the tenant's hunting session.
func (r *Repository) GetSessionByTenant(ctx context.Context, tenantID uuid.UUID) (HuntingSession, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM hunting_sessions
		WHERE tenant_id = $1
	`, tenantID)
	return scanSession(row)
}

// ListActiveSessions returns all sessions in an active status, oldest run
// first so starved tenants are served before recently processed ones.
func (r *Repository) ListActiveSessions(ctx context.Context) ([]HuntingSession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM hunting_sessions
		WHERE status = ANY($1)
		ORDER BY last_run_at ASC NULLS FIRST
	`, domain.ActiveSessionStatuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]HuntingSession, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// UpsertSessionParams carries a tenant's hunting configuration.
type UpsertSessionParams struct {
	TenantID            uuid.UUID
	Tier                string
	Subreddits          []string
	Keywords            []string
	MinScore            int
	MaxPostAgeHours     int
	CommentStyle        string
	RequireApproval     bool
	BusinessDescription string
	TargetCustomer      string
	NotificationEmail   *string
}

// UpsertSession creates the tenant's session on first activation or updates
// its configuration. Stats and status are preserved on update.
func (r *Repository) UpsertSession(ctx context.Context, p UpsertSessionParams) (HuntingSession, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO hunting_sessions (
			id, tenant_id, tier, status, subreddits, keywords, min_score,
			max_post_age_hours, comment_style, require_approval,
			business_description, target_customer, notification_email
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (tenant_id) DO UPDATE SET
			tier = EXCLUDED.tier,
			subreddits = EXCLUDED.subreddits,
			keywords = EXCLUDED.keywords,
			min_score = EXCLUDED.min_score,
			max_post_age_hours = EXCLUDED.max_post_age_hours,
			comment_style = EXCLUDED.comment_style,
			require_approval = EXCLUDED.require_approval,
			business_description = EXCLUDED.business_description,
			target_customer = EXCLUDED.target_customer,
			notification_email = EXCLUDED.notification_email,
			updated_at = now()
		RETURNING `+sessionColumns,
		uuid.New(), p.TenantID, p.Tier, domain.SessionStatusMonitoring,
		p.Subreddits, p.Keywords, p.MinScore, p.MaxPostAgeHours,
		p.CommentStyle, p.RequireApproval, p.BusinessDescription,
		p.TargetCustomer, p.NotificationEmail,
	)
	return scanSession(row)
}

// UpdateSessionStatus sets the session status for a tenant.
func (r *Repository) UpdateSessionStatus(ctx context.Context, tenantID uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE hunting_sessions
		SET status = $1, updated_at = now()
		WHERE tenant_id = $2
	`, status, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SessionStatsDelta is the increment applied at the end of one hunting run.
type SessionStatsDelta struct {
	PostsScanned int
	LeadsFound   int
	DMsStarted   int
}

// IncrementSessionStats applies one run's counters atomically and stamps the
// run time. The daily scanned counter resets when the counter date rolls over.
func (r *Repository) IncrementSessionStats(ctx context.Context, tenantID uuid.UUID, delta SessionStatsDelta) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE hunting_sessions
		SET posts_scanned = posts_scanned + $1,
		    leads_found = leads_found + $2,
		    dms_started = dms_started + $3,
		    scanned_today = CASE
		        WHEN counter_date = current_date THEN scanned_today + $1
		        ELSE $1
		    END,
		    counter_date = current_date,
		    last_run_at = now(),
		    updated_at = now()
		WHERE tenant_id = $4
	`, delta.PostsScanned, delta.LeadsFound, delta.DMsStarted, tenantID)
	return err
}

// ScannedToday returns how many posts were scanned for the tenant today,
// accounting for a counter date that has not rolled over yet.
func (r *Repository) ScannedToday(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var scanned int
	err := r.pool.QueryRow(ctx, `
		SELECT CASE WHEN counter_date = current_date THEN scanned_today ELSE 0 END
		FROM hunting_sessions
		WHERE tenant_id = $1
	`, tenantID).Scan(&scanned)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return scanned, err
}
