// Package repository provides pgx-backed persistence for the hunting
// bounded context: sessions, leads, conversations, and provider credentials.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadhunt_backend/internal/hunting/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateLead is returned when an insert hits the
	// (tenant_id, post_id) uniqueness constraint. Not a failure: the dedup
	// gate treats it as a normal skip.
	ErrDuplicateLead = errors.New("lead already exists for post")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Lead is the central persisted entity: a forum post identified as a likely
// sales opportunity, tracked through the outreach lifecycle.
type Lead struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	PostID             string
	PostTitle          string
	PostBody           string
	Subreddit          string
	PostAuthor         string
	PostURL            string
	MatchedKeywords    []string
	RelevanceScore     int
	Reasoning          string
	Intent             string
	Status             string
	DMMessage          *string
	OutreachCommentID  *string
	PartialFailureNote *string
	CreatedAt          time.Time
	ApprovedAt         *time.Time
	DMSentAt           *time.Time
	ContactedAt        *time.Time
	RespondedAt        *time.Time
	RejectedAt         *time.Time
	UpdatedAt          time.Time
}

const leadColumns = `
	id, tenant_id, post_id, post_title, post_body, subreddit, post_author,
	post_url, matched_keywords, relevance_score, reasoning, intent, status,
	dm_message, outreach_comment_id, partial_failure_note,
	created_at, approved_at, dm_sent_at, contacted_at, responded_at,
	rejected_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	err := row.Scan(
		&lead.ID, &lead.TenantID, &lead.PostID, &lead.PostTitle, &lead.PostBody,
		&lead.Subreddit, &lead.PostAuthor, &lead.PostURL, &lead.MatchedKeywords,
		&lead.RelevanceScore, &lead.Reasoning, &lead.Intent, &lead.Status,
		&lead.DMMessage, &lead.OutreachCommentID, &lead.PartialFailureNote,
		&lead.CreatedAt, &lead.ApprovedAt, &lead.DMSentAt, &lead.ContactedAt,
		&lead.RespondedAt, &lead.RejectedAt, &lead.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// CreateLeadParams carries the fields for a freshly qualified lead.
type CreateLeadParams struct {
	TenantID        uuid.UUID
	PostID          string
	PostTitle       string
	PostBody        string
	Subreddit       string
	PostAuthor      string
	PostURL         string
	MatchedKeywords []string
	RelevanceScore  int
	Reasoning       string
	Intent          string
}

// CreateLead inserts a new pending lead. The (tenant_id, post_id) uniqueness
// constraint backs the dedup gate: a conflicting insert returns
// ErrDuplicateLead and leaves the existing lead untouched.
func (r *Repository) CreateLead(ctx context.Context, p CreateLeadParams) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (
			id, tenant_id, post_id, post_title, post_body, subreddit,
			post_author, post_url, matched_keywords, relevance_score,
			reasoning, intent, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (tenant_id, post_id) DO NOTHING
		RETURNING `+leadColumns,
		uuid.New(), p.TenantID, p.PostID, p.PostTitle, p.PostBody, p.Subreddit,
		p.PostAuthor, p.PostURL, p.MatchedKeywords, p.RelevanceScore,
		p.Reasoning, p.Intent, domain.LeadStatusPending,
	)

	lead, err := scanLead(row)
	if errors.Is(err, ErrNotFound) {
		return Lead{}, ErrDuplicateLead
	}
	return lead, err
}

// LeadExists is the dedup gate point lookup, checked before scoring to avoid
// wasted LLM calls. The uniqueness constraint remains the final authority.
func (r *Repository) LeadExists(ctx context.Context, tenantID uuid.UUID, postID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM leads WHERE tenant_id = $1 AND post_id = $2
		)
	`, tenantID, postID).Scan(&exists)
	return exists, err
}

// GetLeadByID returns one lead scoped to its tenant.
func (r *Repository) GetLeadByID(ctx context.Context, leadID, tenantID uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE id = $1 AND tenant_id = $2
	`, leadID, tenantID)
	return scanLead(row)
}

// ListLeads returns a tenant's leads, optionally filtered by status, newest first.
func (r *Repository) ListLeads(ctx context.Context, tenantID uuid.UUID, status string, limit int) ([]Lead, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}

	query := `SELECT ` + leadColumns + ` FROM leads WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// statusTimestampColumns maps a lifecycle status to the column stamped when
// the lead enters it.
var statusTimestampColumns = map[string]string{
	domain.LeadStatusApproved:  "approved_at",
	domain.LeadStatusDMSent:    "dm_sent_at",
	domain.LeadStatusContacted: "contacted_at",
	domain.LeadStatusResponded: "responded_at",
	domain.LeadStatusRejected:  "rejected_at",
}

// UpdateLeadStatus moves a lead into newStatus and stamps the matching
// transition timestamp. The WHERE clause re-checks the expected current
// status so concurrent transitions cannot leapfrog each other; a zero-row
// update reports ErrNotFound and the caller re-reads to decide.
func (r *Repository) UpdateLeadStatus(ctx context.Context, leadID, tenantID uuid.UUID, fromStatus, newStatus string) error {
	assignments := []string{"status = $1", "updated_at = now()"}
	if column, ok := statusTimestampColumns[newStatus]; ok {
		assignments = append(assignments, column+" = now()")
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET `+strings.Join(assignments, ", ")+`
		WHERE id = $2 AND tenant_id = $3 AND status = $4
	`, newStatus, leadID, tenantID, fromStatus)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetLeadDM stores the tenant-authored outreach text.
func (r *Repository) SetLeadDM(ctx context.Context, leadID, tenantID uuid.UUID, message string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET dm_message = $1, updated_at = now()
		WHERE id = $2 AND tenant_id = $3
	`, message, leadID, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetOutreachResult records the outcome of an outreach attempt: the public
// comment id when the follow-up comment succeeded, or a partial-failure note
// when only the DM went through.
func (r *Repository) SetOutreachResult(ctx context.Context, leadID, tenantID uuid.UUID, commentID, partialFailureNote *string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET outreach_comment_id = COALESCE($1, outreach_comment_id),
		    partial_failure_note = $2,
		    updated_at = now()
		WHERE id = $3 AND tenant_id = $4
	`, commentID, partialFailureNote, leadID, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindLeadByAuthor matches an inbound direct message to a lead by its source
// post author, case-insensitively, among leads awaiting a response.
func (r *Repository) FindLeadByAuthor(ctx context.Context, tenantID uuid.UUID, author string) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE tenant_id = $1
		  AND lower(post_author) = lower($2)
		  AND status IN ($3, $4, $5)
		ORDER BY created_at DESC
		LIMIT 1
	`, tenantID, author, domain.LeadStatusDMSent, domain.LeadStatusContacted, domain.LeadStatusResponded)
	return scanLead(row)
}

// FindLeadByCommentID matches a comment reply to a lead by the outreach
// comment the reply hangs under.
func (r *Repository) FindLeadByCommentID(ctx context.Context, tenantID uuid.UUID, commentID string) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE tenant_id = $1 AND outreach_comment_id = $2
		LIMIT 1
	`, tenantID, commentID)
	return scanLead(row)
}

// CountLeadsByStatus returns the number of a tenant's leads in one status.
func (r *Repository) CountLeadsByStatus(ctx context.Context, tenantID uuid.UUID, status string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM leads WHERE tenant_id = $1 AND status = $2
	`, tenantID, status).Scan(&count)
	return count, err
}
