package repository

import (
	"context"
	"errors"
	"time"

	"leadhunt_backend/internal/reddit"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetCredential loads the tenant's provider credential.
func (r *Repository) GetCredential(ctx context.Context, tenantID uuid.UUID) (reddit.Credential, error) {
	var cred reddit.Credential
	err := r.pool.QueryRow(ctx, `
		SELECT tenant_id, access_token, refresh_token_enc, expires_at, connected
		FROM reddit_credentials
		WHERE tenant_id = $1
	`, tenantID).Scan(&cred.TenantID, &cred.AccessToken, &cred.RefreshTokenEnc, &cred.ExpiresAt, &cred.Connected)
	if errors.Is(err, pgx.ErrNoRows) {
		return reddit.Credential{}, reddit.ErrCredentialNotFound
	}
	return cred, err
}

// SaveCredentialTokens upserts the tenant's tokens after an authorization or
// refresh. Saving tokens always marks the credential connected.
func (r *Repository) SaveCredentialTokens(ctx context.Context, tenantID uuid.UUID, accessToken, refreshTokenEnc string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reddit_credentials (tenant_id, access_token, refresh_token_enc, expires_at, connected)
		VALUES ($1, $2, $3, $4, true)
		ON CONFLICT (tenant_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token_enc = EXCLUDED.refresh_token_enc,
			expires_at = EXCLUDED.expires_at,
			connected = true,
			updated_at = now()
	`, tenantID, accessToken, refreshTokenEnc, expiresAt)
	return err
}

// MarkCredentialDisconnected flags the credential as needing reauthorization.
func (r *Repository) MarkCredentialDisconnected(ctx context.Context, tenantID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE reddit_credentials
		SET connected = false, updated_at = now()
		WHERE tenant_id = $1
	`, tenantID)
	return err
}

// HasConnectedCredential reports whether the tenant has a live connection.
func (r *Repository) HasConnectedCredential(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	var connected bool
	err := r.pool.QueryRow(ctx, `
		SELECT connected FROM reddit_credentials WHERE tenant_id = $1
	`, tenantID).Scan(&connected)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return connected, err
}

// ListConnectedTenants returns every tenant holding a live provider
// connection, independent of hunting session status.
func (r *Repository) ListConnectedTenants(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT tenant_id FROM reddit_credentials
		WHERE connected
		ORDER BY tenant_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		tenants = append(tenants, id)
	}
	return tenants, rows.Err()
}
