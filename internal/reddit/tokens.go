package reddit

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"leadhunt_backend/platform/apperr"
	"leadhunt_backend/platform/config"
	"leadhunt_backend/platform/logger"
	"leadhunt_backend/platform/tokencrypt"

	"github.com/google/uuid"
)

// refreshMargin is how close to expiry a token may get before it is
// refreshed ahead of use.
const refreshMargin = 2 * time.Minute

// ErrCredentialNotFound is returned by CredentialStore implementations when
// the tenant has never connected a provider account.
var ErrCredentialNotFound = errors.New("credential not found")

// Credential is a tenant's stored provider credential. The refresh token is
// kept encrypted at rest; only the Manager ever sees the plaintext.
type Credential struct {
	TenantID        uuid.UUID
	AccessToken     string
	RefreshTokenEnc string
	ExpiresAt       time.Time
	Connected       bool
}

// CredentialStore persists per-tenant provider credentials.
type CredentialStore interface {
	GetCredential(ctx context.Context, tenantID uuid.UUID) (Credential, error)
	SaveCredentialTokens(ctx context.Context, tenantID uuid.UUID, accessToken, refreshTokenEnc string, expiresAt time.Time) error
	MarkCredentialDisconnected(ctx context.Context, tenantID uuid.UUID) error
}

// Manager hands out valid access tokens, refreshing them against the provider
// token endpoint when they are near expiry. Refreshes are serialized per
// tenant so two concurrent cycles cannot invalidate each other's token.
type Manager struct {
	tokenURL     string
	clientID     string
	clientSecret string
	userAgent    string
	cipherKey    []byte
	store        CredentialStore
	httpClient   *http.Client
	log          *logger.Logger

	mu          sync.Mutex
	tenantLocks map[uuid.UUID]*sync.Mutex
}

// NewManager creates a credential Manager.
func NewManager(cfg config.RedditConfig, cipherKey []byte, store CredentialStore, log *logger.Logger) *Manager {
	return &Manager{
		tokenURL:     cfg.GetRedditTokenURL(),
		clientID:     cfg.GetRedditClientID(),
		clientSecret: cfg.GetRedditClientSecret(),
		userAgent:    cfg.GetRedditUserAgent(),
		cipherKey:    cipherKey,
		store:        store,
		httpClient:   &http.Client{Timeout: requestTimeout},
		log:          log,
		tenantLocks:  make(map[uuid.UUID]*sync.Mutex),
	}
}

// ValidToken returns an access token guaranteed to outlive the refresh margin.
// On refresh failure the credential is marked disconnected and an AuthExpired
// error is returned; the caller skips the tenant for the current cycle.
func (m *Manager) ValidToken(ctx context.Context, tenantID uuid.UUID) (string, error) {
	lock := m.lockFor(tenantID)
	lock.Lock()
	defer lock.Unlock()

	cred, err := m.store.GetCredential(ctx, tenantID)
	if errors.Is(err, ErrCredentialNotFound) {
		return "", apperr.NotFound("no reddit credential on file")
	}
	if err != nil {
		// Storage failure, not a revoked grant; the tenant is skipped
		// this cycle without touching the credential.
		return "", apperr.Wrap(apperr.KindUnavailable, "load credential", err)
	}
	if !cred.Connected {
		return "", apperr.AuthExpired("reddit account not connected")
	}

	if time.Until(cred.ExpiresAt) > refreshMargin && cred.AccessToken != "" {
		return cred.AccessToken, nil
	}

	return m.refresh(ctx, cred)
}

// StoreInitial encrypts and persists a freshly authorized credential.
func (m *Manager) StoreInitial(ctx context.Context, tenantID uuid.UUID, accessToken, refreshToken string, expiresAt time.Time) error {
	encrypted, err := tokencrypt.Encrypt(refreshToken, m.cipherKey)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "encrypt refresh token", err)
	}
	return m.store.SaveCredentialTokens(ctx, tenantID, accessToken, encrypted, expiresAt)
}

func (m *Manager) refresh(ctx context.Context, cred Credential) (string, error) {
	refreshToken, err := tokencrypt.Decrypt(cred.RefreshTokenEnc, m.cipherKey)
	if err != nil {
		return "", apperr.Wrap(apperr.KindAuthExpired, "decrypt refresh token", err)
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "build token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", m.userAgent)
	req.Header.Set("Authorization", "Basic "+basicAuth(m.clientID, m.clientSecret))

	resp, err := m.httpClient.Do(req)
	if err != nil {
		// Network failure, not a revoked grant; leave the credential connected.
		return "", apperr.Wrap(apperr.KindUnavailable, "token endpoint unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if markErr := m.store.MarkCredentialDisconnected(ctx, cred.TenantID); markErr != nil {
			m.log.DatabaseError("mark credential disconnected", markErr)
		}
		return "", apperr.AuthExpired("token refresh rejected by provider")
	}

	var tokens tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return "", apperr.Wrap(apperr.KindUnavailable, "decode token response", err)
	}
	if tokens.AccessToken == "" {
		return "", apperr.AuthExpired("token refresh returned no access token")
	}

	expiresAt := time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
	if err := m.store.SaveCredentialTokens(ctx, cred.TenantID, tokens.AccessToken, cred.RefreshTokenEnc, expiresAt); err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "persist refreshed token", err)
	}

	return tokens.AccessToken, nil
}

func (m *Manager) lockFor(tenantID uuid.UUID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.tenantLocks[tenantID]
	if !ok {
		lock = &sync.Mutex{}
		m.tenantLocks[tenantID] = lock
	}
	return lock
}

func basicAuth(user, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + password))
}
