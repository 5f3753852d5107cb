package scheduler

import (
	"context"
	"time"

	"leadhunt_backend/platform/config"
	"leadhunt_backend/platform/logger"

	"github.com/google/uuid"
)

const tenantPollDelay = 2 * time.Second

// InboxPoller runs one response-monitoring pass for a tenant.
type InboxPoller interface {
	PollTenant(ctx context.Context, tenantID uuid.UUID) error
}

// CredentialSource enumerates tenants holding a live provider connection.
type CredentialSource interface {
	ListConnectedTenants(ctx context.Context) ([]uuid.UUID, error)
}

// ResponseMonitor polls every connected tenant's inbox on a fixed interval.
// It runs off the credential table, not the hunting session: a tenant who
// pauses hunting still has outreach in flight and must see replies.
type ResponseMonitor struct {
	credentials CredentialSource
	poller      InboxPoller
	log         *logger.Logger

	interval  time.Duration
	pollDelay time.Duration
}

func NewResponseMonitor(cfg config.SchedulerConfig, credentials CredentialSource, poller InboxPoller, log *logger.Logger) *ResponseMonitor {
	interval := cfg.GetResponsePollInterval()
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	return &ResponseMonitor{
		credentials: credentials,
		poller:      poller,
		log:         log,
		interval:    interval,
		pollDelay:   tenantPollDelay,
	}
}

// Run blocks until the context is cancelled.
func (m *ResponseMonitor) Run(ctx context.Context) {
	m.poll(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

// poll walks tenants sequentially; one tenant's failure never skips the rest.
func (m *ResponseMonitor) poll(ctx context.Context) {
	tenants, err := m.credentials.ListConnectedTenants(ctx)
	if err != nil {
		m.log.DatabaseError("list connected tenants", err)
		return
	}

	for i, tenantID := range tenants {
		if ctx.Err() != nil {
			return
		}
		if i > 0 {
			sleep(ctx, m.pollDelay)
		}

		if err := m.poller.PollTenant(ctx, tenantID); err != nil {
			m.log.Error("response poll failed", "tenantId", tenantID, "error", err)
		}
	}
}
