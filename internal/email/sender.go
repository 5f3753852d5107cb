package email

import (
	"context"

	"leadhunt_backend/platform/config"
)

// Sender delivers tenant-facing alert emails. Implementations must be safe
// for concurrent use.
type Sender interface {
	SendLeadFoundEmail(ctx context.Context, toEmail, subreddit, postTitle, postURL string, score int) error
	SendLeadRespondedEmail(ctx context.Context, toEmail, author, preview string) error
	SendSessionPausedEmail(ctx context.Context, toEmail, reason string) error
	SendBacklogEmail(ctx context.Context, toEmail string, pendingCount int) error
}

// NoopSender discards every email. Used when email delivery is disabled.
type NoopSender struct{}

func (NoopSender) SendLeadFoundEmail(ctx context.Context, toEmail, subreddit, postTitle, postURL string, score int) error {
	return nil
}

func (NoopSender) SendLeadRespondedEmail(ctx context.Context, toEmail, author, preview string) error {
	return nil
}

func (NoopSender) SendSessionPausedEmail(ctx context.Context, toEmail, reason string) error {
	return nil
}

func (NoopSender) SendBacklogEmail(ctx context.Context, toEmail string, pendingCount int) error {
	return nil
}

// NewSender returns an SMTP-backed sender, or a NoopSender when email
// delivery is disabled in the configuration.
func NewSender(cfg config.EmailConfig) Sender {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(), cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(), cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(), cfg.GetEmailFromName(),
	)
}
