package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

const (
	subjectLeadFoundFmt  = "New lead in r/%s"
	subjectRespondedFmt  = "u/%s replied to your outreach"
	subjectSessionPaused = "Your hunting session was paused"
	subjectBacklogFmt    = "%d leads waiting for approval"
)

// SMTPSender implements the Sender interface using a direct SMTP connection
// via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) SendLeadFoundEmail(ctx context.Context, toEmail, subreddit, postTitle, postURL string, score int) error {
	content, err := renderEmailTemplate("lead_found.html", leadFoundEmailData{
		baseEmailData: baseEmailData{
			Title:   "New lead found",
			Heading: "New lead found",
		},
		Subreddit: subreddit,
		PostTitle: postTitle,
		PostURL:   postURL,
		Score:     score,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectLeadFoundFmt, subreddit), content)
}

func (s *SMTPSender) SendLeadRespondedEmail(ctx context.Context, toEmail, author, preview string) error {
	content, err := renderEmailTemplate("lead_responded.html", leadRespondedEmailData{
		baseEmailData: baseEmailData{
			Title:   "A lead responded",
			Heading: "A lead responded",
		},
		Author:  author,
		Preview: preview,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectRespondedFmt, author), content)
}

func (s *SMTPSender) SendSessionPausedEmail(ctx context.Context, toEmail, reason string) error {
	content, err := renderEmailTemplate("session_paused.html", sessionPausedEmailData{
		baseEmailData: baseEmailData{
			Title:   "Hunting paused",
			Heading: "Hunting paused",
		},
		Reason: reason,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectSessionPaused, content)
}

func (s *SMTPSender) SendBacklogEmail(ctx context.Context, toEmail string, pendingCount int) error {
	content, err := renderEmailTemplate("backlog.html", backlogEmailData{
		baseEmailData: baseEmailData{
			Title:   "Approval backlog",
			Heading: "Leads waiting for approval",
		},
		PendingCount: pendingCount,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectBacklogFmt, pendingCount), content)
}
