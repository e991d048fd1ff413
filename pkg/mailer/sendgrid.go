package mailer

import (
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/smartstudy/platform-api/pkg/config"
)

// Mailer delivers transactional email.
type Mailer interface {
	Send(toName, toEmail, subject, htmlBody string) error
}

// SendGridMailer sends email through the SendGrid v3 API.
type SendGridMailer struct {
	client *sendgrid.Client
	from   *sgmail.Email
}

// NewSendGrid constructs a mailer. Returns an error when no API key is
// configured so callers can fall back to link-in-response behaviour.
func NewSendGrid(cfg config.MailConfig) (*SendGridMailer, error) {
	if cfg.SendGridKey == "" {
		return nil, fmt.Errorf("sendgrid api key not configured")
	}
	return &SendGridMailer{
		client: sendgrid.NewSendClient(cfg.SendGridKey),
		from:   sgmail.NewEmail(cfg.FromName, cfg.FromEmail),
	}, nil
}

// Send delivers a single HTML message.
func (m *SendGridMailer) Send(toName, toEmail, subject, htmlBody string) error {
	to := sgmail.NewEmail(toName, toEmail)
	message := sgmail.NewSingleEmail(m.from, subject, to, "", htmlBody)
	resp, err := m.client.Send(message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send: status %d", resp.StatusCode)
	}
	return nil
}
