package email

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/curbwise/alerts-api/internal/config"
)

type smtpProvider struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPProvider builds a Provider over plain SMTP. SMTP does not hand
// back a provider id, so one is generated and stamped on the message as
// its Message-ID.
func NewSMTPProvider(cfg config.SMTPConfig) Provider {
	return &smtpProvider{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (p *smtpProvider) Send(ctx context.Context, to, subject, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	messageID := fmt.Sprintf("<%s@curbwise>", uuid.New().String())

	m := gomail.NewMessage()
	m.SetHeader("From", p.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetHeader("Message-ID", messageID)
	m.SetBody("text/html", body)

	if err := p.dialer.DialAndSend(m); err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	return messageID, nil
}
