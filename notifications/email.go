package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, htmlContent string) error
}

// SendGridSender delivers mail through the SendGrid v3 API.
type SendGridSender struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendGridSender(apiKey, sender string) *SendGridSender {
	return &SendGridSender{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail("Marketplace", sender),
	}
}

func (s *SendGridSender) SendEmail(ctx context.Context, to, subject, htmlContent string) error {
	msg := mail.NewSingleEmail(s.from, subject, mail.NewEmail("", to), stripTags(htmlContent), htmlContent)
	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("send email: sendgrid responded %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogSender stands in when no SendGrid key is configured.
type LogSender struct{}

func (LogSender) SendEmail(_ context.Context, to, subject, _ string) error {
	slog.Info("email not sent, sendgrid disabled", slog.String("to", to), slog.String("subject", subject))
	return nil
}

// NewEmailSender picks SendGrid when an API key is present.
func NewEmailSender(apiKey, sender string) EmailSender {
	if apiKey == "" {
		return LogSender{}
	}
	return NewSendGridSender(apiKey, sender)
}
