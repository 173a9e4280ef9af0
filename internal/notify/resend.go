package notify

import (
	"context"
	"fmt"

	resend "github.com/resend/resend-go/v3"
)

// ResendSender delivers messages through the Resend API.
type ResendSender struct {
	from   string
	client *resend.Client
}

// NewResendSender creates a Resend-backed sender.
func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{
		from:   from,
		client: resend.NewClient(apiKey),
	}
}

func (r *ResendSender) Send(ctx context.Context, msg *Message) error {
	if msg == nil {
		return fmt.Errorf("message is required")
	}
	if msg.Text == "" {
		return fmt.Errorf("message body is empty")
	}

	params := &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Text,
	}
	if _, err := r.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("failed to send email via resend: %w", err)
	}
	return nil
}
