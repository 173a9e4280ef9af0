// Package notify sends customer emails for order events. Delivery is best
// effort: failures are logged and never reach the caller.
package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	Text    string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// LogSender writes messages to the log instead of sending them. It backs
// NOTIFY_PROVIDER=log for local runs.
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender creates a sender that only logs.
func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger.With().Str("component", "log-sender").Logger()}
}

func (s *LogSender) Send(_ context.Context, msg *Message) error {
	s.logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Msg("email")
	return nil
}

// Config selects and configures the sender.
type Config struct {
	Provider string
	APIKey   string
	From     string
}

// NewSender builds the sender named by cfg.Provider.
func NewSender(cfg Config, logger zerolog.Logger) (Sender, error) {
	switch cfg.Provider {
	case "", "log":
		return NewLogSender(logger), nil
	case "resend":
		if cfg.APIKey == "" || cfg.From == "" {
			return nil, fmt.Errorf("resend requires RESEND_API_KEY and NOTIFY_FROM")
		}
		return NewResendSender(cfg.APIKey, cfg.From), nil
	default:
		return nil, fmt.Errorf("NOTIFY_PROVIDER must be either 'log' or 'resend', got %q", cfg.Provider)
	}
}
