package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/resend/resend-go/v2"
)

// Sender delivers a one-time code to an identifier (email or phone). The OTP
// engine treats delivery as best-effort: a stored code stays valid even when
// Deliver fails.
type Sender interface {
	Deliver(ctx context.Context, identifier, code string) error
}

// LogSender logs codes instead of sending them — used in ENV=local.
type LogSender struct {
	logger *slog.Logger
}

func (s *LogSender) Deliver(_ context.Context, identifier, code string) error {
	s.logger.Info("otp code (local dev)", "identifier", identifier, "code", code)
	return nil
}

// ResendSender emails codes via the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

func (s *ResendSender) Deliver(ctx context.Context, identifier, code string) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{identifier},
		Subject: "Your sign-in code",
		Html:    fmt.Sprintf(`<p>Your one-time code is <strong>%s</strong>. It expires in 10 minutes.</p>`, code),
	}
	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("send otp email: %w", err)
	}
	return nil
}

// Router sends email identifiers through the email sender and everything else
// through the SMS sender.
type Router struct {
	email Sender
	sms   Sender
}

func (r *Router) Deliver(ctx context.Context, identifier, code string) error {
	if strings.Contains(identifier, "@") {
		return r.email.Deliver(ctx, identifier, code)
	}
	return r.sms.Deliver(ctx, identifier, code)
}

// NewSender wires the delivery chain. SMS transport is an external
// collaborator; until one is plugged in, phone codes go through the log
// sender in every environment.
func NewSender(env, resendAPIKey, resendFrom string, logger *slog.Logger) Sender {
	logSender := &LogSender{logger: logger}
	if env == "local" {
		return logSender
	}
	return &Router{
		email: &ResendSender{client: resend.NewClient(resendAPIKey), from: resendFrom},
		sms:   logSender,
	}
}
