package service

import (
	"context"
	"fmt"
	"net/smtp"

	"rental-service/internal/util"

	"go.uber.org/zap"
)

// Notifier dispatches guest-facing email. Delivery is fire-and-forget: a send
// failure never rolls back or fails the booking operation that triggered it.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPNotifier delivers mail through a plain SMTP endpoint.
type SMTPNotifier struct {
	addr string
	from string
}

// NewSMTPNotifier creates a notifier talking to the given SMTP address.
func NewSMTPNotifier(addr, from string) *SMTPNotifier {
	return &SMTPNotifier{addr: addr, from: from}
}

func (n *SMTPNotifier) Send(_ context.Context, to, subject, body string) error {
	if to == "" {
		return nil
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		n.from, to, subject, body)
	if err := smtp.SendMail(n.addr, nil, n.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

// LogNotifier logs instead of sending. Used when no SMTP endpoint is
// configured (development default).
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: util.GetLogger()}
}

func (n *LogNotifier) Send(_ context.Context, to, subject, _ string) error {
	n.logger.Info("Email suppressed (no SMTP configured)",
		zap.String("to", to),
		zap.String("subject", subject))
	return nil
}
