// Package notify turns domain events into outbound messages. Delivery runs
// through the background job queue so request handlers never block on mail.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kedaiku/kedaiku/jobs"
)

// Notifier fans domain events out to the shopper.
type Notifier interface {
	OTPIssued(ctx context.Context, email, code string, ttl time.Duration) error
	OrderConfirmed(ctx context.Context, email, orderNumber string, total decimal.Decimal) error
}

// Mailer is an asynq-backed Notifier: each event becomes a queued email.
type Mailer struct {
	client *jobs.Client
	logger *slog.Logger
}

// NewMailer constructs a Mailer.
func NewMailer(client *jobs.Client, logger *slog.Logger) *Mailer {
	return &Mailer{client: client, logger: logger}
}

// OTPIssued queues the one-time code email.
func (m *Mailer) OTPIssued(ctx context.Context, email, code string, ttl time.Duration) error {
	return m.enqueue(ctx, jobs.SendEmailPayload{
		To:      email,
		Subject: "Your checkout code",
		Body:    fmt.Sprintf("Your one-time checkout code is %s. It expires in %d minutes.", code, int(ttl.Minutes())),
	})
}

// OrderConfirmed queues the confirmation email.
func (m *Mailer) OrderConfirmed(ctx context.Context, email, orderNumber string, total decimal.Decimal) error {
	return m.enqueue(ctx, jobs.SendEmailPayload{
		To:      email,
		Subject: fmt.Sprintf("Order %s confirmed", orderNumber),
		Body:    fmt.Sprintf("Your order %s has been confirmed. Total: %s. We will let you know when it is on its way.", orderNumber, total.StringFixed(2)),
	})
}

func (m *Mailer) enqueue(ctx context.Context, payload jobs.SendEmailPayload) error {
	if m == nil || m.client == nil {
		return nil
	}
	if _, err := m.client.EnqueueSendEmail(ctx, payload); err != nil {
		if m.logger != nil {
			m.logger.Error("enqueue email", slog.String("to", payload.To), slog.Any("error", err))
		}
		return err
	}
	return nil
}
