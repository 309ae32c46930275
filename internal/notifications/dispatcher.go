package notifications

import (
	"context"
	"time"

	"github.com/authorshaven/notify/internal/pkg/ctxlog"
)

// Sender delivers one email to a set of BCC recipients.
type Sender interface {
	SendBatch(ctx context.Context, recipients []string, subject, body string) error
}

// Dispatcher sends batched activity emails. One outbound send happens per
// triggering event regardless of recipient count; recipients never see each
// other's addresses.
type Dispatcher struct {
	sender      Sender
	sendTimeout time.Duration
}

// NewDispatcher creates a new mail dispatcher. sendTimeout bounds a single
// transport call; zero means no bound.
func NewDispatcher(sender Sender, sendTimeout time.Duration) *Dispatcher {
	return &Dispatcher{
		sender:      sender,
		sendTimeout: sendTimeout,
	}
}

// Send dispatches one email to all recipients. An empty recipient set is a
// no-op, not an error.
func (d *Dispatcher) Send(ctx context.Context, recipients []string, subject, body string) error {
	if len(recipients) == 0 {
		return nil
	}

	if d.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()
	}

	start := time.Now()
	err := d.sender.SendBatch(ctx, recipients, subject, body)
	recordMailSendDuration(time.Since(start))

	if err != nil {
		ctxlog.FromContext(ctx).Error("mail dispatch failed",
			"recipient_count", len(recipients),
			"error", err,
		)
		return err
	}

	return nil
}
