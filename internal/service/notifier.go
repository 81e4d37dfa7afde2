package service

import (
	"context"
	"log/slog"
)

// MessageSender delivers a text message to a subscriber.
type MessageSender interface {
	SendText(ctx context.Context, subscriberID, text string) error
}

// Notifier sends subscriber messages. Delivery is best effort: errors are
// logged and dropped.
type Notifier struct {
	sender MessageSender
	log    *slog.Logger
}

// NewNotifier creates a new Notifier.
func NewNotifier(sender MessageSender, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{sender: sender, log: logger}
}

func (n *Notifier) Send(ctx context.Context, subscriberID, text string) {
	if err := n.sender.SendText(ctx, subscriberID, text); err != nil {
		n.log.Error("notification failed", "subscriber_id", subscriberID, "error", err)
		return
	}
	n.log.Info("notification sent", "subscriber_id", subscriberID)
}
