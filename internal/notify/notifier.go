// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rollcall Contributors

// Package notify renders and delivers account emails. Delivery is a
// black-box collaborator: failures are surfaced to the caller but never roll
// back committed account state.
package notify

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// Message is a rendered notification ready for delivery.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Notifier delivers rendered messages.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// SlogNotifier is a development Notifier that logs deliveries instead of
// sending them. Bodies are elided; only metadata is logged.
type SlogNotifier struct {
	log *slog.Logger
}

// NewSlogNotifier creates a SlogNotifier. A nil logger uses slog.Default.
func NewSlogNotifier(log *slog.Logger) *SlogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &SlogNotifier{log: log}
}

// Send logs the message metadata.
func (n *SlogNotifier) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return oops.Code("NOTIFY_FAILED").Errorf("recipient is required")
	}
	n.log.InfoContext(ctx, "email delivery (console)",
		"to", msg.To,
		"subject", msg.Subject,
		"body_bytes", len(msg.HTML),
	)
	return nil
}
