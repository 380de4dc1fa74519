// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package notify

import (
	"context"
	"log/slog"

	"github.com/taskhub/taskhub/internal/auth"
)

// LogNotifier logs notifications instead of sending them. The link is logged
// in full, so it must never be used outside development.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger means slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements auth.Notifier.
func (l *LogNotifier) Notify(ctx context.Context, n auth.Notification) error {
	l.logger.InfoContext(ctx, "notification",
		"kind", string(n.Kind),
		"to", n.To,
		"username", n.Username,
		"link", n.Link,
	)
	return nil
}

var _ auth.Notifier = (*LogNotifier)(nil)
