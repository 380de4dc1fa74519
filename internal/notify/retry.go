// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/taskhub/taskhub/internal/auth"
)

// Default retry policy for outbound notifications.
const (
	DefaultAttempts = 3
	DefaultBackoff  = 200 * time.Millisecond
)

// Retrying retries a failing Notifier with exponential backoff. It returns
// the last error once attempts are exhausted or ctx is done.
type Retrying struct {
	next     auth.Notifier
	attempts uint64
	backoff  time.Duration
	logger   *slog.Logger
}

// NewRetrying wraps next. Non-positive attempts or backoff select the defaults.
func NewRetrying(next auth.Notifier, attempts int, backoff time.Duration, logger *slog.Logger) (*Retrying, error) {
	if next == nil {
		return nil, oops.Errorf("notifier is required")
	}
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{next: next, attempts: uint64(attempts), backoff: backoff, logger: logger}, nil
}

// Notify implements auth.Notifier.
func (r *Retrying) Notify(ctx context.Context, n auth.Notification) error {
	attempt := 0
	var last error
	b := retry.WithMaxRetries(r.attempts-1, retry.NewExponential(r.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := r.next.Notify(ctx, n); err != nil {
			last = err
			r.logger.WarnContext(ctx, "notification attempt failed",
				"kind", string(n.Kind),
				"attempt", attempt,
				"error", err,
			)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if last == nil {
		last = err
	}
	return oops.Code("NOTIFY_FAILED").
		With("kind", string(n.Kind)).
		With("attempts", attempt).
		Wrap(last)
}

var _ auth.Notifier = (*Retrying)(nil)
