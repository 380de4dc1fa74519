// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/taskhub/taskhub/pkg/errutil"
)

// resetPurger is the subset of auth.Service used by the janitor.
type resetPurger interface {
	PurgeExpiredResets(ctx context.Context) (int64, error)
}

// runJanitor clears expired reset tokens every interval until ctx ends.
func runJanitor(ctx context.Context, p resetPurger, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PurgeExpiredResets(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				errutil.LogErrorContext(ctx, logger, "reset token purge failed", err)
				continue
			}
			if n > 0 {
				logger.InfoContext(ctx, "purged expired reset tokens", "count", n)
			}
		}
	}
}
