// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package main

import (
	"log/slog"

	"github.com/samber/oops"

	"github.com/taskhub/taskhub/internal/auth"
	"github.com/taskhub/taskhub/internal/config"
	"github.com/taskhub/taskhub/internal/notify"
)

// buildNotifier returns the configured transport and a func that releases it.
// Network transports are wrapped with retries; the log driver is not.
func buildNotifier(cfg *config.Config, logger *slog.Logger) (auth.Notifier, func() error, error) {
	noop := func() error { return nil }

	var (
		base    auth.Notifier
		closeFn = noop
	)
	switch cfg.Notify.Driver {
	case config.DriverLog:
		return notify.NewLogNotifier(logger), noop, nil
	case config.DriverSMTP:
		n, err := notify.NewSMTPNotifier(cfg.SMTPNotifier())
		if err != nil {
			return nil, nil, err
		}
		base = n
	case config.DriverKafka:
		w, err := notify.NewKafkaWriter(cfg.KafkaNotifier())
		if err != nil {
			return nil, nil, err
		}
		n, err := notify.NewKafkaNotifier(w)
		if err != nil {
			return nil, nil, err
		}
		base, closeFn = n, n.Close
	default:
		return nil, nil, oops.Code(config.CodeInvalid).
			With("key", "notify.driver").
			Errorf("unknown notifier driver %q", cfg.Notify.Driver)
	}

	retrying, err := notify.NewRetrying(base, cfg.Notify.Attempts, cfg.Notify.Backoff, logger)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	logger.Info("notifier configured", "driver", cfg.Notify.Driver, "attempts", cfg.Notify.Attempts)
	return retrying, closeFn, nil
}
