// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package config

import (
	"net/mail"
	"net/url"
	"strings"

	"github.com/samber/oops"

	"github.com/taskhub/taskhub/internal/auth"
	"github.com/taskhub/taskhub/internal/logging"
)

func invalid(key, format string, args ...any) error {
	return oops.Code(CodeInvalid).With("key", key).Errorf(format, args...)
}

// ValidateDatabase checks the settings needed to reach PostgreSQL.
func (c *Config) ValidateDatabase() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return invalid("database.url", "database.url is required (set TASKHUB_DATABASE__URL or DATABASE_URL)")
	}
	if c.Database.MaxConns < 1 {
		return invalid("database.max_conns", "database.max_conns must be at least 1")
	}
	if c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		return invalid("database.min_conns", "database.min_conns must be between 0 and max_conns")
	}
	if c.Database.ConnectAttempts < 1 {
		return invalid("database.connect_attempts", "database.connect_attempts must be at least 1")
	}
	return nil
}

// Validate checks everything the serve command needs.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "log.level %q is not a valid level", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return invalid("log.format", "log.format must be json or text, got %q", c.Log.Format)
	}
	if c.HTTP.Addr == "" {
		return invalid("http.addr", "http.addr is required")
	}
	if err := c.ValidateDatabase(); err != nil {
		return err
	}
	if err := c.validateAuth(); err != nil {
		return err
	}
	return c.validateNotify()
}

func (c *Config) validateAuth() error {
	a := c.Auth
	if a.JWTSecret == "" {
		return invalid("auth.jwt_secret", "auth.jwt_secret is required (set TASKHUB_AUTH__JWT_SECRET or JWT_SECRET)")
	}
	if len(a.JWTSecret) < auth.MinSecretLength {
		return invalid("auth.jwt_secret", "auth.jwt_secret must be at least %d bytes", auth.MinSecretLength)
	}
	if a.SessionTTL <= 0 {
		return invalid("auth.session_ttl", "auth.session_ttl must be positive")
	}
	if a.ResetTokenTTL <= 0 {
		return invalid("auth.reset_token_ttl", "auth.reset_token_ttl must be positive")
	}
	if a.RequireVerification && !a.EmailVerification {
		return invalid("auth.require_verification", "auth.require_verification needs auth.email_verification")
	}
	if a.HashConcurrency < 0 {
		return invalid("auth.hash_concurrency", "auth.hash_concurrency must not be negative")
	}
	if a.PurgeInterval < 0 {
		return invalid("auth.purge_interval", "auth.purge_interval must not be negative")
	}
	for key, raw := range map[string]string{"auth.verify_url": a.VerifyURL, "auth.reset_url": a.ResetURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return invalid(key, "%s must be an absolute URL", key)
		}
	}
	return nil
}

func (c *Config) validateNotify() error {
	n := c.Notify
	if n.Attempts < 1 {
		return invalid("notify.attempts", "notify.attempts must be at least 1")
	}
	switch n.Driver {
	case DriverLog:
	case DriverSMTP:
		if n.SMTP.Host == "" {
			return invalid("notify.smtp.host", "notify.smtp.host is required for the smtp driver")
		}
		if _, err := mail.ParseAddress(n.SMTP.From); err != nil {
			return invalid("notify.smtp.from", "notify.smtp.from must be an email address")
		}
	case DriverKafka:
		if len(n.Kafka.Brokers) == 0 {
			return invalid("notify.kafka.brokers", "notify.kafka.brokers is required for the kafka driver")
		}
		if n.Kafka.Topic == "" {
			return invalid("notify.kafka.topic", "notify.kafka.topic is required for the kafka driver")
		}
	default:
		return invalid("notify.driver", "notify.driver must be log, smtp or kafka, got %q", n.Driver)
	}
	return nil
}
