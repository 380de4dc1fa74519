// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package config

import (
	"github.com/taskhub/taskhub/internal/auth"
	"github.com/taskhub/taskhub/internal/notify"
	"github.com/taskhub/taskhub/internal/store"
	"github.com/taskhub/taskhub/internal/web"
)

// PoolOptions returns the pgx pool settings.
func (c *Config) PoolOptions() store.PoolOptions {
	return store.PoolOptions{
		MaxConns:        c.Database.MaxConns,
		MinConns:        c.Database.MinConns,
		MaxConnLifetime: c.Database.MaxConnLifetime,
		ConnectAttempts: c.Database.ConnectAttempts,
		ConnectBackoff:  c.Database.ConnectBackoff,
	}
}

// AuthService returns the auth.Service settings.
func (c *Config) AuthService() auth.Config {
	return auth.Config{
		EmailVerification:   c.Auth.EmailVerification,
		RequireVerification: c.Auth.RequireVerification,
		ResetTokenTTL:       c.Auth.ResetTokenTTL,
		VerifyURL:           c.Auth.VerifyURL,
		ResetURL:            c.Auth.ResetURL,
	}
}

// WebServer returns the API listener settings.
func (c *Config) WebServer() web.Config {
	return web.Config{
		Addr:           c.HTTP.Addr,
		AllowedOrigins: c.HTTP.AllowedOrigins,
		ReadTimeout:    c.HTTP.ReadTimeout,
		WriteTimeout:   c.HTTP.WriteTimeout,
	}
}

// SMTPNotifier returns the SMTP transport settings.
func (c *Config) SMTPNotifier() notify.SMTPConfig {
	s := c.Notify.SMTP
	return notify.SMTPConfig{
		Host:     s.Host,
		Port:     s.Port,
		Username: s.Username,
		Password: s.Password,
		From:     s.From,
		FromName: s.FromName,
	}
}

// KafkaNotifier returns the Kafka transport settings.
func (c *Config) KafkaNotifier() notify.KafkaConfig {
	k := c.Notify.Kafka
	return notify.KafkaConfig{
		Brokers:      k.Brokers,
		Topic:        k.Topic,
		Username:     k.Username,
		Password:     k.Password,
		TLS:          k.TLS,
		WriteTimeout: k.WriteTimeout,
	}
}
