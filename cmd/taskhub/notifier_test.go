// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/taskhub/internal/auth"
	"github.com/taskhub/taskhub/internal/config"
	"github.com/taskhub/taskhub/internal/notify"
	"github.com/taskhub/taskhub/pkg/errutil"
)

func notifyConfig(driver string) *config.Config {
	cfg := &config.Config{}
	cfg.Notify.Driver = driver
	cfg.Notify.Attempts = 2
	cfg.Notify.Backoff = time.Millisecond
	cfg.Notify.SMTP = config.SMTPConfig{Host: "mail.internal", Port: 587, From: "no-reply@example.com"}
	cfg.Notify.Kafka = config.KafkaConfig{Brokers: []string{"127.0.0.1:9092"}, Topic: "taskhub.emails"}
	return cfg
}

func TestBuildNotifier_Log(t *testing.T) {
	n, closeFn, err := buildNotifier(notifyConfig(config.DriverLog), discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &notify.LogNotifier{}, n)
	assert.NoError(t, n.Notify(context.Background(), auth.Notification{
		Kind: auth.NotifyEmailVerification,
		To:   "ada@example.com",
	}))
	assert.NoError(t, closeFn())
}

func TestBuildNotifier_NetworkDriversRetry(t *testing.T) {
	for _, driver := range []string{config.DriverSMTP, config.DriverKafka} {
		t.Run(driver, func(t *testing.T) {
			n, closeFn, err := buildNotifier(notifyConfig(driver), discardLogger())
			require.NoError(t, err)
			assert.IsType(t, &notify.Retrying{}, n)
			assert.NoError(t, closeFn())
		})
	}
}

func TestBuildNotifier_Errors(t *testing.T) {
	cfg := notifyConfig("pigeon")
	_, _, err := buildNotifier(cfg, discardLogger())
	errutil.AssertErrorCode(t, err, config.CodeInvalid)

	cfg = notifyConfig(config.DriverKafka)
	cfg.Notify.Kafka.Brokers = nil
	_, _, err = buildNotifier(cfg, discardLogger())
	errutil.AssertErrorCode(t, err, config.CodeInvalid)

	cfg = notifyConfig(config.DriverSMTP)
	cfg.Notify.SMTP.Host = ""
	_, _, err = buildNotifier(cfg, discardLogger())
	errutil.AssertErrorCode(t, err, config.CodeInvalid)
}
