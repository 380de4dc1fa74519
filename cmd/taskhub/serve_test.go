// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/taskhub/internal/config"
	"github.com/taskhub/taskhub/pkg/errutil"
)

func TestServe_RejectsInvalidConfig(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/taskhub")

	_, err := execute(t, "serve")
	errutil.AssertErrorCode(t, err, config.CodeInvalid)
	errutil.AssertErrorContext(t, err, "key", "auth.jwt_secret")
}

func TestServe_FlagsOverrideConfig(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/taskhub")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")

	_, err := execute(t, "serve", "--log.level", "shout")
	errutil.AssertErrorCode(t, err, config.CodeInvalid)
	errutil.AssertErrorContext(t, err, "key", "log.level")
}

func TestMonitorServerErrors(t *testing.T) {
	t.Run("error cancels", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		errCh := make(chan error, 1)
		errCh <- errors.New("listener closed")

		monitorServerErrors(ctx, cancel, errCh, "api")
		assert.ErrorIs(t, ctx.Err(), context.Canceled)
	})

	t.Run("closed channel does not cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		errCh := make(chan error)
		close(errCh)

		monitorServerErrors(ctx, cancel, errCh, "api")
		assert.NoError(t, ctx.Err())
	})

	t.Run("returns on context end", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		monitorServerErrors(ctx, cancel, make(chan error), "api")
	})
}

type recordingStopper struct {
	name  string
	order *[]string
	err   error
}

func (r recordingStopper) Stop(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("no deadline")
	}
	*r.order = append(*r.order, r.name)
	return r.err
}

func TestStopAll_ReverseOrder(t *testing.T) {
	var order []string
	stopAll(discardLogger(), time.Second, []stopper{
		recordingStopper{name: "api", order: &order},
		recordingStopper{name: "metrics", order: &order, err: errors.New("already stopped")},
		recordingStopper{name: "control", order: &order},
	})
	require.Len(t, order, 3)
	assert.Equal(t, []string{"control", "metrics", "api"}, order)
}
