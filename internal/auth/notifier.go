// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package auth

import (
	"context"
	"net/url"
	"time"

	"github.com/samber/oops"
)

// NotificationKind identifies the message a Notifier should deliver.
type NotificationKind string

// Notification kinds.
const (
	NotifyEmailVerification NotificationKind = "email_verification"
	NotifyPasswordReset     NotificationKind = "password_reset"
)

// Notification is a single outbound message carrying a one-time link.
type Notification struct {
	Kind      NotificationKind
	To        string
	Username  string
	Link      string
	ExpiresAt time.Time // zero when the link does not expire
}

// Notifier delivers notifications. Notify blocks until the message is handed
// off or delivery has failed.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// buildLink appends token as the token query parameter of base.
func buildLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", oops.Code("AUTH_LINK_INVALID").With("base", base).Wrap(err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
