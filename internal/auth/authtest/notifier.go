// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package authtest

import (
	"context"
	"net/url"
	"sync"

	"github.com/taskhub/taskhub/internal/auth"
)

// Outbox is an auth.Notifier that records every notification. Setting Err
// makes Notify fail after recording.
type Outbox struct {
	mu   sync.Mutex
	sent []auth.Notification
	Err  error
}

// Notify implements auth.Notifier.
func (o *Outbox) Notify(_ context.Context, n auth.Notification) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, n)
	return o.Err
}

// Sent returns a copy of the recorded notifications.
func (o *Outbox) Sent() []auth.Notification {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]auth.Notification(nil), o.sent...)
}

// LastToken returns the token query parameter of the most recent
// notification of kind, or "" if there is none.
func (o *Outbox) LastToken(kind auth.NotificationKind) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.sent) - 1; i >= 0; i-- {
		if o.sent[i].Kind != kind {
			continue
		}
		u, err := url.Parse(o.sent[i].Link)
		if err != nil {
			return ""
		}
		return u.Query().Get("token")
	}
	return ""
}
