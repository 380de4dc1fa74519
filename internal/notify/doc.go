// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

// Package notify delivers account emails carrying verification and password
// reset links.
//
// Three transports implement auth.Notifier: SMTPNotifier sends mail directly,
// KafkaNotifier publishes an event for a separate mail service, and
// LogNotifier writes the link to the log for local development. Retrying
// wraps any of them with bounded exponential backoff.
package notify
