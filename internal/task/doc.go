// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

// Package task provides per-user task management.
//
// Every operation takes the owning user's ID, and repositories scope reads and
// writes to that owner. A task belonging to someone else is reported exactly
// like a task that does not exist.
package task
