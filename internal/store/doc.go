// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

// Package store owns the PostgreSQL schema and connection pool. Repositories
// in the domain packages accept the DB interface so they can be unit tested
// against pgxmock.
package store
