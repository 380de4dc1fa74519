// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

// Package auth implements the credential lifecycle for TaskHub accounts.
//
// # Domain Types
//
//   - User - an account row; PasswordHash and token digests never leave the package boundary
//   - PublicUser - the fields safe to return to clients
//   - Identity - the claims carried by a session token
//
// # Tokens
//
// Two unrelated token kinds exist. Session tokens are stateless HS256 JWTs
// minted by SessionIssuer and checked on every protected request. Opaque tokens
// (email verification and password reset) are random secrets whose SHA-256
// digest is stored on the user row; they are single-use and consumed with a
// conditional UPDATE so that concurrent redemptions cannot both succeed.
//
// # Services
//
// Service coordinates registration, login, email verification and password
// reset. It is created with NewService or NewServiceWithLogger, which validate
// dependencies. Service never caches user state; every operation re-reads the
// store.
package auth
