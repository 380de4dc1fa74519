// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

// Package web serves the TaskHub JSON API over HTTP.
//
// Failures are written as {"message": ..., "code": ...}. Only codes the auth
// and task packages expose to clients keep their message; anything else is
// logged and reported as an opaque internal server error.
package web
