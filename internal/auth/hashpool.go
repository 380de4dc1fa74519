// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package auth

import (
	"context"
	"runtime"

	"github.com/samber/oops"
	"golang.org/x/sync/semaphore"
)

// BoundedHasher limits how many hash operations run at once. argon2id is
// memory-hard, so unbounded concurrency under a login burst exhausts RAM.
type BoundedHasher struct {
	inner PasswordHasher
	sem   *semaphore.Weighted
}

// NewBoundedHasher wraps inner with a concurrency limit. A limit below one
// defaults to GOMAXPROCS.
func NewBoundedHasher(inner PasswordHasher, limit int) (*BoundedHasher, error) {
	if inner == nil {
		return nil, oops.Errorf("inner hasher is required")
	}
	if limit < 1 {
		limit = runtime.GOMAXPROCS(0)
	}
	return &BoundedHasher{inner: inner, sem: semaphore.NewWeighted(int64(limit))}, nil
}

// Hash waits for a slot and then delegates to the inner hasher.
func (b *BoundedHasher) Hash(ctx context.Context, password string) (string, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return "", oops.Code("AUTH_HASH_CANCELLED").Wrap(err)
	}
	defer b.sem.Release(1)
	return b.inner.Hash(ctx, password)
}

// Verify waits for a slot and then delegates to the inner hasher.
func (b *BoundedHasher) Verify(ctx context.Context, password, hash string) (bool, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return false, oops.Code("AUTH_HASH_CANCELLED").Wrap(err)
	}
	defer b.sem.Release(1)
	return b.inner.Verify(ctx, password, hash)
}

// NeedsUpgrade delegates without taking a slot.
func (b *BoundedHasher) NeedsUpgrade(hash string) bool {
	return b.inner.NeedsUpgrade(hash)
}
