// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

//go:build integration

package postgres_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/taskhub/taskhub/internal/auth"
)

func newUser(username, email string) *auth.User {
	return &auth.User{Username: username, Email: email, PasswordHash: "$argon2id$placeholder"}
}

var _ = Describe("UserRepository", func() {
	BeforeEach(truncate)

	Describe("Create", func() {
		It("assigns an id and timestamps", func() {
			u := newUser("ada", "ada@example.com")
			Expect(env.Users.Create(env.ctx, u)).To(Succeed())
			Expect(u.ID).To(BeNumerically(">", 0))
			Expect(u.CreatedAt).NotTo(BeZero())
		})

		It("rejects duplicate emails regardless of case", func() {
			Expect(env.Users.Create(env.ctx, newUser("ada", "ada@example.com"))).To(Succeed())
			err := env.Users.Create(env.ctx, newUser("other", "ADA@Example.com"))
			Expect(err).To(MatchError(auth.ErrConflict))
		})

		It("rejects duplicate usernames regardless of case", func() {
			Expect(env.Users.Create(env.ctx, newUser("ada", "ada@example.com"))).To(Succeed())
			err := env.Users.Create(env.ctx, newUser("ADA", "other@example.com"))
			Expect(err).To(MatchError(auth.ErrConflict))
		})
	})

	Describe("lookups", func() {
		It("finds users by email case-insensitively", func() {
			u := newUser("ada", "ada@example.com")
			Expect(env.Users.Create(env.ctx, u)).To(Succeed())

			got, err := env.Users.GetByEmail(env.ctx, "Ada@Example.COM")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(u.ID))
		})

		It("returns ErrNotFound for unknown ids", func() {
			_, err := env.Users.GetByID(env.ctx, 9999)
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})

	Describe("verification tokens", func() {
		It("can be consumed exactly once", func() {
			digest := auth.HashOpaqueToken("verify-me")
			u := newUser("ada", "ada@example.com")
			u.VerificationTokenHash = &digest
			Expect(env.Users.Create(env.ctx, u)).To(Succeed())

			id, err := env.Users.ConsumeVerificationToken(env.ctx, digest)
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal(u.ID))

			_, err = env.Users.ConsumeVerificationToken(env.ctx, digest)
			Expect(err).To(MatchError(auth.ErrNotFound))

			got, err := env.Users.GetByID(env.ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.EmailVerified).To(BeTrue())
			Expect(got.VerificationTokenHash).To(BeNil())
		})
	})

	Describe("reset tokens", func() {
		var u *auth.User
		digest := auth.HashOpaqueToken("reset-me")

		BeforeEach(func() {
			u = newUser("ada", "ada@example.com")
			Expect(env.Users.Create(env.ctx, u)).To(Succeed())
		})

		It("does not match after expiry", func() {
			now := time.Now()
			Expect(env.Users.SetResetToken(env.ctx, u.ID, digest, now.Add(time.Minute))).To(Succeed())

			_, err := env.Users.GetByResetToken(env.ctx, digest, now)
			Expect(err).NotTo(HaveOccurred())

			_, err = env.Users.GetByResetToken(env.ctx, digest, now.Add(2*time.Minute))
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("lets only one of many concurrent redemptions win", func() {
			now := time.Now()
			Expect(env.Users.SetResetToken(env.ctx, u.ID, digest, now.Add(time.Hour))).To(Succeed())

			const attempts = 8
			var wg sync.WaitGroup
			var mu sync.Mutex
			wins := 0
			for i := 0; i < attempts; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					if _, err := env.Users.ConsumeResetToken(env.ctx, digest, "$argon2id$new", now); err == nil {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			Expect(wins).To(Equal(1))

			got, err := env.Users.GetByID(env.ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.PasswordHash).To(Equal("$argon2id$new"))
			Expect(got.ResetTokenHash).To(BeNil())
			Expect(got.ResetExpiresAt).To(BeNil())
		})

		It("purges only expired tokens", func() {
			other := newUser("grace", "grace@example.com")
			Expect(env.Users.Create(env.ctx, other)).To(Succeed())

			now := time.Now()
			Expect(env.Users.SetResetToken(env.ctx, u.ID, digest, now.Add(-time.Minute))).To(Succeed())
			Expect(env.Users.SetResetToken(env.ctx, other.ID, auth.HashOpaqueToken("fresh"), now.Add(time.Hour))).To(Succeed())

			n, err := env.Users.ClearExpiredResetTokens(env.ctx, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))

			got, err := env.Users.GetByID(env.ctx, other.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ResetTokenHash).NotTo(BeNil())
		})
	})
})
