// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

//go:build integration

package postgres_test

import (
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/taskhub/taskhub/internal/auth"
	"github.com/taskhub/taskhub/internal/task"
)

var _ = Describe("TaskRepository", func() {
	var owner, stranger *auth.User

	BeforeEach(func() {
		truncate()
		owner = newUser("ada", "ada@example.com")
		stranger = newUser("mallory", "mallory@example.com")
		Expect(env.Users.Create(env.ctx, owner)).To(Succeed())
		Expect(env.Users.Create(env.ctx, stranger)).To(Succeed())
	})

	create := func(userID int64, title string) *task.Task {
		t := &task.Task{UserID: userID, Title: title}
		Expect(env.Tasks.Create(env.ctx, t)).To(Succeed())
		return t
	}

	It("creates tasks incomplete with an empty description", func() {
		t := create(owner.ID, "write report")
		Expect(t.ID).To(BeNumerically(">", 0))
		Expect(t.Completed).To(BeFalse())

		got, err := env.Tasks.Get(env.ctx, owner.ID, t.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Description).To(Equal(""))
	})

	It("lists only the owner's tasks, newest first", func() {
		first := create(owner.ID, "first")
		second := create(owner.ID, "second")
		create(stranger.ID, "not yours")

		tasks, err := env.Tasks.List(env.ctx, owner.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(tasks).To(HaveLen(2))
		Expect(tasks[0].ID).To(Equal(second.ID))
		Expect(tasks[1].ID).To(Equal(first.ID))
	})

	It("hides other users' tasks from get, update and delete", func() {
		t := create(owner.ID, "private")

		_, err := env.Tasks.Get(env.ctx, stranger.ID, t.ID)
		Expect(err).To(MatchError(task.ErrNotFound))

		done := true
		_, err = env.Tasks.Update(env.ctx, stranger.ID, t.ID, task.Patch{Completed: &done})
		Expect(err).To(MatchError(task.ErrNotFound))

		Expect(env.Tasks.Delete(env.ctx, stranger.ID, t.ID)).To(MatchError(task.ErrNotFound))

		got, err := env.Tasks.Get(env.ctx, owner.ID, t.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Completed).To(BeFalse())
	})

	It("applies partial updates and bumps updated_at", func() {
		t := create(owner.ID, "draft")
		done := true
		desc := "with details"

		updated, err := env.Tasks.Update(env.ctx, owner.ID, t.ID, task.Patch{Completed: &done, Description: &desc})
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Title).To(Equal("draft"))
		Expect(updated.Description).To(Equal("with details"))
		Expect(updated.Completed).To(BeTrue())
		Expect(updated.UpdatedAt).To(BeTemporally(">=", t.UpdatedAt))
	})

	It("deletes a task once", func() {
		t := create(owner.ID, "temporary")
		Expect(env.Tasks.Delete(env.ctx, owner.ID, t.ID)).To(Succeed())
		Expect(env.Tasks.Delete(env.ctx, owner.ID, t.ID)).To(MatchError(task.ErrNotFound))
	})
})
