// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

//go:build integration

package postgres_test

import (
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/taskhub/taskhub/internal/store"
)

var _ = Describe("Migrator", func() {
	It("reports the fully migrated schema with nothing pending", func() {
		m, err := store.NewMigrator(env.connStr)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = m.Close() }()

		status, err := m.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Version).To(BeNumerically(">", 0))
		Expect(status.Dirty).To(BeFalse())
		Expect(status.Pending).To(BeEmpty())

		Expect(m.Up()).To(Succeed(), "up is idempotent")
	})
})
