// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

//go:build integration

package postgres_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/taskhub/taskhub/internal/auth"
	"github.com/taskhub/taskhub/internal/auth/authtest"
	"github.com/taskhub/taskhub/internal/task"
	"github.com/taskhub/taskhub/internal/web"
)

var _ = Describe("API over PostgreSQL", func() {
	var (
		server *httptest.Server
		outbox *authtest.Outbox
	)

	BeforeEach(func() {
		truncate()
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		outbox = &authtest.Outbox{}

		issuer, err := auth.NewSessionIssuer([]byte("0123456789abcdef0123456789abcdef"), auth.DefaultSessionTTL)
		Expect(err).NotTo(HaveOccurred())
		authSvc, err := auth.NewServiceWithLogger(env.Users, auth.NewArgon2idHasher(), issuer, outbox, auth.Config{
			EmailVerification:   true,
			RequireVerification: true,
			VerifyURL:           "http://localhost:3000/verify-email",
			ResetURL:            "http://localhost:3000/reset-password",
		}, logger)
		Expect(err).NotTo(HaveOccurred())
		taskSvc, err := task.NewService(env.Tasks)
		Expect(err).NotTo(HaveOccurred())

		srv, err := web.NewServer(web.Config{}, web.Deps{
			Auth: authSvc, Tasks: taskSvc, Verifier: issuer, Logger: logger,
		})
		Expect(err).NotTo(HaveOccurred())
		server = httptest.NewServer(srv.Handler())
		DeferCleanup(server.Close)
	})

	call := func(method, path string, body any, token string) (int, map[string]any) {
		var reader io.Reader
		if body != nil {
			b, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			reader = bytes.NewReader(b)
		}
		req, err := http.NewRequest(method, server.URL+path, reader)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = resp.Body.Close() }()

		var out map[string]any
		raw, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		if len(raw) > 0 && raw[0] == '{' {
			Expect(json.Unmarshal(raw, &out)).To(Succeed())
		}
		return resp.StatusCode, out
	}

	It("runs the full credential and task lifecycle", func() {
		creds := map[string]string{"email": "ada@example.com", "password": "correct horse"}

		status, _ := call(http.MethodPost, "/register", map[string]string{
			"username": "ada", "email": creds["email"], "password": creds["password"],
		}, "")
		Expect(status).To(Equal(http.StatusCreated))

		status, _ = call(http.MethodPost, "/login", creds, "")
		Expect(status).To(Equal(http.StatusForbidden), "unverified accounts cannot log in")

		status, _ = call(http.MethodPost, "/verify-email", map[string]string{
			"token": outbox.LastToken(auth.NotifyEmailVerification),
		}, "")
		Expect(status).To(Equal(http.StatusOK))

		status, body := call(http.MethodPost, "/login", creds, "")
		Expect(status).To(Equal(http.StatusOK))
		token, _ := body["token"].(string)
		Expect(token).NotTo(BeEmpty())

		status, body = call(http.MethodPost, "/tasks", map[string]string{"title": "  ship it  "}, token)
		Expect(status).To(Equal(http.StatusCreated))

		status, _ = call(http.MethodGet, "/tasks", nil, token)
		Expect(status).To(Equal(http.StatusOK))

		status, _ = call(http.MethodPost, "/forgot-password", map[string]string{"email": creds["email"]}, "")
		Expect(status).To(Equal(http.StatusOK))
		resetToken := outbox.LastToken(auth.NotifyPasswordReset)
		Expect(resetToken).NotTo(BeEmpty())

		status, _ = call(http.MethodPost, "/reset-password", map[string]string{
			"token": resetToken, "newPassword": "battery staple",
		}, "")
		Expect(status).To(Equal(http.StatusOK))

		status, _ = call(http.MethodPost, "/reset-password", map[string]string{
			"token": resetToken, "newPassword": "another one",
		}, "")
		Expect(status).To(Equal(http.StatusBadRequest), "reset tokens are single use")

		status, _ = call(http.MethodPost, "/login", map[string]string{
			"email": creds["email"], "password": "battery staple",
		}, "")
		Expect(status).To(Equal(http.StatusOK))
	})
})
