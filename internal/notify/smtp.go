// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package notify

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/samber/oops"

	"github.com/taskhub/taskhub/internal/auth"
)

// SMTPConfig configures SMTPNotifier.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// Addr returns host:port.
func (c SMTPConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier sends notifications as HTML email. smtp.SendMail upgrades the
// connection with STARTTLS when the server offers it.
type SMTPNotifier struct {
	cfg      SMTPConfig
	renderer *renderer
	send     sendFunc
}

// NewSMTPNotifier validates cfg and parses the email templates.
func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if cfg.Host == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("smtp host is required")
	}
	if cfg.Port <= 0 {
		return nil, oops.Code("CONFIG_INVALID").With("port", cfg.Port).Errorf("smtp port must be positive")
	}
	if _, err := mail.ParseAddress(cfg.From); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("from", cfg.From).Wrapf(err, "smtp from address")
	}
	r, err := newRenderer(cfg.FromName)
	if err != nil {
		return nil, err
	}
	return &SMTPNotifier{cfg: cfg, renderer: r, send: smtp.SendMail}, nil
}

// Notify implements auth.Notifier. smtp.SendMail has no context support, so
// ctx is only checked before the send starts.
func (s *SMTPNotifier) Notify(ctx context.Context, n auth.Notification) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("NOTIFY_CANCELLED").Wrap(err)
	}
	subject, body, err := s.renderer.render(n)
	if err != nil {
		return err
	}
	msg := s.message(n.To, subject, body)

	var a smtp.Auth
	if s.cfg.Username != "" {
		a = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	if err := s.send(s.cfg.Addr(), a, s.cfg.From, []string{n.To}, msg); err != nil {
		return oops.Code("NOTIFY_SMTP_FAILED").
			With("addr", s.cfg.Addr()).
			With("kind", string(n.Kind)).
			Wrap(err)
	}
	return nil
}

func (s *SMTPNotifier) message(to, subject, body string) []byte {
	from := (&mail.Address{Name: s.cfg.FromName, Address: s.cfg.From}).String()

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

var _ auth.Notifier = (*SMTPNotifier)(nil)
