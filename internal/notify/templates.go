// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package notify

import (
	"bytes"
	"html/template"
	"time"

	"github.com/samber/oops"

	"github.com/taskhub/taskhub/internal/auth"
)

const emailTemplates = `
{{define "email_verification"}}<!DOCTYPE html>
<html><body>
<p>Hi {{.Username}},</p>
<p>Thanks for signing up for {{.AppName}}. Confirm your email address by opening the link below:</p>
<p><a href="{{.Link}}">Verify email</a></p>
<p>If you did not create an account you can ignore this message.</p>
</body></html>{{end}}
{{define "password_reset"}}<!DOCTYPE html>
<html><body>
<p>Hi {{.Username}},</p>
<p>We received a request to reset your {{.AppName}} password. The link below is valid until {{.Expires}}:</p>
<p><a href="{{.Link}}">Reset password</a></p>
<p>If you did not ask for a reset you can ignore this message.</p>
</body></html>{{end}}
`

var subjects = map[auth.NotificationKind]string{
	auth.NotifyEmailVerification: "Verify your email address",
	auth.NotifyPasswordReset:     "Reset your password",
}

type templateData struct {
	AppName  string
	Username string
	Link     string
	Expires  string
}

type renderer struct {
	appName string
	tmpl    *template.Template
}

func newRenderer(appName string) (*renderer, error) {
	tmpl, err := template.New("emails").Parse(emailTemplates)
	if err != nil {
		return nil, oops.Code("NOTIFY_TEMPLATE_INVALID").Wrap(err)
	}
	return &renderer{appName: appName, tmpl: tmpl}, nil
}

// render returns the subject and HTML body for n.
func (r *renderer) render(n auth.Notification) (string, string, error) {
	subject, ok := subjects[n.Kind]
	if !ok {
		return "", "", oops.Code("NOTIFY_KIND_UNKNOWN").With("kind", string(n.Kind)).Errorf("unknown notification kind")
	}
	data := templateData{
		AppName:  r.appName,
		Username: n.Username,
		Link:     n.Link,
	}
	if !n.ExpiresAt.IsZero() {
		data.Expires = n.ExpiresAt.UTC().Format(time.RFC1123)
	}
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, string(n.Kind), data); err != nil {
		return "", "", oops.Code("NOTIFY_RENDER_FAILED").With("kind", string(n.Kind)).Wrap(err)
	}
	return subject, buf.String(), nil
}
