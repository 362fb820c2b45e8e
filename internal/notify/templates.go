// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rollcall Contributors

package notify

import (
	"html/template"
	"strings"

	"github.com/samber/oops"
)

// Subjects for the account lifecycle emails.
const (
	SubjectWelcome      = "Welcome to Rollcall"
	SubjectVerification = "Your Rollcall verification code"
	SubjectReset        = "Reset your Rollcall password"
	SubjectResetDone    = "Your Rollcall password was changed"
)

var (
	welcomeTmpl = template.Must(template.New("welcome").Parse(`<html><body>
<p>Hi {{.FirstName}},</p>
<p>Welcome to Rollcall! Your account has been created.</p>
<p>Enter this code to verify your account. It expires in 10 minutes:</p>
<p style="font-size:24px;letter-spacing:4px"><b>{{.Code}}</b></p>
</body></html>`))

	verificationTmpl = template.Must(template.New("verification").Parse(`<html><body>
<p>Hi {{.FirstName}},</p>
<p>Your verification code is:</p>
<p style="font-size:24px;letter-spacing:4px"><b>{{.Code}}</b></p>
<p>The code expires in 10 minutes. If you did not request it, ignore this email.</p>
</body></html>`))

	resetTmpl = template.Must(template.New("reset").Parse(`<html><body>
<p>Hi {{.FirstName}},</p>
<p>You recently requested to reset your password. If you did not make this
request, kindly ignore this email.</p>
<p>To reset your password, click the link below. It expires in one hour:</p>
<p><a href="{{.Link}}">Reset password</a></p>
</body></html>`))

	resetDoneTmpl = template.Must(template.New("resetDone").Parse(`<html><body>
<p>Hi {{.FirstName}},</p>
<p>Your password was changed successfully.</p>
<p>If you didn't change your password, please reset it immediately.</p>
</body></html>`))
)

type templateData struct {
	FirstName string
	Code      string
	Link      string
}

func render(t *template.Template, data templateData) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", oops.Code("NOTIFY_RENDER_FAILED").With("template", t.Name()).Wrap(err)
	}
	return b.String(), nil
}

// WelcomeMessage renders the post-signup email carrying the first
// verification code.
func WelcomeMessage(to, firstName, code string) (Message, error) {
	html, err := render(welcomeTmpl, templateData{FirstName: firstName, Code: code})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: SubjectWelcome, HTML: html}, nil
}

// VerificationMessage renders the account-verification OTP email.
func VerificationMessage(to, firstName, code string) (Message, error) {
	html, err := render(verificationTmpl, templateData{FirstName: firstName, Code: code})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: SubjectVerification, HTML: html}, nil
}

// ResetMessage renders the password-reset email. link embeds the plaintext
// reset token; the token never appears in logs.
func ResetMessage(to, firstName, link string) (Message, error) {
	html, err := render(resetTmpl, templateData{FirstName: firstName, Link: link})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: SubjectReset, HTML: html}, nil
}

// ResetDoneMessage renders the password-change confirmation email.
func ResetDoneMessage(to, firstName string) (Message, error) {
	html, err := render(resetDoneTmpl, templateData{FirstName: firstName})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: SubjectResetDone, HTML: html}, nil
}
