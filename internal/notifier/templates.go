package notifier

import (
	"fmt"
	"html/template"
	"strings"
)

const passwordResetTemplate = `<html><body>
<h2>Reset your password</h2>
<p>A password reset was requested for your account. Enter this code to continue:</p>
<p style="font-size:24px;letter-spacing:4px;font-family:monospace"><strong>{{.Secret}}</strong></p>
<p>Or follow <a href="{{.ChallengeURL}}">this link</a>.</p>
<p>The code expires in a few minutes. If you did not request a reset, you can ignore this email.</p>
</body></html>`

const passwordResetSuccessTemplate = `<html><body>
<h2>Your password was changed</h2>
<p>The password for your account was changed on {{.ResetDate}}.</p>
<p>If this was not you, <a href="{{.WebURL}}">sign in</a> immediately and review your security settings.</p>
</body></html>`

const passwordChangedTemplate = `<html><body>
<h2>Your password was changed</h2>
<p>The password for your account was changed on {{.ChangeDate}} while you were signed in.</p>
<p>If this was not you, <a href="{{.WebURL}}">sign in</a> immediately and review your security settings.</p>
</body></html>`

const twoFactorEnabledTemplate = `<html><body>
<h2>Two-factor authentication enabled</h2>
<p>Two-factor authentication is now active on your account. Future sign-ins will ask for a code from your authenticator app.</p>
<p>Keep your backup codes somewhere safe. Each one works exactly once.</p>
<p>If you did not set this up, <a href="{{.WebURL}}">sign in</a> and review your security settings.</p>
</body></html>`

const twoFactorDisabledTemplate = `<html><body>
<h2>Two-factor authentication disabled</h2>
<p>Two-factor authentication was removed from your account. Sign-ins now require only your password.</p>
<p>If you did not do this, <a href="{{.WebURL}}">sign in</a> and re-enable it immediately.</p>
</body></html>`

const backupCodesRegeneratedTemplate = `<html><body>
<h2>New backup codes issued</h2>
<p>A fresh set of backup codes was generated for your account. All previous codes no longer work.</p>
<p>If you did not request new codes, <a href="{{.WebURL}}">sign in</a> and review your security settings.</p>
</body></html>`

const accountLockedTemplate = `<html><body>
<h2>Too many verification attempts</h2>
<p>Two-factor verification for your account was temporarily locked after repeated failed attempts.</p>
<p>You can try again in about {{.RetryMinutes}} minutes. If this was not you, change your password once you regain access.</p>
</body></html>`

var notificationTemplates = template.Must(newTemplateSet(map[string]string{
	"password_reset":           passwordResetTemplate,
	"password_reset_success":   passwordResetSuccessTemplate,
	"password_changed":         passwordChangedTemplate,
	"two_factor_enabled":       twoFactorEnabledTemplate,
	"two_factor_disabled":      twoFactorDisabledTemplate,
	"backup_codes_regenerated": backupCodesRegeneratedTemplate,
	"account_locked":           accountLockedTemplate,
}))

func newTemplateSet(sources map[string]string) (*template.Template, error) {
	root := template.New("notifications")
	for name, source := range sources {
		if _, err := root.New(name).Parse(source); err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
	}
	return root, nil
}

// renderTemplate produces the HTML body for a named template.
func renderTemplate(templateName string, data any) (string, error) {
	tmpl := notificationTemplates.Lookup(templateName)
	if tmpl == nil {
		return "", fmt.Errorf("unknown notification template: %s", templateName)
	}

	var body strings.Builder
	if err := tmpl.Execute(&body, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", templateName, err)
	}

	return body.String(), nil
}
