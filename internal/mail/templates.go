package mail

import (
	"bytes"
	"fmt"
	"text/template"
)

var (
	passwordResetBody = template.Must(template.New("password_reset").Parse(
		`Hi {{if .Name}}{{.Name}}{{else}}there{{end}},

We received a request to reset your FitDesk password. Use the link below to choose a new one:

{{.Link}}

If you did not ask for this, you can ignore this email.
`))

	verificationBody = template.Must(template.New("email_verification").Parse(
		`Hi {{if .Name}}{{.Name}}{{else}}there{{end}},

Confirm your FitDesk email address by opening this link:

{{.Link}}
`))
)

type templateData struct {
	Name string
	Link string
}

// Render builds the subject and body for a named template.
func Render(name, recipientName, link string) (subject, body string, err error) {
	var tmpl *template.Template
	switch name {
	case "password_reset":
		subject, tmpl = "Reset your FitDesk password", passwordResetBody
	case "email_verification":
		subject, tmpl = "Verify your FitDesk email", verificationBody
	default:
		return "", "", fmt.Errorf("unknown mail template %q", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, templateData{Name: recipientName, Link: link}); err != nil {
		return "", "", fmt.Errorf("render %s: %w", name, err)
	}
	return subject, buf.String(), nil
}
