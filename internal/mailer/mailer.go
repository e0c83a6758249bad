package mailer

import (
	"bytes"
	"embed"
	"html/template"
)

const (
	FromName                  = "Kicks"
	maxRetries                = 3
	OrderConfirmationTemplate = "order_confirmation.tmpl"
	OrderStatusTemplate       = "order_status.tmpl"
)

//go:embed "templates"
var FS embed.FS

type Client interface {
	Send(templateFile, username, email string, data any) (int, error)
}

// render executes the "subject" and "body" blocks of an embedded template.
func render(templateFile string, data any) (subject, body string, err error) {
	tmpl, err := template.ParseFS(FS, "templates/"+templateFile)
	if err != nil {
		return "", "", err
	}

	var s bytes.Buffer
	if err := tmpl.ExecuteTemplate(&s, "subject", data); err != nil {
		return "", "", err
	}

	var b bytes.Buffer
	if err := tmpl.ExecuteTemplate(&b, "body", data); err != nil {
		return "", "", err
	}

	return s.String(), b.String(), nil
}

// Nop discards mail. Used when SMTP is not configured.
type Nop struct{}

func (Nop) Send(string, string, string, any) (int, error) { return 0, nil }
