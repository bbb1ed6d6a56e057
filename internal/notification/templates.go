package notification

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

// Template names (file names without extension)
const (
	TemplateWelcome        = "welcome"
	TemplatePaymentReceipt = "payment_receipt"
	TemplateActivation     = "activation"
	TemplatePasswordReset  = "password_reset"
)

// TemplateData is the data every email template is rendered with
type TemplateData struct {
	AppName       string
	FirstName     string
	DashboardURL  string
	Link          string
	PackageName   string
	Amount        string
	Currency      string
	TransactionID string
}

// Templates holds the parsed HTML and plain text email bodies
type Templates struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

// LoadTemplates parses the embedded email templates
func LoadTemplates() (*Templates, error) {
	html, err := htmltemplate.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse html templates: %w", err)
	}
	text, err := texttemplate.ParseFS(templateFS, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("parse text templates: %w", err)
	}
	return &Templates{html: html, text: text}, nil
}

// Render returns the HTML and plain text bodies of a template
func (t *Templates) Render(name string, data TemplateData) (htmlBody, textBody string, err error) {
	var hb, tb bytes.Buffer
	if err := t.html.ExecuteTemplate(&hb, name+".html", data); err != nil {
		return "", "", fmt.Errorf("render %s.html: %w", name, err)
	}
	if err := t.text.ExecuteTemplate(&tb, name+".txt", data); err != nil {
		return "", "", fmt.Errorf("render %s.txt: %w", name, err)
	}
	return hb.String(), tb.String(), nil
}
