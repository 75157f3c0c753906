package notification

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title    string
	Heading  string
	CTALabel string
	CTAURL   string
}

type bookingConfirmedEmailData struct {
	baseEmailData
	Name     string
	SlotText string
}

type paymentReceiptEmailData struct {
	baseEmailData
	Name            string
	AmountFormatted string
}

type feedbackThanksEmailData struct {
	baseEmailData
	Name   string
	Points int
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

func formatAmount(amount int64, currency string) string {
	if currency == "jpy" {
		return fmt.Sprintf("¥%d", amount)
	}
	return fmt.Sprintf("%.2f %s", float64(amount)/100, currency)
}
