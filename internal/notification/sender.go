// Package notification turns domain events into outbound email and messaging
// pushes. It subscribes to the event bus and never sits on a request path.
package notification

import (
	"context"
	"fmt"
	"net"
	"time"

	"funnel_backend/platform/config"

	gomail "github.com/wneessen/go-mail"
)

// Email subjects.
const (
	subjectBookingConfirmed = "ご相談の予約が確定しました"
	subjectPaymentReceipt   = "お支払いありがとうございます"
	subjectFeedbackThanks   = "ご感想ありがとうございます"
)

// Sender delivers funnel emails.
type Sender interface {
	SendBookingConfirmed(ctx context.Context, toEmail, name, slotText string) error
	SendPaymentReceipt(ctx context.Context, toEmail, name string, amount int64, currency, feedbackURL string) error
	SendFeedbackThanks(ctx context.Context, toEmail, name string, points int) error
}

// SMTPSender delivers via the configured SMTP server using go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates an SMTP sender from config.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) SendBookingConfirmed(ctx context.Context, toEmail, name, slotText string) error {
	content, err := renderEmailTemplate("booking_confirmed.html", bookingConfirmedEmailData{
		baseEmailData: baseEmailData{
			Title:   subjectBookingConfirmed,
			Heading: subjectBookingConfirmed,
		},
		Name:     name,
		SlotText: slotText,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectBookingConfirmed, content)
}

func (s *SMTPSender) SendPaymentReceipt(ctx context.Context, toEmail, name string, amount int64, currency, feedbackURL string) error {
	content, err := renderEmailTemplate("payment_receipt.html", paymentReceiptEmailData{
		baseEmailData: baseEmailData{
			Title:    subjectPaymentReceipt,
			Heading:  subjectPaymentReceipt,
			CTALabel: "感想フォームを開く",
			CTAURL:   feedbackURL,
		},
		Name:            name,
		AmountFormatted: formatAmount(amount, currency),
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectPaymentReceipt, content)
}

func (s *SMTPSender) SendFeedbackThanks(ctx context.Context, toEmail, name string, points int) error {
	content, err := renderEmailTemplate("feedback_thanks.html", feedbackThanksEmailData{
		baseEmailData: baseEmailData{
			Title:   subjectFeedbackThanks,
			Heading: subjectFeedbackThanks,
		},
		Name:   name,
		Points: points,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectFeedbackThanks, content)
}

// NoopSender drops every email. Used when EMAIL_ENABLED is false.
type NoopSender struct{}

func (NoopSender) SendBookingConfirmed(context.Context, string, string, string) error { return nil }
func (NoopSender) SendPaymentReceipt(context.Context, string, string, int64, string, string) error {
	return nil
}
func (NoopSender) SendFeedbackThanks(context.Context, string, string, int) error { return nil }
