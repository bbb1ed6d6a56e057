package notification

import (
	"context"
	"fmt"
	"log"

	"github.com/mansoorceksport/recgetup/internal/domain"
	"golang.org/x/sync/errgroup"
)

const (
	subjectWelcome       = "Welcome into the family of Recgetup Music! 🎤"
	subjectPaymentFormat = "Payment Receipt: %s ✅"
	subjectActivation    = "Activate your account."
	subjectPasswordReset = "Reset your password"
)

// Notifier renders and delivers user notifications over email and device messages
type Notifier struct {
	email        EmailSender
	messages     MessageSender
	templates    *Templates
	appName      string
	dashboardURL string
}

// NewNotifier creates a Notifier. dashboardURL is linked from the welcome email.
func NewNotifier(email EmailSender, messages MessageSender, templates *Templates, appName, dashboardURL string) *Notifier {
	return &Notifier{
		email:        email,
		messages:     messages,
		templates:    templates,
		appName:      appName,
		dashboardURL: dashboardURL,
	}
}

// SendWelcome sends the welcome email and a short device message
func (n *Notifier) SendWelcome(ctx context.Context, w domain.Welcome) error {
	to := w.Recipient
	msg, err := n.render(TemplateWelcome, to, subjectWelcome, TemplateData{})
	if err != nil {
		return err
	}
	text := fmt.Sprintf("Hi %s, Welcome to %s! We are glad to have you.", to.FirstName, n.appName)
	return n.deliver(ctx, to, msg, "Welcome", text)
}

// SendPaymentReceipt sends the receipt email and a payment confirmation message
func (n *Notifier) SendPaymentReceipt(ctx context.Context, r domain.PaymentReceipt) error {
	to := r.Recipient
	amount := domain.FormatAmount(r.Amount)
	msg, err := n.render(TemplatePaymentReceipt, to, fmt.Sprintf(subjectPaymentFormat, r.PackageName), TemplateData{
		PackageName:   r.PackageName,
		Amount:        amount,
		Currency:      r.Currency,
		TransactionID: r.TransactionID,
	})
	if err != nil {
		return err
	}
	text := fmt.Sprintf("✅ Payment Received: %s%s for %s. Transaction ID: %s", currencySymbol(r.Currency), amount, r.PackageName, r.TransactionID)
	return n.deliver(ctx, to, msg, "Payment received", text)
}

// SendActivationLink emails the account activation link
func (n *Notifier) SendActivationLink(ctx context.Context, to domain.Recipient, link string) error {
	msg, err := n.render(TemplateActivation, to, subjectActivation, TemplateData{Link: link})
	if err != nil {
		return err
	}
	return n.email.SendEmail(ctx, msg)
}

// SendPasswordReset emails the password reset link
func (n *Notifier) SendPasswordReset(ctx context.Context, to domain.Recipient, link string) error {
	msg, err := n.render(TemplatePasswordReset, to, subjectPasswordReset, TemplateData{Link: link})
	if err != nil {
		return err
	}
	return n.email.SendEmail(ctx, msg)
}

func (n *Notifier) render(name string, to domain.Recipient, subject string, data TemplateData) (EmailMessage, error) {
	data.AppName = n.appName
	data.FirstName = to.FirstName
	data.DashboardURL = n.dashboardURL
	html, text, err := n.templates.Render(name, data)
	if err != nil {
		return EmailMessage{}, err
	}
	return EmailMessage{To: to.Email, Subject: subject, Text: text, HTML: html}, nil
}

// deliver sends the email and the device message concurrently.
// A failure of one channel does not stop the other; the first error is returned.
func (n *Notifier) deliver(ctx context.Context, to domain.Recipient, msg EmailMessage, title, text string) error {
	var g errgroup.Group

	g.Go(func() error {
		if err := n.email.SendEmail(ctx, msg); err != nil {
			log.Printf("[Notify] Email %q to user %s failed: %v", msg.Subject, to.UserID, err)
			return fmt.Errorf("email: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := n.messages.SendMessage(ctx, to, title, text); err != nil {
			log.Printf("[Notify] Message to user %s failed: %v", to.UserID, err)
			return fmt.Errorf("message: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func currencySymbol(currency string) string {
	if currency == "INR" {
		return "₹"
	}
	return currency
}
