package notification

import (
	"context"
	"fmt"
	"log"

	"github.com/mansoorceksport/recgetup/internal/config"
	"github.com/mansoorceksport/recgetup/internal/domain"
	"github.com/wneessen/go-mail"
)

// EmailMessage is a single outgoing email with HTML and plain text alternatives
type EmailMessage struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// EmailSender delivers emails
type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage) error
}

// MessageSender delivers a short text message to a user's device
type MessageSender interface {
	SendMessage(ctx context.Context, to domain.Recipient, title, text string) error
}

// NewEmailSender returns an SMTP sender, or a log sender when SMTP is not configured
func NewEmailSender(cfg config.SMTPConfig) EmailSender {
	if cfg.Host == "" {
		log.Println("[Notify] Using log email sender (no SMTP host configured)")
		return &LogEmailSender{}
	}
	log.Printf("[Notify] Using SMTP email sender (%s:%d)", cfg.Host, cfg.Port)
	return &SMTPSender{cfg: cfg}
}

// SMTPSender sends emails through an SMTP relay with go-mail
type SMTPSender struct {
	cfg config.SMTPConfig
}

func (s *SMTPSender) SendEmail(ctx context.Context, msg EmailMessage) error {
	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}

	opts := []mail.Option{mail.WithPort(s.cfg.Port)}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// LogEmailSender writes emails to the log instead of sending them
type LogEmailSender struct{}

func (LogEmailSender) SendEmail(ctx context.Context, msg EmailMessage) error {
	log.Printf("[Email] To: %s | Subject: %s\n%s", msg.To, msg.Subject, msg.Text)
	return nil
}

// PushClient is the part of the FCM client used for delivery
type PushClient interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) (string, error)
}

// FCMSender sends push notifications to the device token stored on the profile
type FCMSender struct {
	client PushClient
}

// NewFCMSender creates a push sender backed by Firebase Cloud Messaging
func NewFCMSender(client PushClient) *FCMSender {
	return &FCMSender{client: client}
}

func (s *FCMSender) SendMessage(ctx context.Context, to domain.Recipient, title, text string) error {
	if to.PushToken == "" {
		log.Printf("[Push] User %s has no device token, skipping", to.UserID)
		return nil
	}
	id, err := s.client.Send(ctx, to.PushToken, title, text, map[string]string{"user_id": to.UserID})
	if err != nil {
		return err
	}
	log.Printf("[Push] Sent %s to user %s", id, to.UserID)
	return nil
}

// LogMessageSender writes messages to the log instead of delivering them
type LogMessageSender struct{}

func (LogMessageSender) SendMessage(ctx context.Context, to domain.Recipient, title, text string) error {
	if to.Phone == "" && to.PushToken == "" {
		return nil
	}
	log.Printf("[Message] To: %s (%s) | %s: %s", to.UserID, to.Phone, title, text)
	return nil
}
