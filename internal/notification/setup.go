package notification

import (
	"context"
	"fmt"
	"log"

	"github.com/mansoorceksport/recgetup/internal/config"
	"github.com/mansoorceksport/recgetup/internal/infrastructure/fcm"
)

// NewFromConfig builds a Notifier for the configured channels. Unconfigured
// channels fall back to log senders.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Notifier, error) {
	templates, err := LoadTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	var messages MessageSender = LogMessageSender{}
	if cfg.FirebaseEnabled() {
		client, err := newPushClient(ctx, cfg.Firebase)
		if err != nil {
			log.Printf("Warning: Firebase messaging unavailable, push messages will be logged: %v", err)
		} else {
			messages = NewFCMSender(client)
			log.Println("✓ Firebase Cloud Messaging initialized")
		}
	}

	return NewNotifier(NewEmailSender(cfg.SMTP), messages, templates, cfg.App.Name, cfg.App.FrontendURL), nil
}

func newPushClient(ctx context.Context, cfg config.FirebaseConfig) (*fcm.Client, error) {
	app, err := fcm.InitFirebase(ctx, cfg.ProjectID, cfg.PrivateKey, cfg.ClientEmail)
	if err != nil {
		return nil, err
	}
	return fcm.NewClient(ctx, app)
}
