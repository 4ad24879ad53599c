package notification

import (
	"context"
	"log"
	"net/http"
)

// DiscordNotifier posts alerts to a Discord channel webhook.
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordNotifier creates a Discord notifier for the given webhook URL.
func NewDiscordNotifier(webhookURL string) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: defaultHTTPTimeout},
	}
}

func (d *DiscordNotifier) Name() string { return "discord" }

// Send posts the alert text as the message content.
// Discord answers 204 No Content on success.
func (d *DiscordNotifier) Send(ctx context.Context, alert Alert) error {
	if _, err := postJSON(ctx, d.client, "discord", d.webhookURL, map[string]string{"content": alert.Text()}); err != nil {
		return err
	}
	log.Printf("[discord] sent alert: %s", alert.Title)
	return nil
}
