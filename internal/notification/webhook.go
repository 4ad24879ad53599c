package notification

import (
	"context"
	"log"
	"net/http"
	"time"
)

// WebhookNotifier posts the structured alert as JSON to an HTTP endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// NewWebhookNotifier creates a webhook notifier posting to url.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: defaultHTTPTimeout},
		now:    time.Now,
	}
}

func (w *WebhookNotifier) Name() string { return "webhook" }

// Send posts {level, title, message, symbol, state, signals, ts}. A zero
// alert time is replaced by the send time.
func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	if alert.At.IsZero() {
		alert.At = w.now()
	}
	alert.At = alert.At.UTC()

	if _, err := postJSON(ctx, w.client, "webhook", w.url, alert); err != nil {
		return err
	}
	log.Printf("[webhook] sent %s alert for %s", alert.State, alert.Symbol)
	return nil
}
