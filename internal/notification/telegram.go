package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"
)

// TelegramNotifier sends alerts through the Telegram Bot API.
type TelegramNotifier struct {
	apiBase  string
	botToken string
	chatID   string
	client   *http.Client
}

// NewTelegramNotifier creates a Telegram notifier for one chat.
func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		apiBase:  "https://api.telegram.org",
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: defaultHTTPTimeout},
	}
}

func (t *TelegramNotifier) Name() string { return "telegram" }

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send renders the title in bold and the body as preformatted text so the
// price lines stay aligned.
func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	var b strings.Builder
	if alert.Title != "" {
		fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(alert.Title))
	}
	if alert.Message != "" {
		fmt.Fprintf(&b, "<pre>%s</pre>", html.EscapeString(alert.Message))
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)
	body, err := postJSON(ctx, t.client, "telegram", url, map[string]interface{}{
		"chat_id":                  t.chatID,
		"text":                     b.String(),
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	})
	if err != nil {
		return err
	}

	// The Bot API can answer 200 with ok=false.
	var tr telegramResponse
	if err := json.Unmarshal(body, &tr); err == nil && !tr.OK {
		return fmt.Errorf("telegram: %s", tr.Description)
	}

	log.Printf("[telegram] sent alert to chat %s: %s", t.chatID, alert.Title)
	return nil
}
