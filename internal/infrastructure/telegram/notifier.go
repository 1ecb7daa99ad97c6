package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"HappyPlaceLocal/internal/config"
	"HappyPlaceLocal/internal/hooks"
	"HappyPlaceLocal/internal/ports"
)

const defaultEndpoint = "https://api.telegram.org"

// Notifier sends pipeline alerts to a Telegram chat via bot API.
type Notifier struct {
	endpoint string
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(cfg config.TelegramConfig) *Notifier {
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Notifier{
		endpoint: endpoint,
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Enabled reports whether both token and chat are configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.botToken != "" && n.chatID != ""
}

// Notify posts a plain-text message to Telegram.
func (n *Notifier) Notify(ctx context.Context, message string) error {
	if !n.Enabled() || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.endpoint, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", message)
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}

// Subscribe forwards review holds and publish failures to the notifier.
func Subscribe(h *hooks.Hooks, n ports.Notifier) {
	h.Subscribe(hooks.EventReview, func(ctx context.Context, ev hooks.Event) error {
		return n.Notify(ctx, FormatEvent(ev))
	})
	h.Subscribe(hooks.EventPublishFailed, func(ctx context.Context, ev hooks.Event) error {
		return n.Notify(ctx, FormatEvent(ev))
	})
}

// FormatEvent renders an event as a short alert line.
func FormatEvent(ev hooks.Event) string {
	var b strings.Builder
	switch ev.Name {
	case hooks.EventReview:
		fmt.Fprintf(&b, "Item %d is waiting for review", ev.ItemID)
	case hooks.EventPublishFailed:
		fmt.Fprintf(&b, "Item %d failed to publish", ev.ItemID)
	default:
		fmt.Fprintf(&b, "Item %d: %s", ev.ItemID, ev.Name)
	}
	if ev.Message != "" {
		b.WriteString(": ")
		b.WriteString(ev.Message)
	}
	return b.String()
}
