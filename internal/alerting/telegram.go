package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// TelegramNotifier pushes suggestions through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify calls sendMessage with the rendered suggestion.
func (n *TelegramNotifier) Notify(ctx context.Context, suggestion Suggestion) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(suggestion),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().
		Str("panel_id", suggestion.PanelID).
		Time("event_at", suggestion.Event.Timestamp).
		Msg("suggestion sent (telegram)")
	return nil
}

func renderMessage(s Suggestion) string {
	builder := strings.Builder{}
	builder.WriteString("[Panel Maintenance Suggestion]\n")
	builder.WriteString(fmt.Sprintf("Panel: %s\n", s.PanelID))
	builder.WriteString(fmt.Sprintf("Cleaning inferred at: %s UTC\n", s.Event.Timestamp.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Dust: %s -> %s (drop %s)\n",
		fixed(s.Event.DustBefore), fixed(s.Event.DustAfter), fixed(s.Event.Magnitude)))
	if s.DustTrend != "" {
		builder.WriteString(fmt.Sprintf("Dust trend: %s, average %s\n", s.DustTrend, fixed(s.AverageLevel)))
	}
	if !s.DetectedAt.IsZero() {
		builder.WriteString(fmt.Sprintf("Detected: %s UTC\n", s.DetectedAt.UTC().Format(time.RFC3339)))
	}
	if s.Note != "" {
		builder.WriteString(s.Note)
	}
	return builder.String()
}

func fixed(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

var _ Notifier = (*TelegramNotifier)(nil)
