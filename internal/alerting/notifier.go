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

	"oil-price-watch/internal/detector"
)

// Notification 封装一次价格变动告警的上下文。
type Notification struct {
	Event         detector.ChangeEvent
	Threshold     float64
	Channels      []string
	AdditionalMsg string
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
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

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
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
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram 返回 ok=false")
		}
	}

	n.logger.Info().
		Str("kind", string(note.Event.Kind)).
		Int64("cycle", note.Event.NewCycle).
		Str("channels", strings.Join(note.Channels, ",")).
		Msg("告警已发送 (Telegram)")
	return nil
}

func renderMessage(note Notification) string {
	event := note.Event
	builder := strings.Builder{}
	builder.WriteString("[Oil Price Alert]\n")
	builder.WriteString(fmt.Sprintf("Time: %s UTC\n", event.Timestamp.UTC().Format(time.RFC3339)))

	newPrice := decimal.NewFromFloat(event.NewPrice)
	if event.Kind == detector.KindInitial || event.OldPrice == nil {
		builder.WriteString(fmt.Sprintf("Initial price: $%s (cycle %d)\n", newPrice.StringFixed(2), event.NewCycle))
	} else {
		oldPrice := decimal.NewFromFloat(*event.OldPrice)
		delta := decimal.NewFromFloat(event.Delta)
		percent := decimal.NewFromFloat(event.DeltaPercent)
		builder.WriteString(fmt.Sprintf("Price: $%s → $%s\n", oldPrice.StringFixed(2), newPrice.StringFixed(2)))
		builder.WriteString(fmt.Sprintf("Change: %s (%s%%)\n", signedFixed(delta, 2), signedFixed(percent, 2)))
		builder.WriteString(fmt.Sprintf("Cycle: %d → %d\n", *event.OldCycle, event.NewCycle))
	}

	threshold := decimal.NewFromFloat(note.Threshold)
	builder.WriteString(fmt.Sprintf("Threshold: $%s\n", threshold.StringFixed(2)))
	if len(note.Channels) > 0 {
		builder.WriteString(fmt.Sprintf("Channels: %s\n", strings.Join(note.Channels, ",")))
	}
	if note.AdditionalMsg != "" {
		builder.WriteString(note.AdditionalMsg)
	}
	return builder.String()
}

func signedFixed(d decimal.Decimal, places int32) string {
	fixed := d.StringFixed(places)
	if d.Sign() >= 0 {
		return "+" + fixed
	}
	return fixed
}

var _ Notifier = (*TelegramNotifier)(nil)
