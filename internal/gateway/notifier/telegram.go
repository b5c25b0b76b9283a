package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"salesboard/internal/config"
	"salesboard/internal/pkg/text"
)

const defaultTelegramBaseURL = "https://api.telegram.org"

// TextNotifier 是最小的文本推送接口，看板只依赖它而不依赖具体通道。
type TextNotifier interface {
	SendText(ctx context.Context, text string) error
}

// Telegram 把数据源告警推送到指定群/频道。
type Telegram struct {
	BotToken string
	ChatID   string
	BaseURL  string
	Client   *http.Client
	Retries  int
	backoff  time.Duration
}

func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		BotToken: botToken,
		ChatID:   chatID,
		BaseURL:  defaultTelegramBaseURL,
		Client:   &http.Client{Timeout: 15 * time.Second},
		Retries:  3,
		backoff:  time.Second,
	}
}

// FromConfig returns nil when telegram is disabled.
func FromConfig(cfg config.TelegramConfig) *Telegram {
	if !cfg.Enabled {
		return nil
	}
	return NewTelegram(cfg.BotToken, cfg.ChatID)
}

// SendText 发送文本消息（带最多 Retries 次重试）
func (t *Telegram) SendText(ctx context.Context, msg string) error {
	if t.BotToken == "" || t.ChatID == "" {
		return fmt.Errorf("Telegram 配置不完整")
	}
	base := strings.TrimRight(t.BaseURL, "/")
	if base == "" {
		base = defaultTelegramBaseURL
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", base, t.BotToken)

	body, err := json.Marshal(map[string]any{
		"chat_id":    t.ChatID,
		"text":       msg,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return err
	}

	attempts := t.Retries
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(t.backoff * time.Duration(i)):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := t.Client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		if resp.StatusCode/100 == 2 {
			return nil
		}
		lastErr = fmt.Errorf("telegram status=%d body=%s", resp.StatusCode, text.Truncate(string(raw), 200))
	}
	return lastErr
}
