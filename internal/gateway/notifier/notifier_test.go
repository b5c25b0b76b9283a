package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"salesboard/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageMarkdown(t *testing.T) {
	at := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	msg := BreakerMessage("sales-api", "CLOSED", "OPEN", "http://api/sales", at).Markdown()
	assert.True(t, strings.HasPrefix(msg, "⚠️ 销售数据源熔断"))
	assert.Contains(t, msg, "- state: CLOSED -> OPEN")
	assert.Contains(t, msg, "- endpoint: http://api/sales")
	assert.Contains(t, msg, "2024-05-01 08:30:00 UTC")

	ok := BreakerMessage("sales-api", "HALF-OPEN", "CLOSED", "x", at).Markdown()
	assert.Contains(t, ok, "销售数据源恢复")
}

func TestMessageSkipsEmptySectionsAndEscapesFences(t *testing.T) {
	m := Message{
		Title:    "t",
		Sections: []Section{{Title: "empty", Lines: []string{" ", ""}}, {Lines: []string{"a```b"}}},
	}
	out := m.Markdown()
	assert.NotContains(t, out, "empty")
	assert.Contains(t, out, "- a'''b")
	assert.Equal(t, "t", Message{Title: "t"}.Markdown())
}

func TestTelegramSendText(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "42")
	tg.BaseURL = srv.URL
	require.NoError(t, tg.SendText(context.Background(), "hello"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "hello", got["text"])
	assert.Equal(t, "Markdown", got["parse_mode"])
}

func TestTelegramRetriesThenFails(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "flood", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "42")
	tg.BaseURL = srv.URL
	tg.backoff = time.Millisecond
	err := tg.SendText(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=429")
	assert.Equal(t, int32(3), hits.Load())
}

func TestTelegramIncompleteConfig(t *testing.T) {
	assert.Error(t, NewTelegram("", "42").SendText(context.Background(), "x"))
}

func TestFromConfig(t *testing.T) {
	assert.Nil(t, FromConfig(config.TelegramConfig{BotToken: "t", ChatID: "c"}))
	tg := FromConfig(config.TelegramConfig{Enabled: true, BotToken: "t", ChatID: "c"})
	require.NotNil(t, tg)
	assert.Equal(t, "c", tg.ChatID)
}
