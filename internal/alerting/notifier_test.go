package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"oil-price-watch/internal/detector"
)

func sampleNotification() Notification {
	oldPrice := 75.00
	oldCycle := int64(1000)
	return Notification{
		Event: detector.ChangeEvent{
			Timestamp:    time.Now(),
			OldPrice:     &oldPrice,
			NewPrice:     76.50,
			OldCycle:     &oldCycle,
			NewCycle:     1001,
			Delta:        1.50,
			DeltaPercent: 2.00,
			Kind:         detector.KindUpdate,
		},
		Threshold: 0.01,
		Channels:  []string{"telegram"},
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("路径应包含 sendMessage, 实际 %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())

	if err := notifier.Notify(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("Telegram Notify 应成功: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("chat_id 不正确: %#v", received)
	}
	if !strings.Contains(received["text"], "+1.50") {
		t.Fatalf("text 应包含价格变动: %q", received["text"])
	}
	if !strings.Contains(received["text"], "1001") {
		t.Fatalf("text 应包含新 cycle: %q", received["text"])
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())

	if err := notifier.Notify(context.Background(), sampleNotification()); err == nil {
		t.Fatal("ok=false 应报错")
	}
}

func TestRenderMessageInitial(t *testing.T) {
	note := Notification{
		Event: detector.ChangeEvent{
			Timestamp: time.Now(),
			NewPrice:  75.00,
			NewCycle:  1000,
			Kind:      detector.KindInitial,
		},
		Threshold: 0.01,
	}

	text := renderMessage(note)
	if !strings.Contains(text, "Initial price") {
		t.Fatalf("初始事件应使用 initial 文案: %q", text)
	}
	if strings.Contains(text, "→") {
		t.Fatalf("初始事件不应包含价格变动箭头: %q", text)
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
