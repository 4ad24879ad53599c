package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type stubNotifier struct {
	name  string
	err   error
	panic bool
	calls int32
}

func (s *stubNotifier) Name() string { return s.name }

func (s *stubNotifier) Send(ctx context.Context, alert Alert) error {
	atomic.AddInt32(&s.calls, 1)
	if s.panic {
		panic("boom")
	}
	return s.err
}

func TestDiscordNotifier_PostsContent(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordNotifier(srv.URL)
	err := d.Send(context.Background(), Alert{Title: "📊 SPY Alert", Message: "Price: 101.00"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["content"] != "📊 SPY Alert\nPrice: 101.00" {
		t.Errorf("content = %q", got["content"])
	}
}

func TestDiscordNotifier_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscordNotifier(srv.URL).Send(context.Background(), Alert{Message: "x"})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestWebhookNotifier(t *testing.T) {
	var payload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	at := time.Date(2026, 3, 10, 10, 0, 0, 0, time.FixedZone("EDT", -4*3600))
	err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{
		Level:   AlertInfo,
		Title:   "t",
		Message: "m",
		Symbol:  "SPY",
		State:   "LONG",
		Signals: []string{"Price reclaimed VWAP (Long)"},
		At:      at,
	})
	if err != nil {
		t.Fatal(err)
	}
	if payload["title"] != "t" || payload["message"] != "m" || payload["level"] != "INFO" {
		t.Errorf("payload = %v", payload)
	}
	if payload["symbol"] != "SPY" || payload["state"] != "LONG" {
		t.Errorf("symbol/state = %v/%v", payload["symbol"], payload["state"])
	}
	if sigs, _ := payload["signals"].([]interface{}); len(sigs) != 1 {
		t.Errorf("signals = %v", payload["signals"])
	}
	if payload["ts"] != "2026-03-10T14:00:00Z" {
		t.Errorf("ts = %v, want UTC", payload["ts"])
	}
}

func TestWebhookNotifier_StampsZeroTime(t *testing.T) {
	var payload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}))
	defer srv.Close()

	wh := NewWebhookNotifier(srv.URL)
	wh.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	if err := wh.Send(context.Background(), Alert{Title: "t"}); err != nil {
		t.Fatal(err)
	}
	if payload["ts"] != "2026-01-02T03:04:05Z" {
		t.Errorf("ts = %v", payload["ts"])
	}
}

func TestTelegramNotifier(t *testing.T) {
	var path string
	var payload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegramNotifier("TOKEN", "42")
	tg.apiBase = srv.URL
	if err := tg.Send(context.Background(), Alert{Title: "SPY <Alert>", Message: "VWAP: 100.00"}); err != nil {
		t.Fatal(err)
	}
	if path != "/botTOKEN/sendMessage" {
		t.Errorf("path = %s", path)
	}
	if payload["chat_id"] != "42" || payload["parse_mode"] != "HTML" {
		t.Errorf("payload = %v", payload)
	}
	want := "<b>SPY &lt;Alert&gt;</b>\n<pre>VWAP: 100.00</pre>"
	if payload["text"] != want {
		t.Errorf("text = %q, want %q", payload["text"], want)
	}
}

func TestTelegramNotifier_NotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	tg := NewTelegramNotifier("TOKEN", "missing")
	tg.apiBase = srv.URL
	err := tg.Send(context.Background(), Alert{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestMulti_ContinuesPastFailures(t *testing.T) {
	bad := &stubNotifier{name: "bad", err: errors.New("down")}
	good := &stubNotifier{name: "good"}
	m := NewMulti(bad, good)

	err := m.Send(context.Background(), Alert{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "bad: down") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if good.calls != 1 {
		t.Error("good notifier was skipped")
	}
	if m.Len() != 2 {
		t.Errorf("Len = %d", m.Len())
	}
}

func TestDeliver(t *testing.T) {
	ok := Deliver(context.Background(), &stubNotifier{name: "ok"}, Alert{})
	if !ok.OK || ok.Err != nil || ok.Notifier != "ok" {
		t.Errorf("unexpected result: %+v", ok)
	}

	failed := Deliver(context.Background(), &stubNotifier{name: "f", err: errors.New("nope")}, Alert{})
	if failed.OK || failed.Err == nil {
		t.Errorf("expected failure: %+v", failed)
	}

	panicked := Deliver(context.Background(), &stubNotifier{name: "p", panic: true}, Alert{})
	if panicked.OK || panicked.Err == nil || !strings.Contains(panicked.Err.Error(), "panicked") {
		t.Errorf("expected recovered panic: %+v", panicked)
	}
}

func TestAlertText(t *testing.T) {
	if got := (Alert{Title: "a", Message: "b"}).Text(); got != "a\nb" {
		t.Errorf("got %q", got)
	}
	if got := (Alert{Message: "b"}).Text(); got != "b" {
		t.Errorf("got %q", got)
	}
}
