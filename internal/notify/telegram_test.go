package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTelegramText_EscapesAndEmphasizes(t *testing.T) {
	got := telegramText(Message{
		Headline: "Rate <changed>",
		Fields:   []Field{{Title: "USD", Value: "1,470 & up", Emphasized: true}},
		Footer:   "naver",
	})
	want := "<b>Rate &lt;changed&gt;</b>\nUSD: <b>1,470 &amp; up</b>\n<i>naver</i>"
	if got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
}

func TestTelegram_SendsMessage(t *testing.T) {
	var body string
	var path string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"result": map[string]any{
				"message_id": 1,
				"date":       0,
				"chat":       map[string]any{"id": 42, "type": "private"},
			},
		})
	}))
	defer ts.Close()

	tg, err := NewTelegram("123:abc", ts.URL)
	if err != nil {
		t.Fatalf("NewTelegram: %v", err)
	}
	if err := tg.Chat(42).Deliver(context.Background(), Message{Headline: "hello"}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if !strings.HasSuffix(path, "/sendMessage") {
		t.Fatalf("unexpected path %q", path)
	}
	if !strings.Contains(body, "hello") {
		t.Fatalf("body missing text: %s", body)
	}
}

func TestTelegram_EmptyToken(t *testing.T) {
	if _, err := NewTelegram(" ", ""); err == nil {
		t.Fatalf("expected error")
	}
}
