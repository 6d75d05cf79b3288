package heartbeat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestEmitterDisabledWithoutURLs(t *testing.T) {
	e := NewEmitter(nil, "LTC_USDT", "bot-1")
	if e.Enabled() {
		t.Fatal("emitter without urls must be disabled")
	}
	// no-op，不 panic
	e.Emit(context.Background())
}

func TestEmitSendsPayload(t *testing.T) {
	got := make(chan Payload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p Payload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		got <- p
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := NewEmitter([]string{srv.URL}, "LTC_USDT", "bot-1")
	if !e.Enabled() {
		t.Fatal("emitter with urls must be enabled")
	}
	before := time.Now().Unix()
	e.Emit(context.Background())

	select {
	case p := <-got:
		if p.Pair != "LTC_USDT" || p.BotID != "bot-1" {
			t.Fatalf("payload got=%+v", p)
		}
		if p.Timestamp < before {
			t.Fatalf("timestamp %d before emit time %d", p.Timestamp, before)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("heartbeat never arrived")
	}
}

func TestEmitFanOut(t *testing.T) {
	hits := make(chan string, 2)
	mk := func(name string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits <- name
		}))
	}
	a := mk("a")
	defer a.Close()
	b := mk("b")
	defer b.Close()

	e := NewEmitter([]string{a.URL, b.URL}, "LTC_USDT", "bot-1")
	e.Emit(context.Background())

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case n := <-hits:
			seen[n] = true
		case <-time.After(3 * time.Second):
			t.Fatalf("only %d of 2 endpoints hit", len(seen))
		}
	}
	if !seen["a"] || !seen["b"] {
		t.Fatalf("fan-out incomplete: %v", seen)
	}
}
