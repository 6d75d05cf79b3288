package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetWithParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "LTCUSDT" {
			t.Errorf("symbol got=%s", got)
		}
		if got := r.URL.Query().Get("limit"); got != "50" {
			t.Errorf("limit got=%s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value": 7}`))
	}))
	defer srv.Close()

	var out struct {
		Value int `json:"value"`
	}
	c := NewClient(srv.URL, Options{Timeout: time.Second})
	resp, err := c.Get(context.Background(), "/depth", map[string]any{"symbol": "LTCUSDT", "limit": 50}, &out)
	if err := CheckResponse(resp, err); err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if out.Value != 7 {
		t.Fatalf("value got=%d", out.Value)
	}
}

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type got=%s", ct)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["method"] != "order.cancel" {
			t.Errorf("body got=%v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Options{Timeout: time.Second})
	var out map[string]any
	resp, err := c.PostJSON(context.Background(), "/", map[string]any{"method": "order.cancel"}, &out)
	if err := CheckResponse(resp, err); err != nil {
		t.Fatalf("PostJSON error: %v", err)
	}
	if out["ok"] != true {
		t.Fatalf("out got=%v", out)
	}
}

func TestCheckResponseNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"nope"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Options{Timeout: time.Second})
	resp, err := c.Get(context.Background(), "/", nil, nil)
	if err := CheckResponse(resp, err); err == nil {
		t.Fatal("expected error on 403")
	}
}

func TestContextCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewClient(srv.URL, Options{Timeout: 10 * time.Second})
	_, err := c.Get(ctx, "/", nil, nil)
	if err == nil {
		t.Fatal("expected context deadline error")
	}
}

func TestBaseURLTrailingSlash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ping" {
			t.Errorf("path got=%s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", Options{Timeout: time.Second})
	resp, err := c.Get(context.Background(), "/ping", nil, nil)
	if err := CheckResponse(resp, err); err != nil {
		t.Fatalf("Get error: %v", err)
	}
}
