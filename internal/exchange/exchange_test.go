package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/liquidbook/mmbot/pkg/httpclient"
)

func TestManagerUnknownExchange(t *testing.T) {
	m := NewManager(time.Second)
	_, err := m.GetReferenceOrderBook(context.Background(), "kraken", "LTC_USDT")
	if err == nil {
		t.Fatal("expected error for unknown exchange")
	}
	// 配置错误要能按类型识别，worker 据此 fail fast 而不是重试
	if _, ok := err.(*ErrUnknownExchange); !ok {
		t.Fatalf("expected *ErrUnknownExchange, got %T: %v", err, err)
	}
}

func TestManagerCaseInsensitive(t *testing.T) {
	m := NewManager(time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"bids": [["1", "1"]], "asks": [["2", "1"]]}`))
	}))
	defer srv.Close()
	m.Register(&binanceSource{http: httpclient.NewClient(srv.URL, httpclient.Options{Timeout: time.Second})})

	// 交易所名大小写不敏感
	for _, name := range []string{"binance", "Binance", "BINANCE"} {
		if _, err := m.GetReferenceOrderBook(context.Background(), name, "LTC_USDT"); err != nil {
			t.Fatalf("lookup %s failed: %v", name, err)
		}
	}
}

func TestBinanceFetchDepth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/depth" {
			t.Errorf("path got=%s", r.URL.Path)
		}
		// LTC_USDT -> LTCUSDT
		if got := r.URL.Query().Get("symbol"); got != "LTCUSDT" {
			t.Errorf("symbol got=%s want=LTCUSDT", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"lastUpdateId": 1027024,
			"bids": [["64.90", "3.5"], ["64.80", "1.0"]],
			"asks": [["65.10", "2.0"], ["65.20", "4.2"]]
		}`))
	}))
	defer srv.Close()

	s := &binanceSource{http: httpclient.NewClient(srv.URL, httpclient.Options{Timeout: time.Second})}
	book, err := s.FetchDepth(context.Background(), "LTC_USDT")
	if err != nil {
		t.Fatalf("FetchDepth error: %v", err)
	}
	if len(book.Bids) != 2 || len(book.Asks) != 2 {
		t.Fatalf("levels got bids=%d asks=%d", len(book.Bids), len(book.Asks))
	}
	bid, _ := book.BestBid()
	ask, _ := book.BestAsk()
	if !bid.Equal(decimal.RequireFromString("64.90")) || !ask.Equal(decimal.RequireFromString("65.10")) {
		t.Fatalf("best prices got bid=%s ask=%s", bid, ask)
	}
	if !book.Bids[0].Amount.Equal(decimal.RequireFromString("3.5")) {
		t.Fatalf("bid amount got=%s", book.Bids[0].Amount)
	}
}

func TestBinanceBadPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"bids": [["not-a-number", "1"]], "asks": []}`))
	}))
	defer srv.Close()

	s := &binanceSource{http: httpclient.NewClient(srv.URL, httpclient.Options{Timeout: time.Second})}
	if _, err := s.FetchDepth(context.Background(), "LTC_USDT"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestHitBTCFetchDepth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/3/public/orderbook/LTCUSDT" {
			t.Errorf("path got=%s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"timestamp": "2026-08-31T10:00:00Z",
			"ask": [["65.11", "1.5"]],
			"bid": [["64.89", "2.5"]]
		}`))
	}))
	defer srv.Close()

	s := &hitbtcSource{http: httpclient.NewClient(srv.URL, httpclient.Options{Timeout: time.Second})}
	book, err := s.FetchDepth(context.Background(), "LTC_USDT")
	if err != nil {
		t.Fatalf("FetchDepth error: %v", err)
	}
	bid, _ := book.BestBid()
	ask, _ := book.BestAsk()
	if !bid.Equal(decimal.RequireFromString("64.89")) || !ask.Equal(decimal.RequireFromString("65.11")) {
		t.Fatalf("best prices got bid=%s ask=%s", bid, ask)
	}
	// 响应里的 RFC3339 时间戳要透传到档位上
	want := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC).Unix()
	if book.Bids[0].Timestamp != want {
		t.Fatalf("timestamp got=%d want=%d", book.Bids[0].Timestamp, want)
	}
}

func TestFetchDepthUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"msg":"rate limited"}`, http.StatusTeapot)
	}))
	defer srv.Close()

	s := &binanceSource{http: httpclient.NewClient(srv.URL, httpclient.Options{Timeout: time.Second})}
	if _, err := s.FetchDepth(context.Background(), "LTC_USDT"); err == nil {
		t.Fatal("expected error on non-2xx")
	}
}

func TestParseLevelsSkipsShortEntries(t *testing.T) {
	levels, err := parseLevels([][]string{{"65.1", "2"}, {"65.2"}}, 0)
	if err != nil {
		t.Fatalf("parseLevels error: %v", err)
	}
	if len(levels) != 1 {
		t.Fatalf("levels got=%d want=1 (short entry skipped)", len(levels))
	}
}
