package worker

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/liquidbook/mmbot/internal/config"
	"github.com/liquidbook/mmbot/internal/domain"
	"github.com/liquidbook/mmbot/internal/registry"
	"github.com/liquidbook/mmbot/internal/supervisor"
)

// cycleGateway 内存网关：订单常驻 map，统计周期活动
type cycleGateway struct {
	mu     sync.Mutex
	orders map[uint64]domain.Order
	nextID uint64
	placed int
}

func newCycleGateway() *cycleGateway {
	return &cycleGateway{orders: map[uint64]domain.Order{}}
}

func (g *cycleGateway) GetReferenceOrderBook(_ context.Context, _, _ string) (*domain.ReferenceOrderBook, error) {
	return &domain.ReferenceOrderBook{
		Bids: []domain.BookLevel{{Price: decimal.RequireFromString("64.9")}},
		Asks: []domain.BookLevel{{Price: decimal.RequireFromString("65.1")}},
	}, nil
}

func (g *cycleGateway) GetOpenOrders(_ context.Context, _ string) ([]domain.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.Order, 0, len(g.orders))
	for _, o := range g.orders {
		out = append(out, o)
	}
	return out, nil
}

func (g *cycleGateway) PlaceLimitOrder(_ context.Context, _ string, side domain.Side, amount, price string) (domain.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	o := domain.Order{ID: g.nextID, Side: side, Price: price, Amount: amount}
	g.orders[o.ID] = o
	g.placed++
	return o, nil
}

func (g *cycleGateway) PlaceMarketOrder(_ context.Context, _ string, _ domain.Side, _ string) error {
	return nil
}

func (g *cycleGateway) CancelOrder(_ context.Context, _ string, orderID uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.orders, orderID)
	return nil
}

func (g *cycleGateway) openCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.orders)
}

func (g *cycleGateway) placedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.placed
}

func writeWorkerRegistry(t *testing.T, path string, active bool) {
	t.Helper()
	doc := registry.Document{Bots: map[string]registry.Entry{
		"LTC_USDT": {
			BotID: "bot-1",
			Config: domain.PairConfig{
				Pair:     "LTC_USDT",
				Exchange: "binance",
				Active:   active,
				Settings: domain.PairSettings{
					TradeAmountMin: 1,
					TradeAmountMax: 2,
					FrequencyFrom:  1,
					FrequencyTo:    1,
					PriceFactor:    1,
					MarketGap:      0.5,
					MinOrders:      2,
				},
			},
		},
	}}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}

func newTestWorker(t *testing.T, active bool) (*Worker, *cycleGateway, string) {
	t.Helper()
	dir := t.TempDir()
	regPath := filepath.Join(dir, "bots.json")
	writeWorkerRegistry(t, regPath, active)

	appCfg := &config.AppConfig{
		TradeServerURL: "http://localhost:1",
		UserID:         1,
		RegistryPath:   regPath,
		RunDir:         filepath.Join(dir, "run"),
	}
	gw := newCycleGateway()
	provider := config.NewProvider(regPath, time.Millisecond)
	return New("LTC_USDT", appCfg, provider, gw), gw, regPath
}

func TestRunExitsWhenInactive(t *testing.T) {
	w, gw, _ := newTestWorker(t, false)

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if gw.placedCount() != 0 {
		t.Fatal("inactive worker must not trade")
	}
}

func TestRunUnknownPair(t *testing.T) {
	w, _, _ := newTestWorker(t, true)
	w.pair = "NOPE_USDT"
	if err := w.Run(context.Background()); err == nil {
		t.Fatal("expected error for unconfigured pair")
	}
}

func TestRunDrainsOnContextCancel(t *testing.T) {
	w, gw, _ := newTestWorker(t, true)

	// worker 退出前必须删掉自己的 PID 文件
	if err := supervisor.WritePIDFile(w.appCfg.RunDir, w.pair, os.Getpid()); err != nil {
		t.Fatalf("write pid file: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// 给足时间完成初始化并跑起周期
	time.Sleep(300 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not exit on cancel")
	}

	if gw.placedCount() == 0 {
		t.Fatal("worker never placed orders")
	}
	// 排空保证：退出后远端不留挂单
	if n := gw.openCount(); n != 0 {
		t.Fatalf("orders left after drain: %d", n)
	}
	if pid, _ := supervisor.ReadPIDFile(w.appCfg.RunDir, w.pair); pid != 0 {
		t.Fatalf("pid file survived exit: %d", pid)
	}
}

func TestRunExitsOnDeactivation(t *testing.T) {
	w, _, regPath := newTestWorker(t, true)

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	time.Sleep(200 * time.Millisecond)
	// 注册表里停用交易对，worker 要在一个检查点内自己退出
	writeWorkerRegistry(t, regPath, false)
	w.TriggerReload()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not exit after deactivation")
	}
}
