package exchange

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/liquidbook/mmbot/internal/domain"
	"github.com/liquidbook/mmbot/pkg/httpclient"
)

// binanceSource Binance 公共深度接口
// GET /api/v3/depth?symbol=LTCUSDT&limit=50
type binanceSource struct {
	http *httpclient.Client
}

func newBinanceSource(timeout time.Duration) *binanceSource {
	return &binanceSource{
		http: httpclient.NewClient("https://api.binance.com", httpclient.Options{Timeout: timeout}),
	}
}

func (s *binanceSource) Name() string {
	return "binance"
}

// binanceDepth 原生响应: {"lastUpdateId":..., "bids":[["65.01","1.2"]...], "asks":[...]}
type binanceDepth struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// symbol LTC_USDT -> LTCUSDT
func (s *binanceSource) symbol(pair string) string {
	return strings.ToUpper(strings.ReplaceAll(pair, "_", ""))
}

func (s *binanceSource) FetchDepth(ctx context.Context, pair string) (*domain.ReferenceOrderBook, error) {
	var raw binanceDepth
	resp, err := s.http.Get(ctx, "/api/v3/depth", map[string]any{
		"symbol": s.symbol(pair),
		"limit":  50,
	}, &raw)
	if err := httpclient.CheckResponse(resp, err); err != nil {
		return nil, errors.Wrapf(err, "binance depth pair=%s", pair)
	}

	ts := time.Now().Unix()
	bids, err := parseLevels(raw.Bids, ts)
	if err != nil {
		return nil, errors.Wrapf(err, "binance depth pair=%s: bids", pair)
	}
	asks, err := parseLevels(raw.Asks, ts)
	if err != nil {
		return nil, errors.Wrapf(err, "binance depth pair=%s: asks", pair)
	}
	// Binance 已按 bids 降序 / asks 升序返回
	return &domain.ReferenceOrderBook{Bids: bids, Asks: asks}, nil
}
