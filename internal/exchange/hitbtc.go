package exchange

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/liquidbook/mmbot/internal/domain"
	"github.com/liquidbook/mmbot/pkg/httpclient"
)

// hitbtcSource HitBTC 公共深度接口
// GET /api/3/public/orderbook/{symbol}?depth=50
// 符号无分隔符，USD 与 USDT 视为等价
type hitbtcSource struct {
	http *httpclient.Client
}

func newHitBTCSource(timeout time.Duration) *hitbtcSource {
	return &hitbtcSource{
		http: httpclient.NewClient("https://api.hitbtc.com", httpclient.Options{Timeout: timeout}),
	}
}

func (s *hitbtcSource) Name() string {
	return "hitbtc"
}

// hitbtcDepth 原生响应: {"timestamp":"...","ask":[["65.1","3"]...],"bid":[...]}
type hitbtcDepth struct {
	Timestamp string     `json:"timestamp"`
	Ask       [][]string `json:"ask"`
	Bid       [][]string `json:"bid"`
}

func (s *hitbtcSource) symbol(pair string) string {
	return strings.ToUpper(strings.ReplaceAll(pair, "_", ""))
}

func (s *hitbtcSource) FetchDepth(ctx context.Context, pair string) (*domain.ReferenceOrderBook, error) {
	var raw hitbtcDepth
	endpoint := "/api/3/public/orderbook/" + s.symbol(pair)
	resp, err := s.http.Get(ctx, endpoint, map[string]any{"depth": 50}, &raw)
	if err := httpclient.CheckResponse(resp, err); err != nil {
		return nil, errors.Wrapf(err, "hitbtc depth pair=%s", pair)
	}

	ts := time.Now().Unix()
	if raw.Timestamp != "" {
		if t, perr := time.Parse(time.RFC3339, raw.Timestamp); perr == nil {
			ts = t.Unix()
		}
	}
	bids, err := parseLevels(raw.Bid, ts)
	if err != nil {
		return nil, errors.Wrapf(err, "hitbtc depth pair=%s: bids", pair)
	}
	asks, err := parseLevels(raw.Ask, ts)
	if err != nil {
		return nil, errors.Wrapf(err, "hitbtc depth pair=%s: asks", pair)
	}
	return &domain.ReferenceOrderBook{Bids: bids, Asks: asks}, nil
}
