package gateway

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/liquidbook/mmbot/internal/domain"
	"github.com/liquidbook/mmbot/internal/exchange"
	"github.com/liquidbook/mmbot/internal/tradeserver"
	"github.com/liquidbook/mmbot/pkg/cache"
)

var log = logrus.WithField("component", "gateway")

// marketListTTL 市场列表变化极少，短缓存挡掉管理 API 的重复查询
const marketListTTL = 30 * time.Second

// Gateway 把外部交易所深度源和内部撮合服务器拼成引擎需要的统一出口
type Gateway struct {
	trade     *tradeserver.Client
	exchanges *exchange.Manager
	markets   cache.Cache[string, []string]
}

// New 创建网关
func New(trade *tradeserver.Client, exchanges *exchange.Manager) *Gateway {
	return &Gateway{
		trade:     trade,
		exchanges: exchanges,
		markets:   cache.NewInMemoryCache[string, []string](marketListTTL),
	}
}

// GetReferenceOrderBook 外部交易所参考盘口
func (g *Gateway) GetReferenceOrderBook(ctx context.Context, exchangeName, pair string) (*domain.ReferenceOrderBook, error) {
	return g.exchanges.GetReferenceOrderBook(ctx, exchangeName, pair)
}

// GetOpenOrders 本账户在撮合服务器上的全部挂单
func (g *Gateway) GetOpenOrders(ctx context.Context, pair string) ([]domain.Order, error) {
	return g.trade.PendingAll(ctx, pair)
}

// PlaceLimitOrder 挂限价单
func (g *Gateway) PlaceLimitOrder(ctx context.Context, pair string, side domain.Side, amount, price string) (domain.Order, error) {
	return g.trade.PutLimit(ctx, pair, side, amount, price)
}

// PlaceMarketOrder 市价单
// 撮合服务器尚不支持真实市价单，这里显式模拟为总是成功
// 保持模拟而非落地真实调用是当前的明确选择，切换时只改这一处
func (g *Gateway) PlaceMarketOrder(ctx context.Context, pair string, side domain.Side, amount string) error {
	_ = ctx
	log.Infof("[simulated] 市价单: pair=%s side=%s amount=%s ts=%d", pair, side, amount, time.Now().Unix())
	return nil
}

// CancelOrder 撤单；「已结算」错误在 tradeserver 层已吸收
func (g *Gateway) CancelOrder(ctx context.Context, pair string, orderID uint64) error {
	return g.trade.Cancel(ctx, pair, orderID)
}

// ListAvailablePairs 撮合服务器可用交易对（短缓存）
func (g *Gateway) ListAvailablePairs(ctx context.Context) ([]string, error) {
	if pairs, ok := g.markets.Get("markets"); ok {
		return pairs, nil
	}
	markets, err := g.trade.MarketList(ctx)
	if err != nil {
		return nil, err
	}
	pairs := make([]string, 0, len(markets))
	for _, m := range markets {
		pairs = append(pairs, m.Name)
	}
	g.markets.Set("markets", pairs, 0)
	return pairs, nil
}
