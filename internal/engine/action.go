package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/liquidbook/mmbot/internal/domain"
	"github.com/liquidbook/mmbot/internal/pricing"
)

// performRandomAction 每个周期恰好执行一个策略动作
// u <= 概率 → 模拟市价成交；否则按二次抽取做一次限价单变更
func (e *Engine) performRandomAction(ctx context.Context, marketPrice decimal.Decimal, book *domain.ReferenceOrderBook) {
	u := e.rng.Float64()
	if u <= e.cfg.Settings.MarketMakerOrderProbability/100 {
		e.simulateMarketTrade(ctx)
		return
	}

	// 数量维护后重新拉挂单，保证创建动作看到的计数准确
	orders, err := e.gw.GetOpenOrders(ctx, e.pair)
	if err != nil {
		e.log.Warnf("随机动作前拉取挂单失败: %v", err)
		return
	}
	bids, asks := domain.PartitionBySide(orders)
	max := e.cfg.Settings.MaxOrders()

	v := e.rng.Float64()
	switch {
	case v < 0.5:
		e.updateRandomOrder(ctx, marketPrice, book, bids, asks)
	case v < 0.75:
		if len(bids) < max {
			e.createOrder(ctx, domain.SideBid, marketPrice)
		} else {
			// 无余量时回退到换单
			e.updateRandomOrder(ctx, marketPrice, book, bids, asks)
		}
	default:
		if len(asks) < max {
			e.createOrder(ctx, domain.SideAsk, marketPrice)
		} else {
			e.updateRandomOrder(ctx, marketPrice, book, bids, asks)
		}
	}
}

// createOrder 新建一笔随机限价单
func (e *Engine) createOrder(ctx context.Context, side domain.Side, marketPrice decimal.Decimal) {
	f := pricing.ReplacementFactor(e.rng)
	price := pricing.OrderPrice(side, marketPrice, e.deviation(), e.gap(), f)
	amount := pricing.RandomAmount(e.rng, e.cfg.Settings.TradeAmountMin, e.cfg.Settings.TradeAmountMax)

	e.log.Infof("创建订单: side=%s price=%s amount=%s", side, domain.FormatPrice(price), domain.FormatAmount(amount))
	if _, err := e.gw.PlaceLimitOrder(ctx, e.pair, side, domain.FormatAmount(amount), domain.FormatPrice(price)); err != nil {
		e.log.Warnf("创建订单失败: side=%s: %v", side, err)
	}
}

// updateRandomOrder 按加权选择挑一笔现有订单换价：撤掉后在同侧以新价格重挂，数量保留
func (e *Engine) updateRandomOrder(ctx context.Context, marketPrice decimal.Decimal, book *domain.ReferenceOrderBook, bids, asks []domain.Order) {
	if len(bids)+len(asks) == 0 {
		e.log.Debug("无挂单可更新，跳过")
		return
	}

	// 随机挑一侧（只有一侧有单时用那一侧）
	side := domain.SideBid
	orders := bids
	if len(bids) == 0 || (len(asks) > 0 && e.rng.Float64() < 0.5) {
		side = domain.SideAsk
		orders = asks
	}

	refBest := marketPrice
	if side == domain.SideBid {
		if best, ok := book.BestBid(); ok {
			refBest = best
		}
	} else {
		if best, ok := book.BestAsk(); ok {
			refBest = best
		}
	}

	idx := pricing.WeightedPick(e.rng, orders, refBest)
	if idx < 0 {
		return
	}
	target := orders[idx]

	if err := e.gw.CancelOrder(ctx, e.pair, target.ID); err != nil {
		e.log.Warnf("换单撤单失败: order=%d: %v", target.ID, err)
		return
	}

	f := pricing.ReplacementFactor(e.rng)
	price := pricing.OrderPrice(side, marketPrice, e.deviation(), e.gap(), f)
	// 换单保留原数量
	e.log.Infof("换单: side=%s order=%d newPrice=%s amount=%s", side, target.ID, domain.FormatPrice(price), target.Amount)
	if _, err := e.gw.PlaceLimitOrder(ctx, e.pair, side, target.Amount, domain.FormatPrice(price)); err != nil {
		e.log.Warnf("换单重挂失败: side=%s: %v", side, err)
	}
}
