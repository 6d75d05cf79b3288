package engine

import (
	"context"

	"github.com/liquidbook/mmbot/internal/domain"
)

// simulateMarketTrade 模拟一笔市价成交，使盘面看起来有有机的成交活动
// 方向按 lastActionWasSell 在买卖之间交替，避免总是打同一侧
func (e *Engine) simulateMarketTrade(ctx context.Context) {
	orders, err := e.gw.GetOpenOrders(ctx, e.pair)
	if err != nil {
		e.log.Warnf("市价模拟前拉取挂单失败: %v", err)
		return
	}
	bids, asks := domain.PartitionBySide(orders)
	if len(bids) == 0 && len(asks) == 0 {
		e.log.Debug("无挂单，跳过市价模拟")
		return
	}

	// 优先按交替方向选目标侧；只有一侧有单时直接打那一侧
	hitAsk := e.lastActionWasSell
	if len(asks) == 0 {
		hitAsk = false
	} else if len(bids) == 0 {
		hitAsk = true
	}

	if hitAsk {
		// 打最优（最低价）ask：下对手买单，金额恰好吃掉该卖单的名义价值
		best := asks[0]
		for _, o := range asks[1:] {
			if o.PriceDecimal().LessThan(best.PriceDecimal()) {
				best = o
			}
		}
		notional := domain.FormatAmount(best.Notional())
		e.log.Infof("模拟市价买入: 目标ask=%d price=%s notional=%s", best.ID, best.Price, notional)
		if err := e.gw.PlaceMarketOrder(ctx, e.pair, domain.SideBid, notional); err != nil {
			e.log.Warnf("市价买入失败: %v", err)
			return
		}
		// 本次动作是买：下次打 bid
		e.lastActionWasSell = false
		return
	}

	// 打最优（最高价）bid：卖出与该买单完全相同的数量
	best := bids[0]
	for _, o := range bids[1:] {
		if o.PriceDecimal().GreaterThan(best.PriceDecimal()) {
			best = o
		}
	}
	e.log.Infof("模拟市价卖出: 目标bid=%d price=%s amount=%s", best.ID, best.Price, best.Amount)
	if err := e.gw.PlaceMarketOrder(ctx, e.pair, domain.SideAsk, best.Amount); err != nil {
		e.log.Warnf("市价卖出失败: %v", err)
		return
	}
	e.lastActionWasSell = true
}
