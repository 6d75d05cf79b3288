package domain

import (
	"github.com/shopspring/decimal"
)

// BookLevel 外部参考盘口的一档 (price, amount, ts)
type BookLevel struct {
	Price     decimal.Decimal
	Amount    decimal.Decimal
	Timestamp int64
}

// ReferenceOrderBook 外部交易所参考盘口
// 每个周期重新拉取，只读消费，不跨周期缓存
type ReferenceOrderBook struct {
	Bids []BookLevel // 按价格从高到低
	Asks []BookLevel // 按价格从低到高
}

// BestBid 最优买价
func (b *ReferenceOrderBook) BestBid() (decimal.Decimal, bool) {
	if len(b.Bids) == 0 {
		return decimal.Zero, false
	}
	return b.Bids[0].Price, true
}

// BestAsk 最优卖价
func (b *ReferenceOrderBook) BestAsk() (decimal.Decimal, bool) {
	if len(b.Asks) == 0 {
		return decimal.Zero, false
	}
	return b.Asks[0].Price, true
}

// Empty 盘口任一侧为空即视为不可用
func (b *ReferenceOrderBook) Empty() bool {
	return len(b.Bids) == 0 || len(b.Asks) == 0
}
