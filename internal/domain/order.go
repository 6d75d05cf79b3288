package domain

import (
	"github.com/shopspring/decimal"
)

// Side 订单方向
// 数值与撮合服务器协议一致：1=ask（卖），2=bid（买）
type Side int

const (
	SideAsk Side = 1
	SideBid Side = 2
)

func (s Side) String() string {
	switch s {
	case SideAsk:
		return "ask"
	case SideBid:
		return "bid"
	default:
		return "unknown"
	}
}

// Opposite 返回对手方向
func (s Side) Opposite() Side {
	if s == SideAsk {
		return SideBid
	}
	return SideAsk
}

// 金额统一用定点小数字符串传输，避免跨语言浮点漂移
// 价格 12 位小数，数量 8 位小数
const (
	PricePrecision  = 12
	AmountPrecision = 8
)

// FormatPrice 格式化价格为 12 位小数字符串
func FormatPrice(p decimal.Decimal) string {
	return p.StringFixed(PricePrecision)
}

// FormatAmount 格式化数量为 8 位小数字符串
func FormatAmount(a decimal.Decimal) string {
	return a.StringFixed(AmountPrecision)
}

// Order 撮合服务器上的一笔挂单
// 订单完全存活在远端，这里只是单个周期内的瞬时快照
type Order struct {
	ID     uint64 `json:"id"`
	Side   Side   `json:"side"`
	Price  string `json:"price"`  // 12 位小数字符串
	Amount string `json:"amount"` // 8 位小数字符串
	User   int64  `json:"user"`
}

// PriceDecimal 解析订单价格
func (o Order) PriceDecimal() decimal.Decimal {
	d, _ := decimal.NewFromString(o.Price)
	return d
}

// AmountDecimal 解析订单数量
func (o Order) AmountDecimal() decimal.Decimal {
	d, _ := decimal.NewFromString(o.Amount)
	return d
}

// Notional 订单名义价值 = amount * price
func (o Order) Notional() decimal.Decimal {
	return o.AmountDecimal().Mul(o.PriceDecimal())
}

// PartitionBySide 按方向拆分订单
func PartitionBySide(orders []Order) (bids, asks []Order) {
	for _, o := range orders {
		if o.Side == SideBid {
			bids = append(bids, o)
		} else {
			asks = append(asks, o)
		}
	}
	return bids, asks
}
