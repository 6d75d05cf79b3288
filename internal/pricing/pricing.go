package pricing

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/liquidbook/mmbot/internal/domain"
)

// 加权选择常量：eps 防止距离为 0 时权重爆炸，baseWeight 保证任何订单都有非零概率
const (
	weightEpsilon = 1e-8
	baseWeight    = 0.1
)

// MarketPrice 市场价 = 参考盘口最优买卖价的中点
func MarketPrice(book *domain.ReferenceOrderBook) (decimal.Decimal, error) {
	bid, okBid := book.BestBid()
	ask, okAsk := book.BestAsk()
	if !okBid || !okAsk {
		return decimal.Zero, fmt.Errorf("reference book is one-sided: bids=%d asks=%d", len(book.Bids), len(book.Asks))
	}
	return bid.Add(ask).Div(decimal.NewFromInt(2)), nil
}

// InitialFactor 初始挂单的偏移因子：U(0,1)^2，偏向市场价附近
func InitialFactor(rng *rand.Rand) float64 {
	u := rng.Float64()
	return u * u
}

// ReplacementFactor 周期内换单的偏移因子：(0.05 + U(0,0.9))^(1/3)，偏向偏移带边缘
// 与 InitialFactor 的分布形状刻意不同，两者各自保留
func ReplacementFactor(rng *rand.Rand) float64 {
	u := 0.05 + rng.Float64()*0.9
	return math.Cbrt(u)
}

// OrderPrice 计算挂单价格
// ask: mp*(1+dev*f) + mp*gap；bid: mp*(1-dev*f) - mp*gap
// deviation/gap 为小数比例（入参前已从百分比换算），f ∈ [0,1]
func OrderPrice(side domain.Side, marketPrice decimal.Decimal, deviation, gap, f float64) decimal.Decimal {
	offset := decimal.NewFromFloat(deviation * f)
	gapD := decimal.NewFromFloat(gap)
	one := decimal.NewFromInt(1)

	if side == domain.SideAsk {
		return marketPrice.Mul(one.Add(offset)).Add(marketPrice.Mul(gapD))
	}
	return marketPrice.Mul(one.Sub(offset)).Sub(marketPrice.Mul(gapD))
}

// RandomAmount 在 [min, max] 上均匀取数量
func RandomAmount(rng *rand.Rand, min, max float64) decimal.Decimal {
	if max <= min {
		return decimal.NewFromFloat(min)
	}
	v := min + rng.Float64()*(max-min)
	return decimal.NewFromFloat(v)
}

// RandomOrderCount 初始挂单数：在 [min, min+1] 上均匀取整
func RandomOrderCount(rng *rand.Rand, minOrders int) int {
	return minOrders + rng.Intn(2)
}

// RandomDelay 周期间隔：[from, to] 秒上均匀取值，两端都为 0 时不等待
func RandomDelay(rng *rand.Rand, fromSec, toSec int) time.Duration {
	if toSec <= 0 {
		return 0
	}
	if toSec <= fromSec {
		return time.Duration(fromSec) * time.Second
	}
	span := float64(toSec - fromSec)
	return time.Duration((float64(fromSec) + rng.Float64()*span) * float64(time.Second))
}

// WeightedPick 在候选订单上做轮盘赌选择，返回被选中订单的下标
// 权重 = 1/(distance^2+eps) + base，distance 为订单价到本侧参考最优价的绝对距离
// 越贴近盘口的订单越可能被选中，但任何订单概率都不为零
func WeightedPick(rng *rand.Rand, orders []domain.Order, refBest decimal.Decimal) int {
	if len(orders) == 0 {
		return -1
	}
	if len(orders) == 1 {
		return 0
	}

	weights := make([]float64, len(orders))
	total := 0.0
	for i, o := range orders {
		d, _ := o.PriceDecimal().Sub(refBest).Abs().Float64()
		w := 1.0/(d*d+weightEpsilon) + baseWeight
		weights[i] = w
		total += w
	}

	target := rng.Float64() * total
	cum := 0.0
	for i, w := range weights {
		cum += w
		if target < cum {
			return i
		}
	}
	// 浮点累加误差兜底
	return len(orders) - 1
}
