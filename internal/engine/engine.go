package engine

import (
	"context"
	"math/rand"
	"runtime/debug"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/liquidbook/mmbot/internal/domain"
	"github.com/liquidbook/mmbot/internal/pricing"
)

// Gateway 引擎对外唯一的 I/O 出口
// 所有操作带 ctx；传输错误与 API 错误都以 error 形式拒绝
type Gateway interface {
	GetReferenceOrderBook(ctx context.Context, exchange, pair string) (*domain.ReferenceOrderBook, error)
	GetOpenOrders(ctx context.Context, pair string) ([]domain.Order, error)
	PlaceLimitOrder(ctx context.Context, pair string, side domain.Side, amount, price string) (domain.Order, error)
	PlaceMarketOrder(ctx context.Context, pair string, side domain.Side, amount string) error
	CancelOrder(ctx context.Context, pair string, orderID uint64) error
}

// refBookRetries 参考盘口拉取的有界重试；其余操作周期内软失败，下个周期自然重试
const refBookRetries = 3

// Engine 单交易对做市周期引擎
// 单 goroutine 驱动：除网络调用外全部同步执行，不做内部加锁
type Engine struct {
	pair string
	cfg  domain.PairConfig
	gw   Gateway
	rng  *rand.Rand
	log  *logrus.Entry

	initialized bool
	// lastActionWasSell 市价成交方向交替标记：上次为卖则本次买
	lastActionWasSell bool
}

// New 创建引擎；rng 可注入用于测试，nil 时使用时间种子
func New(cfg domain.PairConfig, gw Gateway, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		pair: cfg.Pair,
		cfg:  cfg,
		gw:   gw,
		rng:  rng,
		log:  logrus.WithField("component", "engine").WithField("pair", cfg.Pair),
	}
}

// Config 当前配置快照
func (e *Engine) Config() domain.PairConfig {
	return e.cfg
}

// UpdateConfig 替换内存配置
// 不触发撤单或重新初始化，由 worker 循环围绕一次新的 Initialize 原子地完成
func (e *Engine) UpdateConfig(cfg domain.PairConfig) {
	e.cfg = cfg
	e.pair = cfg.Pair
}

// deviation/gap 配置为百分比，换算成小数
func (e *Engine) deviation() float64 {
	return e.cfg.Settings.PriceFactor / 100
}

func (e *Engine) gap() float64 {
	return e.cfg.Settings.MarketGap / 100
}

// Initialize 清掉当前挂单并铺初始盘口；重复调用为 no-op
func (e *Engine) Initialize(ctx context.Context) error {
	if e.initialized {
		e.log.Debug("引擎已初始化，跳过")
		return nil
	}

	if err := e.CancelAllOrders(ctx); err != nil {
		// 清单是尽力而为：失败的单子留给后续周期收敛
		e.log.Warnf("初始化清单失败（继续）: %v", err)
	}

	book, err := e.fetchReferenceBook(ctx)
	if err != nil {
		return err
	}
	marketPrice, err := pricing.MarketPrice(book)
	if err != nil {
		return err
	}

	count := pricing.RandomOrderCount(e.rng, e.cfg.Settings.MinOrders)
	e.log.Infof("初始铺单: count=%d marketPrice=%s", count, marketPrice.String())

	ops := make([]batchOp, 0, count)
	for i := 0; i < count; i++ {
		// 每单独立 50/50 抽侧，初始盘口可能暂时单边
		// 下个周期的数量维护会把缺的一侧补到下限
		side := domain.SideBid
		if e.rng.Float64() < 0.5 {
			side = domain.SideAsk
		}
		f := pricing.InitialFactor(e.rng)
		price := pricing.OrderPrice(side, marketPrice, e.deviation(), e.gap(), f)
		amount := pricing.RandomAmount(e.rng, e.cfg.Settings.TradeAmountMin, e.cfg.Settings.TradeAmountMax)
		ops = append(ops, e.placeOp(side, amount, price))
	}
	runBatch(ctx, e.log, "initial-orders", ops)

	e.initialized = true
	return nil
}

// Shutdown 撤掉全部挂单（worker 退出前的 drain 路径）
func (e *Engine) Shutdown(ctx context.Context) error {
	e.initialized = false
	return e.CancelAllOrders(ctx)
}

// CancelAllOrders 并发撤掉本交易对的全部挂单，个别失败不阻断其余
func (e *Engine) CancelAllOrders(ctx context.Context) error {
	orders, err := e.gw.GetOpenOrders(ctx, e.pair)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		return nil
	}
	e.log.Infof("撤掉全部挂单: count=%d", len(orders))

	ops := make([]batchOp, 0, len(orders))
	for _, o := range orders {
		ops = append(ops, e.cancelOp(o))
	}
	runBatch(ctx, e.log, "cancel-all", ops)
	return nil
}

// RunSingleCycle 执行一个做市周期
// 周期内任何 panic 都被捕获并带栈记录，worker 不崩溃
func (e *Engine) RunSingleCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Errorf("周期内 panic 已恢复: %v\n%s", r, debug.Stack())
		}
	}()

	book, err := e.fetchReferenceBook(ctx)
	if err != nil {
		// 重试耗尽：记录并跳过本周期
		e.log.Warnf("参考盘口拉取失败，跳过本周期: %v", err)
		return
	}

	marketPrice, err := pricing.MarketPrice(book)
	if err != nil {
		e.log.Warnf("市场价计算失败，跳过本周期: %v", err)
		return
	}

	orders, err := e.gw.GetOpenOrders(ctx, e.pair)
	if err != nil {
		e.log.Warnf("拉取自身挂单失败，跳过本周期: %v", err)
		return
	}
	bids, asks := domain.PartitionBySide(orders)

	// 顺序保证：数量维护先完成并等待，再执行概率动作
	e.maintainOrderCount(ctx, marketPrice, bids, asks)
	e.performRandomAction(ctx, marketPrice, book)
}

// fetchReferenceBook 拉取参考盘口，带随机退避的有界重试
func (e *Engine) fetchReferenceBook(ctx context.Context) (*domain.ReferenceOrderBook, error) {
	var lastErr error
	for attempt := 1; attempt <= refBookRetries; attempt++ {
		book, err := e.gw.GetReferenceOrderBook(ctx, e.cfg.Exchange, e.pair)
		if err == nil {
			return book, nil
		}
		lastErr = err
		if attempt < refBookRetries {
			backoff := time.Duration(200+e.rng.Intn(500)) * time.Millisecond
			e.log.Debugf("参考盘口重试 %d/%d（%s 后）: %v", attempt, refBookRetries, backoff, err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

// sortWorstFirst 把一侧订单按「最偏离盘面」排前
// bid 按价格升序（先撤最便宜的），ask 按价格降序（先撤最贵的）
func sortWorstFirst(side domain.Side, orders []domain.Order) []domain.Order {
	sorted := make([]domain.Order, len(orders))
	copy(sorted, orders)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i].PriceDecimal(), sorted[j].PriceDecimal()
		if side == domain.SideBid {
			return a.LessThan(b)
		}
		return a.GreaterThan(b)
	})
	return sorted
}

// maintainOrderCount 把每侧挂单数维护进 [min, min+1]
func (e *Engine) maintainOrderCount(ctx context.Context, marketPrice decimal.Decimal, bids, asks []domain.Order) {
	min := e.cfg.Settings.MinOrders
	max := e.cfg.Settings.MaxOrders()

	var ops []batchOp
	for _, sideOrders := range []struct {
		side   domain.Side
		orders []domain.Order
	}{
		{domain.SideBid, bids},
		{domain.SideAsk, asks},
	} {
		count := len(sideOrders.orders)
		switch {
		case count < min:
			// 低于下限：补到下限
			missing := min - count
			e.log.Infof("补单: side=%s count=%d missing=%d", sideOrders.side, count, missing)
			for i := 0; i < missing; i++ {
				f := pricing.ReplacementFactor(e.rng)
				price := pricing.OrderPrice(sideOrders.side, marketPrice, e.deviation(), e.gap(), f)
				amount := pricing.RandomAmount(e.rng, e.cfg.Settings.TradeAmountMin, e.cfg.Settings.TradeAmountMax)
				ops = append(ops, e.placeOp(sideOrders.side, amount, price))
			}
		case count > max:
			// 高于上限：撤掉最偏离盘面的恰好多出的数量
			excess := count - max
			sorted := sortWorstFirst(sideOrders.side, sideOrders.orders)
			e.log.Infof("修剪挂单: side=%s count=%d excess=%d", sideOrders.side, count, excess)
			for i := 0; i < excess; i++ {
				ops = append(ops, e.cancelOp(sorted[i]))
			}
		}
	}
	runBatch(ctx, e.log, "maintain-count", ops)
}

// placeOp 生成一个限价挂单批处理操作
func (e *Engine) placeOp(side domain.Side, amount, price decimal.Decimal) batchOp {
	amountStr := domain.FormatAmount(amount)
	priceStr := domain.FormatPrice(price)
	return func(ctx context.Context) error {
		_, err := e.gw.PlaceLimitOrder(ctx, e.pair, side, amountStr, priceStr)
		return err
	}
}

// cancelOp 生成一个撤单批处理操作
func (e *Engine) cancelOp(o domain.Order) batchOp {
	return func(ctx context.Context) error {
		return e.gw.CancelOrder(ctx, e.pair, o.ID)
	}
}
