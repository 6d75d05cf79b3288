package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// PairSettings 单个交易对的做市参数
type PairSettings struct {
	TradeAmountMin float64 `json:"trade_amount_min"` // 单笔数量下限
	TradeAmountMax float64 `json:"trade_amount_max"` // 单笔数量上限
	FrequencyFrom  int     `json:"frequency_from"`   // 周期间隔下限（秒），0 表示不等待
	FrequencyTo    int     `json:"frequency_to"`     // 周期间隔上限（秒）
	PriceFactor    float64 `json:"price_factor"`     // 相对市场价的最大偏移（%）
	MarketGap      float64 `json:"market_gap"`       // 盘口保护间隙（%）
	MinOrders      int     `json:"min_orders"`       // 每侧目标挂单数下限，上限 = MinOrders+1

	// MarketMakerOrderProbability 每个周期模拟市价成交（而非限价单动作）的概率，0-100
	MarketMakerOrderProbability float64 `json:"market_maker_order_probability"`
}

// MaxOrders 每侧挂单数上限
func (s PairSettings) MaxOrders() int {
	return s.MinOrders + 1
}

// Validate 校验配置合法性（配置错误 fail fast，不重试）
func (s PairSettings) Validate() error {
	if s.TradeAmountMin < 0 || s.TradeAmountMax < 0 {
		return fmt.Errorf("trade amount 不能为负")
	}
	if s.TradeAmountMin > s.TradeAmountMax {
		return fmt.Errorf("trade_amount_min(%v) > trade_amount_max(%v)", s.TradeAmountMin, s.TradeAmountMax)
	}
	if s.FrequencyFrom < 0 || s.FrequencyTo < 0 {
		return fmt.Errorf("frequency 不能为负")
	}
	if s.FrequencyFrom > s.FrequencyTo {
		return fmt.Errorf("frequency_from(%d) > frequency_to(%d)", s.FrequencyFrom, s.FrequencyTo)
	}
	if s.MinOrders < 0 {
		return fmt.Errorf("min_orders 不能为负: %d", s.MinOrders)
	}
	if s.PriceFactor < 0 || s.MarketGap < 0 {
		return fmt.Errorf("price_factor/market_gap 不能为负")
	}
	if s.MarketMakerOrderProbability < 0 || s.MarketMakerOrderProbability > 100 {
		return fmt.Errorf("market_maker_order_probability 必须在 0-100: %v", s.MarketMakerOrderProbability)
	}
	return nil
}

// PairConfig 一个交易对的完整配置记录
// 由外部配置存储持有，核心每个周期只读一个快照，必须容忍两次读取之间发生变化
type PairConfig struct {
	Pair      string       `json:"pair"`
	Exchange  string       `json:"exchange"`
	Active    bool         `json:"active"`
	Settings  PairSettings `json:"settings"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Validate 校验整条配置
func (c PairConfig) Validate() error {
	if c.Pair == "" {
		return fmt.Errorf("pair 不能为空")
	}
	if c.Exchange == "" {
		return fmt.Errorf("exchange 不能为空")
	}
	return c.Settings.Validate()
}

// configHashView 参与哈希的字段（时间戳不参与：仅内容变化才触发重新初始化）
type configHashView struct {
	Pair     string       `json:"pair"`
	Exchange string       `json:"exchange"`
	Active   bool         `json:"active"`
	Settings PairSettings `json:"settings"`
}

// Hash 计算配置内容哈希
// 相同序列化内容哈希必然相等（不会误触发重新初始化），任一字段变化哈希必然不同
func (c PairConfig) Hash() string {
	view := configHashView{
		Pair:     c.Pair,
		Exchange: c.Exchange,
		Active:   c.Active,
		Settings: c.Settings,
	}
	raw, _ := json.Marshal(view)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
