package exchange

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/liquidbook/mmbot/internal/domain"
)

var log = logrus.WithField("component", "exchange")

// ErrUnknownExchange 不认识的交易所名属于配置错误，fail fast 不重试
type ErrUnknownExchange struct {
	Name string
}

func (e *ErrUnknownExchange) Error() string {
	return fmt.Sprintf("unknown exchange: %s", e.Name)
}

// DepthSource 单个外部交易所的深度数据源
// 各交易所响应结构不同，由各自适配器归一化成 ReferenceOrderBook
type DepthSource interface {
	Name() string
	FetchDepth(ctx context.Context, pair string) (*domain.ReferenceOrderBook, error)
}

// Manager 按交易所名分发深度请求
type Manager struct {
	sources map[string]DepthSource
}

// NewManager 创建交易所管理器，注册内置适配器
func NewManager(timeout time.Duration) *Manager {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	m := &Manager{sources: map[string]DepthSource{}}
	m.Register(newBinanceSource(timeout))
	m.Register(newHitBTCSource(timeout))
	return m
}

// Register 注册一个深度数据源
func (m *Manager) Register(s DepthSource) {
	m.sources[strings.ToLower(s.Name())] = s
}

// GetReferenceOrderBook 拉取指定交易所的参考盘口
func (m *Manager) GetReferenceOrderBook(ctx context.Context, exchange, pair string) (*domain.ReferenceOrderBook, error) {
	s, ok := m.sources[strings.ToLower(exchange)]
	if !ok {
		return nil, &ErrUnknownExchange{Name: exchange}
	}
	book, err := s.FetchDepth(ctx, pair)
	if err != nil {
		return nil, err
	}
	if book.Empty() {
		log.Warnf("参考盘口缺失一侧: exchange=%s pair=%s bids=%d asks=%d",
			exchange, pair, len(book.Bids), len(book.Asks))
	}
	return book, nil
}

// parseLevels 把 [[price, amount]...] 字符串档位归一化为 BookLevel
func parseLevels(raw [][]string, ts int64) ([]domain.BookLevel, error) {
	levels := make([]domain.BookLevel, 0, len(raw))
	for _, entry := range raw {
		if len(entry) < 2 {
			continue
		}
		price, err := decimal.NewFromString(entry[0])
		if err != nil {
			return nil, fmt.Errorf("bad price %q: %w", entry[0], err)
		}
		amount, err := decimal.NewFromString(entry[1])
		if err != nil {
			return nil, fmt.Errorf("bad amount %q: %w", entry[1], err)
		}
		levels = append(levels, domain.BookLevel{Price: price, Amount: amount, Timestamp: ts})
	}
	return levels, nil
}
