package tradeserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/liquidbook/mmbot/internal/domain"
	"github.com/liquidbook/mmbot/pkg/httpclient"
)

var log = logrus.WithField("component", "tradeserver")

// CodeAlreadySettled 撤单时返回 10 表示订单已成交/已撤，视为良性
const CodeAlreadySettled = 10

// APIError 撮合服务器返回的结构化错误
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Method  string `json:"-"`
	Pair    string `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("trade server error: method=%s pair=%s code=%d message=%s", e.Method, e.Pair, e.Code, e.Message)
}

// IsAlreadySettled 判断错误是否为「订单已结算」
func IsAlreadySettled(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == CodeAlreadySettled
	}
	return false
}

// rpcRequest JSON-RPC 风格请求体 {method, params, id}
type rpcRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
	ID     int64  `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	ID     int64           `json:"id"`
}

// Config 客户端配置
type Config struct {
	URL      string
	UserID   int64
	TakerFee string
	MakerFee string
	Source   string
	Timeout  time.Duration
}

// Client 内部撮合服务器客户端
// 每个操作包装一次出站调用：传输失败或结构化错误都拒绝并携带上下文
type Client struct {
	http   *httpclient.Client
	cfg    Config
	nextID atomic.Int64
}

// NewClient 创建撮合服务器客户端
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		http: httpclient.NewClient(cfg.URL, httpclient.Options{Timeout: cfg.Timeout}),
		cfg:  cfg,
	}
}

// UserID 做市账户 id
func (c *Client) UserID() int64 {
	return c.cfg.UserID
}

// call 发送一次 RPC；非 2xx 与 error 字段都视为失败
func (c *Client) call(ctx context.Context, method string, pair string, params []any, out any) error {
	req := rpcRequest{Method: method, Params: params, ID: c.nextID.Add(1)}

	var resp rpcResponse
	httpResp, err := c.http.PostJSON(ctx, "/", req, &resp)
	if err := httpclient.CheckResponse(httpResp, err); err != nil {
		return errors.Wrapf(err, "rpc %s pair=%s", method, pair)
	}
	if resp.Error != nil {
		return &APIError{Code: resp.Error.Code, Message: resp.Error.Message, Method: method, Pair: pair}
	}
	if out != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return errors.Wrapf(err, "rpc %s pair=%s: decode result", method, pair)
		}
	}
	return nil
}

// PutLimit 挂一笔限价单
func (c *Client) PutLimit(ctx context.Context, pair string, side domain.Side, amount, price string) (domain.Order, error) {
	params := []any{c.cfg.UserID, pair, int(side), amount, price, c.cfg.TakerFee, c.cfg.MakerFee, c.cfg.Source}
	var order domain.Order
	if err := c.call(ctx, "order.put_limit", pair, params, &order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// Cancel 撤一笔订单；code 10（已结算）视为成功
func (c *Client) Cancel(ctx context.Context, pair string, orderID uint64) error {
	err := c.call(ctx, "order.cancel", pair, []any{c.cfg.UserID, pair, orderID}, nil)
	if err != nil && IsAlreadySettled(err) {
		log.Debugf("撤单时订单已结算: pair=%s order=%d", pair, orderID)
		return nil
	}
	return err
}

type pendingResult struct {
	Records []domain.Order `json:"records"`
}

// Pending 拉取本账户当前挂单
func (c *Client) Pending(ctx context.Context, pair string, offset, limit int) ([]domain.Order, error) {
	var result pendingResult
	if err := c.call(ctx, "order.pending", pair, []any{c.cfg.UserID, pair, offset, limit}, &result); err != nil {
		return nil, err
	}
	return result.Records, nil
}

// PendingAll 分页拉取全部挂单
func (c *Client) PendingAll(ctx context.Context, pair string) ([]domain.Order, error) {
	const pageSize = 100
	var all []domain.Order
	for offset := 0; ; offset += pageSize {
		page, err := c.Pending(ctx, pair, offset, pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

// BookRecord 撮合服务器盘口记录
type BookRecord struct {
	ID     uint64 `json:"id"`
	Price  string `json:"price"`
	Amount string `json:"amount"`
}

type bookResult struct {
	Orders []BookRecord `json:"orders"`
}

// Book 查询撮合服务器单侧盘口
func (c *Client) Book(ctx context.Context, pair string, side domain.Side, offset, limit int) ([]BookRecord, error) {
	var result bookResult
	if err := c.call(ctx, "order.book", pair, []any{pair, int(side), offset, limit}, &result); err != nil {
		return nil, err
	}
	return result.Orders, nil
}

// BalanceQuery 查询账户余额，返回 currency -> {available, freeze}
func (c *Client) BalanceQuery(ctx context.Context) (map[string]Balance, error) {
	var result map[string]Balance
	if err := c.call(ctx, "balance.query", "", []any{c.cfg.UserID}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Balance 单币种余额
type Balance struct {
	Available string `json:"available"`
	Freeze    string `json:"freeze"`
}

// Deposit 充值（balance.update 的 deposit 业务）
// operationID 用于幂等去重，由调用方保证唯一
func (c *Client) Deposit(ctx context.Context, currency string, operationID int64, amount string) error {
	params := []any{c.cfg.UserID, currency, "deposit", operationID, amount, map[string]any{}}
	return c.call(ctx, "balance.update", "", params, nil)
}

// MarketInfo 撮合服务器支持的市场
type MarketInfo struct {
	Name  string `json:"name"`
	Stock string `json:"stock"`
	Money string `json:"money"`
}

// MarketList 列出撮合服务器可用交易对
func (c *Client) MarketList(ctx context.Context) ([]MarketInfo, error) {
	var result []MarketInfo
	if err := c.call(ctx, "market.list", "", []any{}, &result); err != nil {
		return nil, err
	}
	return result, nil
}
