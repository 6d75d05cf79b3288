package controlplane

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/liquidbook/mmbot/internal/domain"
	"github.com/liquidbook/mmbot/internal/gateway"
	"github.com/liquidbook/mmbot/internal/registry"
	"github.com/liquidbook/mmbot/internal/supervisor"
	"github.com/liquidbook/mmbot/internal/tradeserver"
)

var log = logrus.WithField("component", "controlplane")

// Server 管理 API：注册表薄 CRUD + worker 启停 + 余额/市场透传
type Server struct {
	store *registry.Store
	sup   *supervisor.Supervisor
	gw    *gateway.Gateway
	trade *tradeserver.Client

	httpServer *http.Server
}

// NewServer 创建管理 API 服务
func NewServer(store *registry.Store, sup *supervisor.Supervisor, gw *gateway.Gateway, trade *tradeserver.Client) *Server {
	return &Server{store: store, sup: sup, gw: gw, trade: trade}
}

// Router 构建 gin 路由
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api/v1")
	{
		api.GET("/bots", s.handleListBots)
		api.POST("/bots", s.handleCreateBot)
		api.GET("/bots/:pair", s.handleGetBot)
		api.PUT("/bots/:pair", s.handleUpdateBot)
		api.DELETE("/bots/:pair", s.handleDeleteBot)

		api.POST("/bots/:pair/start", s.handleStartBot)
		api.POST("/bots/:pair/stop", s.handleStopBot)
		api.POST("/bots/:pair/restart", s.handleRestartBot)
		api.GET("/bots/:pair/status", s.handleBotStatus)

		api.GET("/markets", s.handleMarkets)
		api.GET("/balance", s.handleBalance)
		api.POST("/balance/deposit", s.handleDeposit)

		api.GET("/ws/status", s.handleStatusWS)
	}
	return r
}

// ListenAndServe 启动 HTTP 服务（阻塞）
func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.Router()}
	log.Infof("管理 API 监听: %s", addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown 优雅停止 HTTP 服务
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func writeError(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"ok": false, "error": msg})
}

// botView 返回给前端的 bot 视图：注册表记录 + 运行状态
type botView struct {
	registry.Entry
	Running bool `json:"running"`
	PID     int  `json:"pid,omitempty"`
}

func (s *Server) view(e registry.Entry) botView {
	v := botView{Entry: e}
	if st, ok := s.sup.Status(e.Config.Pair); ok && st.Alive {
		v.Running = true
		v.PID = st.PID
	}
	return v
}

func (s *Server) handleListBots(c *gin.Context) {
	entries, err := s.store.List()
	if err != nil {
		writeError(c, 500, err.Error())
		return
	}
	out := make([]botView, 0, len(entries))
	for _, e := range entries {
		out = append(out, s.view(e))
	}
	c.JSON(200, gin.H{"ok": true, "bots": out})
}

// createRequest 新建 bot 请求体
type createRequest struct {
	Pair     string              `json:"pair" binding:"required"`
	Exchange string              `json:"exchange" binding:"required"`
	Active   bool                `json:"active"`
	Settings domain.PairSettings `json:"settings"`
}

func (s *Server) handleCreateBot(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, 400, err.Error())
		return
	}

	// 交易对必须是撮合服务器认识的市场（服务器不可达时放行，延迟到 worker 报错）
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	if pairs, err := s.gw.ListAvailablePairs(ctx); err == nil {
		found := false
		for _, p := range pairs {
			if p == req.Pair {
				found = true
				break
			}
		}
		if !found {
			writeError(c, 400, "pair 不是撮合服务器上的有效市场: "+req.Pair)
			return
		}
	}

	entry, err := s.store.Create(domain.PairConfig{
		Pair:     req.Pair,
		Exchange: req.Exchange,
		Active:   req.Active,
		Settings: req.Settings,
	})
	if err != nil {
		if errors.Is(err, registry.ErrPairExists) {
			writeError(c, 409, err.Error())
			return
		}
		writeError(c, 400, err.Error())
		return
	}
	c.JSON(201, gin.H{"ok": true, "bot": s.view(entry)})
}

func (s *Server) handleGetBot(c *gin.Context) {
	entry, err := s.store.Get(c.Param("pair"))
	if err != nil {
		if errors.Is(err, registry.ErrPairNotFound) {
			writeError(c, 404, "bot not found")
			return
		}
		writeError(c, 500, err.Error())
		return
	}
	c.JSON(200, gin.H{"ok": true, "bot": s.view(entry)})
}

// updateRequest 更新请求体
type updateRequest struct {
	Exchange string              `json:"exchange"`
	Active   bool                `json:"active"`
	Settings domain.PairSettings `json:"settings"`
}

func (s *Server) handleUpdateBot(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, 400, err.Error())
		return
	}
	entry, err := s.store.Update(c.Param("pair"), req.Active, req.Exchange, req.Settings)
	if err != nil {
		if errors.Is(err, registry.ErrPairNotFound) {
			writeError(c, 404, "bot not found")
			return
		}
		writeError(c, 400, err.Error())
		return
	}
	// 配置变化由对账循环的哈希比较传导到 worker，这里不直接干预进程
	c.JSON(200, gin.H{"ok": true, "bot": s.view(entry)})
}

func (s *Server) handleDeleteBot(c *gin.Context) {
	pair := c.Param("pair")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()
	if err := s.sup.Stop(ctx, pair); err != nil {
		writeError(c, 500, err.Error())
		return
	}
	if err := s.store.Delete(pair); err != nil {
		writeError(c, 500, err.Error())
		return
	}
	c.JSON(200, gin.H{"ok": true})
}

func (s *Server) handleStartBot(c *gin.Context) {
	pair := c.Param("pair")
	if _, err := s.store.SetActive(pair, true); err != nil {
		if errors.Is(err, registry.ErrPairNotFound) {
			writeError(c, 404, "bot not found")
			return
		}
		writeError(c, 500, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()
	if err := s.sup.Start(ctx, pair); err != nil {
		writeError(c, 500, err.Error())
		return
	}
	st, _ := s.sup.Status(pair)
	c.JSON(200, gin.H{"ok": true, "pid": st.PID})
}

func (s *Server) handleStopBot(c *gin.Context) {
	pair := c.Param("pair")
	if _, err := s.store.SetActive(pair, false); err != nil {
		if errors.Is(err, registry.ErrPairNotFound) {
			writeError(c, 404, "bot not found")
			return
		}
		writeError(c, 500, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()
	if err := s.sup.Stop(ctx, pair); err != nil {
		writeError(c, 500, err.Error())
		return
	}
	c.JSON(200, gin.H{"ok": true})
}

func (s *Server) handleRestartBot(c *gin.Context) {
	pair := c.Param("pair")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()
	if err := s.sup.Stop(ctx, pair); err != nil {
		writeError(c, 500, err.Error())
		return
	}
	if _, err := s.store.SetActive(pair, true); err != nil {
		if errors.Is(err, registry.ErrPairNotFound) {
			writeError(c, 404, "bot not found")
			return
		}
		writeError(c, 500, err.Error())
		return
	}
	if err := s.sup.Start(ctx, pair); err != nil {
		writeError(c, 500, err.Error())
		return
	}
	st, _ := s.sup.Status(pair)
	c.JSON(200, gin.H{"ok": true, "pid": st.PID})
}

func (s *Server) handleBotStatus(c *gin.Context) {
	pair := c.Param("pair")
	st, running := s.sup.Status(pair)
	c.JSON(200, gin.H{"ok": true, "pair": pair, "running": running && st.Alive, "status": st})
}

func (s *Server) handleMarkets(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	pairs, err := s.gw.ListAvailablePairs(ctx)
	if err != nil {
		writeError(c, 502, err.Error())
		return
	}
	c.JSON(200, gin.H{"ok": true, "pairs": pairs})
}

func (s *Server) handleBalance(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	balances, err := s.trade.BalanceQuery(ctx)
	if err != nil {
		writeError(c, 502, err.Error())
		return
	}
	c.JSON(200, gin.H{"ok": true, "balances": balances})
}

// depositRequest 充值请求体
type depositRequest struct {
	Currency string `json:"currency" binding:"required"`
	Amount   string `json:"amount" binding:"required"`
}

func (s *Server) handleDeposit(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, 400, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	// 操作 id 用纳秒时间戳做幂等去重
	opID := time.Now().UnixNano()
	if err := s.trade.Deposit(ctx, req.Currency, opID, req.Amount); err != nil {
		writeError(c, 502, err.Error())
		return
	}
	c.JSON(200, gin.H{"ok": true, "operation_id": opID})
}
