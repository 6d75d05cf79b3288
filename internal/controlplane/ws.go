package controlplane

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// statusPushInterval 状态推送间隔
const statusPushInterval = 2 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 管理 API 只在内网使用
	CheckOrigin: func(r *http.Request) bool { return true },
}

// statusFrame 推送给前端的一帧状态
type statusFrame struct {
	Timestamp int64 `json:"timestamp"`
	Workers   any   `json:"workers"`
}

// handleStatusWS 把 supervisor 的 worker 快照按固定间隔推给订阅方
func (s *Server) handleStatusWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("websocket 升级失败: %v", err)
		return
	}
	defer conn.Close()

	// 读循环只用于感知对端关闭
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(statusPushInterval)
	defer ticker.Stop()

	for {
		frame := statusFrame{
			Timestamp: time.Now().Unix(),
			Workers:   s.sup.Snapshot(),
		}
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(frame); err != nil {
			return
		}
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
