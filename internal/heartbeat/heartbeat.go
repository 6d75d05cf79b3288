package heartbeat

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/liquidbook/mmbot/pkg/httpclient"
)

var log = logrus.WithField("component", "heartbeat")

// Payload 心跳协议：外部看门狗超时未收到即判定 worker 死亡
type Payload struct {
	Pair      string `json:"pair"`
	BotID     string `json:"bot_id"`
	Timestamp int64  `json:"timestamp"`
}

// Emitter 向一组 URL 发射心跳（fire-and-forget）
type Emitter struct {
	urls    []string
	clients []*httpclient.Client
	pair    string
	botID   string
}

// NewEmitter 创建心跳发射器；urls 为空时 Emit 为 no-op
func NewEmitter(urls []string, pair, botID string) *Emitter {
	e := &Emitter{urls: urls, pair: pair, botID: botID}
	for _, u := range urls {
		e.clients = append(e.clients, httpclient.NewClient(u, httpclient.Options{Timeout: 5 * time.Second}))
	}
	return e
}

// Enabled 是否配置了心跳地址
func (e *Emitter) Enabled() bool {
	return len(e.urls) > 0
}

// Emit 异步发往所有配置地址，失败只记 debug 不影响周期
func (e *Emitter) Emit(ctx context.Context) {
	if !e.Enabled() {
		return
	}
	payload := Payload{Pair: e.pair, BotID: e.botID, Timestamp: time.Now().Unix()}
	for i, c := range e.clients {
		url := e.urls[i]
		client := c
		go func() {
			resp, err := client.PostJSON(ctx, "", payload, nil)
			if err := httpclient.CheckResponse(resp, err); err != nil {
				log.Debugf("心跳发送失败: url=%s: %v", url, err)
			}
		}()
	}
}
