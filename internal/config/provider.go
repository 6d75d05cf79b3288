package config

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/liquidbook/mmbot/internal/domain"
	"github.com/liquidbook/mmbot/internal/registry"
)

// ErrPairNotConfigured 交易对在配置文档中不存在
var ErrPairNotConfigured = fmt.Errorf("pair not configured")

// Provider 交易对配置的读通缓存提供者
// 配置被视为最终一致：每个读取点重新拉快照，不持有长期副本
// 短 TTL + 文件 mtime 失效，避免每个 1s 睡眠切片都打磁盘
type Provider struct {
	path string
	ttl  time.Duration

	mu       sync.Mutex
	doc      *registry.Document
	loadedAt time.Time
	modTime  time.Time
}

// NewProvider 创建配置提供者；ttl<=0 时使用 2s
func NewProvider(path string, ttl time.Duration) *Provider {
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	return &Provider{path: path, ttl: ttl}
}

// snapshot 返回当前文档（命中缓存或重新加载）
func (p *Provider) snapshot() (*registry.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if p.doc != nil && now.Sub(p.loadedAt) < p.ttl {
		return p.doc, nil
	}

	// TTL 过期后先看 mtime，没变就只刷新时间戳
	if fi, err := os.Stat(p.path); err == nil && p.doc != nil && fi.ModTime().Equal(p.modTime) {
		p.loadedAt = now
		return p.doc, nil
	}

	doc, err := registry.LoadDocument(p.path)
	if err != nil {
		// 读失败时退回旧快照（最终一致，下个读取点再试）
		if p.doc != nil {
			return p.doc, nil
		}
		return nil, err
	}
	p.doc = doc
	p.loadedAt = now
	if fi, err := os.Stat(p.path); err == nil {
		p.modTime = fi.ModTime()
	}
	return doc, nil
}

// Invalidate 强制下次读取重新加载
func (p *Provider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc = nil
}

// Get 返回单个交易对的配置快照
func (p *Provider) Get(pair string) (domain.PairConfig, error) {
	doc, err := p.snapshot()
	if err != nil {
		return domain.PairConfig{}, err
	}
	e, ok := doc.Bots[pair]
	if !ok {
		return domain.PairConfig{}, ErrPairNotConfigured
	}
	return e.Config, nil
}

// BotID 返回交易对绑定的 bot id（心跳上报使用）
func (p *Provider) BotID(pair string) (string, error) {
	doc, err := p.snapshot()
	if err != nil {
		return "", err
	}
	e, ok := doc.Bots[pair]
	if !ok {
		return "", ErrPairNotConfigured
	}
	return e.BotID, nil
}

// ActivePairs 返回当前激活的交易对集合（排序稳定）
func (p *Provider) ActivePairs() ([]string, error) {
	doc, err := p.snapshot()
	if err != nil {
		return nil, err
	}
	var out []string
	for pair, e := range doc.Bots {
		if e.Config.Active {
			out = append(out, pair)
		}
	}
	sort.Strings(out)
	return out, nil
}
