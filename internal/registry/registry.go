package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/liquidbook/mmbot/internal/domain"
)

// Entry 注册表中的一条 bot 记录：一个交易对对应一个 bot
type Entry struct {
	BotID  string            `json:"bot_id"`
	Config domain.PairConfig `json:"config"`
}

// Document 注册表文件结构，按交易对符号索引
type Document struct {
	Bots map[string]Entry `json:"bots"`
}

// ErrPairNotFound 交易对不存在
var ErrPairNotFound = fmt.Errorf("pair not found in registry")

// ErrPairExists 交易对已存在
var ErrPairExists = fmt.Errorf("pair already exists in registry")

// Store JSON 文件注册表
// 管理 API 做薄 CRUD；supervisor 和 worker 通过 config.Provider 只读同一份文件
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore 创建注册表
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path 注册表文件路径
func (s *Store) Path() string {
	return s.path
}

// Load 读取整个文档；文件不存在时返回空文档
func (s *Store) Load() (*Document, error) {
	return LoadDocument(s.path)
}

// LoadDocument 从文件读取注册表文档
func LoadDocument(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Document{Bots: map[string]Entry{}}, nil
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	if doc.Bots == nil {
		doc.Bots = map[string]Entry{}
	}
	return &doc, nil
}

// save 原子写回：先写临时文件再 rename
func (s *Store) save(doc *Document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// List 返回全部记录（按交易对排序）
func (s *Store) List() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.Load()
	if err != nil {
		return nil, err
	}
	pairs := make([]string, 0, len(doc.Bots))
	for p := range doc.Bots {
		pairs = append(pairs, p)
	}
	sort.Strings(pairs)

	out := make([]Entry, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, doc.Bots[p])
	}
	return out, nil
}

// Get 读取单条记录
func (s *Store) Get(pair string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.Load()
	if err != nil {
		return Entry{}, err
	}
	e, ok := doc.Bots[pair]
	if !ok {
		return Entry{}, ErrPairNotFound
	}
	return e, nil
}

// Create 新建记录，交易对已存在则报错
func (s *Store) Create(cfg domain.PairConfig) (Entry, error) {
	if err := cfg.Validate(); err != nil {
		return Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.Load()
	if err != nil {
		return Entry{}, err
	}
	if _, ok := doc.Bots[cfg.Pair]; ok {
		return Entry{}, ErrPairExists
	}

	now := time.Now().UTC()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now
	e := Entry{BotID: uuid.NewString(), Config: cfg}
	doc.Bots[cfg.Pair] = e
	if err := s.save(doc); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Update 更新记录（保留 bot_id 与创建时间）
func (s *Store) Update(pair string, active bool, exchange string, settings domain.PairSettings) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.Load()
	if err != nil {
		return Entry{}, err
	}
	e, ok := doc.Bots[pair]
	if !ok {
		return Entry{}, ErrPairNotFound
	}

	e.Config.Active = active
	if exchange != "" {
		e.Config.Exchange = exchange
	}
	e.Config.Settings = settings
	e.Config.UpdatedAt = time.Now().UTC()
	if err := e.Config.Validate(); err != nil {
		return Entry{}, err
	}

	doc.Bots[pair] = e
	if err := s.save(doc); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// SetActive 仅切换激活状态
func (s *Store) SetActive(pair string, active bool) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.Load()
	if err != nil {
		return Entry{}, err
	}
	e, ok := doc.Bots[pair]
	if !ok {
		return Entry{}, ErrPairNotFound
	}
	e.Config.Active = active
	e.Config.UpdatedAt = time.Now().UTC()
	doc.Bots[pair] = e
	if err := s.save(doc); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Delete 删除记录；不存在时为 no-op
func (s *Store) Delete(pair string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.Load()
	if err != nil {
		return err
	}
	if _, ok := doc.Bots[pair]; !ok {
		return nil
	}
	delete(doc.Bots, pair)
	return s.save(doc)
}
