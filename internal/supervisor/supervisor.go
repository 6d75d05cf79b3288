package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/liquidbook/mmbot/internal/config"
)

// startGraceDelay 启动后验活前的宽限
const startGraceDelay = 500 * time.Millisecond

// stopTimeout SIGTERM 到 SIGKILL 升级前的等待
const stopTimeout = 5 * time.Second

// WorkerRecord 一个交易对的 worker 记录
// 不变量：任意时刻每个交易对至多一个持锁存活的 worker
type WorkerRecord struct {
	Pair       string
	PID        int
	ConfigHash string
	StartedAt  time.Time

	lock *PairLock
}

// WorkerStatus 对外暴露的只读状态
type WorkerStatus struct {
	Pair       string    `json:"pair"`
	PID        int       `json:"pid"`
	Alive      bool      `json:"alive"`
	ConfigHash string    `json:"config_hash"`
	StartedAt  time.Time `json:"started_at"`
}

// Supervisor 进程生命周期管理器
// 负责 spawn/terminate worker、对账期望集合、探测配置变化并触发热重载
type Supervisor struct {
	cfg      *config.AppConfig
	cfgPath  string // 传递给 worker 的进程配置文件路径
	provider *config.Provider
	log      *logrus.Entry

	mu      sync.Mutex
	workers map[string]*WorkerRecord
}

// New 创建 supervisor
func New(cfg *config.AppConfig, cfgPath string, provider *config.Provider) *Supervisor {
	return &Supervisor{
		cfg:      cfg,
		cfgPath:  cfgPath,
		provider: provider,
		log:      logrus.WithField("component", "supervisor"),
		workers:  map[string]*WorkerRecord{},
	}
}

// Start 启动一个交易对的 worker
// 已有存活 worker 时为 no-op；启动失败释放锁并返回错误（本层不做静默重试）
func (s *Supervisor) Start(ctx context.Context, pair string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx, pair)
}

func (s *Supervisor) startLocked(ctx context.Context, pair string) error {
	if rec, ok := s.workers[pair]; ok && ProcessAlive(rec.PID) {
		s.log.Debugf("worker 已在运行: pair=%s pid=%d", pair, rec.PID)
		return nil
	}

	pairCfg, err := s.provider.Get(pair)
	if err != nil {
		return fmt.Errorf("start %s: %w", pair, err)
	}
	if err := pairCfg.Validate(); err != nil {
		return fmt.Errorf("start %s: invalid config: %w", pair, err)
	}

	// 陈旧 PID 文件（进程已死）直接回收
	if pid, err := ReadPIDFile(s.cfg.RunDir, pair); err == nil && pid > 0 {
		if ProcessAlive(pid) {
			return fmt.Errorf("start %s: 已有存活进程 pid=%d", pair, pid)
		}
		s.log.Warnf("回收陈旧 PID 文件: pair=%s pid=%d", pair, pid)
		RemovePIDFile(s.cfg.RunDir, pair)
	}

	lock, err := AcquirePairLock(s.cfg.RunDir, pair)
	if err != nil {
		return fmt.Errorf("start %s: %w", pair, err)
	}

	pid, err := s.spawnWorker(pair)
	if err != nil {
		lock.Release()
		return fmt.Errorf("start %s: spawn: %w", pair, err)
	}
	if err := WritePIDFile(s.cfg.RunDir, pair, pid); err != nil {
		s.log.Warnf("写 PID 文件失败: pair=%s: %v", pair, err)
	}

	// 宽限后验活：启动即崩的 worker 立刻报失败
	// 宽限等待期间让出互斥锁，Status/Snapshot 在多对启动时不被卡住；
	// 并发的同对 Start 会撞上已写入的 PID 文件和已持有的 flock
	s.mu.Unlock()
	time.Sleep(startGraceDelay)
	s.mu.Lock()
	if !ProcessAlive(pid) {
		lock.Release()
		RemovePIDFile(s.cfg.RunDir, pair)
		return fmt.Errorf("start %s: worker 启动后立即退出 pid=%d", pair, pid)
	}

	s.workers[pair] = &WorkerRecord{
		Pair:       pair,
		PID:        pid,
		ConfigHash: pairCfg.Hash(),
		StartedAt:  time.Now(),
		lock:       lock,
	}
	s.log.Infof("worker 已启动: pair=%s pid=%d", pair, pid)
	return nil
}

// spawnWorker 以独立进程组拉起 worker，日志重定向到每对一个的文件
func (s *Supervisor) spawnWorker(pair string) (int, error) {
	if err := os.MkdirAll(s.cfg.LogDir, 0o755); err != nil {
		return 0, err
	}
	logPath := filepath.Join(s.cfg.LogDir, sanitizePair(pair)+".log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, err
	}

	cmd := exec.Command(s.cfg.BotBin, "-pair", pair, "-config", s.cfgPath)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	// 独立进程组：worker 与 supervisor 故障域隔离
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		return 0, err
	}
	pid := cmd.Process.Pid

	// Wait 只在 worker 退出时触发：回收进程并清理记录
	go func() {
		waitErr := cmd.Wait()
		_ = logFile.Close()
		s.mu.Lock()
		defer s.mu.Unlock()
		rec, ok := s.workers[pair]
		if !ok || rec.PID != pid {
			return
		}
		s.log.Infof("worker 已退出: pair=%s pid=%d err=%v", pair, pid, waitErr)
		rec.lock.Release()
		RemovePIDFile(s.cfg.RunDir, pair)
		delete(s.workers, pair)
	}()

	return pid, nil
}

// Stop 停掉一个交易对的 worker；已停止时为 no-op 而非错误
func (s *Supervisor) Stop(ctx context.Context, pair string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked(pair)
}

func (s *Supervisor) stopLocked(pair string) error {
	rec, ok := s.workers[pair]
	if !ok {
		// 没有记录：可能是遗留的陈旧 PID 文件
		if pid, _ := ReadPIDFile(s.cfg.RunDir, pair); pid > 0 && ProcessAlive(pid) {
			if err := StopProcessGroup(pid, stopTimeout); err != nil {
				return err
			}
		}
		RemovePIDFile(s.cfg.RunDir, pair)
		return nil
	}

	if ProcessAlive(rec.PID) {
		if err := StopProcessGroup(rec.PID, stopTimeout); err != nil {
			s.log.Warnf("停止 worker 超时: pair=%s pid=%d: %v", pair, rec.PID, err)
		}
	}
	rec.lock.Release()
	RemovePIDFile(s.cfg.RunDir, pair)
	delete(s.workers, pair)
	s.log.Infof("worker 已停止: pair=%s", pair)
	return nil
}

// StopAll 停掉全部 worker
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	pairs := make([]string, 0, len(s.workers))
	for p := range s.workers {
		pairs = append(pairs, p)
	}
	s.mu.Unlock()

	for _, p := range pairs {
		s.mu.Lock()
		_ = s.stopLocked(p)
		s.mu.Unlock()
	}
}

// Reconcile 一轮对账：对齐运行集合与期望集合，探测配置变化
func (s *Supervisor) Reconcile(ctx context.Context) {
	desired, err := s.provider.ActivePairs()
	if err != nil {
		s.log.Warnf("读取期望集合失败: %v", err)
		return
	}
	desiredSet := make(map[string]bool, len(desired))
	for _, p := range desired {
		desiredSet[p] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// 不再激活的先停
	for pair := range s.workers {
		if !desiredSet[pair] {
			s.log.Infof("交易对已停用，停止 worker: pair=%s", pair)
			_ = s.stopLocked(pair)
		}
	}

	for _, pair := range desired {
		rec, running := s.workers[pair]
		if running && ProcessAlive(rec.PID) {
			// 存活 worker：比较配置哈希，变化则触发热重载（不重启进程）
			pairCfg, err := s.provider.Get(pair)
			if err != nil {
				continue
			}
			if h := pairCfg.Hash(); h != rec.ConfigHash {
				s.log.Infof("配置变化，通知热重载: pair=%s pid=%d", pair, rec.PID)
				if err := SignalReload(rec.PID); err != nil {
					s.log.Warnf("发送重载信号失败: pair=%s: %v", pair, err)
					continue
				}
				rec.ConfigHash = h
			}
			continue
		}
		if err := s.startLocked(ctx, pair); err != nil {
			s.log.Warnf("对账启动失败: %v", err)
		}
	}
}

// Run 周期性对账循环；ctx 取消时停掉全部 worker
func (s *Supervisor) Run(ctx context.Context) {
	interval := s.cfg.ReconcileDuration()
	s.log.Infof("对账循环启动: interval=%s", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Reconcile(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("对账循环退出，停止全部 worker")
			s.StopAll()
			return
		case <-ticker.C:
			s.Reconcile(ctx)
		}
	}
}

// Snapshot 全部 worker 的只读状态
func (s *Supervisor) Snapshot() []WorkerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]WorkerStatus, 0, len(s.workers))
	for _, rec := range s.workers {
		out = append(out, WorkerStatus{
			Pair:       rec.Pair,
			PID:        rec.PID,
			Alive:      ProcessAlive(rec.PID),
			ConfigHash: rec.ConfigHash,
			StartedAt:  rec.StartedAt,
		})
	}
	return out
}

// Status 单个交易对状态
func (s *Supervisor) Status(pair string) (WorkerStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.workers[pair]
	if !ok {
		return WorkerStatus{Pair: pair}, false
	}
	return WorkerStatus{
		Pair:       rec.Pair,
		PID:        rec.PID,
		Alive:      ProcessAlive(rec.PID),
		ConfigHash: rec.ConfigHash,
		StartedAt:  rec.StartedAt,
	}, true
}
