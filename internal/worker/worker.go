package worker

import (
	"context"
	"math/rand"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/liquidbook/mmbot/internal/config"
	"github.com/liquidbook/mmbot/internal/domain"
	"github.com/liquidbook/mmbot/internal/engine"
	"github.com/liquidbook/mmbot/internal/heartbeat"
	"github.com/liquidbook/mmbot/internal/pricing"
	"github.com/liquidbook/mmbot/internal/supervisor"
	"github.com/liquidbook/mmbot/pkg/sigchan"
)

// sleepSlice 周期间隔按短切片睡眠，每片重查停用/配置变化/终止，
// 配置变化最多一个切片内生效，而不是等完整个延迟
const sleepSlice = 1 * time.Second

// Worker 单交易对 worker 主循环
// 进程内单协程驱动；挂起点只有网关网络调用与周期间睡眠
type Worker struct {
	pair     string
	appCfg   *config.AppConfig
	provider *config.Provider
	gw       engine.Gateway
	log      *logrus.Entry

	// reload 由 SIGHUP 触发，用于立刻中断睡眠重读配置
	reload *sigchan.Chan

	rng *rand.Rand
}

// New 创建 worker
func New(pair string, appCfg *config.AppConfig, provider *config.Provider, gw engine.Gateway) *Worker {
	return &Worker{
		pair:     pair,
		appCfg:   appCfg,
		provider: provider,
		gw:       gw,
		log:      logrus.WithField("component", "worker").WithField("pair", pair),
		reload:   sigchan.New(1),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// TriggerReload 外部信号（SIGHUP）通知立即重读配置
func (w *Worker) TriggerReload() {
	w.reload.Emit()
}

// Run 主循环：重读配置→（变化则）排空重初始化→跑一个周期→可中断睡眠
// 返回前保证执行排空与 PID 文件清理，即使循环内发生未捕获 panic
func (w *Worker) Run(ctx context.Context) error {
	pairCfg, err := w.provider.Get(w.pair)
	if err != nil {
		return err
	}
	if !pairCfg.Active {
		w.log.Warn("交易对未激活，退出")
		return nil
	}
	if err := pairCfg.Validate(); err != nil {
		return err
	}

	eng := engine.New(pairCfg, w.gw, w.rng)

	botID, _ := w.provider.BotID(w.pair)
	hb := heartbeat.NewEmitter(w.appCfg.HeartbeatURLs, w.pair, botID)

	// 保证清理路径：排空挂单，删掉自己的 PID 文件
	defer func() {
		if r := recover(); r != nil {
			w.log.Errorf("worker 未捕获 panic: %v\n%s", r, debug.Stack())
		}
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := eng.Shutdown(drainCtx); err != nil {
			w.log.Warnf("退出排空失败: %v", err)
		}
		supervisor.RemovePIDFile(w.appCfg.RunDir, w.pair)
		w.log.Info("worker 已退出")
	}()

	lastHash := ""
	for {
		if ctx.Err() != nil {
			return nil
		}

		cfg, err := w.provider.Get(w.pair)
		if err != nil {
			w.log.Warnf("读配置失败，沿用当前配置: %v", err)
			cfg = eng.Config()
		}
		if !cfg.Active {
			w.log.Info("交易对被停用，退出")
			return nil
		}

		// 首轮或配置变化：排空、应用新配置、围绕一次全新 Initialize
		if h := cfg.Hash(); h != lastHash {
			if lastHash != "" {
				w.log.Info("配置变化，排空并重新初始化")
			}
			if err := cfg.Validate(); err != nil {
				w.log.Errorf("新配置非法，保持旧配置: %v", err)
			} else {
				if err := eng.Shutdown(ctx); err != nil {
					w.log.Warnf("重初始化前排空失败: %v", err)
				}
				eng.UpdateConfig(cfg)
				if err := eng.Initialize(ctx); err != nil {
					w.log.Warnf("初始化失败，下个周期重试: %v", err)
				} else {
					lastHash = h
				}
			}
		}

		eng.RunSingleCycle(ctx)
		hb.Emit(ctx)

		delay := w.cycleDelay(eng.Config().Settings)
		if stop := w.sleep(ctx, delay, lastHash); stop {
			return nil
		}
	}
}

func (w *Worker) cycleDelay(s domain.PairSettings) time.Duration {
	return pricing.RandomDelay(w.rng, s.FrequencyFrom, s.FrequencyTo)
}

// sleep 按 1s 切片睡满 delay；返回 true 表示应当退出
// 每片检查：ctx 终止、SIGHUP 重载、停用、配置变化（后两者提前醒来）
func (w *Worker) sleep(ctx context.Context, delay time.Duration, lastHash string) bool {
	deadline := time.Now().Add(delay)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		slice := sleepSlice
		if remaining < slice {
			slice = remaining
		}

		timer := time.NewTimer(slice)
		select {
		case <-ctx.Done():
			timer.Stop()
			return true
		case <-w.reload.C():
			timer.Stop()
			w.log.Debug("收到重载信号，提前结束睡眠")
			w.provider.Invalidate()
			return false
		case <-timer.C:
		}

		cfg, err := w.provider.Get(w.pair)
		if err != nil {
			continue
		}
		if !cfg.Active {
			w.log.Info("睡眠中检测到停用")
			return true
		}
		if cfg.Hash() != lastHash {
			w.log.Debug("睡眠中检测到配置变化，提前醒来")
			return false
		}
	}
}
