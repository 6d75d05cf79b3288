package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/liquidbook/mmbot/internal/config"
	"github.com/liquidbook/mmbot/internal/exchange"
	"github.com/liquidbook/mmbot/internal/gateway"
	"github.com/liquidbook/mmbot/internal/supervisor"
	"github.com/liquidbook/mmbot/internal/tradeserver"
	"github.com/liquidbook/mmbot/internal/worker"
	"github.com/liquidbook/mmbot/pkg/logger"
)

func main() {
	pair := flag.String("pair", "", "交易对符号，例如 LTC_USDT")
	configPath := flag.String("config", "config.yaml", "进程配置文件路径")
	flag.Parse()

	_ = godotenv.Load()

	if *pair == "" {
		fmt.Fprintln(os.Stderr, "必须指定 -pair")
		os.Exit(2)
	}

	cfg, err := config.LoadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	// worker 的 stdout/stderr 已由 supervisor 重定向到专属文件，这里只配级别
	if err := logger.Init(logger.Config{Level: cfg.Log.Level}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	// 直接手动启动时也补写 PID 文件（supervisor 启动路径下会覆盖同样的值）
	if err := supervisor.WritePIDFile(cfg.RunDir, *pair, os.Getpid()); err != nil {
		logrus.Warnf("写 PID 文件失败: %v", err)
	}

	trade := tradeserver.NewClient(tradeserver.Config{
		URL:      cfg.TradeServerURL,
		UserID:   cfg.UserID,
		TakerFee: cfg.TakerFee,
		MakerFee: cfg.MakerFee,
		Source:   cfg.OrderSource,
	})
	gw := gateway.New(trade, exchange.NewManager(0))
	provider := config.NewProvider(cfg.RegistryPath, 0)

	w := worker.New(*pair, cfg, provider, gw)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SIGTERM/SIGINT 终止；SIGHUP 触发立即重读配置
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range sigCh {
			switch sig {
			case syscall.SIGHUP:
				logrus.Info("收到 SIGHUP，触发配置重载")
				w.TriggerReload()
			default:
				logrus.Infof("收到信号 %s，开始排空退出", sig)
				cancel()
				return
			}
		}
	}()

	logrus.Infof("worker 启动: pair=%s pid=%d", *pair, os.Getpid())
	if err := w.Run(ctx); err != nil {
		logrus.Errorf("worker 异常退出: %v", err)
		os.Exit(1)
	}
}
