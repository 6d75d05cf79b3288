package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/liquidbook/mmbot/internal/config"
	"github.com/liquidbook/mmbot/internal/controlplane"
	"github.com/liquidbook/mmbot/internal/exchange"
	"github.com/liquidbook/mmbot/internal/gateway"
	"github.com/liquidbook/mmbot/internal/registry"
	"github.com/liquidbook/mmbot/internal/supervisor"
	"github.com/liquidbook/mmbot/internal/tradeserver"
	"github.com/liquidbook/mmbot/pkg/logger"
	"github.com/liquidbook/mmbot/pkg/shutdown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "进程配置文件路径")
	flag.Parse()

	// .env 可选，存在则加载
	_ = godotenv.Load()

	cfg, err := config.LoadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	trade := tradeserver.NewClient(tradeserver.Config{
		URL:      cfg.TradeServerURL,
		UserID:   cfg.UserID,
		TakerFee: cfg.TakerFee,
		MakerFee: cfg.MakerFee,
		Source:   cfg.OrderSource,
	})
	gw := gateway.New(trade, exchange.NewManager(0))
	store := registry.NewStore(cfg.RegistryPath)
	provider := config.NewProvider(cfg.RegistryPath, 2*time.Second)
	sup := supervisor.New(cfg, *configPath, provider)
	api := controlplane.NewServer(store, sup, gw, trade)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownManager := shutdown.NewManager()
	shutdownManager.OnShutdown(func(ctx context.Context, wg *sync.WaitGroup) {
		defer wg.Done()
		_ = api.Shutdown(ctx)
	})

	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		sup.Run(ctx)
	}()
	go func() {
		if err := api.ListenAndServe(cfg.ListenAddr); err != nil {
			logrus.Errorf("管理 API 退出: %v", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logrus.Infof("收到信号 %s，开始关闭", sig)
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	shutdownManager.Shutdown(shutdownCtx)
	// 等 supervisor 停完全部 worker 再退出
	select {
	case <-supDone:
	case <-shutdownCtx.Done():
		logrus.Warn("等待 supervisor 退出超时")
	}
	logrus.Info("server 已退出")
}
