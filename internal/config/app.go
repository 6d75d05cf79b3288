package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/liquidbook/mmbot/pkg/logger"
)

// AppConfig 进程级配置（server 与 bot 共用一份文件）
type AppConfig struct {
	// TradeServerURL 内部撮合服务器地址
	TradeServerURL string `yaml:"trade_server_url"`
	// UserID 做市账户在撮合服务器上的用户 id
	UserID int64 `yaml:"user_id"`
	// RegistryPath bot 注册表 JSON 文件（同时是交易对配置文档）
	RegistryPath string `yaml:"registry_path"`
	// RunDir PID/锁文件目录（跨进程的唯一共享资源）
	RunDir string `yaml:"run_dir"`
	// BotBin worker 可执行文件路径（supervisor 用于 spawn）
	BotBin string `yaml:"bot_bin"`
	// LogDir 每个 worker 的日志输出目录
	LogDir string `yaml:"log_dir"`

	// ListenAddr 管理 API 监听地址
	ListenAddr string `yaml:"listen_addr"`

	// ReconcileInterval 对账循环间隔（秒），默认 10，允许 5-30
	ReconcileInterval int `yaml:"reconcile_interval"`

	// TakerFee/MakerFee 下限价单时携带的费率字符串
	TakerFee string `yaml:"taker_fee"`
	MakerFee string `yaml:"maker_fee"`
	// OrderSource 下单来源标记
	OrderSource string `yaml:"order_source"`

	// HeartbeatURLs 心跳上报地址（空则关闭心跳）
	HeartbeatURLs []string `yaml:"heartbeat_urls"`

	Log logger.Config `yaml:"log"`
}

// ReconcileDuration 对账间隔
func (c *AppConfig) ReconcileDuration() time.Duration {
	n := c.ReconcileInterval
	if n < 5 {
		n = 10
	}
	if n > 30 {
		n = 30
	}
	return time.Duration(n) * time.Second
}

func (c *AppConfig) applyDefaults() {
	if c.RegistryPath == "" {
		c.RegistryPath = "data/bots.json"
	}
	if c.RunDir == "" {
		c.RunDir = "run"
	}
	if c.LogDir == "" {
		c.LogDir = "logs"
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8090"
	}
	if c.BotBin == "" {
		c.BotBin = "./bot"
	}
	if c.TakerFee == "" {
		c.TakerFee = "0"
	}
	if c.MakerFee == "" {
		c.MakerFee = "0"
	}
	if c.OrderSource == "" {
		c.OrderSource = "mmbot"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// applyEnv 环境变量覆盖（.env 由 cmd 层通过 godotenv 预加载）
func (c *AppConfig) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("MMBOT_TRADE_SERVER_URL")); v != "" {
		c.TradeServerURL = v
	}
	if v := strings.TrimSpace(os.Getenv("MMBOT_USER_ID")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.UserID = id
		}
	}
	if v := strings.TrimSpace(os.Getenv("MMBOT_REGISTRY_PATH")); v != "" {
		c.RegistryPath = v
	}
	if v := strings.TrimSpace(os.Getenv("MMBOT_RUN_DIR")); v != "" {
		c.RunDir = v
	}
	if v := strings.TrimSpace(os.Getenv("MMBOT_LISTEN_ADDR")); v != "" {
		c.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("MMBOT_BOT_BIN")); v != "" {
		c.BotBin = v
	}
}

// LoadAppConfig 从 YAML 文件加载进程配置
func LoadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	cfg.applyEnv()

	if cfg.TradeServerURL == "" {
		return nil, fmt.Errorf("trade_server_url 未配置")
	}
	if cfg.UserID <= 0 {
		return nil, fmt.Errorf("user_id 未配置")
	}
	return &cfg, nil
}
