package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Logger 全局日志实例
	Logger *logrus.Logger
	// currentLogFile 当前日志文件路径
	currentLogFile string
	// logMu 初始化锁
	logMu sync.Mutex
)

// Config 日志配置
type Config struct {
	Level      string `yaml:"level"`       // 日志级别: debug, info, warn, error
	OutputFile string `yaml:"output_file"` // 日志文件路径（可选，为空则只输出到控制台）
	MaxSize    int    `yaml:"max_size"`    // 日志文件最大大小（MB）
	MaxBackups int    `yaml:"max_backups"` // 保留的旧日志文件数量
	MaxAge     int    `yaml:"max_age"`     // 保留旧日志文件的天数
	Compress   bool   `yaml:"compress"`    // 是否压缩旧日志文件
}

// Init 初始化日志系统
// 输出同时写到 stdout 和可选的轮转日志文件（lumberjack）
func Init(config Config) error {
	logMu.Lock()
	defer logMu.Unlock()

	logger := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	formatter := &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "06-01-02 15:04:05",
		ForceColors:     true,
	}
	logger.SetFormatter(formatter)

	var writers []io.Writer
	writers = append(writers, os.Stdout)

	if config.OutputFile != "" {
		logDir := filepath.Dir(config.OutputFile)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return err
		}

		fileWriter := &lumberjack.Logger{
			Filename:   config.OutputFile,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		}
		writers = append(writers, fileWriter)
		currentLogFile = config.OutputFile
	}

	multiWriter := io.MultiWriter(writers...)
	logger.SetOutput(multiWriter)

	// 同时设置全局 logrus，保证各处 logrus.WithField() 创建的 logger 也写入文件
	logrus.SetOutput(multiWriter)
	logrus.SetLevel(level)
	logrus.SetFormatter(formatter)

	Logger = logger
	return nil
}

// InitDefault 使用默认配置初始化（info 级别，仅控制台输出）
func InitDefault() error {
	return Init(Config{Level: "info"})
}

func ensureLogger() *logrus.Logger {
	if Logger == nil {
		_ = InitDefault()
	}
	return Logger
}

// Debug 输出 Debug 日志
func Debug(args ...interface{}) {
	ensureLogger().Debug(args...)
}

// Debugf 输出格式化 Debug 日志
func Debugf(format string, args ...interface{}) {
	ensureLogger().Debugf(format, args...)
}

// Info 输出 Info 日志
func Info(args ...interface{}) {
	ensureLogger().Info(args...)
}

// Infof 输出格式化 Info 日志
func Infof(format string, args ...interface{}) {
	ensureLogger().Infof(format, args...)
}

// Warn 输出 Warn 日志
func Warn(args ...interface{}) {
	ensureLogger().Warn(args...)
}

// Warnf 输出格式化 Warn 日志
func Warnf(format string, args ...interface{}) {
	ensureLogger().Warnf(format, args...)
}

// Error 输出 Error 日志
func Error(args ...interface{}) {
	ensureLogger().Error(args...)
}

// Errorf 输出格式化 Error 日志
func Errorf(format string, args ...interface{}) {
	ensureLogger().Errorf(format, args...)
}

// WithField 创建带字段的日志条目
func WithField(key string, value interface{}) *logrus.Entry {
	return ensureLogger().WithField(key, value)
}

// WithFields 创建带多个字段的日志条目
func WithFields(fields logrus.Fields) *logrus.Entry {
	return ensureLogger().WithFields(fields)
}

// GetCurrentLogFile 返回当前日志文件路径
func GetCurrentLogFile() string {
	return currentLogFile
}
