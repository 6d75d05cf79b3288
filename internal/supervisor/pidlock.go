package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ErrLockHeld 该交易对的锁已被其他进程持有
var ErrLockHeld = fmt.Errorf("pair lock already held")

// PairLock 每交易对一个非阻塞排他文件锁
// 锁目录是 supervisor 与 worker 之间唯一的跨进程共享资源，
// 进程内互斥不能替代它（worker 是独立进程）
type PairLock struct {
	pair string
	path string
	f    *os.File
}

func lockFilePath(dir, pair string) string {
	return filepath.Join(dir, sanitizePair(pair)+".lock")
}

// PIDFilePath 交易对 PID 文件路径
func PIDFilePath(dir, pair string) string {
	return filepath.Join(dir, sanitizePair(pair)+".pid")
}

func sanitizePair(pair string) string {
	return strings.ReplaceAll(strings.ToUpper(pair), "/", "_")
}

// AcquirePairLock 以非阻塞方式获取排他锁；已被持有时返回 ErrLockHeld
func AcquirePairLock(dir, pair string) (*PairLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := lockFilePath(dir, pair)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, ErrLockHeld
		}
		return nil, errors.Wrapf(err, "flock %s", path)
	}
	return &PairLock{pair: pair, path: path, f: f}, nil
}

// Release 释放并清掉锁文件
func (l *PairLock) Release() {
	if l == nil || l.f == nil {
		return
	}
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	_ = l.f.Close()
	l.f = nil
	_ = os.Remove(l.path)
}

// WritePIDFile 持久化 worker 进程号
func WritePIDFile(dir, pair string, pid int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(PIDFilePath(dir, pair), []byte(strconv.Itoa(pid)+"\n"), 0o644)
}

// ReadPIDFile 读取 PID 文件；不存在返回 0
func ReadPIDFile(dir, pair string) (int, error) {
	raw, err := os.ReadFile(PIDFilePath(dir, pair))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("bad pid file %s: %w", PIDFilePath(dir, pair), err)
	}
	return pid, nil
}

// RemovePIDFile 删除 PID 文件（不存在为 no-op）
func RemovePIDFile(dir, pair string) {
	_ = os.Remove(PIDFilePath(dir, pair))
}

// ProcessAlive 用 signal 0 探测进程是否存在
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	if err := p.Signal(syscall.Signal(0)); err != nil {
		return false
	}
	return true
}

// StopProcessGroup 先 SIGTERM，有界轮询等退出，仍存活再 SIGKILL
func StopProcessGroup(pid int, timeout time.Duration) error {
	if pid <= 0 {
		return nil
	}
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		// 进程组可能不存在，回退尝试单进程
		_ = syscall.Kill(pid, syscall.SIGTERM)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !ProcessAlive(pid) {
			return nil
		}
		time.Sleep(150 * time.Millisecond)
	}

	_ = syscall.Kill(-pid, syscall.SIGKILL)
	_ = syscall.Kill(pid, syscall.SIGKILL)
	return fmt.Errorf("stop timeout after %s (pid=%d)", timeout, pid)
}

// SignalReload 给 worker 发 SIGHUP，提示它立即重读配置并热重载
func SignalReload(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	return syscall.Kill(pid, syscall.SIGHUP)
}
