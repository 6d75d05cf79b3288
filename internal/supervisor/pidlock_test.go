package supervisor

import (
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

func TestPIDFilePathSanitized(t *testing.T) {
	// 交易对符号里可能出现 "/"，落盘前必须清洗
	got := PIDFilePath("/var/run/mmbot", "ltc/usdt")
	want := filepath.Join("/var/run/mmbot", "LTC_USDT.pid")
	if got != want {
		t.Fatalf("pid path got=%s want=%s", got, want)
	}
}

func TestPIDFileRoundTrip(t *testing.T) {
	dir := t.TempDir()

	if err := WritePIDFile(dir, "LTC_USDT", 12345); err != nil {
		t.Fatalf("WritePIDFile error: %v", err)
	}
	pid, err := ReadPIDFile(dir, "LTC_USDT")
	if err != nil {
		t.Fatalf("ReadPIDFile error: %v", err)
	}
	if pid != 12345 {
		t.Fatalf("pid got=%d want=12345", pid)
	}

	RemovePIDFile(dir, "LTC_USDT")
	pid, err = ReadPIDFile(dir, "LTC_USDT")
	if err != nil || pid != 0 {
		t.Fatalf("after remove got pid=%d err=%v, want 0/nil", pid, err)
	}
}

func TestReadPIDFileGarbage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(PIDFilePath(dir, "LTC_USDT"), []byte("not-a-pid\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := ReadPIDFile(dir, "LTC_USDT"); err == nil {
		t.Fatal("garbage pid file should fail to parse")
	}
}

func TestPairLockExclusive(t *testing.T) {
	dir := t.TempDir()

	l1, err := AcquirePairLock(dir, "LTC_USDT")
	if err != nil {
		t.Fatalf("first acquire error: %v", err)
	}

	// 独立 fd 上的 flock 互斥，哪怕在同一进程内
	if _, err := AcquirePairLock(dir, "LTC_USDT"); err != ErrLockHeld {
		t.Fatalf("second acquire got=%v want=ErrLockHeld", err)
	}

	// 不同交易对互不影响
	l2, err := AcquirePairLock(dir, "BTC_USDT")
	if err != nil {
		t.Fatalf("other pair acquire error: %v", err)
	}
	l2.Release()

	l1.Release()
	l3, err := AcquirePairLock(dir, "LTC_USDT")
	if err != nil {
		t.Fatalf("reacquire after release error: %v", err)
	}
	l3.Release()
}

func TestProcessAlive(t *testing.T) {
	if !ProcessAlive(os.Getpid()) {
		t.Fatal("current process must be alive")
	}
	if ProcessAlive(0) || ProcessAlive(-1) {
		t.Fatal("non-positive pids are never alive")
	}
}

func TestStopProcessGroup(t *testing.T) {
	if err := StopProcessGroup(0, time.Second); err != nil {
		t.Fatalf("pid 0 should be a no-op, got: %v", err)
	}

	cmd := exec.Command("sleep", "60")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		t.Fatalf("start child: %v", err)
	}
	pid := cmd.Process.Pid

	// 先挂 Wait 回收，避免僵尸进程仍响应 signal 0
	waitDone := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(waitDone)
	}()

	if err := StopProcessGroup(pid, 3*time.Second); err != nil {
		t.Fatalf("StopProcessGroup error: %v", err)
	}
	select {
	case <-waitDone:
	case <-time.After(3 * time.Second):
		t.Fatal("child did not exit")
	}
	if ProcessAlive(pid) {
		t.Fatalf("pid %d still alive after stop", pid)
	}
}
