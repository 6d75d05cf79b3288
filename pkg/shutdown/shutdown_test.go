package shutdown

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestShutdownRunsAllCallbacks(t *testing.T) {
	m := NewManager()
	var ran atomic.Int32

	for i := 0; i < 3; i++ {
		m.OnShutdown(func(ctx context.Context, wg *sync.WaitGroup) {
			defer wg.Done()
			ran.Add(1)
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m.Shutdown(ctx)

	if ran.Load() != 3 {
		t.Fatalf("callbacks ran=%d want=3", ran.Load())
	}
}

func TestShutdownTimeout(t *testing.T) {
	m := NewManager()
	m.OnShutdown(func(ctx context.Context, wg *sync.WaitGroup) {
		defer wg.Done()
		// 卡死的回调不能拖住 Shutdown
		<-make(chan struct{})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		m.Shutdown(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not respect context timeout")
	}
}

func TestShutdownNoCallbacks(t *testing.T) {
	m := NewManager()
	// 空管理器直接返回
	m.Shutdown(context.Background())
}
