package engine

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// batchOp 批处理中的一个独立网络操作
type batchOp func(ctx context.Context) error

// runBatch 扇出-扇入屏障：并发发起所有操作，等全部落定
// 单个失败只记录，不阻止其他操作完成；返回失败数
func runBatch(ctx context.Context, log *logrus.Entry, name string, ops []batchOp) int {
	if len(ops) == 0 {
		return 0
	}

	errs := make([]error, len(ops))
	var wg sync.WaitGroup
	wg.Add(len(ops))
	for i, op := range ops {
		go func(i int, op batchOp) {
			defer wg.Done()
			errs[i] = op(ctx)
		}(i, op)
	}
	wg.Wait()

	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			log.Warnf("批处理 %s 第 %d 个操作失败: %v", name, i, err)
		}
	}
	if failed > 0 {
		log.Warnf("批处理 %s 完成: total=%d failed=%d", name, len(ops), failed)
	}
	return failed
}
