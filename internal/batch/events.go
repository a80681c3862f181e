package batch

import (
	"context"

	"ats-engine/internal/types"
)

// Result Events 的最终结果
type Result struct {
	Summary *types.BatchSummary
	Err     error
}

// Events 以拉取方式运行批处理：事件按发生顺序写入 events，
// 运行结束后 events 关闭，results 收到一个 Result 后关闭。
// 调用方需要读完 events 或取消 ctx，否则运行会阻塞在发送上。
func (o *Orchestrator) Events(ctx context.Context, req Request) (<-chan types.ProgressEvent, <-chan Result) {
	events := make(chan types.ProgressEvent, 16)
	results := make(chan Result, 1)

	go func() {
		defer close(results)
		summary, err := o.Run(ctx, req, func(ev types.ProgressEvent) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		})
		close(events)
		results <- Result{Summary: summary, Err: err}
	}()

	return events, results
}
