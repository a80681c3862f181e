package batch

import (
	"context"
	"sync"
	"time"

	"ats-engine/internal/types"

	"github.com/rs/zerolog"
)

// 快照里只保留最近的事件
const maxSnapshotEvents = 200

// ProgressRecorder 把一次运行的进度写入 ProgressStore 供轮询。
// 写入失败只记日志，不影响批处理本身。
type ProgressRecorder struct {
	store  ProgressStore
	ttl    time.Duration
	logger zerolog.Logger
	now    func() time.Time

	mu   sync.Mutex
	snap types.BatchProgress
}

// NewProgressRecorder 为 runID 创建记录器
func NewProgressRecorder(store ProgressStore, runID, jobID string, ttl time.Duration, logger zerolog.Logger) *ProgressRecorder {
	return &ProgressRecorder{
		store:  store,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
		snap: types.BatchProgress{
			RunID:  runID,
			JobID:  jobID,
			Status: types.RunQueued,
			Events: []types.ProgressEvent{},
		},
	}
}

// Queued 写入排队状态的初始快照
func (r *ProgressRecorder) Queued(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.Status = types.RunQueued
	return r.saveLocked(ctx)
}

// Running 标记开始运行
func (r *ProgressRecorder) Running(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.Status = types.RunRunning
	r.save(ctx)
}

// Observe 返回写入快照的 ProgressFunc
func (r *ProgressRecorder) Observe(ctx context.Context) ProgressFunc {
	return func(ev types.ProgressEvent) {
		r.mu.Lock()
		defer r.mu.Unlock()

		r.snap.Total = ev.Total
		switch ev.State {
		case types.StateSuccess:
			r.snap.SuccessCount++
			r.snap.Processed++
		case types.StateError:
			r.snap.FailCount++
			r.snap.Processed++
		case types.StateSkipped:
			r.snap.SkippedCount++
			r.snap.Processed++
		}
		r.snap.Events = append(r.snap.Events, ev)
		if n := len(r.snap.Events); n > maxSnapshotEvents {
			r.snap.Events = r.snap.Events[n-maxSnapshotEvents:]
		}
		r.save(ctx)
	}
}

// Finish 写入最终状态。runErr 为空表示完成；取消和失败分别记录
func (r *ProgressRecorder) Finish(ctx context.Context, summary *types.BatchSummary, runErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case summary != nil && summary.Cancelled:
		r.snap.Status = types.RunCancelled
	case runErr != nil:
		r.snap.Status = types.RunFailed
	default:
		r.snap.Status = types.RunCompleted
	}
	if runErr != nil {
		r.snap.Error = runErr.Error()
	}
	if summary != nil {
		r.snap.Summary = summary
		r.snap.Total = summary.Total
		r.snap.SuccessCount = summary.SuccessCount
		r.snap.FailCount = summary.FailCount
		r.snap.SkippedCount = summary.SkippedCount
		r.snap.Processed = summary.SuccessCount + summary.FailCount + summary.SkippedCount
	}
	r.save(context.WithoutCancel(ctx))
}

// Snapshot 当前快照的拷贝
func (r *ProgressRecorder) Snapshot() types.BatchProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.snap
	s.Events = append([]types.ProgressEvent(nil), r.snap.Events...)
	return s
}

func (r *ProgressRecorder) save(ctx context.Context) {
	if err := r.saveLocked(ctx); err != nil {
		r.logger.Warn().Err(err).Str("run_id", r.snap.RunID).Msg("保存批处理进度失败")
	}
}

func (r *ProgressRecorder) saveLocked(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	r.snap.UpdatedAt = r.now()
	snap := r.snap
	snap.Events = append([]types.ProgressEvent(nil), r.snap.Events...)
	return r.store.SaveProgress(ctx, &snap, r.ttl)
}
