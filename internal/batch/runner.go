package batch

import (
	"context"
	"time"

	"ats-engine/internal/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Runner 在岗位锁和进度记录之下执行 Orchestrator.Run
type Runner struct {
	orch        *Orchestrator
	locker      Locker
	progress    ProgressStore
	lockTTL     time.Duration
	progressTTL time.Duration
	logger      zerolog.Logger
}

// NewRunner locker、progress 可为 nil，分别表示不加锁、不记录进度
func NewRunner(orch *Orchestrator, locker Locker, progress ProgressStore, lockTTL, progressTTL time.Duration, logger zerolog.Logger) *Runner {
	return &Runner{
		orch:        orch,
		locker:      locker,
		progress:    progress,
		lockTTL:     lockTTL,
		progressTTL: progressTTL,
		logger:      logger,
	}
}

// Execute 获取岗位锁后运行；同一岗位已有运行时返回 types.ErrBatchInProgress。
// observers 在进度记录之后依次收到每个事件。
func (r *Runner) Execute(ctx context.Context, req Request, observers ...ProgressFunc) (*types.BatchSummary, error) {
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	rec := NewProgressRecorder(r.progress, req.RunID, req.JobID, r.progressTTL, r.logger)

	if r.locker != nil {
		token, err := r.locker.AcquireJobLock(ctx, req.JobID, r.lockTTL)
		if err != nil {
			rec.Finish(ctx, nil, err)
			return nil, err
		}
		defer func() {
			if err := r.locker.ReleaseJobLock(context.WithoutCancel(ctx), req.JobID, token); err != nil {
				r.logger.Warn().Err(err).Str("job_id", req.JobID).Msg("释放批处理锁失败")
			}
		}()
	}

	rec.Running(ctx)
	record := rec.Observe(ctx)
	summary, err := r.orch.Run(ctx, req, func(ev types.ProgressEvent) {
		record(ev)
		for _, fn := range observers {
			fn(ev)
		}
	})
	rec.Finish(ctx, summary, err)
	return summary, err
}
