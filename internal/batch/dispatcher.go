package batch

import (
	"context"
	"fmt"
	"time"

	"ats-engine/internal/storage"
	"ats-engine/internal/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Publisher 由 storage.RabbitMQ 实现
type Publisher interface {
	PublishJSON(ctx context.Context, exchange, routingKey string, data interface{}, persistent bool) error
}

// JobReader 读取岗位画像
type JobReader interface {
	GetJobProfile(ctx context.Context, jobID string) (*types.JobProfile, error)
}

// DispatcherConfig 发布目标与限制
type DispatcherConfig struct {
	Exchange      string
	RoutingKey    string
	ProgressTTL   time.Duration
	MaxCandidates int
}

// Dispatcher 校验批处理请求并发布运行命令，实际执行由 Consumer 完成
type Dispatcher struct {
	jobs      JobReader
	publisher Publisher
	locker    Locker
	progress  ProgressStore
	cfg       DispatcherConfig
	logger    zerolog.Logger
	now       func() time.Time
}

// NewDispatcher locker、progress 可为 nil
func NewDispatcher(jobs JobReader, publisher Publisher, locker Locker, progress ProgressStore, cfg DispatcherConfig, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		jobs:      jobs,
		publisher: publisher,
		locker:    locker,
		progress:  progress,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Dispatch 返回分配的 runID。
// 岗位不存在返回 types.ErrNotFound，岗位已有运行中的批处理返回 types.ErrBatchInProgress。
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(d.cfg.MaxCandidates); err != nil {
		return "", err
	}
	if _, err := d.jobs.GetJobProfile(ctx, req.JobID); err != nil {
		return "", err
	}
	if d.locker != nil {
		locked, err := d.locker.IsJobLocked(ctx, req.JobID)
		if err != nil {
			d.logger.Warn().Err(err).Str("job_id", req.JobID).Msg("检查批处理锁失败，继续发布")
		} else if locked {
			return "", fmt.Errorf("岗位 %s: %w", req.JobID, types.ErrBatchInProgress)
		}
	}

	req.RunID = uuid.NewString()
	rec := NewProgressRecorder(d.progress, req.RunID, req.JobID, d.cfg.ProgressTTL, d.logger)
	if err := rec.Queued(ctx); err != nil {
		d.logger.Warn().Err(err).Str("run_id", req.RunID).Msg("写入排队进度失败")
	}

	if err := d.publisher.PublishJSON(ctx, d.cfg.Exchange, d.cfg.RoutingKey, toMessage(req, d.now()), true); err != nil {
		rec.Finish(ctx, nil, err)
		return "", fmt.Errorf("发布批处理命令失败: %w", err)
	}
	d.logger.Info().
		Str("run_id", req.RunID).
		Str("job_id", req.JobID).
		Str("mode", string(req.Mode)).
		Msg("批处理命令已发布")
	return req.RunID, nil
}

func toMessage(req Request, now time.Time) storage.BatchRunMessage {
	msg := storage.BatchRunMessage{
		RunID:        req.RunID,
		JobID:        req.JobID,
		Mode:         string(req.Mode),
		CandidateIDs: req.CandidateIDs,
		Weights:      req.Weights,
		RequestedAt:  now,
	}
	if req.Mode == ModeDateRange {
		from, to := req.From, req.To
		msg.From, msg.To = &from, &to
	}
	return msg
}

func fromMessage(msg storage.BatchRunMessage) Request {
	req := Request{
		RunID:        msg.RunID,
		JobID:        msg.JobID,
		Mode:         Mode(msg.Mode),
		CandidateIDs: msg.CandidateIDs,
		Weights:      msg.Weights,
	}
	if msg.From != nil {
		req.From = *msg.From
	}
	if msg.To != nil {
		req.To = *msg.To
	}
	return req
}
