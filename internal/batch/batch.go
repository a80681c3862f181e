// Package batch 批量重评分。
//
// Orchestrator 按固定顺序逐个处理候选人（显式列表顺序，或按投递时间倒序），
// 每个候选人经历 pending → processing → success | error | skipped。
// 已是终态（人工决策）的候选人在初次读取时跳过；写入由存储层在事务内复查状态，
// 期间状态变为终态同样记为 skipped，不做任何写入。
package batch

import (
	"context"
	"fmt"
	"time"

	"ats-engine/internal/types"
)

// Mode 候选人集合的选择方式
type Mode string

const (
	ModeSelection Mode = "selection"
	ModeDateRange Mode = "date_range"
)

// Request 一次批处理请求
type Request struct {
	RunID        string
	JobID        string
	Mode         Mode
	CandidateIDs []string
	From         time.Time
	To           time.Time
	// Weights 覆盖岗位权重，可为空
	Weights types.Weights
}

// Validate 校验请求；maxCandidates>0 时限制 selection 模式的候选人数量
func (r Request) Validate(maxCandidates int) error {
	if r.JobID == "" {
		return fmt.Errorf("缺少岗位ID: %w", types.ErrInvalidRequest)
	}
	switch r.Mode {
	case ModeSelection:
		if len(r.CandidateIDs) == 0 {
			return fmt.Errorf("selection 模式需要候选人列表: %w", types.ErrInvalidRequest)
		}
		if maxCandidates > 0 && len(r.CandidateIDs) > maxCandidates {
			return fmt.Errorf("候选人数量 %d 超过上限 %d: %w", len(r.CandidateIDs), maxCandidates, types.ErrInvalidRequest)
		}
	case ModeDateRange:
		if r.From.IsZero() || r.To.IsZero() {
			return fmt.Errorf("date_range 模式需要起止时间: %w", types.ErrInvalidRequest)
		}
		if r.To.Before(r.From) {
			return fmt.Errorf("结束时间早于开始时间: %w", types.ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("未知模式 %q: %w", r.Mode, types.ErrInvalidRequest)
	}
	return nil
}

// ProgressFunc 每次状态迁移时调用
type ProgressFunc func(types.ProgressEvent)

// Store 文档存储，由 storage.CandidateStore 实现
type Store interface {
	GetJobProfile(ctx context.Context, jobID string) (*types.JobProfile, error)
	GetCandidate(ctx context.Context, jobID, candidateID string) (*types.CandidateRecord, error)
	QueryCandidatesByDateRange(ctx context.Context, jobID string, from, to time.Time, limit int) ([]*types.CandidateRecord, error)
	// WriteScore 条件写入，候选人已是终态时返回 types.ErrConcurrencyConflict
	WriteScore(ctx context.Context, candidateID string, u types.ScoreUpdate) error
	RecordBatchCompleted(ctx context.Context, summary *types.BatchSummary) error
}

// ResumeTextStore 对象存储中的简历文本，由 storage.MinIO 实现
type ResumeTextStore interface {
	GetResumeText(ctx context.Context, objectKey string) (string, error)
}

// Evaluator 评分引擎，由 scoring.Engine 实现
type Evaluator interface {
	Evaluate(ctx context.Context, features *types.ExtractedFeatures, job *types.JobProfile, weights types.Weights) *types.ScoreResult
}

// Locker 岗位级互斥锁，由 storage.Redis 实现
type Locker interface {
	AcquireJobLock(ctx context.Context, jobID string, ttl time.Duration) (string, error)
	ReleaseJobLock(ctx context.Context, jobID, token string) error
	IsJobLocked(ctx context.Context, jobID string) (bool, error)
}

// ProgressStore 进度快照存储，由 storage.Redis 实现
type ProgressStore interface {
	SaveProgress(ctx context.Context, p *types.BatchProgress, ttl time.Duration) error
	GetProgress(ctx context.Context, runID string) (*types.BatchProgress, error)
}
