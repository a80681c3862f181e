package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ats-engine/internal/extractor"
	"ats-engine/internal/tracing"
	"ats-engine/internal/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Orchestrator 顺序执行批量重评分，不做并发扇出
type Orchestrator struct {
	store         Store
	extractor     extractor.Extractor
	evaluator     Evaluator
	texts         ResumeTextStore
	maxCandidates int
	logger        zerolog.Logger
	tracer        trace.Tracer
	now           func() time.Time
}

// Option Orchestrator 配置选项
type Option func(*Orchestrator)

// WithResumeTextStore 候选人行只有对象键时从对象存储读取简历文本
func WithResumeTextStore(s ResumeTextStore) Option {
	return func(o *Orchestrator) { o.texts = s }
}

// WithMaxCandidates 单次运行的候选人上限，0 表示不限
func WithMaxCandidates(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.maxCandidates = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator 创建编排器
func NewOrchestrator(store Store, ex extractor.Extractor, ev Evaluator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:     store,
		extractor: ex,
		evaluator: ev,
		logger:    zerolog.Nop(),
		tracer:    otel.Tracer("ats-engine/batch"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// outcome 单个候选人的处理结果
type outcome struct {
	state  types.State
	msg    string
	result *types.ScoreResult
	err    error
}

// Run 执行一次批处理。
// 岗位不存在或候选人集合无法解析时在处理任何候选人之前返回错误；
// 单个候选人的错误只记入进度，不中断批处理。ctx 在候选人之间检查，
// 取消时返回已完成部分的汇总和 ctx.Err()。
func (o *Orchestrator) Run(ctx context.Context, req Request, progress ProgressFunc) (*types.BatchSummary, error) {
	if err := req.Validate(o.maxCandidates); err != nil {
		return nil, err
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	if progress == nil {
		progress = func(types.ProgressEvent) {}
	}

	ctx, span := o.tracer.Start(ctx, "batch.Run", trace.WithAttributes(
		attribute.String("batch.run_id", req.RunID),
		attribute.String("batch.job_id", req.JobID),
		attribute.String("batch.mode", string(req.Mode)),
	))
	defer span.End()
	log := o.logger.With().Str("run_id", req.RunID).Str("job_id", req.JobID).Logger()

	job, err := o.store.GetJobProfile(ctx, req.JobID)
	if err != nil {
		tracing.RecordError(span, err, errorType(err))
		return nil, err
	}

	targets, err := o.resolveTargets(ctx, req)
	if err != nil {
		tracing.RecordError(span, err, errorType(err))
		return nil, err
	}

	summary := &types.BatchSummary{
		RunID:     req.RunID,
		JobID:     req.JobID,
		Total:     len(targets),
		StartedAt: o.now(),
	}
	span.SetAttributes(attribute.Int("batch.total", summary.Total))
	log.Info().Str("mode", string(req.Mode)).Int("total", summary.Total).Msg("批处理开始")

	for i, t := range targets {
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}
		emit := func(state types.State, msg string, score *float64) {
			ev := types.ProgressEvent{
				ProcessedIndex: i + 1,
				Total:          summary.Total,
				CandidateID:    t.id,
				State:          state,
				Message:        msg,
				Score:          score,
				At:             o.now(),
			}
			logTransition(log, ev)
			progress(ev)
		}

		emit(types.StateProcessing, "开始处理", nil)
		out := o.process(ctx, job, req, t)
		switch out.state {
		case types.StateSuccess:
			summary.SuccessCount++
			score := out.result.Score
			emit(out.state, out.msg, &score)
		case types.StateSkipped:
			summary.SkippedCount++
			emit(out.state, out.msg, nil)
		default:
			summary.FailCount++
			emit(types.StateError, out.msg, nil)
		}
	}
	summary.FinishedAt = o.now()

	// 取消后仍需写入完成事件
	if err := o.store.RecordBatchCompleted(context.WithoutCancel(ctx), summary); err != nil {
		log.Warn().Err(err).Msg("写入批处理完成事件失败")
	}

	span.SetAttributes(
		attribute.Int("batch.success", summary.SuccessCount),
		attribute.Int("batch.failed", summary.FailCount),
		attribute.Int("batch.skipped", summary.SkippedCount),
		attribute.Bool("batch.cancelled", summary.Cancelled),
	)
	log.Info().
		Int("success", summary.SuccessCount).
		Int("failed", summary.FailCount).
		Int("skipped", summary.SkippedCount).
		Bool("cancelled", summary.Cancelled).
		Dur("elapsed", summary.FinishedAt.Sub(summary.StartedAt)).
		Msg("批处理结束")

	if summary.Cancelled {
		span.SetStatus(codes.Error, "cancelled")
		return summary, ctx.Err()
	}
	span.SetStatus(codes.Ok, "")
	return summary, nil
}

// ScanResult 单个候选人扫描结果
type ScanResult struct {
	CandidateID string             `json:"candidateId"`
	State       types.State        `json:"state"`
	Message     string             `json:"message"`
	Result      *types.ScoreResult `json:"result,omitempty"`
}

// ScanOne 同步评估并写入单个候选人，写入规则与批处理相同。
// 终态候选人返回 skipped 结果而不是错误；岗位或候选人不存在、抽取失败时返回错误。
func (o *Orchestrator) ScanOne(ctx context.Context, jobID, candidateID string) (*ScanResult, error) {
	if jobID == "" || candidateID == "" {
		return nil, fmt.Errorf("缺少岗位或候选人ID: %w", types.ErrInvalidRequest)
	}
	ctx, span := o.tracer.Start(ctx, "batch.ScanOne", trace.WithAttributes(
		attribute.String("batch.job_id", jobID),
		attribute.String("candidate.id", candidateID),
	))
	defer span.End()

	job, err := o.store.GetJobProfile(ctx, jobID)
	if err != nil {
		tracing.RecordError(span, err, errorType(err))
		return nil, err
	}
	req := Request{JobID: jobID, Mode: ModeSelection, CandidateIDs: []string{candidateID}}
	out := o.process(ctx, job, req, target{id: candidateID})
	if out.err != nil {
		tracing.RecordError(span, out.err, errorType(out.err))
		return nil, out.err
	}
	o.logger.Info().
		Str("job_id", jobID).
		Str("candidate_id", candidateID).
		Str("state", string(out.state)).
		Msg(out.msg)
	return &ScanResult{CandidateID: candidateID, State: out.state, Message: out.msg, Result: out.result}, nil
}

// EvaluateText 对给定文本和岗位评分，不读写存储
func (o *Orchestrator) EvaluateText(ctx context.Context, job *types.JobProfile, resumeText string, weights types.Weights) (*types.ScoreResult, error) {
	if job == nil {
		return nil, fmt.Errorf("缺少岗位画像: %w", types.ErrInvalidRequest)
	}
	features, err := o.extractor.Extract(ctx, resumeText)
	if err != nil {
		return nil, err
	}
	return o.evaluator.Evaluate(ctx, features, job, weights), nil
}

type target struct {
	id     string
	record *types.CandidateRecord
}

func (o *Orchestrator) resolveTargets(ctx context.Context, req Request) ([]target, error) {
	if req.Mode == ModeSelection {
		seen := make(map[string]bool, len(req.CandidateIDs))
		targets := make([]target, 0, len(req.CandidateIDs))
		for _, id := range req.CandidateIDs {
			id = strings.TrimSpace(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			targets = append(targets, target{id: id})
		}
		return targets, nil
	}

	records, err := o.store.QueryCandidatesByDateRange(ctx, req.JobID, req.From, req.To, o.maxCandidates)
	if err != nil {
		return nil, err
	}
	targets := make([]target, 0, len(records))
	for _, r := range records {
		targets = append(targets, target{id: r.ID, record: r})
	}
	return targets, nil
}

// process 单个候选人: 读取并守卫终态、取文本、抽取、评分、条件写入
func (o *Orchestrator) process(ctx context.Context, job *types.JobProfile, req Request, t target) outcome {
	rec := t.record
	if rec == nil {
		var err error
		rec, err = o.store.GetCandidate(ctx, req.JobID, t.id)
		if err != nil {
			return failed(err)
		}
	}

	if types.IsFinalized(rec.Status) {
		return skipped(rec.Status)
	}

	text, err := o.resumeText(ctx, rec)
	if err != nil {
		return failed(err)
	}

	features, err := o.extractor.Extract(ctx, text)
	if err != nil {
		return failed(err)
	}
	result := o.evaluator.Evaluate(ctx, features, job, req.Weights)

	err = o.store.WriteScore(ctx, t.id, types.ScoreUpdate{RunID: req.RunID, JobID: req.JobID, Result: result})
	if errors.Is(err, types.ErrConcurrencyConflict) {
		status, _ := types.ConflictStatus(err)
		return skipped(status)
	}
	if err != nil {
		return failed(err)
	}
	return outcome{
		state:  types.StateSuccess,
		msg:    fmt.Sprintf("评分 %.1f（特征来源 %s）", result.Score, result.FeatureSource),
		result: result,
	}
}

func (o *Orchestrator) resumeText(ctx context.Context, rec *types.CandidateRecord) (string, error) {
	if strings.TrimSpace(rec.ResumeText) != "" {
		return rec.ResumeText, nil
	}
	if rec.ResumeObjectKey == "" || o.texts == nil {
		return "", types.NewMissingDataError(rec.ID, "候选人没有简历文本")
	}
	text, err := o.texts.GetResumeText(ctx, rec.ResumeObjectKey)
	if errors.Is(err, types.ErrNotFound) {
		return "", types.NewMissingDataError(rec.ID, "简历文本对象不存在: "+rec.ResumeObjectKey)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", types.NewMissingDataError(rec.ID, "简历文本为空")
	}
	return text, nil
}

func skipped(status string) outcome {
	return outcome{state: types.StateSkipped, msg: fmt.Sprintf("候选人状态为 %s（终态），已跳过", status)}
}

func failed(err error) outcome {
	return outcome{state: types.StateError, msg: err.Error(), err: err}
}

func logTransition(log zerolog.Logger, ev types.ProgressEvent) {
	var e *zerolog.Event
	switch ev.State {
	case types.StateError:
		e = log.Warn()
	case types.StateProcessing:
		e = log.Debug()
	default:
		e = log.Info()
	}
	e.Str("candidate_id", ev.CandidateID).
		Str("state", string(ev.State)).
		Int("index", ev.ProcessedIndex).
		Int("total", ev.Total).
		Msg(ev.Message)
}

func errorType(err error) tracing.ErrorType {
	switch {
	case errors.Is(err, types.ErrInvalidRequest), errors.Is(err, types.ErrNotFound), errors.Is(err, types.ErrMissingData):
		return tracing.ErrorTypeValidation
	case errors.Is(err, context.DeadlineExceeded):
		return tracing.ErrorTypeTimeout
	default:
		return tracing.ErrorTypeInternal
	}
}
