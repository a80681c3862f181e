package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ats-engine/internal/batch"
	"ats-engine/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Scanner 单个候选人扫描和无状态评估，由 batch.Orchestrator 实现
type Scanner interface {
	ScanOne(ctx context.Context, jobID, candidateID string) (*batch.ScanResult, error)
	EvaluateText(ctx context.Context, job *types.JobProfile, resumeText string, weights types.Weights) (*types.ScoreResult, error)
}

// Dispatcher 发布批处理命令，由 batch.Dispatcher 实现
type Dispatcher interface {
	Dispatch(ctx context.Context, req batch.Request) (string, error)
}

// ProgressReader 读取批处理进度，由 storage.Redis 实现
type ProgressReader interface {
	GetProgress(ctx context.Context, runID string) (*types.BatchProgress, error)
}

// RescoreRequest POST /jobs/:job_id/rescore 请求体
type RescoreRequest struct {
	Mode         string             `json:"mode" validate:"required,oneof=selection date_range"`
	CandidateIDs []string           `json:"candidate_ids" validate:"required_if=Mode selection,dive,required"`
	From         *time.Time         `json:"from" validate:"required_if=Mode date_range"`
	To           *time.Time         `json:"to" validate:"required_if=Mode date_range"`
	Weights      map[string]float64 `json:"weights"`
}

// EvaluateRequest POST /evaluate 请求体
type EvaluateRequest struct {
	Job        types.JobProfile   `json:"job"`
	ResumeText string             `json:"resume_text" validate:"required"`
	Weights    map[string]float64 `json:"weights"`
}

// EvaluationHandler 评估与批处理接口
type EvaluationHandler struct {
	scanner          Scanner
	dispatcher       Dispatcher
	progress         ProgressReader
	knowledgeVersion string
	validate         *validator.Validate
	logger           zerolog.Logger
}

// NewEvaluationHandler dispatcher 和 progress 为 nil 时对应接口返回 503
func NewEvaluationHandler(scanner Scanner, dispatcher Dispatcher, progress ProgressReader, knowledgeVersion string, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		scanner:          scanner,
		dispatcher:       dispatcher,
		progress:         progress,
		knowledgeVersion: knowledgeVersion,
		validate:         validator.New(),
		logger:           logger,
	}
}

// HandleHealth GET /api/v1/health
func (h *EvaluationHandler) HandleHealth(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{
		"status":            "ok",
		"knowledge_version": h.knowledgeVersion,
	})
}

// HandleRescore POST /api/v1/jobs/:job_id/rescore
func (h *EvaluationHandler) HandleRescore(ctx context.Context, c *app.RequestContext) {
	if h.dispatcher == nil {
		c.JSON(consts.StatusServiceUnavailable, utils.H{"error": "批处理队列不可用"})
		return
	}
	var req RescoreRequest
	if err := h.bind(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	weights, err := types.ParseWeights(req.Weights)
	if err != nil {
		h.fail(c, err)
		return
	}

	br := batch.Request{
		JobID:        c.Param("job_id"),
		Mode:         batch.Mode(req.Mode),
		CandidateIDs: req.CandidateIDs,
		Weights:      weights,
	}
	if req.From != nil && req.To != nil {
		br.From, br.To = *req.From, *req.To
	}

	runID, err := h.dispatcher.Dispatch(ctx, br)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(consts.StatusAccepted, utils.H{"run_id": runID, "status": types.RunQueued})
}

// HandleBatchProgress GET /api/v1/batch-runs/:run_id
func (h *EvaluationHandler) HandleBatchProgress(ctx context.Context, c *app.RequestContext) {
	if h.progress == nil {
		c.JSON(consts.StatusServiceUnavailable, utils.H{"error": "进度存储不可用"})
		return
	}
	p, err := h.progress.GetProgress(ctx, c.Param("run_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(consts.StatusOK, p)
}

// HandleScan POST /api/v1/jobs/:job_id/candidates/:candidate_id/scan
func (h *EvaluationHandler) HandleScan(ctx context.Context, c *app.RequestContext) {
	res, err := h.scanner.ScanOne(ctx, c.Param("job_id"), c.Param("candidate_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(consts.StatusOK, res)
}

// HandleEvaluate POST /api/v1/evaluate，不落库
func (h *EvaluationHandler) HandleEvaluate(ctx context.Context, c *app.RequestContext) {
	var req EvaluateRequest
	if err := h.bind(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	weights, err := types.ParseWeights(req.Weights)
	if err != nil {
		h.fail(c, err)
		return
	}
	if _, err := types.ParseWeights(weightsToRaw(req.Job.Weights)); err != nil {
		h.fail(c, err)
		return
	}

	res, err := h.scanner.EvaluateText(ctx, &req.Job, req.ResumeText, weights)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(consts.StatusOK, res)
}

func (h *EvaluationHandler) bind(c *app.RequestContext, v interface{}) error {
	body := c.GetRawData()
	if len(body) == 0 {
		return fmt.Errorf("请求体为空: %w", types.ErrInvalidRequest)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("请求体不是合法JSON: %v: %w", err, types.ErrInvalidRequest)
	}
	if err := h.validate.Struct(v); err != nil {
		return fmt.Errorf("%v: %w", err, types.ErrInvalidRequest)
	}
	return nil
}

func (h *EvaluationHandler) fail(c *app.RequestContext, err error) {
	status := StatusFor(err)
	if status >= consts.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", string(c.Path())).Msg("请求处理失败")
	}
	c.JSON(status, utils.H{"error": err.Error()})
}

// StatusFor 错误到 HTTP 状态码的映射
func StatusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return consts.StatusNotFound
	case errors.Is(err, types.ErrInvalidRequest):
		return consts.StatusBadRequest
	case errors.Is(err, types.ErrBatchInProgress):
		return consts.StatusConflict
	case errors.Is(err, types.ErrMissingData):
		return consts.StatusUnprocessableEntity
	default:
		return consts.StatusInternalServerError
	}
}

func weightsToRaw(w types.Weights) map[string]float64 {
	raw := make(map[string]float64, len(w))
	for d, v := range w {
		raw[string(d)] = v
	}
	return raw
}
