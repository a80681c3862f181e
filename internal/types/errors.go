package types

import (
	"errors"
	"fmt"
)

// 基础错误类型
var (
	ErrMissingData         = errors.New("缺少简历文本或特征")
	ErrNotFound            = errors.New("记录不存在")
	ErrAIParse             = errors.New("AI输出无法解析为预期JSON")
	ErrConcurrencyConflict = errors.New("候选人状态已变为终态")
	ErrScoreRange          = errors.New("分数非法或越界")
	ErrBatchInProgress     = errors.New("该岗位已有批处理在运行")
	ErrInvalidRequest      = errors.New("请求参数非法")
)

// EvaluationError 携带岗位/候选人上下文的评估错误
type EvaluationError struct {
	Op          string
	JobID       string
	CandidateID string
	BaseErr     error
	Detail      string
}

func (e *EvaluationError) Error() string {
	msg := fmt.Sprintf("%s (操作:%s", e.BaseErr, e.Op)
	if e.JobID != "" {
		msg += ", 岗位:" + e.JobID
	}
	if e.CandidateID != "" {
		msg += ", 候选人:" + e.CandidateID
	}
	msg += ")"
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *EvaluationError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *EvaluationError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

func NewMissingDataError(candidateID, detail string) error {
	return &EvaluationError{
		Op:          "extract",
		CandidateID: candidateID,
		BaseErr:     ErrMissingData,
		Detail:      detail,
	}
}

func NewJobNotFoundError(jobID string) error {
	return &EvaluationError{
		Op:      "load_job",
		JobID:   jobID,
		BaseErr: ErrNotFound,
	}
}

func NewCandidateNotFoundError(candidateID string) error {
	return &EvaluationError{
		Op:          "load_candidate",
		CandidateID: candidateID,
		BaseErr:     ErrNotFound,
	}
}

func NewAIParseError(detail string) error {
	return &EvaluationError{
		Op:      "parse_ai_output",
		BaseErr: ErrAIParse,
		Detail:  detail,
	}
}

// ConflictError 存储层在条件写入时发现终态返回，调用方据此跳过
type ConflictError struct {
	CandidateID string
	Status      string
}

func (c *ConflictError) Error() string {
	return fmt.Sprintf("%s: 候选人 %s 当前状态 %s", ErrConcurrencyConflict, c.CandidateID, c.Status)
}

func (c *ConflictError) Is(target error) bool {
	return target == ErrConcurrencyConflict
}

func NewConflictError(candidateID, status string) error {
	return &ConflictError{CandidateID: candidateID, Status: status}
}

// ConflictStatus 从冲突错误中取出当时的终态
func ConflictStatus(err error) (string, bool) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict.Status, true
	}
	return "", false
}
