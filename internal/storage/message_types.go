package storage

import (
	"time"

	"ats-engine/internal/types"
)

// BatchRunMessage 批量重评分命令，由 API 发布、batch.Consumer 消费
type BatchRunMessage struct {
	RunID        string        `json:"run_id"`
	JobID        string        `json:"job_id"`
	Mode         string        `json:"mode"`                    // selection 或 date_range
	CandidateIDs []string      `json:"candidate_ids,omitempty"` // selection 模式
	From         *time.Time    `json:"from,omitempty"`          // date_range 模式
	To           *time.Time    `json:"to,omitempty"`
	Weights      types.Weights `json:"weights,omitempty"`
	RequestedAt  time.Time     `json:"requested_at"`
}

// ScoredEvent candidate.scored 事件载荷
type ScoredEvent struct {
	CandidateID      string  `json:"candidate_id"`
	JobID            string  `json:"job_id"`
	RunID            string  `json:"run_id,omitempty"`
	EvaluationID     string  `json:"evaluation_id"`
	Score            float64 `json:"score"`
	KnowledgeVersion string  `json:"knowledge_version"`
	FeatureSource    string  `json:"feature_source"`
}
