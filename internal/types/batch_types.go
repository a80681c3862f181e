package types

import "time"

// 批处理运行状态
const (
	RunQueued    = "queued"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunCancelled = "cancelled"
	RunFailed    = "failed"
)

// BatchProgress 批处理进度快照，供轮询查询
type BatchProgress struct {
	RunID        string          `json:"runId"`
	JobID        string          `json:"jobId"`
	Status       string          `json:"status"`
	Total        int             `json:"total"`
	Processed    int             `json:"processed"`
	SuccessCount int             `json:"successCount"`
	FailCount    int             `json:"failCount"`
	SkippedCount int             `json:"skippedCount"`
	Events       []ProgressEvent `json:"events"`
	Summary      *BatchSummary   `json:"summary,omitempty"`
	Error        string          `json:"error,omitempty"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}
