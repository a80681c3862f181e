package constants

// 领域事件类型，写入 outbox 后由 relay 投递
const (
	EventCandidateScored = "candidate.scored"
	EventBatchCompleted  = "batch.completed"
)

// 事件路由键与事件类型一致
const (
	RoutingKeyCandidateScored = EventCandidateScored
	RoutingKeyBatchCompleted  = EventBatchCompleted
)

// Outbox 消息状态
const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)
