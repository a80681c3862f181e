package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ats-engine/internal/constants"
	"ats-engine/internal/storage/models"
	"ats-engine/internal/tracing"
	"ats-engine/internal/types"
	"ats-engine/pkg/utils"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CandidateStore 岗位与候选人的文档存储，评分写入使用条件更新
type CandidateStore struct {
	db             *gorm.DB
	eventsExchange string
}

// NewCandidateStore 创建存储，eventsExchange 为 outbox 事件的目标交换机
func NewCandidateStore(db *gorm.DB, eventsExchange string) *CandidateStore {
	return &CandidateStore{db: db, eventsExchange: eventsExchange}
}

// GetJobProfile 读取岗位画像
func (s *CandidateStore) GetJobProfile(ctx context.Context, jobID string) (*types.JobProfile, error) {
	var job models.Job
	err := s.db.WithContext(ctx).Where("job_id = ?", jobID).Take(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewJobNotFoundError(jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("查询岗位 %s 失败: %w", jobID, err)
	}
	return job.ToProfile(), nil
}

// GetCandidate 读取岗位下的候选人，jobID 为空时不限定岗位
func (s *CandidateStore) GetCandidate(ctx context.Context, jobID, candidateID string) (*types.CandidateRecord, error) {
	q := s.db.WithContext(ctx).Where("candidate_id = ?", candidateID)
	if jobID != "" {
		q = q.Where("job_id = ?", jobID)
	}
	var c models.Candidate
	err := q.Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewCandidateNotFoundError(candidateID)
	}
	if err != nil {
		return nil, fmt.Errorf("查询候选人 %s 失败: %w", candidateID, err)
	}
	return c.ToRecord(), nil
}

// AttachResumeText 把候选人的简历文本改为对象存储引用，清空行内文本
func (s *CandidateStore) AttachResumeText(ctx context.Context, candidateID, objectKey string) error {
	res := s.db.WithContext(ctx).Model(&models.Candidate{}).
		Where("candidate_id = ?", candidateID).
		Updates(map[string]interface{}{"resume_object_key": objectKey, "resume_text": ""})
	if res.Error != nil {
		return fmt.Errorf("更新候选人 %s 简历引用失败: %w", candidateID, res.Error)
	}
	if res.RowsAffected == 0 {
		return types.NewCandidateNotFoundError(candidateID)
	}
	return nil
}

// QueryCandidatesByDateRange 按投递时间区间查询，最新的在前；limit<=0 表示不限
func (s *CandidateStore) QueryCandidatesByDateRange(ctx context.Context, jobID string, from, to time.Time, limit int) ([]*types.CandidateRecord, error) {
	q := s.db.WithContext(ctx).
		Where("job_id = ? AND created_at >= ? AND created_at <= ?", jobID, from, to).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.Candidate
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("按时间查询候选人失败: %w", err)
	}
	out := make([]*types.CandidateRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToRecord())
	}
	return out, nil
}

// WriteScore 在一个事务内：锁定候选人行并复查状态，非终态时写入评分、
// 追加评分历史并写入 candidate.scored 事件。发现终态返回 *types.ConflictError，不做任何写入。
func (s *CandidateStore) WriteScore(ctx context.Context, candidateID string, u types.ScoreUpdate) error {
	if u.Result == nil {
		return fmt.Errorf("候选人 %s 的评分结果为空: %w", candidateID, types.ErrInvalidRequest)
	}
	span := trace.SpanFromContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Candidate
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("candidate_id", "status").
			Where("candidate_id = ?", candidateID).
			Take(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.NewCandidateNotFoundError(candidateID)
		}
		if err != nil {
			return err
		}
		if types.IsFinalized(current.Status) {
			return types.NewConflictError(candidateID, current.Status)
		}

		r := u.Result
		res := tx.Model(&models.Candidate{}).
			Where("candidate_id = ? AND status = ?", candidateID, current.Status).
			Updates(map[string]interface{}{
				"score":              r.Score,
				"breakdown":          utils.ToJSON(r.Breakdown),
				"detailed_breakdown": utils.ToJSON(r.DetailedBreakdown),
				"risk_flags":         utils.ToJSON(r.RiskFlags),
				"explanation":        utils.ToJSON(r.Explanation),
				"inferred_skills":    utils.ConvertArrayToJSON(r.InferredSkills),
				"skills_analysis":    utils.ToJSON(r.SkillsAnalysis),
				"extracted_contact":  utils.ToJSON(r.ExtractedContact),
				"scored_at":          gorm.Expr("CURRENT_TIMESTAMP(6)"),
				"last_run_id":        u.RunID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.NewConflictError(candidateID, current.Status)
		}

		evalID, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("生成评分记录ID失败: %w", err)
		}
		eval := models.CandidateEvaluation{
			EvaluationID:     evalID.String(),
			CandidateID:      candidateID,
			JobID:            u.JobID,
			RunID:            u.RunID,
			Score:            r.Score,
			Breakdown:        utils.ToJSON(r.Breakdown),
			RiskFlags:        utils.ToJSON(r.RiskFlags),
			WeightsDeviation: r.WeightsDeviation,
			KnowledgeVersion: r.KnowledgeVersion,
			FeatureSource:    string(r.FeatureSource),
		}
		if err := tx.Create(&eval).Error; err != nil {
			return fmt.Errorf("写入评分历史失败: %w", err)
		}

		return tx.Create(s.outboxMessage(candidateID, constants.EventCandidateScored, constants.RoutingKeyCandidateScored, ScoredEvent{
			CandidateID:      candidateID,
			JobID:            u.JobID,
			RunID:            u.RunID,
			EvaluationID:     eval.EvaluationID,
			Score:            r.Score,
			KnowledgeVersion: r.KnowledgeVersion,
			FeatureSource:    string(r.FeatureSource),
		})).Error
	})

	if err != nil && !errors.Is(err, types.ErrConcurrencyConflict) {
		tracing.RecordError(span, err, tracing.ErrorTypeDB, attribute.String("candidate.id", candidateID))
	}
	return err
}

// RecordBatchCompleted 写入 batch.completed 事件
func (s *CandidateStore) RecordBatchCompleted(ctx context.Context, summary *types.BatchSummary) error {
	msg := s.outboxMessage(summary.RunID, constants.EventBatchCompleted, constants.RoutingKeyBatchCompleted, summary)
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("写入批处理完成事件失败: %w", err)
	}
	return nil
}

func (s *CandidateStore) outboxMessage(aggregateID, eventType, routingKey string, payload interface{}) *models.OutboxMessage {
	return &models.OutboxMessage{
		AggregateID:      aggregateID,
		EventType:        eventType,
		Payload:          string(utils.ToJSON(payload)),
		TargetExchange:   s.eventsExchange,
		TargetRoutingKey: routingKey,
		Status:           constants.OutboxStatusPending,
	}
}
