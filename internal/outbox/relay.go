// Package outbox 发件箱中继：与业务写入同事务落库的事件，由这里异步投递到 RabbitMQ
package outbox

import (
	"context"
	"time"

	"ats-engine/internal/constants"
	"ats-engine/internal/storage/models"
	"ats-engine/internal/tracing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPollingInterval = 5 * time.Second
	defaultBatchSize       = 10
	maxRetryCount          = 5
)

// Publisher 消息发布器，由 storage.RabbitMQ 实现
type Publisher interface {
	PublishMessage(ctx context.Context, exchange, routingKey string, body []byte, persistent bool) error
}

// MessageRelay 轮询 outbox 表并发布待投递消息
type MessageRelay struct {
	db              *gorm.DB
	publisher       Publisher
	logger          zerolog.Logger
	pollingInterval time.Duration
	batchSize       int
	now             func() time.Time
	tracer          trace.Tracer
}

// Option MessageRelay 配置选项
type Option func(*MessageRelay)

func WithPollingInterval(d time.Duration) Option {
	return func(r *MessageRelay) {
		if d > 0 {
			r.pollingInterval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *MessageRelay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *MessageRelay) { r.now = now }
}

// NewMessageRelay 创建中继
func NewMessageRelay(db *gorm.DB, publisher Publisher, logger zerolog.Logger, opts ...Option) *MessageRelay {
	r := &MessageRelay{
		db:              db,
		publisher:       publisher,
		logger:          logger,
		pollingInterval: defaultPollingInterval,
		batchSize:       defaultBatchSize,
		now:             time.Now,
		tracer:          otel.Tracer("ats-engine/outbox"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run 按间隔轮询，直到 ctx 取消
func (r *MessageRelay) Run(ctx context.Context) error {
	r.logger.Info().Dur("interval", r.pollingInterval).Msg("outbox relay started")
	ticker := time.NewTicker(r.pollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("outbox relay stopped")
			return nil
		case <-ticker.C:
			if _, err := r.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error().Err(err).Msg("处理 outbox 消息失败")
			}
		}
	}
}

// ProcessOnce 处理一批待投递消息，返回本批消息数。
// FOR UPDATE SKIP LOCKED 保证多实例时同一条消息只被一个实例处理。
func (r *MessageRelay) ProcessOnce(ctx context.Context) (int, error) {
	var messages []models.OutboxMessage

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return 0, tx.Error
	}
	defer tx.Rollback()

	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", constants.OutboxStatusPending).
		Order("created_at asc").
		Limit(r.batchSize).
		Find(&messages).Error
	if err != nil {
		return 0, err
	}

	// 空轮询不创建 span
	if len(messages) == 0 {
		return 0, tx.Commit().Error
	}

	ctx, span := r.tracer.Start(ctx, "outbox.ProcessBatch",
		trace.WithAttributes(attribute.Int("messaging.batch.message_count", len(messages))))
	defer span.End()

	for i := range messages {
		msg := &messages[i]
		err := r.publisher.PublishMessage(ctx, msg.TargetExchange, msg.TargetRoutingKey, []byte(msg.Payload), true)
		if err != nil {
			msg.RetryCount++
			msg.ErrorMessage = err.Error()
			if msg.RetryCount >= maxRetryCount {
				msg.Status = constants.OutboxStatusFailed
			}
			tracing.RecordError(span, err, tracing.ErrorTypeRabbitMQ,
				attribute.Int64("outbox.id", int64(msg.ID)))
			r.logger.Warn().Err(err).
				Uint64("outbox_id", msg.ID).
				Str("event_type", msg.EventType).
				Int("retry", msg.RetryCount).
				Msg("发布 outbox 消息失败")
		} else {
			now := r.now()
			msg.Status = constants.OutboxStatusSent
			msg.ProcessedAt = &now
			msg.ErrorMessage = ""
		}

		// 更新失败时整批回滚，下次轮询重新拾取
		if err := tx.Save(msg).Error; err != nil {
			return 0, err
		}
	}

	return len(messages), tx.Commit().Error
}
