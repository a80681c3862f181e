package batch

import (
	"context"
	"encoding/json"
	"errors"

	"ats-engine/internal/storage"
	"ats-engine/internal/tracing"
	"ats-engine/internal/types"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Source 消息来源，由 storage.RabbitMQ 实现
type Source interface {
	Consume(ctx context.Context, queue string, prefetch int, handler func(context.Context, []byte) bool) error
}

// Consumer 消费批处理命令并交给 Runner 执行
type Consumer struct {
	source   Source
	runner   *Runner
	queue    string
	prefetch int
	logger   zerolog.Logger
	tracer   trace.Tracer
}

func NewConsumer(source Source, runner *Runner, queue string, prefetch int, logger zerolog.Logger) *Consumer {
	if prefetch <= 0 {
		prefetch = 1
	}
	return &Consumer{
		source:   source,
		runner:   runner,
		queue:    queue,
		prefetch: prefetch,
		logger:   logger,
		tracer:   otel.Tracer("ats-engine/batch"),
	}
}

// Start 阻塞消费直到 ctx 取消
func (c *Consumer) Start(ctx context.Context) error {
	return c.source.Consume(ctx, c.queue, c.prefetch, c.Handle)
}

// Handle 处理一条命令。无法解析的消息返回 false（拒绝且不重新入队）；
// 其余情况都确认消息，运行结果记录在进度快照里。
func (c *Consumer) Handle(ctx context.Context, body []byte) bool {
	ctx, span := c.tracer.Start(ctx, "batch.Consume", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	var msg storage.BatchRunMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		c.logger.Error().Err(err).Msg("批处理命令无法解析，丢弃")
		return false
	}
	span.SetAttributes(
		attribute.String("batch.run_id", msg.RunID),
		attribute.String("batch.job_id", msg.JobID),
	)
	log := c.logger.With().Str("run_id", msg.RunID).Str("job_id", msg.JobID).Logger()

	_, err := c.runner.Execute(ctx, fromMessage(msg))
	switch {
	case err == nil:
	case errors.Is(err, types.ErrBatchInProgress):
		log.Warn().Err(err).Msg("岗位已有批处理在运行，本次命令放弃")
	case errors.Is(err, context.Canceled):
		log.Info().Msg("批处理因服务停止被取消")
	default:
		tracing.RecordError(span, err, errorType(err))
		log.Error().Err(err).Msg("批处理失败")
	}
	return true
}
