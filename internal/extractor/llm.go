package extractor

import (
	"context"
	"fmt"
	"time"

	"ats-engine/internal/knowledge"
	"ats-engine/internal/tracing"
	"ats-engine/internal/types"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// LLMExtractor 通过聊天模型抽取简历特征
type LLMExtractor struct {
	model         model.ToolCallingChatModel
	kb            *knowledge.Base
	temperature   float32
	maxTokens     int
	maxInputChars int
	logger        zerolog.Logger
	tracer        trace.Tracer
	now           func() time.Time
}

// LLMOption LLMExtractor 配置选项
type LLMOption func(*LLMExtractor)

func WithTemperature(t float32) LLMOption {
	return func(e *LLMExtractor) { e.temperature = t }
}

func WithMaxTokens(n int) LLMOption {
	return func(e *LLMExtractor) {
		if n > 0 {
			e.maxTokens = n
		}
	}
}

// WithMaxInputChars 送入模型的最大字符数
func WithMaxInputChars(n int) LLMOption {
	return func(e *LLMExtractor) {
		if n > 0 {
			e.maxInputChars = n
		}
	}
}

func WithLogger(l zerolog.Logger) LLMOption {
	return func(e *LLMExtractor) { e.logger = l }
}

// WithClock 设置时间来源，用于计算“至今”的经历年限
func WithClock(now func() time.Time) LLMOption {
	return func(e *LLMExtractor) { e.now = now }
}

// NewLLMExtractor 创建基于模型的抽取器，kb 用于抽取后的技能推断
func NewLLMExtractor(m model.ToolCallingChatModel, kb *knowledge.Base, opts ...LLMOption) *LLMExtractor {
	e := &LLMExtractor{
		model:         m,
		kb:            kb,
		temperature:   0.1,
		maxTokens:     4096,
		maxInputChars: DefaultMaxInputChars,
		logger:        zerolog.Nop(),
		tracer:        otel.Tracer("ats-engine/extractor"),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract 调用模型抽取特征。
// 模型调用失败返回错误；模型输出无法解析时返回默认特征（Source=default），不返回错误。
func (e *LLMExtractor) Extract(ctx context.Context, resumeText string) (*types.ExtractedFeatures, error) {
	text, err := requireText(resumeText)
	if err != nil {
		return nil, err
	}
	text = Truncate(text, e.maxInputChars)

	ctx, span := e.tracer.Start(ctx, "extractor.llm.Extract",
		trace.WithAttributes(attribute.Int("resume.chars", len([]rune(text)))))
	defer span.End()

	messages := []*schema.Message{
		schema.SystemMessage(extractionPrompt),
		schema.UserMessage(text),
	}
	resp, err := e.model.Generate(ctx, messages,
		model.WithTemperature(e.temperature),
		model.WithMaxTokens(e.maxTokens),
	)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeAI)
		return nil, fmt.Errorf("调用模型抽取简历特征失败: %w", err)
	}
	if resp == nil {
		tracing.RecordError(span, types.ErrAIParse, tracing.ErrorTypeAI)
		return nil, fmt.Errorf("模型返回空消息: %w", types.ErrAIParse)
	}

	out := ParseFeatures(resp.Content)
	if !out.Ok() {
		e.logger.Warn().Err(out.Err).
			Str("response", tracing.SafeAttributeValue("response", resp.Content, tracing.DefaultMaxLength)).
			Msg("模型输出无法解析，使用默认特征")
		span.SetAttributes(attribute.String("features.source", string(types.SourceDefault)))
		span.SetStatus(codes.Error, "degraded")
		return types.DefaultFeatures(text), nil
	}

	f := finalize(out.Features, e.kb, text, e.now())
	span.SetAttributes(
		attribute.String("features.source", string(f.Source)),
		attribute.Int("features.skills", len(f.Skills)),
		attribute.Int("features.inferred_skills", len(f.InferredSkills)),
	)
	return f, nil
}
