package ratelimit

import (
	"context"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	defaultQPM            = 30
	defaultMaxRetries     = 2
	defaultRetryWait      = 2 * time.Second
	defaultAttemptTimeout = 45 * time.Second
	// 配置的模型 QPM 只用 90%，给其他调用方留余量
	qpmSafetyRatio = 0.9
)

// RateLimitedLLMModel 对LLM模型的调用进行限流和重试的代理
type RateLimitedLLMModel struct {
	original    model.ToolCallingChatModel
	rateLimiter *TokenBucket
}

// NewRateLimitedLLMModel 创建限流代理，桶容量为 QPM 的一半
func NewRateLimitedLLMModel(original model.ToolCallingChatModel, qpm int) *RateLimitedLLMModel {
	return &RateLimitedLLMModel{
		original:    original,
		rateLimiter: NewTokenBucket(qpm, qpm/2),
	}
}

// WithRetryPolicy 设置重试策略
func (rl *RateLimitedLLMModel) WithRetryPolicy(waitTime time.Duration, maxRetries int) *RateLimitedLLMModel {
	rl.rateLimiter.WithRetryPolicy(waitTime, maxRetries)
	return rl
}

// WithAttemptTimeout 设置单次调用超时
func (rl *RateLimitedLLMModel) WithAttemptTimeout(d time.Duration) *RateLimitedLLMModel {
	rl.rateLimiter.WithAttemptTimeout(d)
	return rl
}

func (rl *RateLimitedLLMModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	var response *schema.Message
	err := rl.rateLimiter.RetryWithBackoff(ctx, func(ctx context.Context) error {
		var genErr error
		response, genErr = rl.original.Generate(ctx, messages, options...)
		return genErr
	})
	return response, err
}

func (rl *RateLimitedLLMModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	var stream *schema.StreamReader[*schema.Message]
	err := rl.rateLimiter.RetryWithBackoff(ctx, func(ctx context.Context) error {
		var streamErr error
		stream, streamErr = rl.original.Stream(ctx, messages, options...)
		return streamErr
	})
	return stream, err
}

// WithTools 返回共享同一令牌桶的新代理
func (rl *RateLimitedLLMModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	newModel, err := rl.original.WithTools(tools)
	if err != nil {
		return nil, err
	}
	return &RateLimitedLLMModel{
		original:    newModel,
		rateLimiter: rl.rateLimiter,
	}, nil
}

// Policy 限流与重试参数，零值字段使用默认值
type Policy struct {
	ModelName      string
	ModelQPM       map[string]int
	QPM            int
	MaxRetries     int
	RetryWait      time.Duration
	AttemptTimeout time.Duration
}

// NewLLMWithRateLimit 包装原始模型。ModelQPM 中有该模型的限额时优先使用其90%。
func NewLLMWithRateLimit(original model.ToolCallingChatModel, p Policy) model.ToolCallingChatModel {
	qpm := p.QPM
	if p.ModelName != "" {
		if modelQPM, ok := p.ModelQPM[p.ModelName]; ok && modelQPM > 0 {
			qpm = int(float64(modelQPM) * qpmSafetyRatio)
		}
	}
	if qpm <= 0 {
		qpm = defaultQPM
	}

	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	} else if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	wait := p.RetryWait
	if wait <= 0 {
		wait = defaultRetryWait
	}
	timeout := p.AttemptTimeout
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}

	return NewRateLimitedLLMModel(original, qpm).
		WithRetryPolicy(wait, maxRetries).
		WithAttemptTimeout(timeout)
}
