package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ats-engine/pkg/llm"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type retryableErr bool

func (r retryableErr) Error() string   { return "status" }
func (r retryableErr) Retryable() bool { return bool(r) }

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", retryableErr(true))))
	assert.False(t, IsRetryable(retryableErr(false)))
	assert.True(t, IsRetryable(errors.New("read: connection reset by peer")))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(errors.New("invalid api key")))
	assert.False(t, IsRetryable(nil))
}

func TestRetryWithBackoff_StopsOnPermanentError(t *testing.T) {
	tb := NewTokenBucket(6000, 100).WithRetryPolicy(time.Millisecond, 3)
	calls := 0
	err := tb.RetryWithBackoff(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("bad request")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_BoundedRetries(t *testing.T) {
	tb := NewTokenBucket(6000, 100).WithRetryPolicy(time.Millisecond, 2)
	calls := 0
	err := tb.RetryWithBackoff(context.Background(), func(ctx context.Context) error {
		calls++
		return retryableErr(true)
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls, "one attempt plus two retries")
}

func TestRetryWithBackoff_AttemptTimeout(t *testing.T) {
	tb := NewTokenBucket(6000, 100).WithRetryPolicy(time.Millisecond, 1).WithAttemptTimeout(10 * time.Millisecond)
	calls := 0
	err := tb.RetryWithBackoff(context.Background(), func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, calls)
}

func TestNewLLMWithRateLimit_RecoversAfterTransientFailure(t *testing.T) {
	mock := llm.NewMockChatModelSequential([]llm.MockResponse{
		{Error: retryableErr(true)},
		{Content: "done"},
	})
	m := NewLLMWithRateLimit(mock, Policy{QPM: 6000, RetryWait: time.Millisecond, MaxRetries: 2})

	msg, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("x")})
	require.NoError(t, err)
	assert.Equal(t, "done", msg.Content)
	assert.Equal(t, 2, mock.Calls())
}
