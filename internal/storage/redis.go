package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"ats-engine/internal/config"
	"ats-engine/internal/constants"
	"ats-engine/internal/tracing"
	"ats-engine/internal/types"

	"github.com/google/uuid"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var redisTracer = otel.Tracer("ats-engine/storage/redis")

// 按 key 前缀采样，高频的缓存读写少记
var redisKeySamplingRates = map[string]float64{
	constants.AppPrefix + ":" + constants.BatchModulePrefix + ":" + constants.EntityLock:     1.0,
	constants.AppPrefix + ":" + constants.BatchModulePrefix + ":" + constants.EntityProgress: 0.1,
	constants.AppPrefix + ":" + constants.ExtractModulePrefix + ":":                          0.05,
}

var (
	rnd      = rand.New(rand.NewSource(time.Now().UnixNano()))
	rndMutex sync.Mutex
)

func shouldSampleRedisOp(key string) bool {
	if key == "" {
		return false
	}
	rate := 0.05
	for prefix, r := range redisKeySamplingRates {
		if strings.HasPrefix(key, prefix) {
			rate = r
			break
		}
	}
	rndMutex.Lock()
	defer rndMutex.Unlock()
	return rnd.Float64() < rate
}

// releaseScript 只有锁的持有者才能删除
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`)

// Redis 封装批处理锁、进度快照和特征缓存
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter 创建客户端、挂载 OpenTelemetry 钩子并检查连通性
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:            cfg.Address,
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		DialTimeout:     time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:     time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:    time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoffMS) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoffMS) * time.Millisecond,
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute,
		ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute,
	})

	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{Client: client, config: cfg}, nil
}

func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

func (r *Redis) startSpan(ctx context.Context, op, key string) (context.Context, trace.Span) {
	if !shouldSampleRedisOp(key) {
		return ctx, nil
	}
	ctx, span := redisTracer.Start(ctx, "Redis."+op, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", strings.ToUpper(op)),
		attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
	)
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case errors.Is(err, redis.Nil):
		span.SetStatus(codes.Ok, "key not found")
	default:
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
	}
	span.End()
}

// getJSON 读取 JSON 值，key 不存在时返回 false
func (r *Redis) getJSON(ctx context.Context, key string, dest interface{}) (found bool, err error) {
	ctx, span := r.startSpan(ctx, "Get", key)
	defer func() { endSpan(span, err) }()

	data, err := r.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("解析缓存值 %s 失败: %w", key, err)
	}
	return true, nil
}

func (r *Redis) setJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) (err error) {
	ctx, span := r.startSpan(ctx, "Set", key)
	defer func() { endSpan(span, err) }()

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, key, data, ttl).Err()
}

// AcquireJobLock 获取岗位级批处理锁，已被占用时返回 types.ErrBatchInProgress
func (r *Redis) AcquireJobLock(ctx context.Context, jobID string, ttl time.Duration) (token string, err error) {
	key := fmt.Sprintf(constants.KeyBatchJobLock, jobID)
	ctx, span := r.startSpan(ctx, "SetNX", key)
	defer func() {
		if errors.Is(err, types.ErrBatchInProgress) {
			endSpan(span, nil)
			return
		}
		endSpan(span, err)
	}()

	token = uuid.NewString()
	ok, err := r.Client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("获取批处理锁失败: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("岗位 %s: %w", jobID, types.ErrBatchInProgress)
	}
	return token, nil
}

// ReleaseJobLock 释放锁，只有持有者 token 匹配时才删除
func (r *Redis) ReleaseJobLock(ctx context.Context, jobID, token string) (err error) {
	key := fmt.Sprintf(constants.KeyBatchJobLock, jobID)
	ctx, span := r.startSpan(ctx, "Eval", key)
	defer func() { endSpan(span, err) }()

	return releaseScript.Run(ctx, r.Client, []string{key}, token).Err()
}

// IsJobLocked 岗位当前是否有批处理持有锁
func (r *Redis) IsJobLocked(ctx context.Context, jobID string) (locked bool, err error) {
	key := fmt.Sprintf(constants.KeyBatchJobLock, jobID)
	ctx, span := r.startSpan(ctx, "Exists", key)
	defer func() { endSpan(span, err) }()

	n, err := r.Client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SaveProgress 写入批处理进度快照
func (r *Redis) SaveProgress(ctx context.Context, p *types.BatchProgress, ttl time.Duration) error {
	return r.setJSON(ctx, fmt.Sprintf(constants.KeyBatchProgress, p.RunID), p, ttl)
}

// GetProgress 读取进度快照，不存在时返回 types.ErrNotFound
func (r *Redis) GetProgress(ctx context.Context, runID string) (*types.BatchProgress, error) {
	var p types.BatchProgress
	found, err := r.getJSON(ctx, fmt.Sprintf(constants.KeyBatchProgress, runID), &p)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("批处理 %s: %w", runID, types.ErrNotFound)
	}
	return &p, nil
}

// GetFeatures 读取特征缓存
func (r *Redis) GetFeatures(ctx context.Context, textHash string) (*types.ExtractedFeatures, bool, error) {
	var f types.ExtractedFeatures
	found, err := r.getJSON(ctx, fmt.Sprintf(constants.KeyExtractedFeatures, textHash), &f)
	if err != nil || !found {
		return nil, false, err
	}
	return &f, true, nil
}

// SetFeatures 写入特征缓存
func (r *Redis) SetFeatures(ctx context.Context, textHash string, f *types.ExtractedFeatures, ttl time.Duration) error {
	return r.setJSON(ctx, fmt.Sprintf(constants.KeyExtractedFeatures, textHash), f, ttl)
}
