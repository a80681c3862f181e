package extractor

import (
	"context"
	"time"

	"ats-engine/internal/types"
	"ats-engine/pkg/utils"

	"github.com/rs/zerolog"
)

// FeatureCache 特征缓存，键为截断后简历文本的哈希
type FeatureCache interface {
	GetFeatures(ctx context.Context, textHash string) (*types.ExtractedFeatures, bool, error)
	SetFeatures(ctx context.Context, textHash string, f *types.ExtractedFeatures, ttl time.Duration) error
}

// CachedExtractor 在抽取器外层加缓存。缓存读写失败只记日志，不影响抽取；降级结果不写缓存。
type CachedExtractor struct {
	next          Extractor
	cache         FeatureCache
	ttl           time.Duration
	maxInputChars int
	logger        zerolog.Logger
}

// NewCachedExtractor 创建带缓存的抽取器，maxInputChars 需与被包装的抽取器一致
func NewCachedExtractor(next Extractor, cache FeatureCache, ttl time.Duration, maxInputChars int, logger zerolog.Logger) *CachedExtractor {
	if maxInputChars <= 0 {
		maxInputChars = DefaultMaxInputChars
	}
	return &CachedExtractor{next: next, cache: cache, ttl: ttl, maxInputChars: maxInputChars, logger: logger}
}

// Extract 实现 Extractor
func (c *CachedExtractor) Extract(ctx context.Context, resumeText string) (*types.ExtractedFeatures, error) {
	text, err := requireText(resumeText)
	if err != nil {
		return nil, err
	}
	text = Truncate(text, c.maxInputChars)
	key := utils.HashText(text)

	cached, ok, err := c.cache.GetFeatures(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("hash", key).Msg("读取特征缓存失败")
	} else if ok && cached != nil {
		cached.RawText = text
		c.logger.Debug().Str("hash", key).Msg("命中特征缓存")
		return cached, nil
	}

	f, err := c.next.Extract(ctx, text)
	if err != nil {
		return nil, err
	}
	if f.Source == types.SourceDefault {
		return f, nil
	}
	if err := c.cache.SetFeatures(ctx, key, f, c.ttl); err != nil {
		c.logger.Warn().Err(err).Str("hash", key).Msg("写入特征缓存失败")
	}
	return f, nil
}
