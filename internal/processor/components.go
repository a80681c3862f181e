// Package processor 按配置组装评估流水线：知识库、特征抽取器、评分引擎和批处理编排器。
// 服务和命令行工具共用同一套组装逻辑。
package processor

import (
	"fmt"
	"time"

	"ats-engine/internal/batch"
	"ats-engine/internal/config"
	"ats-engine/internal/extractor"
	"ats-engine/internal/knowledge"
	"ats-engine/internal/scoring"
	"ats-engine/internal/storage"
	"ats-engine/pkg/llm"
	"ats-engine/pkg/ratelimit"

	"github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog"
)

const taskExtract = "extract"

// Components 评估流水线的各组件
type Components struct {
	Knowledge    *knowledge.Base
	Extractor    extractor.Extractor
	Engine       *scoring.Engine
	Orchestrator *batch.Orchestrator
}

// Option 组装选项
type Option func(*options)

type options struct {
	chatModel model.ToolCallingChatModel
	now       func() time.Time
}

// WithChatModel 使用指定模型代替按配置创建的通义千问模型
func WithChatModel(m model.ToolCallingChatModel) Option {
	return func(o *options) { o.chatModel = m }
}

// WithClock 设置时间来源
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewComponents 按配置创建组件。
// st 为 nil 时编排器没有候选人存储，只能用于 EvaluateText；
// Redis 可用时模型抽取结果走缓存，MinIO 可用时简历文本可从对象存储读取。
func NewComponents(cfg *config.Config, st *storage.Storage, logger zerolog.Logger, opts ...Option) (*Components, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}
	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	kb, err := knowledge.LoadFile(cfg.Knowledge.TablesPath)
	if err != nil {
		return nil, fmt.Errorf("加载知识库失败: %w", err)
	}

	ex, err := newExtractor(cfg, kb, st, o, logger)
	if err != nil {
		return nil, err
	}

	engine := scoring.NewEngine(kb,
		scoring.WithDefaultWeights(cfg.ScoringWeights()),
		scoring.WithLogger(logger.With().Str("component", "scoring").Logger()),
		scoring.WithClock(o.now),
	)

	orchOpts := []batch.Option{
		batch.WithMaxCandidates(cfg.Batch.MaxCandidates),
		batch.WithLogger(logger.With().Str("component", "batch").Logger()),
		batch.WithClock(o.now),
	}
	var store batch.Store
	if st != nil {
		if st.Candidates != nil {
			store = st.Candidates
		}
		if st.MinIO != nil {
			orchOpts = append(orchOpts, batch.WithResumeTextStore(st.MinIO))
		}
	}

	return &Components{
		Knowledge:    kb,
		Extractor:    ex,
		Engine:       engine,
		Orchestrator: batch.NewOrchestrator(store, ex, engine, orchOpts...),
	}, nil
}

func newExtractor(cfg *config.Config, kb *knowledge.Base, st *storage.Storage, o *options, logger zerolog.Logger) (extractor.Extractor, error) {
	exCfg := cfg.Extractor
	if !cfg.UseAI() {
		logger.Info().Msg("特征抽取使用启发式规则")
		return extractor.NewHeuristicExtractor(kb, exCfg.MaxInputChars, o.now), nil
	}

	modelName := exCfg.ModelName
	if modelName == "" {
		modelName = cfg.GetModelForTask(taskExtract)
	}

	chat := o.chatModel
	if chat == nil {
		qwen, err := llm.NewQwenChatModel(cfg.Aliyun.APIKey, modelName, cfg.Aliyun.APIURL,
			llm.WithJSONMode(),
			llm.WithLogger(logger.With().Str("component", "llm").Logger()),
		)
		if err != nil {
			return nil, fmt.Errorf("初始化模型 %s 失败: %w", modelName, err)
		}
		chat = qwen
	}

	limited := ratelimit.NewLLMWithRateLimit(chat, ratelimit.Policy{
		ModelName:      modelName,
		ModelQPM:       cfg.ModelQPMLimits,
		QPM:            exCfg.QPM,
		MaxRetries:     exCfg.MaxRetries,
		RetryWait:      time.Duration(exCfg.RetryWaitSeconds) * time.Second,
		AttemptTimeout: config.GetDuration(exCfg.Timeout, 45*time.Second),
	})

	var ex extractor.Extractor = extractor.NewLLMExtractor(limited, kb,
		extractor.WithTemperature(float32(exCfg.Temperature)),
		extractor.WithMaxTokens(exCfg.MaxTokens),
		extractor.WithMaxInputChars(exCfg.MaxInputChars),
		extractor.WithLogger(logger.With().Str("component", "extractor").Logger()),
		extractor.WithClock(o.now),
	)
	if st != nil && st.Redis != nil {
		ex = extractor.NewCachedExtractor(ex, st.Redis, config.GetDuration(exCfg.CacheTTL, 24*time.Hour),
			exCfg.MaxInputChars, logger.With().Str("component", "feature_cache").Logger())
	}
	logger.Info().Str("model", modelName).Msg("特征抽取使用模型")
	return ex, nil
}
