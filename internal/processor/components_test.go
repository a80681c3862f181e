package processor

import (
	"context"
	"testing"
	"time"

	"ats-engine/internal/config"
	"ats-engine/internal/extractor"
	"ats-engine/internal/types"
	"ats-engine/pkg/llm"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

const resume = `张三 高级后端工程师
工作经历
2019.03 - 至今 某科技公司 后端工程师
负责 Go 微服务开发，使用 MySQL、Redis、Kafka，主导订单系统重构，QPS 提升 3 倍。
技能: Go, MySQL, Redis, Docker, Kubernetes`

func TestNewComponents_Heuristic(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Extractor.Mode = "heuristic"

	c, err := NewComponents(cfg, nil, zerolog.Nop(), WithClock(fixedNow))
	require.NoError(t, err)
	assert.IsType(t, &extractor.HeuristicExtractor{}, c.Extractor)
	assert.NotEmpty(t, c.Knowledge.Version())

	job := &types.JobProfile{Title: "后端工程师", RequiredSkills: []string{"Go", "MySQL"}, MinYearsExp: 3}
	res, err := c.Orchestrator.EvaluateText(context.Background(), job, resume, nil)
	require.NoError(t, err)
	assert.Equal(t, types.SourceHeuristic, res.FeatureSource)
	assert.GreaterOrEqual(t, res.Score, 0.0)
	assert.LessOrEqual(t, res.Score, 100.0)
}

func TestNewComponents_ModelOutputDegrades(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Extractor.Mode = "ai"

	c, err := NewComponents(cfg, nil, zerolog.Nop(),
		WithChatModel(llm.NewMockChatModel("这不是JSON", nil)), WithClock(fixedNow))
	require.NoError(t, err)
	assert.IsType(t, &extractor.LLMExtractor{}, c.Extractor, "no redis, no cache wrapper")

	res, err := c.Orchestrator.EvaluateText(context.Background(), &types.JobProfile{Title: "后端工程师"}, resume, nil)
	require.NoError(t, err)
	assert.Equal(t, types.SourceDefault, res.FeatureSource)
}

func TestNewComponents_BadTablesPath(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Knowledge.TablesPath = "does/not/exist.yaml"
	_, err := NewComponents(cfg, nil, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewComponents(nil, nil, zerolog.Nop())
	assert.Error(t, err)
}
