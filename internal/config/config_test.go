package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"ats-engine/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "config-test")
	require.NoError(t, err, "无法创建临时目录")
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644), "无法写入临时配置文件")
	return configPath
}

// TestLoadConfig_FileValuesAndDefaults 文件中的值生效，缺失字段使用默认值
func TestLoadConfig_FileValuesAndDefaults(t *testing.T) {
	path := writeConfig(t, `
rabbitmq:
  url: "amqp://guest:guest@mq:5672/"
  prefetch_count: 4
extractor:
  mode: heuristic
  max_input_chars: 20000
scoring:
  default_weights:
    roleFit: 0.5
    skillsQuality: 0.5
model_qpm_limits:
  qwen-plus: 600
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "amqp://guest:guest@mq:5672/", cfg.RabbitMQ.URL)
	assert.Equal(t, 4, cfg.RabbitMQ.PrefetchCount)
	assert.Equal(t, "q.ats_batch_runs", cfg.RabbitMQ.BatchRunQueue)
	assert.Equal(t, 20000, cfg.Extractor.MaxInputChars)
	assert.Equal(t, "45s", cfg.Extractor.Timeout)
	assert.Equal(t, 2, cfg.Extractor.MaxRetries)
	assert.False(t, cfg.UseAI())
	assert.Equal(t, map[string]int{"qwen-plus": 600}, cfg.ModelQPMLimits)
	assert.Equal(t, types.Weights{types.DimRoleFit: 0.5, types.DimSkillsQuality: 0.5}, cfg.ScoringWeights())
	assert.Equal(t, ":8080", cfg.Server.Address)
}

// TestLoadConfig_IncorrectMapIndentation 缩进错误时 map 解析为空，回退到默认值
func TestLoadConfig_IncorrectMapIndentation(t *testing.T) {
	path := writeConfig(t, `
model_qpm_limits:
qwen-plus: 600
qwen-max: 100
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err, "缩进错误的配置不应立即报错")
	assert.Equal(t, 15000, cfg.ModelQPMLimits["qwen-plus"])
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ALIYUN_API_KEY", "sk-env")
	t.Setenv("ATS_MYSQL_PASSWORD", "db-secret")
	t.Setenv("ATS_API_KEYS", "k1, k2,,")

	cfg, err := LoadConfig(writeConfig(t, "aliyun:\n  api_key: from-file\n"))
	require.NoError(t, err)

	assert.Equal(t, "sk-env", cfg.Aliyun.APIKey)
	assert.Equal(t, "db-secret", cfg.MySQL.Password)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Auth.APIKeys)
	assert.True(t, cfg.UseAI(), "auto mode uses AI when a key is present")
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	cases := map[string]string{
		"unknown mode":      "extractor:\n  mode: magic\n",
		"unknown dimension": "scoring:\n  default_weights:\n    charisma: 1\n",
		"negative weight":   "scoring:\n  default_weights:\n    roleFit: -0.2\n",
		"bad duration":      "batch:\n  lock_ttl: soon\n",
		"tracing endpoint":  "tracing:\n  enabled: true\n",
		"sample ratio":      "tracing:\n  sample_ratio: 2\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestDefaultConfig_WeightsSumToOne(t *testing.T) {
	assert.InDelta(t, 1.0, DefaultConfig().ScoringWeights().Sum(), 1e-9)
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 30*time.Minute, GetDuration("30m", time.Second))
	assert.Equal(t, time.Second, GetDuration("", time.Second))
	assert.Equal(t, time.Second, GetDuration("bogus", time.Second))
}

func TestGetModelForTask(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Aliyun.TaskModels = map[string]string{"extract": "qwen-max"}
	assert.Equal(t, "qwen-max", cfg.GetModelForTask("extract"))
	assert.Equal(t, "qwen-plus", cfg.GetModelForTask("other"))
}
