// Package main atsctl 运维命令行：同步重评分、单份简历评估、导入简历文本、查询知识库。
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"ats-engine/internal/config"
	"ats-engine/internal/logger"
	"ats-engine/internal/processor"
	"ats-engine/internal/storage"
	"ats-engine/internal/types"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "atsctl",
	Short:         "ATS scoring engine operator CLI",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print debug logs to stderr")
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig 读取配置并把日志输出到 stderr，stdout 只留给命令结果
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger.InitWithWriter(logger.Config{Level: level, Format: "pretty", TimeFormat: "15:04:05"}, os.Stderr)
	return cfg, nil
}

// env 命令运行所需的配置、存储和评估组件
type env struct {
	cfg   *config.Config
	st    *storage.Storage
	comps *processor.Components
}

func (e *env) close() {
	if e.st != nil {
		e.st.Close(logger.For("atsctl"))
	}
}

// setup withStorage 为 false 时不连接任何外部存储
func setup(ctx context.Context, withStorage bool) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg}
	if withStorage {
		if e.st, err = storage.NewStorage(ctx, cfg, logger.For("storage")); err != nil {
			return nil, fmt.Errorf("初始化存储失败: %w", err)
		}
	}
	if e.comps, err = processor.NewComponents(cfg, e.st, logger.For("processor")); err != nil {
		e.close()
		return nil, err
	}
	return e, nil
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// parseWeights 解析 --weight roleFit=0.4 形式的权重
func parseWeights(raw map[string]string) (types.Weights, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	values := make(map[string]float64, len(raw))
	for k, v := range raw {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("权重 %s=%q 不是数字: %w", k, v, types.ErrInvalidRequest)
		}
		values[k] = f
	}
	return types.ParseWeights(values)
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("无法解析日期 %q，支持 2006-01-02 或 RFC3339: %w", s, types.ErrInvalidRequest)
}
