// Package extractor 把简历文本转换为结构化的 ExtractedFeatures。
//
// LLMExtractor 调用外部模型并在边界做 JSON Schema 校验；模型输出无法解析时降级为默认特征，
// 只有在没有简历文本时才返回错误。HeuristicExtractor 不依赖模型，基于知识库和正则。
package extractor

import (
	"context"
	"strings"

	"ats-engine/internal/types"
)

// DefaultMaxInputChars 送入模型的简历字符上限
const DefaultMaxInputChars = 15000

// Extractor 特征抽取器
type Extractor interface {
	Extract(ctx context.Context, resumeText string) (*types.ExtractedFeatures, error)
}

// Outcome 一次模型输出解析的结果：Features 非空表示成功，否则 Err 说明原因
type Outcome struct {
	Features *types.ExtractedFeatures
	Err      error
}

// Ok 解析是否成功
func (o Outcome) Ok() bool {
	return o.Err == nil && o.Features != nil
}

// Truncate 按字符（rune）截断文本
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		return text
	}
	count := 0
	for i := range text {
		if count == maxChars {
			return text[:i]
		}
		count++
	}
	return text
}

func requireText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", types.NewMissingDataError("", "简历文本为空")
	}
	return text, nil
}
