// Package llm 提供 OpenAI 兼容协议的通义千问聊天模型及测试用模拟模型。
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultAPIURL DashScope 的 OpenAI 兼容端点
	DefaultAPIURL    = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"
	DefaultModelName = "qwen-plus"

	maxLoggedBody = 512
)

// ErrToolsUnsupported 抽取场景不需要工具调用
var ErrToolsUnsupported = errors.New("llm: tool calling is not supported by this client")

// StatusError 非200响应，保留状态码供重试判定
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API 请求失败，状态 %d: %s", e.StatusCode, e.Body)
}

// Retryable 限流和服务端错误可重试
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []*schema.Message `json:"messages"`
	Temperature    *float32          `json:"temperature,omitempty"`
	MaxTokens      *int              `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat   `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// QwenChatModel 实现 model.ToolCallingChatModel，只支持非流式的纯文本补全
type QwenChatModel struct {
	apiKey     string
	modelName  string
	apiURL     string
	jsonMode   bool
	httpClient *http.Client
	logger     zerolog.Logger
}

// QwenOption 配置项
type QwenOption func(*QwenChatModel)

// WithHTTPClient 替换默认 HTTP 客户端
func WithHTTPClient(c *http.Client) QwenOption {
	return func(q *QwenChatModel) { q.httpClient = c }
}

// WithJSONMode 要求模型以 JSON 对象格式输出
func WithJSONMode() QwenOption {
	return func(q *QwenChatModel) { q.jsonMode = true }
}

// WithLogger 设置日志记录器
func WithLogger(l zerolog.Logger) QwenOption {
	return func(q *QwenChatModel) { q.logger = l }
}

// NewQwenChatModel 创建通义千问模型客户端，模型名和URL为空时使用默认值
func NewQwenChatModel(apiKey, modelName, apiURL string, opts ...QwenOption) (*QwenChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = DefaultModelName
	}
	if strings.TrimSpace(apiURL) == "" {
		apiURL = DefaultAPIURL
	}
	q := &QwenChatModel{
		apiKey:     apiKey,
		modelName:  modelName,
		apiURL:     apiURL,
		httpClient: &http.Client{},
		logger:     log.Logger.With().Str("component", "qwen").Logger(),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger.Info().Str("api_url", apiURL).Str("model", modelName).Msg("使用阿里云通义千问 LLM 客户端")
	return q, nil
}

// Generate 发送一次补全请求。超时由调用方通过 ctx 控制。
func (q *QwenChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{Model: &q.modelName}, opts...)

	req := chatRequest{
		Model:       q.modelName,
		Messages:    messages,
		Temperature: options.Temperature,
		MaxTokens:   options.MaxTokens,
	}
	if options.Model != nil && *options.Model != "" {
		req.Model = *options.Model
	}
	if q.jsonMode {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, q.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+q.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	q.logger.Debug().Str("model", req.Model).Int("messages", len(messages)).Msg("发送补全请求")

	resp, err := q.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body))}
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("反序列化 API 响应失败: %w。响应体: %s", err, truncate(string(body)))
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("从 API 收到空选项: %s", truncate(string(body)))
	}

	choice := out.Choices[0]
	content := ""
	if choice.Message.Content != nil {
		content = *choice.Message.Content
	}
	q.logger.Debug().
		Str("finish_reason", choice.FinishReason).
		Int("prompt_tokens", out.Usage.PromptTokens).
		Int("completion_tokens", out.Usage.CompletionTokens).
		Msg("收到补全响应")

	msg := schema.AssistantMessage(content, nil)
	if choice.Message.Role != "" {
		msg.Role = schema.RoleType(choice.Message.Role)
	}
	return msg, nil
}

// Stream 未实现
func (q *QwenChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("QwenChatModel 的 Stream 方法未实现")
}

// WithTools 不支持工具调用
func (q *QwenChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	if len(tools) == 0 {
		return q, nil
	}
	return nil, ErrToolsUnsupported
}

var _ model.ToolCallingChatModel = (*QwenChatModel)(nil)

func truncate(s string) string {
	if len(s) <= maxLoggedBody {
		return s
	}
	return s[:maxLoggedBody] + "..."
}
