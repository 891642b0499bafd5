package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"resume-agent-go/internal/logger"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	// DashScope的OpenAI兼容入口
	openAICompatibleAPIURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"
	defaultModelName       = "qwen-plus"
)

// QwenChatModel 通过OpenAI兼容接口调用通义千问
// 抽取流水线只做纯文本补全，不绑定工具；
// 单次调用可用 model.WithModel 覆盖模型档位（不同call_kind走不同档位）
type QwenChatModel struct {
	apiKey     string
	modelName  string
	apiURL     string
	httpClient *http.Client
}

// NewQwenChatModel 创建通义千问聊天模型客户端
func NewQwenChatModel(apiKey, modelName, apiURL string) (*QwenChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API密钥不能为空")
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = defaultModelName
	}
	if strings.TrimSpace(apiURL) == "" {
		apiURL = openAICompatibleAPIURL
	}

	logger.Info().Str("api_url", apiURL).Str("model", modelName).Msg("初始化通义千问客户端")
	return &QwenChatModel{
		apiKey:     apiKey,
		modelName:  modelName,
		apiURL:     apiURL,
		httpClient: &http.Client{},
	}, nil
}

type chatCompletionRequest struct {
	Model    string            `json:"model"`
	Messages []*schema.Message `json:"messages"`
	// Temperature 固定为0，抽取任务要的是确定性而不是创造性
	Temperature float32 `json:"temperature"`
}

type chatChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type chatCompletionResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

// Generate 实现 model.ToolCallingChatModel 接口
func (q *QwenChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{Model: &q.modelName}, opts...)

	reqPayload := chatCompletionRequest{
		Model:    *options.Model,
		Messages: messages,
	}
	if options.Temperature != nil {
		reqPayload.Temperature = *options.Temperature
	}

	jsonData, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, q.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+q.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := q.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API请求失败，状态 %s: %s", httpResp.Status, string(bodyBytes))
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(bodyBytes, &resp); err != nil {
		return nil, fmt.Errorf("反序列化API响应失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("API返回空choices")
	}

	choice := resp.Choices[0]
	role := schema.RoleType(choice.Message.Role)
	if role == "" {
		role = schema.Assistant
	}
	return &schema.Message{Role: role, Content: choice.Message.Content}, nil
}

// Stream 未实现，抽取任务用不到流式输出
func (q *QwenChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("QwenChatModel 未实现Stream")
}

// WithTools 满足 model.ToolCallingChatModel 接口，本模型不使用工具
func (q *QwenChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	if len(tools) > 0 {
		logger.Warn().Int("count", len(tools)).Msg("QwenChatModel 不支持工具绑定，忽略")
	}
	return q, nil
}

var _ model.ToolCallingChatModel = (*QwenChatModel)(nil)
