package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/types"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
)

// ErrLLMTransport LLM不可达或超时，调用方走回退路径，永不致命
var ErrLLMTransport = errors.New("LLM调用失败")

// LLMClient 封装对模型服务的调用：超时、重试、退避
// 所有call_kind共用这一个入口，模型档位由调用方传入
type LLMClient struct {
	model       model.ToolCallingChatModel
	callTimeout time.Duration
	maxRetries  int
	retryWait   time.Duration
	// taskModels 按call_kind覆盖模型档位，空则用模型默认档位
	taskModels map[string]string
}

// NewLLMClient 创建LLM调用客户端
func NewLLMClient(m model.ToolCallingChatModel, callTimeout time.Duration, maxRetries int, retryWait time.Duration) *LLMClient {
	if callTimeout <= 0 {
		callTimeout = 60 * time.Second
	}
	if retryWait <= 0 {
		retryWait = 2 * time.Second
	}
	return &LLMClient{
		model:       m,
		callTimeout: callTimeout,
		maxRetries:  maxRetries,
		retryWait:   retryWait,
	}
}

// SetTaskModels 配置按call_kind区分的模型档位
// 便宜任务（兜底抽取、姓名判断）可以走低档模型
func (c *LLMClient) SetTaskModels(models map[string]string) {
	c.taskModels = models
}

// Call 执行一次LLM调用，返回原始文本响应
// 传输类错误按指数退避重试；超时或重试耗尽返回包装后的ErrLLMTransport
func (c *LLMClient) Call(ctx context.Context, kind types.CallKind, systemContent, userContent string) (string, error) {
	messages := []*einoschema.Message{
		{Role: "system", Content: systemContent},
		{Role: "user", Content: userContent},
	}

	var callOpts []model.Option
	if name := c.taskModels[string(kind)]; name != "" {
		callOpts = append(callOpts, model.WithModel(name))
	}

	retryDelay := c.retryWait
	var response *einoschema.Message
	var err error

	for retry := 0; retry <= c.maxRetries; retry++ {
		if retry > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: 上下文已取消: %v", ErrLLMTransport, ctx.Err())
			case <-time.After(retryDelay):
				retryDelay *= 2
				logger.Debug().Str("call_kind", string(kind)).Int("retry", retry).Msg("重试LLM调用")
			}
		}

		// 每次调用带独立超时，继承上游取消信号
		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		response, err = c.model.Generate(callCtx, messages, callOpts...)
		cancel()

		if err == nil {
			break
		}

		if !isRetryableError(err) || retry >= c.maxRetries {
			logger.Warn().Err(err).Str("call_kind", string(kind)).Msg("LLM调用最终失败")
			return "", fmt.Errorf("%w (%s): %v", ErrLLMTransport, kind, err)
		}
	}

	if response == nil {
		return "", fmt.Errorf("%w (%s): 空响应", ErrLLMTransport, kind)
	}
	return response.Content, nil
}

// isRetryableError 判断错误是否应该重试
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host")
}

// extractBalancedSpan 从混有说明文字的响应中提取第一个配平的JSON片段
// open/close 为 '{'/'}' 或 '['/']'
func extractBalancedSpan(text string, open, close byte) string {
	start := strings.IndexByte(text, open)
	if start == -1 {
		return ""
	}

	level := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			if escaped {
				escaped = false
			} else if ch == '\\' {
				escaped = true
			} else if ch == '"' {
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			level++
		case close:
			level--
			if level == 0 {
				return strings.TrimSpace(text[start : i+1])
			}
		}
	}
	return ""
}

// stripMarkdownFences 去掉 ```json ... ``` 代码块标记
func stripMarkdownFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}
