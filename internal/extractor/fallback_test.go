package extractor

import (
	"context"
	"errors"
	"testing"

	"resume-agent-go/internal/agent"
	"resume-agent-go/internal/types"

	"github.com/stretchr/testify/assert"
)

// TestFallbackExtractName 测试姓名兜底：答案须过清洗和形状校验
func TestFallbackExtractName(t *testing.T) {
	mock := agent.NewMockChatClient("Dr. Jane Doe", nil)
	f := NewFallbackExtractor(newTestLLMClient(mock), 1500)

	name := f.ExtractField(context.Background(), "some resume text", types.FieldName)
	assert.Equal(t, "Jane Doe", name)
}

// TestFallbackExtractNameTakesFirstLine 测试只取答案首行，后面的废话被丢掉
func TestFallbackExtractNameTakesFirstLine(t *testing.T) {
	mock := agent.NewMockChatClient("Jane Doe\n这是我从文本第一行找到的姓名。", nil)
	f := NewFallbackExtractor(newTestLLMClient(mock), 1500)

	name := f.ExtractField(context.Background(), "some resume text", types.FieldName)
	assert.Equal(t, "Jane Doe", name)
}

// TestFallbackRejectsImplausibleName 测试不像姓名的答案被拒绝
func TestFallbackRejectsImplausibleName(t *testing.T) {
	cases := map[string]string{
		"单个词没有空格":  "Jane",
		"节区标题":     "Professional Summary",
		"整句话而不是姓名": "The candidate name is not present in this document at all",
	}
	for label, answer := range cases {
		t.Run(label, func(t *testing.T) {
			mock := agent.NewMockChatClient(answer, nil)
			f := NewFallbackExtractor(newTestLLMClient(mock), 1500)
			assert.Empty(t, f.ExtractField(context.Background(), "text", types.FieldName))
		})
	}
}

// TestFallbackExtractPhone 测试电话兜底：答案须能标准化且位数合理
func TestFallbackExtractPhone(t *testing.T) {
	mock := agent.NewMockChatClient("555.123.4567", nil)
	f := NewFallbackExtractor(newTestLLMClient(mock), 1500)

	phone := f.ExtractField(context.Background(), "text", types.FieldPhone)
	assert.Equal(t, "(555) 123-4567", phone)
}

// TestFallbackRejectsShortPhone 测试位数不足的答案被拒绝
func TestFallbackRejectsShortPhone(t *testing.T) {
	mock := agent.NewMockChatClient("12345", nil)
	f := NewFallbackExtractor(newTestLLMClient(mock), 1500)

	assert.Empty(t, f.ExtractField(context.Background(), "text", types.FieldPhone))
}

// TestFallbackUnknownField 测试没有兜底提示词的字段不发调用
func TestFallbackUnknownField(t *testing.T) {
	mock := agent.NewMockChatClient("", errors.New("不应该被调用"))
	f := NewFallbackExtractor(newTestLLMClient(mock), 1500)

	assert.Empty(t, f.ExtractField(context.Background(), "text", types.FieldEmail))
	assert.Empty(t, mock.GetReceivedMessages())
}

// TestFallbackTransportFailure 测试调用失败返回空串
func TestFallbackTransportFailure(t *testing.T) {
	mock := agent.NewMockChatClient("", errors.New("service unavailable"))
	f := NewFallbackExtractor(newTestLLMClient(mock), 1500)

	assert.Empty(t, f.ExtractField(context.Background(), "text", types.FieldName))
}
