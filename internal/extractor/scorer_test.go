package extractor

import (
	"context"
	"errors"
	"testing"

	"resume-agent-go/internal/agent"

	"github.com/stretchr/testify/assert"
)

// TestScoreNamePositive 测试肯定判断直接取置信度
func TestScoreNamePositive(t *testing.T) {
	mock := agent.NewMockChatClient(`{"is_name": true, "confidence": 0.9}`, nil)
	s := NewConfidenceScorer(newTestLLMClient(mock))

	score := s.ScoreName(context.Background(), "Jane Doe", "Jane Doe\njane@example.com")
	assert.InDelta(t, 0.9, score, 1e-9)
}

// TestScoreNameNegativeInverts 测试否定判断翻转为低分
func TestScoreNameNegativeInverts(t *testing.T) {
	mock := agent.NewMockChatClient(`{"is_name": false, "confidence": 0.8}`, nil)
	s := NewConfidenceScorer(newTestLLMClient(mock))

	score := s.ScoreName(context.Background(), "Senior Engineer", "Senior Engineer Resume")
	assert.InDelta(t, 0.2, score, 1e-9)
}

// TestScoreNameStringTypedFields 测试模型把布尔和数字返回成字符串也能解析
func TestScoreNameStringTypedFields(t *testing.T) {
	mock := agent.NewMockChatClient(`{"is_name": "true", "confidence": "0.7"}`, nil)
	s := NewConfidenceScorer(newTestLLMClient(mock))

	score := s.ScoreName(context.Background(), "Jane Doe", "")
	assert.InDelta(t, 0.7, score, 1e-9)
}

// TestScoreNameFailClosed 测试任何环节失败都返回0分
func TestScoreNameFailClosed(t *testing.T) {
	cases := []struct {
		name     string
		response string
		err      error
	}{
		{"传输失败", "", errors.New("service unavailable")},
		{"输出不可修复", "这不是一个人名。", nil},
		{"缺少必需键", `{"verdict": "yes"}`, nil},
		{"置信度类型无法解析", `{"is_name": true, "confidence": "high"}`, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mock := agent.NewMockChatClient(tc.response, tc.err)
			s := NewConfidenceScorer(newTestLLMClient(mock))
			assert.Zero(t, s.ScoreName(context.Background(), "Jane Doe", "context"))
		})
	}
}

// TestScoreNameEmptyCandidate 测试空候选不发调用直接0分
func TestScoreNameEmptyCandidate(t *testing.T) {
	mock := agent.NewMockChatClient("", errors.New("不应该被调用"))
	s := NewConfidenceScorer(newTestLLMClient(mock))

	assert.Zero(t, s.ScoreName(context.Background(), "", "context"))
	assert.Empty(t, mock.GetReceivedMessages())
}

// TestScoreNameClamped 测试越界置信度被钳到[0,1]
func TestScoreNameClamped(t *testing.T) {
	mock := agent.NewMockChatClient(`{"is_name": true, "confidence": 1.7}`, nil)
	s := NewConfidenceScorer(newTestLLMClient(mock))

	assert.InDelta(t, 1.0, s.ScoreName(context.Background(), "Jane Doe", ""), 1e-9)
}
