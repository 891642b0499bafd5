package extractor

import (
	"context"
	"errors"
	"testing"

	"resume-agent-go/internal/agent"
	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func patternSkills(tokens ...string) []types.SkillEntry {
	skills := make([]types.SkillEntry, 0, len(tokens))
	for _, token := range tokens {
		skills = append(skills, types.SkillEntry{Token: token, Source: types.SourcePattern})
	}
	return skills
}

// TestNeedsCategorization 测试LLM调用的自门控判断
func TestNeedsCategorization(t *testing.T) {
	// 没有技能不需要分类
	assert.False(t, NeedsCategorization(nil))
	// token太少，关键词分类不可靠
	assert.True(t, NeedsCategorization(patternSkills("Python", "Leadership")))
	// token够多且两类都有，跳过LLM
	assert.False(t, NeedsCategorization(patternSkills("Python", "SQL", "Docker", "Leadership", "Communication")))
	// token够多但全偏一类，仍值得一次调用
	assert.True(t, NeedsCategorization(patternSkills("Python", "SQL", "Docker", "AWS", "Linux")))
}

// TestCategorizeKeywordPath 测试关键词分类清晰时不发LLM调用
func TestCategorizeKeywordPath(t *testing.T) {
	mock := agent.NewMockChatClient("", errors.New("不应该被调用"))
	c := NewDeepCategorizer(newTestLLMClient(mock))

	skills := patternSkills("Python", "SQL", "Docker", "Leadership", "Communication")
	out := c.Categorize(context.Background(), skills)

	require.Len(t, out, 5)
	assert.Equal(t, constants.CategoryTechnical, out[0].Category)
	assert.Equal(t, constants.CategorySoft, out[3].Category)
	// 关键词路径不改来源
	for _, s := range out {
		assert.Equal(t, types.SourcePattern, s.Source)
	}
	assert.Empty(t, mock.GetReceivedMessages())
}

// TestCategorizeLLMPath 测试LLM分类成功时命中的token带上类别且来源变为ai
func TestCategorizeLLMPath(t *testing.T) {
	mock := agent.NewMockChatClient(`{"technical": ["Python"], "soft": ["Teamwork"]}`, nil)
	c := NewDeepCategorizer(newTestLLMClient(mock))

	out := c.Categorize(context.Background(), patternSkills("Python", "Teamwork"))

	require.Len(t, out, 2)
	assert.Equal(t, constants.CategoryTechnical, out[0].Category)
	assert.Equal(t, types.SourceAI, out[0].Source)
	assert.Equal(t, constants.CategorySoft, out[1].Category)
	assert.Equal(t, types.SourceAI, out[1].Source)
	assert.NotEmpty(t, mock.GetReceivedMessages())
}

// TestCategorizeUnmatchedTokenKeptUncategorized 测试响应没提到的token保持原样
func TestCategorizeUnmatchedTokenKeptUncategorized(t *testing.T) {
	mock := agent.NewMockChatClient(`{"technical": ["Python"], "soft": []}`, nil)
	c := NewDeepCategorizer(newTestLLMClient(mock))

	out := c.Categorize(context.Background(), patternSkills("Python", "Basket Weaving"))

	require.Len(t, out, 2)
	assert.Equal(t, constants.CategoryTechnical, out[0].Category)
	assert.Empty(t, out[1].Category)
	assert.Equal(t, types.SourcePattern, out[1].Source)
}

// TestCategorizeFailureKeepsInput 测试LLM失败时token保持未分类
func TestCategorizeFailureKeepsInput(t *testing.T) {
	skills := patternSkills("Python", "Teamwork")

	// 传输失败
	c := NewDeepCategorizer(newTestLLMClient(agent.NewMockChatClient("", errors.New("timeout forever"))))
	out := c.Categorize(context.Background(), skills)
	assert.Equal(t, skills, out)

	// 输出不可修复
	c = NewDeepCategorizer(newTestLLMClient(agent.NewMockChatClient("无法分类这些词条。", nil)))
	out = c.Categorize(context.Background(), skills)
	assert.Equal(t, skills, out)
}

// TestCategorizeEmptyInput 测试空输入直接返回
func TestCategorizeEmptyInput(t *testing.T) {
	c := NewDeepCategorizer(newTestLLMClient(agent.NewMockChatClient("", errors.New("不应该被调用"))))
	assert.Empty(t, c.Categorize(context.Background(), nil))
}
