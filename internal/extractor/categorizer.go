package extractor

import (
	"context"
	"fmt"
	"strings"

	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/types"
)

// DeepCategorizer 对模式抽取到的技能token做一次批量LLM分类
// 输入永远是token列表而不是原始文档，LLM最多犯"分错类"的错，不会凭空发明技能
type DeepCategorizer struct {
	llm *LLMClient
}

// NewDeepCategorizer 创建技能分类器
func NewDeepCategorizer(llm *LLMClient) *DeepCategorizer {
	return &DeepCategorizer{llm: llm}
}

var categorizeSchema = types.SchemaDescriptor{
	Kind:         types.ShapeObject,
	RequiredKeys: []string{"technical", "soft"},
}

// NeedsCategorization 判断是否值得花一次LLM调用
// 关键词临时分类已经清晰（token够多且两类都有）时不再请求模型
func NeedsCategorization(skills []types.SkillEntry) bool {
	if len(skills) == 0 {
		return false
	}
	if len(skills) < 5 {
		return true
	}
	technical, soft := 0, 0
	for _, s := range skills {
		switch KeywordCategory(s.Token) {
		case constants.CategoryTechnical:
			technical++
		case constants.CategorySoft:
			soft++
		}
	}
	return technical == 0 || soft == 0
}

// Categorize 返回带类别的新切片，顺序与输入一致
// 不需要LLM时直接套用关键词类别；LLM失败时所有token保持空类别、source=pattern
func (c *DeepCategorizer) Categorize(ctx context.Context, skills []types.SkillEntry) []types.SkillEntry {
	if len(skills) == 0 {
		return skills
	}

	if !NeedsCategorization(skills) {
		out := make([]types.SkillEntry, len(skills))
		for i, s := range skills {
			out[i] = s
			out[i].Category = KeywordCategory(s.Token)
		}
		logger.Debug().Int("count", len(out)).Msg("关键词分类已清晰，跳过LLM")
		return out
	}

	tokens := make([]string, 0, len(skills))
	for i, s := range skills {
		if i == 40 {
			break
		}
		tokens = append(tokens, s.Token)
	}

	system := "你是技能分类助手。把给定的技能词条分为技术类(technical)和软技能类(soft)。" +
		`只返回JSON，格式：{"technical": ["..."], "soft": ["..."]}，不要任何解释。`
	user := fmt.Sprintf("技能列表：%s", strings.Join(tokens, ", "))

	rawText, err := c.llm.Call(ctx, types.CallCategorize, system, user)
	if err != nil {
		logger.Warn().Err(err).Msg("技能分类调用失败，token保持未分类")
		return skills
	}

	outcome := Repair(types.RawModelResponse{
		RawText:  rawText,
		Expected: categorizeSchema,
		CallKind: types.CallCategorize,
	})
	if outcome.Unusable() {
		logger.Warn().Err(ErrSchemaViolation).Strs("issues", outcome.Issues).Msg("技能分类输出不可修复，token保持未分类")
		return skills
	}

	obj, ok := outcome.Value.(map[string]interface{})
	if !ok {
		return skills
	}
	labels := make(map[string]string)
	collectLabels(labels, obj["technical"], constants.CategoryTechnical)
	collectLabels(labels, obj["soft"], constants.CategorySoft)

	out := make([]types.SkillEntry, len(skills))
	for i, s := range skills {
		out[i] = s
		if category, found := labels[strings.ToLower(s.Token)]; found {
			out[i].Category = category
			out[i].Source = types.SourceAI
		}
	}
	return out
}

func collectLabels(labels map[string]string, value interface{}, category string) {
	list, ok := value.([]interface{})
	if !ok {
		return
	}
	for _, item := range list {
		if s, ok := item.(string); ok {
			labels[strings.ToLower(strings.TrimSpace(s))] = category
		}
	}
}
