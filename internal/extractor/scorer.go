package extractor

import (
	"context"
	"fmt"
	"strconv"

	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/types"
)

// ConfidenceScorer 对歧义短串给出[0,1]的可信度分数
// 典型问题："Senior Engineer"是人名吗？
// 任何环节失败都返回0.0（fail closed）：打分器失效时宁可多送人工复核
type ConfidenceScorer struct {
	llm *LLMClient
}

// NewConfidenceScorer 创建可信度打分器
func NewConfidenceScorer(llm *LLMClient) *ConfidenceScorer {
	return &ConfidenceScorer{llm: llm}
}

var nameValidationSchema = types.SchemaDescriptor{
	Kind:         types.ShapeObject,
	RequiredKeys: []string{"is_name", "confidence"},
}

// ScoreName 判断候选串是不是真实人名，contextText为候选串出现的上下文
func (s *ConfidenceScorer) ScoreName(ctx context.Context, candidate, contextText string) float64 {
	if candidate == "" {
		return 0.0
	}
	contextText = truncateRunes(contextText, 500)

	system := "你是判定助手。判断给定文本是不是一个真实的人名。" +
		"真实人名如 John Smith、田中太郎；不是人名的如 Engineer、Resume、职歴。" +
		`只返回JSON，格式：{"is_name": true, "confidence": 0.8}，不要任何解释。`
	user := fmt.Sprintf("候选文本：%q\n\n出现的上下文：\n%s", candidate, contextText)

	rawText, err := s.llm.Call(ctx, types.CallNameValidation, system, user)
	if err != nil {
		logger.Warn().Err(err).Str("candidate", candidate).Msg("姓名打分调用失败，记0分")
		return 0.0
	}

	outcome := Repair(types.RawModelResponse{
		RawText:  rawText,
		Expected: nameValidationSchema,
		CallKind: types.CallNameValidation,
	})
	if outcome.Unusable() {
		logger.Warn().Err(ErrSchemaViolation).Strs("issues", outcome.Issues).Msg("姓名打分输出不可修复，记0分")
		return 0.0
	}

	obj, ok := outcome.Value.(map[string]interface{})
	if !ok {
		return 0.0
	}
	isName, ok1 := boolField(obj, "is_name")
	confidence, ok2 := floatField(obj, "confidence")
	if !ok1 || !ok2 {
		return 0.0
	}

	// 否定判断翻转为低分
	if !isName {
		confidence = 1.0 - confidence
	}
	return clamp01(confidence)
}

func boolField(obj map[string]interface{}, key string) (bool, bool) {
	switch v := obj[key].(type) {
	case bool:
		return v, true
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b, true
		}
	}
	return false, false
}

func floatField(obj map[string]interface{}, key string) (float64, bool) {
	switch v := obj[key].(type) {
	case float64:
		return v, true
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
