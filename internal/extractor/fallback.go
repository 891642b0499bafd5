package extractor

import (
	"context"
	"fmt"
	"strings"

	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/types"
)

// FallbackExtractor 合并后仍缺关键字段时的最后一搏
// 每个缺失字段发一次标量调用，答案必须通过字段专属校验才采纳
type FallbackExtractor struct {
	llm           *LLMClient
	fallbackChars int
}

// NewFallbackExtractor 创建兜底抽取器
func NewFallbackExtractor(llm *LLMClient, fallbackChars int) *FallbackExtractor {
	if fallbackChars <= 0 {
		fallbackChars = 1500
	}
	return &FallbackExtractor{llm: llm, fallbackChars: fallbackChars}
}

var fallbackSchema = types.SchemaDescriptor{Kind: types.ShapeScalar}

var fallbackPrompts = map[string]string{
	types.FieldName:  "从文本中找出这个人的姓名。只返回姓名本身，不要任何解释。例如：John Smith 或 田中太郎",
	types.FieldPhone: "从文本中找出电话号码。只返回号码本身，不要任何解释。例如：090-1234-5678",
}

// ExtractField 对单个缺失字段发起兜底抽取，失败或答案不合格返回空串
func (f *FallbackExtractor) ExtractField(ctx context.Context, text, field string) string {
	system, known := fallbackPrompts[field]
	if !known {
		return ""
	}

	user := fmt.Sprintf("文本：\n%s", truncateRunes(text, f.fallbackChars))

	rawText, err := f.llm.Call(ctx, types.CallFallbackField, system, user)
	if err != nil {
		logger.Warn().Err(err).Str("field", field).Msg("兜底抽取调用失败")
		return ""
	}

	outcome := Repair(types.RawModelResponse{
		RawText:  rawText,
		Expected: fallbackSchema,
		CallKind: types.CallFallbackField,
	})
	if outcome.Unusable() {
		return ""
	}
	answer, ok := outcome.Value.(string)
	if !ok {
		return ""
	}
	// 取首行，小模型爱在答案后面跟废话
	answer = strings.TrimSpace(strings.SplitN(answer, "\n", 2)[0])

	switch field {
	case types.FieldName:
		name := CleanName(answer)
		if plausibleNameLine(name) && strings.Contains(name, " ") {
			return name
		}
	case types.FieldPhone:
		if phone := StandardizePhone(answer); phone != "" {
			digits := nonDigitRegexp.ReplaceAllString(phone, "")
			if len(digits) >= 10 && len(digits) <= 15 {
				return phone
			}
		}
	}
	logger.Debug().Str("field", field).Str("answer", answer).Msg("兜底抽取答案未通过校验")
	return ""
}
