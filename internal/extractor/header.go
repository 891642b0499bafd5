package extractor

import (
	"context"
	"fmt"
	"strings"

	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/types"
)

// HeaderFields 头部LLM抽取的产出
// Unrepairable为真表示该次调用作废（传输失败或修复链耗尽），字段全空
type HeaderFields struct {
	Name         string
	Email        string
	Phone        string
	Unrepairable bool
}

// HeaderExtractor 对文本前K个字符做一次LLM快速抽取
// 每份文档只发一次调用，失败时退化为空结果，绝不阻塞流水线
type HeaderExtractor struct {
	llm         *LLMClient
	headerChars int
}

// NewHeaderExtractor 创建头部抽取器
func NewHeaderExtractor(llm *LLMClient, headerChars int) *HeaderExtractor {
	if headerChars <= 0 {
		headerChars = 3000
	}
	return &HeaderExtractor{llm: llm, headerChars: headerChars}
}

var headerSchema = types.SchemaDescriptor{
	Kind:         types.ShapeObject,
	RequiredKeys: []string{"name", "email", "phone"},
}

// Extract 发起头部抽取调用并走修复链
func (h *HeaderExtractor) Extract(ctx context.Context, text string) HeaderFields {
	segment := truncateRunes(text, h.headerChars)

	system := "你是简历信息抽取助手。从简历开头部分提取候选人的姓名、邮箱、电话。" +
		`只返回JSON，格式：{"name": "...", "email": "...", "phone": "..."}，找不到的字段填空字符串，不要任何解释。`
	user := fmt.Sprintf("简历开头：\n%s", segment)

	rawText, err := h.llm.Call(ctx, types.CallHeader, system, user)
	if err != nil {
		logger.Warn().Err(err).Msg("头部抽取调用失败，走模式结果兜底")
		return HeaderFields{Unrepairable: true}
	}

	outcome := Repair(types.RawModelResponse{
		RawText:  rawText,
		Expected: headerSchema,
		CallKind: types.CallHeader,
	})
	if outcome.Unusable() {
		logger.Warn().Err(ErrSchemaViolation).Strs("issues", outcome.Issues).Msg("头部抽取输出不可修复")
		return HeaderFields{Unrepairable: true}
	}

	obj, ok := outcome.Value.(map[string]interface{})
	if !ok {
		return HeaderFields{Unrepairable: true}
	}
	return HeaderFields{
		Name:  CleanName(stringField(obj, "name")),
		Email: strings.TrimSpace(stringField(obj, "email")),
		Phone: strings.TrimSpace(stringField(obj, "phone")),
	}
}

func stringField(obj map[string]interface{}, key string) string {
	if s, ok := obj[key].(string); ok {
		return s
	}
	return ""
}

// MergeHeader 把模式结果和头部LLM结果合并进记录
// 高可信的确定性命中（严格邮箱、标准化成功的电话）永远压过LLM值，
// LLM只补缺口；姓名没有"高可信"概念，LLM值优先、模式候选兜底
func MergeHeader(record *types.ExtractionRecord, pat PatternResult, hdr HeaderFields) {
	// 邮箱
	if pat.StrictEmail {
		record.SetField(types.FieldEmail, pat.Email, types.ProvenancePattern)
	} else if hdr.Email != "" {
		record.SetField(types.FieldEmail, hdr.Email, types.ProvenanceAIHeader)
	}

	// 电话
	if pat.Phone != "" {
		record.SetField(types.FieldPhone, pat.Phone, types.ProvenancePattern)
	} else if hdr.Phone != "" {
		record.SetField(types.FieldPhone, StandardizePhone(hdr.Phone), types.ProvenanceAIHeader)
	}

	// 姓名
	if hdr.Name != "" {
		record.SetField(types.FieldName, hdr.Name, types.ProvenanceAIHeader)
	} else if pat.Name != "" {
		record.SetField(types.FieldName, pat.Name, types.ProvenancePattern)
	}
}
