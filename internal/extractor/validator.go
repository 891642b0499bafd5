package extractor

import (
	"context"
	"regexp"
	"strings"

	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/types"
)

var roleWordRegexp = regexp.MustCompile(
	`(?i)\b(?:Engineer|Manager|Developer|Analyst|Specialist|Executive|Consultant|Director|Officer|Resume|Objective|Summary|Profile|Senior|Junior)\b`)

// ValidatorInput 校验一份记录所需的全部上下文
type ValidatorInput struct {
	Record *types.ExtractionRecord
	// Text 规范化文本，懒惰输出检测要对照它
	Text string
	// UnrepairableFields 本文档处理中作废的LLM调用涉及的字段
	UnrepairableFields []string
}

// ExtractionValidator 结构/质量关卡
// 检懒惰输出（LLM原样回吐输入冒充字段值）、必需字段、作废调用，
// 歧义姓名交给打分器；没有任何字段被标记才算accepted
type ExtractionValidator struct {
	scorer         *ConfidenceScorer
	lazyDumpMinLen int
	nameThreshold  float64
}

// NewExtractionValidator 创建校验器
func NewExtractionValidator(scorer *ConfidenceScorer, lazyDumpMinLen int, nameThreshold float64) *ExtractionValidator {
	if lazyDumpMinLen <= 0 {
		lazyDumpMinLen = 40
	}
	if nameThreshold <= 0 {
		nameThreshold = 0.5
	}
	return &ExtractionValidator{
		scorer:         scorer,
		lazyDumpMinLen: lazyDumpMinLen,
		nameThreshold:  nameThreshold,
	}
}

// Validate 对最终记录出具裁决，priorStats是本批次开始时的统计快照
func (v *ExtractionValidator) Validate(ctx context.Context, in ValidatorInput, priorStats map[string]types.FieldStats) types.ValidationVerdict {
	verdict := types.ValidationVerdict{Accepted: true}
	record := in.Record
	var reasons []string

	// 懒惰输出：LLM把输入文本原样回吐冒充字段值
	for _, field := range []string{types.FieldName, types.FieldEmail, types.FieldPhone} {
		if !isAIProvenance(record.Provenance[field]) {
			continue
		}
		if v.isLazyDump(record.FieldValue(field), in.Text) {
			verdict.Flag(field)
			reasons = append(reasons, field+"疑似原文回吐")
		}
	}

	// 歧义姓名走打分器，失败时打分器自身返回0分，这里自然标记
	if record.Name != "" && isAIProvenance(record.Provenance[types.FieldName]) &&
		!flagged(verdict, types.FieldName) && ambiguousName(record.Name) {
		score := v.scorer.ScoreName(ctx, record.Name, in.Text)
		record.SetConfidence(types.FieldName, score)
		if score < v.effectiveNameThreshold(priorStats) {
			verdict.Flag(types.FieldName)
			reasons = append(reasons, "姓名可信度不足")
		}
	}

	// 必需字段：姓名 + 至少一种联系方式
	if record.Name == "" {
		verdict.Flag(types.FieldName)
		reasons = append(reasons, "缺少姓名")
	}
	if !record.HasContact() {
		verdict.Flag(types.FieldEmail)
		verdict.Flag(types.FieldPhone)
		reasons = append(reasons, "缺少联系方式")
	}

	// 作废的LLM调用留下的必需字段缺口
	for _, field := range in.UnrepairableFields {
		if isRequiredField(field) && record.FieldValue(field) == "" {
			verdict.Flag(field)
			reasons = append(reasons, field+"的LLM输出不可修复")
		}
	}

	if len(reasons) > 0 {
		verdict.Reason = strings.Join(dedupe(reasons), "；")
	}
	if !verdict.Accepted {
		logger.Info().
			Str("document_id", record.DocumentID).
			Strs("flagged", verdict.FlaggedFields).
			Str("reason", verdict.Reason).
			Msg("记录未通过校验，转人工复核")
	}
	return verdict
}

// effectiveNameThreshold 姓名修正率过高时收紧阈值
func (v *ExtractionValidator) effectiveNameThreshold(priorStats map[string]types.FieldStats) float64 {
	threshold := v.nameThreshold
	if s, ok := priorStats[types.FieldName]; ok && s.CorrectionRate() > 0.3 {
		threshold += 0.2
		if threshold > 0.9 {
			threshold = 0.9
		}
	}
	return threshold
}

// isLazyDump 字段值够长且是输入的原样片段（或二元组重合超过90%）
func (v *ExtractionValidator) isLazyDump(value, text string) bool {
	if len(value) < v.lazyDumpMinLen {
		return false
	}
	if strings.Contains(text, value) {
		return true
	}
	return bigramOverlap(value, text) > 0.9
}

// bigramOverlap 字段值的字符二元组在输入文本中出现的比例
func bigramOverlap(value, text string) float64 {
	valueRunes := []rune(value)
	if len(valueRunes) < 2 {
		return 0
	}
	textBigrams := make(map[string]bool)
	textRunes := []rune(text)
	for i := 0; i+1 < len(textRunes); i++ {
		textBigrams[string(textRunes[i:i+2])] = true
	}
	hit := 0
	total := len(valueRunes) - 1
	for i := 0; i+1 < len(valueRunes); i++ {
		if textBigrams[string(valueRunes[i:i+2])] {
			hit++
		}
	}
	return float64(hit) / float64(total)
}

// ambiguousName 形状可疑的姓名才值得花一次打分调用
func ambiguousName(name string) bool {
	if roleWordRegexp.MatchString(name) {
		return true
	}
	return !nameLineRegexp.MatchString(name)
}

func isAIProvenance(p types.Provenance) bool {
	return p == types.ProvenanceAIHeader || p == types.ProvenanceAIDeep || p == types.ProvenanceAIFallback
}

func isRequiredField(field string) bool {
	return field == types.FieldName || field == types.FieldEmail || field == types.FieldPhone
}

func flagged(verdict types.ValidationVerdict, field string) bool {
	for _, f := range verdict.FlaggedFields {
		if f == field {
			return true
		}
	}
	return false
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}
