package extractor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"resume-agent-go/internal/types"
)

// ErrSchemaViolation 修复链耗尽，该次LLM输出作废
var ErrSchemaViolation = errors.New("LLM输出无法修复为预期结构")

// Repair 把一次LLM的原始输出规整为预期结构，失败时干净地报告unrepairable。
// 修复顺序固定，首个成功者生效：
//  1. 直接按预期结构解析 -> clean
//  2. 期望序列但返回标量 -> 包成单元素序列 -> repaired
//  3. 序列元素形状不符 -> 逐元素转换，无法转换的丢弃并计数 -> repaired
//  4. 结构化内容被说明文字包裹 -> 提取第一个配平片段后重试1-3
//  5. 全部失败 -> unrepairable
//
// 对同一输入重复调用结果相同（确定性），这是它能当流水线关卡用的前提。
func Repair(raw types.RawModelResponse) types.RepairOutcome {
	cleaned := stripMarkdownFences(raw.RawText)

	// 步骤1-3：直接解析
	if value, issues, ok := parseAs(cleaned, raw.Expected); ok {
		return outcomeFor(value, issues)
	}

	// 步骤4：从说明文字中提取配平片段后重试
	if span := embeddedSpan(cleaned, raw.Expected); span != "" && span != cleaned {
		if value, issues, ok := parseAs(span, raw.Expected); ok {
			issues = append(issues, "从说明文字中提取了结构化片段")
			return types.RepairOutcome{Status: types.RepairRepaired, Value: value, Issues: issues}
		}
	}

	return types.RepairOutcome{
		Status: types.RepairUnrepairable,
		Issues: []string{fmt.Sprintf("无法按%s解析响应", raw.Expected.Kind)},
	}
}

// outcomeFor 根据是否发生过转换决定clean/repaired
func outcomeFor(value interface{}, issues []string) types.RepairOutcome {
	if len(issues) == 0 {
		return types.RepairOutcome{Status: types.RepairClean, Value: value}
	}
	return types.RepairOutcome{Status: types.RepairRepaired, Value: value, Issues: issues}
}

// embeddedSpan 根据预期结构选择要提取的片段类型
func embeddedSpan(text string, expected types.SchemaDescriptor) string {
	switch expected.Kind {
	case types.ShapeObject:
		return extractBalancedSpan(text, '{', '}')
	case types.ShapeStringList, types.ShapeObjectList:
		if span := extractBalancedSpan(text, '[', ']'); span != "" {
			return span
		}
		// 序列也可能被包在对象里返回
		return extractBalancedSpan(text, '{', '}')
	default:
		if span := extractBalancedSpan(text, '{', '}'); span != "" {
			return span
		}
		return extractBalancedSpan(text, '[', ']')
	}
}

// parseAs 解析文本并规整为预期结构
// 返回 (值, 转换记录, 是否成功)；issues非空表示发生过修复
func parseAs(text string, expected types.SchemaDescriptor) (interface{}, []string, bool) {
	if strings.TrimSpace(text) == "" {
		return nil, nil, false
	}

	var decoded interface{}
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		// 标量目标允许裸文本（模型直接回答了一个词或数字）
		if expected.Kind == types.ShapeScalar {
			return strings.TrimSpace(text), []string{"标量为裸文本而非JSON"}, true
		}
		return nil, nil, false
	}

	return conform(decoded, expected)
}

// conform 把已解码的JSON值规整为预期结构
func conform(decoded interface{}, expected types.SchemaDescriptor) (interface{}, []string, bool) {
	switch expected.Kind {
	case types.ShapeScalar:
		return conformScalar(decoded)
	case types.ShapeStringList:
		return conformStringList(decoded, expected)
	case types.ShapeObject:
		return conformObject(decoded, expected)
	case types.ShapeObjectList:
		return conformObjectList(decoded, expected)
	}
	return nil, nil, false
}

func conformScalar(decoded interface{}) (interface{}, []string, bool) {
	switch v := decoded.(type) {
	case string, float64, bool:
		return v, nil, true
	case []interface{}:
		// 期望标量但返回了序列：取首个可用标量
		for _, item := range v {
			switch s := item.(type) {
			case string, float64, bool:
				return s, []string{"期望标量但收到序列，取首元素"}, true
			}
		}
	case map[string]interface{}:
		// 单键对象降级为其值
		if len(v) == 1 {
			for _, item := range v {
				if out, issues, ok := conformScalar(item); ok {
					return out, append(issues, "期望标量但收到单键对象，取其值"), true
				}
			}
		}
	}
	return nil, nil, false
}

func conformStringList(decoded interface{}, expected types.SchemaDescriptor) (interface{}, []string, bool) {
	switch v := decoded.(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		dropped := 0
		objectCoerced := false
		for _, item := range v {
			switch e := item.(type) {
			case string:
				if s := strings.TrimSpace(e); s != "" {
					out = append(out, s)
				} else {
					dropped++
				}
			case float64:
				out = append(out, strings.TrimSpace(fmt.Sprintf("%v", e)))
			case map[string]interface{}:
				// 对象序列降级为标量序列：取约定字段
				if s, ok := e[expected.ElementField].(string); ok && strings.TrimSpace(s) != "" {
					out = append(out, strings.TrimSpace(s))
					objectCoerced = true
				} else {
					dropped++
				}
			default:
				dropped++
			}
		}
		var issues []string
		if objectCoerced {
			issues = append(issues, fmt.Sprintf("对象元素按字段%q降级为标量", expected.ElementField))
		}
		if dropped > 0 {
			issues = append(issues, fmt.Sprintf("丢弃了%d个无法转换的元素", dropped))
		}
		return out, issues, true
	case string:
		// 期望序列但返回标量：包成单元素序列
		s := strings.TrimSpace(v)
		if s == "" {
			return []string{}, []string{"标量为空，返回空序列"}, true
		}
		return []string{s}, []string{"期望序列但收到标量，已包装"}, true
	case map[string]interface{}:
		// 序列被包在单键对象里
		if len(v) == 1 {
			for _, inner := range v {
				if out, issues, ok := conformStringList(inner, expected); ok {
					return out, append(issues, "序列被包在单键对象中"), true
				}
			}
		}
	}
	return nil, nil, false
}

func conformObject(decoded interface{}, expected types.SchemaDescriptor) (interface{}, []string, bool) {
	switch v := decoded.(type) {
	case map[string]interface{}:
		missing := 0
		for _, key := range expected.RequiredKeys {
			if _, ok := v[key]; !ok {
				missing++
			}
		}
		if missing == len(expected.RequiredKeys) && len(expected.RequiredKeys) > 0 {
			return nil, nil, false
		}
		var issues []string
		if missing > 0 {
			issues = append(issues, fmt.Sprintf("缺少%d个必需键", missing))
		}
		return v, issues, true
	case []interface{}:
		// 期望对象但返回对象序列：取首个符合的对象
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				if out, issues, ok2 := conformObject(m, expected); ok2 {
					return out, append(issues, "期望对象但收到序列，取首个对象"), true
				}
			}
		}
	}
	return nil, nil, false
}

func conformObjectList(decoded interface{}, expected types.SchemaDescriptor) (interface{}, []string, bool) {
	switch v := decoded.(type) {
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(v))
		dropped := 0
		wrapped := false
		for _, item := range v {
			switch e := item.(type) {
			case map[string]interface{}:
				out = append(out, e)
			case string:
				// 标量序列升级为对象序列：包进约定字段
				if expected.ElementField != "" && strings.TrimSpace(e) != "" {
					out = append(out, map[string]interface{}{expected.ElementField: strings.TrimSpace(e)})
					wrapped = true
				} else {
					dropped++
				}
			default:
				dropped++
			}
		}
		var issues []string
		if wrapped {
			issues = append(issues, fmt.Sprintf("标量元素已包进字段%q", expected.ElementField))
		}
		if dropped > 0 {
			issues = append(issues, fmt.Sprintf("丢弃了%d个无法转换的元素", dropped))
		}
		return out, issues, true
	case map[string]interface{}:
		// 单个对象当作单元素序列
		return []map[string]interface{}{v}, []string{"期望对象序列但收到单个对象，已包装"}, true
	}
	return nil, nil, false
}
