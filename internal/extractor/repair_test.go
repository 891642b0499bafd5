package extractor

import (
	"testing"

	"resume-agent-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRepairCleanObject 测试符合预期结构的输出直接通过，状态为clean
func TestRepairCleanObject(t *testing.T) {
	outcome := Repair(types.RawModelResponse{
		RawText:  `{"name": "Jane Doe", "email": "jane@example.com", "phone": "090-1234-5678"}`,
		Expected: types.SchemaDescriptor{Kind: types.ShapeObject, RequiredKeys: []string{"name", "email", "phone"}},
		CallKind: types.CallHeader,
	})

	require.Equal(t, types.RepairClean, outcome.Status)
	assert.False(t, outcome.Unusable())
	assert.Empty(t, outcome.Issues)

	obj, ok := outcome.Value.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Jane Doe", obj["name"])
}

// TestRepairMarkdownFences 测试去掉```json代码块标记后解析
func TestRepairMarkdownFences(t *testing.T) {
	outcome := Repair(types.RawModelResponse{
		RawText:  "```json\n{\"name\": \"Jane Doe\", \"email\": \"\", \"phone\": \"\"}\n```",
		Expected: types.SchemaDescriptor{Kind: types.ShapeObject, RequiredKeys: []string{"name", "email", "phone"}},
		CallKind: types.CallHeader,
	})

	require.Equal(t, types.RepairClean, outcome.Status)
	obj, ok := outcome.Value.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Jane Doe", obj["name"])
}

// TestRepairScalarWrappedAsList 测试期望序列但收到标量时包成单元素序列
func TestRepairScalarWrappedAsList(t *testing.T) {
	outcome := Repair(types.RawModelResponse{
		RawText:  `"Python"`,
		Expected: types.SchemaDescriptor{Kind: types.ShapeStringList},
		CallKind: types.CallCategorize,
	})

	require.Equal(t, types.RepairRepaired, outcome.Status)
	assert.Equal(t, []string{"Python"}, outcome.Value)
	assert.Contains(t, outcome.Issues, "期望序列但收到标量，已包装")
}

// TestRepairEmptyScalarAsList 测试期望序列但收到空标量时返回空序列而非包装空串
func TestRepairEmptyScalarAsList(t *testing.T) {
	outcome := Repair(types.RawModelResponse{
		RawText:  `"  "`,
		Expected: types.SchemaDescriptor{Kind: types.ShapeStringList},
		CallKind: types.CallCategorize,
	})

	require.Equal(t, types.RepairRepaired, outcome.Status)
	assert.Equal(t, []string{}, outcome.Value)
	assert.Contains(t, outcome.Issues, "标量为空，返回空序列")
}

// TestRepairStringListDropsBadElements 测试序列里无法转换的元素被丢弃并计数
func TestRepairStringListDropsBadElements(t *testing.T) {
	outcome := Repair(types.RawModelResponse{
		RawText:  `["Go", 5, {"token": "SQL"}, null]`,
		Expected: types.SchemaDescriptor{Kind: types.ShapeStringList, ElementField: "token"},
		CallKind: types.CallCategorize,
	})

	require.Equal(t, types.RepairRepaired, outcome.Status)
	assert.Equal(t, []string{"Go", "5", "SQL"}, outcome.Value)
	assert.Contains(t, outcome.Issues, "丢弃了1个无法转换的元素")
}

// TestRepairEmbeddedSpan 测试从说明文字中提取配平的JSON片段
func TestRepairEmbeddedSpan(t *testing.T) {
	outcome := Repair(types.RawModelResponse{
		RawText:  `好的，我分析了这份简历，结果如下：{"name": "Jane Doe", "email": "jane@example.com", "phone": ""}，希望有帮助。`,
		Expected: types.SchemaDescriptor{Kind: types.ShapeObject, RequiredKeys: []string{"name", "email", "phone"}},
		CallKind: types.CallHeader,
	})

	require.Equal(t, types.RepairRepaired, outcome.Status)
	assert.Contains(t, outcome.Issues, "从说明文字中提取了结构化片段")

	obj, ok := outcome.Value.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "jane@example.com", obj["email"])
}

// TestRepairObjectMissingSomeKeys 测试部分必需键缺失时降级通过并记录问题
func TestRepairObjectMissingSomeKeys(t *testing.T) {
	outcome := Repair(types.RawModelResponse{
		RawText:  `{"name": "Jane Doe"}`,
		Expected: types.SchemaDescriptor{Kind: types.ShapeObject, RequiredKeys: []string{"name", "email", "phone"}},
		CallKind: types.CallHeader,
	})

	require.Equal(t, types.RepairRepaired, outcome.Status)
	assert.Contains(t, outcome.Issues, "缺少2个必需键")
}

// TestRepairObjectAllKeysMissing 测试必需键全缺时判定不可修复
func TestRepairObjectAllKeysMissing(t *testing.T) {
	outcome := Repair(types.RawModelResponse{
		RawText:  `{"foo": "bar"}`,
		Expected: types.SchemaDescriptor{Kind: types.ShapeObject, RequiredKeys: []string{"name", "email", "phone"}},
		CallKind: types.CallHeader,
	})

	require.Equal(t, types.RepairUnrepairable, outcome.Status)
	assert.True(t, outcome.Unusable())
	assert.Nil(t, outcome.Value)
}

// TestRepairUnrepairableGarbage 测试无结构的自然语言判定不可修复
func TestRepairUnrepairableGarbage(t *testing.T) {
	outcome := Repair(types.RawModelResponse{
		RawText:  "抱歉，我无法处理这份文档。",
		Expected: types.SchemaDescriptor{Kind: types.ShapeObject, RequiredKeys: []string{"name", "email", "phone"}},
		CallKind: types.CallHeader,
	})

	require.Equal(t, types.RepairUnrepairable, outcome.Status)
	assert.True(t, outcome.Unusable())
	assert.NotEmpty(t, outcome.Issues)
}

// TestRepairScalarVariants 测试标量目标的各种降级路径
func TestRepairScalarVariants(t *testing.T) {
	scalar := types.SchemaDescriptor{Kind: types.ShapeScalar}

	// 裸文本直接当答案
	outcome := Repair(types.RawModelResponse{RawText: "Jane Doe", Expected: scalar})
	require.Equal(t, types.RepairRepaired, outcome.Status)
	assert.Equal(t, "Jane Doe", outcome.Value)
	assert.Contains(t, outcome.Issues, "标量为裸文本而非JSON")

	// 期望标量但收到序列，取首元素
	outcome = Repair(types.RawModelResponse{RawText: `["Jane Doe", "John Smith"]`, Expected: scalar})
	require.Equal(t, types.RepairRepaired, outcome.Status)
	assert.Equal(t, "Jane Doe", outcome.Value)

	// 单键对象取其值
	outcome = Repair(types.RawModelResponse{RawText: `{"name": "Jane Doe"}`, Expected: scalar})
	require.Equal(t, types.RepairRepaired, outcome.Status)
	assert.Equal(t, "Jane Doe", outcome.Value)
}

// TestRepairObjectListVariants 测试对象序列目标的包装和降级
func TestRepairObjectListVariants(t *testing.T) {
	objList := types.SchemaDescriptor{Kind: types.ShapeObjectList, ElementField: "token"}

	// 单个对象当作单元素序列
	outcome := Repair(types.RawModelResponse{RawText: `{"token": "Python"}`, Expected: objList})
	require.Equal(t, types.RepairRepaired, outcome.Status)
	list, ok := outcome.Value.([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, list, 1)
	assert.Contains(t, outcome.Issues, "期望对象序列但收到单个对象，已包装")

	// 标量元素包进约定字段
	outcome = Repair(types.RawModelResponse{RawText: `["Python", "SQL"]`, Expected: objList})
	require.Equal(t, types.RepairRepaired, outcome.Status)
	list, ok = outcome.Value.([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, list, 2)
	assert.Equal(t, "Python", list[0]["token"])
}

// TestRepairDeterministic 测试对同一输入重复调用结果相同
func TestRepairDeterministic(t *testing.T) {
	raw := types.RawModelResponse{
		RawText:  `分类结果：["Go", 5, {"token": "SQL"}]`,
		Expected: types.SchemaDescriptor{Kind: types.ShapeStringList, ElementField: "token"},
		CallKind: types.CallCategorize,
	}

	first := Repair(raw)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Repair(raw))
	}
}
