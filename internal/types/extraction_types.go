package types

// FieldSource 表示字段值的来源类别
type FieldSource string

const (
	// SourcePattern 正则/规则抽取产生的值
	SourcePattern FieldSource = "pattern"
	// SourceAI LLM产生的值
	SourceAI FieldSource = "ai"
	// SourceManual 人工修正产生的值
	SourceManual FieldSource = "manual"
)

// Provenance 表示字段最终值由哪个阶段产出
type Provenance string

const (
	// ProvenancePattern 模式抽取阶段
	ProvenancePattern Provenance = "pattern"
	// ProvenanceAIHeader 头部LLM快速抽取阶段
	ProvenanceAIHeader Provenance = "ai_header"
	// ProvenanceAIDeep 深度分类阶段
	ProvenanceAIDeep Provenance = "ai_deep"
	// ProvenanceAIFallback 缺失字段LLM兜底抽取阶段
	ProvenanceAIFallback Provenance = "ai_fallback"
	// ProvenanceManual 人工修正
	ProvenanceManual Provenance = "manual"
)

// CallKind 表示一次LLM调用的任务类型，用于选择模型档位和预期输出结构
type CallKind string

const (
	// CallHeader 头部字段抽取调用
	CallHeader CallKind = "header"
	// CallCategorize 技能分类调用
	CallCategorize CallKind = "categorize"
	// CallFallbackField 缺失字段兜底抽取调用
	CallFallbackField CallKind = "fallback_field"
	// CallNameValidation 姓名可信度判断调用
	CallNameValidation CallKind = "name_validation"
	// CallVerticalRepair 竖排文本修复调用
	CallVerticalRepair CallKind = "vertical_repair"
)

// ShapeKind 预期输出结构的种类
type ShapeKind string

const (
	// ShapeScalar 单个标量值（字符串或数字）
	ShapeScalar ShapeKind = "scalar"
	// ShapeStringList 字符串序列
	ShapeStringList ShapeKind = "string_list"
	// ShapeObject 带必需键的对象
	ShapeObject ShapeKind = "object"
	// ShapeObjectList 对象序列
	ShapeObjectList ShapeKind = "object_list"
)

// SchemaDescriptor 描述一次LLM调用期望返回的结构
type SchemaDescriptor struct {
	Kind ShapeKind
	// RequiredKeys 对象/对象序列必须包含的键
	RequiredKeys []string
	// ElementField 对象序列降级为标量序列时取用的字段
	ElementField string
}

// RawModelResponse 一次LLM调用的原始结果，只存在于修复链内，不落库
type RawModelResponse struct {
	RawText  string
	Expected SchemaDescriptor
	CallKind CallKind
}

// RepairStatus 修复链的终态
type RepairStatus string

const (
	// RepairClean 原始输出直接符合预期结构
	RepairClean RepairStatus = "clean"
	// RepairRepaired 经过修复后符合预期结构
	RepairRepaired RepairStatus = "repaired"
	// RepairUnrepairable 修复链耗尽，该次调用作废
	RepairUnrepairable RepairStatus = "unrepairable"
)

// RepairOutcome 修复链对一次LLM输出的处理结果
type RepairOutcome struct {
	Status RepairStatus
	// Value 修复后的结构化值；unrepairable时为nil
	Value interface{}
	// Issues 修复过程中记录的问题（如被丢弃的元素数）
	Issues []string
}

// Unusable 该次调用是否不可用（需要走回退路径）
func (o RepairOutcome) Unusable() bool {
	return o.Status == RepairUnrepairable
}

// ValidationVerdict 校验器对一份记录的裁决
type ValidationVerdict struct {
	Accepted      bool     `json:"accepted"`
	FlaggedFields []string `json:"flagged_fields,omitempty"`
	Reason        string   `json:"reason,omitempty"`
}

// Flag 标记一个字段并同步accepted状态
func (v *ValidationVerdict) Flag(field string) {
	for _, f := range v.FlaggedFields {
		if f == field {
			return
		}
	}
	v.FlaggedFields = append(v.FlaggedFields, field)
	v.Accepted = false
}

// SkillEntry 一条技能记录
type SkillEntry struct {
	Token    string      `json:"token"`
	Category string      `json:"category,omitempty"`
	Source   FieldSource `json:"source"`
}

// ExperienceEntry 一条工作经历记录
type ExperienceEntry struct {
	Company string `json:"company"`
	Title   string `json:"title"`
	Dates   string `json:"dates"`
	RawText string `json:"raw_text,omitempty"`
}

// EducationEntry 一条教育经历记录
type EducationEntry struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree"`
	Dates       string `json:"dates"`
}

// ExtractionRecord 一份简历的结构化抽取结果
// 各阶段只做增量修改：设置字段时必须同步更新Provenance，
// Confidence只为经过LLM或打分的字段填充。
type ExtractionRecord struct {
	DocumentID string            `json:"document_id"`
	Name       string            `json:"name,omitempty"`
	Email      string            `json:"email,omitempty"`
	Phone      string            `json:"phone,omitempty"`
	Skills     []SkillEntry      `json:"skills,omitempty"`
	Experience []ExperienceEntry `json:"experience,omitempty"`
	Education  []EducationEntry  `json:"education,omitempty"`

	Confidence map[string]float64    `json:"confidence,omitempty"`
	Provenance map[string]Provenance `json:"provenance,omitempty"`
}

// NewExtractionRecord 创建一份空记录
func NewExtractionRecord(documentID string) *ExtractionRecord {
	return &ExtractionRecord{
		DocumentID: documentID,
		Confidence: make(map[string]float64),
		Provenance: make(map[string]Provenance),
	}
}

// SetField 设置一个头部字段并记录来源，保证"非空字段必有provenance"不变式
func (r *ExtractionRecord) SetField(field, value string, prov Provenance) {
	if value == "" {
		return
	}
	switch field {
	case FieldName:
		r.Name = value
	case FieldEmail:
		r.Email = value
	case FieldPhone:
		r.Phone = value
	default:
		return
	}
	if r.Provenance == nil {
		r.Provenance = make(map[string]Provenance)
	}
	r.Provenance[field] = prov
}

// FieldValue 按字段名取头部字段的当前值
func (r *ExtractionRecord) FieldValue(field string) string {
	switch field {
	case FieldName:
		return r.Name
	case FieldEmail:
		return r.Email
	case FieldPhone:
		return r.Phone
	}
	return ""
}

// SetConfidence 记录某字段的可信度分数
func (r *ExtractionRecord) SetConfidence(field string, score float64) {
	if r.Confidence == nil {
		r.Confidence = make(map[string]float64)
	}
	r.Confidence[field] = score
}

// HasContact 是否至少有一种联系方式
func (r *ExtractionRecord) HasContact() bool {
	return r.Email != "" || r.Phone != ""
}

// 头部字段名常量
const (
	FieldName  = "name"
	FieldEmail = "email"
	FieldPhone = "phone"
)

// DocumentState 单份文档在流水线中的状态
type DocumentState string

const (
	// StateNormalized 文本已规范化
	StateNormalized DocumentState = "Normalized"
	// StateHeaderDone 头部抽取完成
	StateHeaderDone DocumentState = "HeaderDone"
	// StatePatternDone 模式抽取完成
	StatePatternDone DocumentState = "PatternDone"
	// StateCategorized 技能分类完成
	StateCategorized DocumentState = "Categorized"
	// StateValidated 校验完成
	StateValidated DocumentState = "Validated"
	// StateAccepted 终态：接受
	StateAccepted DocumentState = "Accepted"
	// StateFlaggedForReview 终态：转人工复核
	StateFlaggedForReview DocumentState = "FlaggedForReview"
)

// FieldStats 某字段的历史统计，由FeedbackStore聚合、校验器与打分器按批次快照读取
type FieldStats struct {
	FieldName string `json:"field_name"`
	Total     int64  `json:"total"`
	Flagged   int64  `json:"flagged"`
	Corrected int64  `json:"corrected"`
}

// CorrectionRate 人工修正比例，Total为0时返回0
func (s FieldStats) CorrectionRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Corrected) / float64(s.Total)
}
