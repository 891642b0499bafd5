package constants

// 抽取结果状态
const (
	// StatusAccepted 记录通过校验
	StatusAccepted = "ACCEPTED"
	// StatusFlaggedForReview 记录被标记，转人工复核
	StatusFlaggedForReview = "FLAGGED_FOR_REVIEW"
)

// LLM任务名，用于config.GetModelForTask的模型档位选择
const (
	TaskHeader         = "header"
	TaskCategorize     = "categorize"
	TaskFallbackField  = "fallback_field"
	TaskNameValidation = "name_validation"
	TaskVerticalRepair = "vertical_repair"
)

// 技能类别标签
const (
	CategoryTechnical = "technical"
	CategorySoft      = "soft"
)

// 归档对象命名
const (
	// NormalizedTextSuffix 规范化文本归档对象后缀
	NormalizedTextSuffix = ".txt"
)
