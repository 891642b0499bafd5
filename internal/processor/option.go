package processor

import (
	"resume-agent-go/internal/extractor"
)

// ComponentOpt 组件选项类型，仅改变 Components 结构体内的字段
type ComponentOpt func(*Components)

// SettingOpt 设置选项类型，仅改变 Settings 结构体内的字段
type SettingOpt func(*Settings)

// ----- 组件选项 -----

// WithcompNormalizer 设置文本规范化器组件
func WithcompNormalizer(normalizer *extractor.TextNormalizer) ComponentOpt {
	return func(c *Components) {
		c.Normalizer = normalizer
	}
}

// WithcompPattern 设置模式抽取器组件
func WithcompPattern(pattern *extractor.PatternExtractor) ComponentOpt {
	return func(c *Components) {
		c.Pattern = pattern
	}
}

// WithcompHeader 设置头部抽取器组件
func WithcompHeader(header *extractor.HeaderExtractor) ComponentOpt {
	return func(c *Components) {
		c.Header = header
	}
}

// WithcompFallback 设置兜底抽取器组件
func WithcompFallback(fallback *extractor.FallbackExtractor) ComponentOpt {
	return func(c *Components) {
		c.Fallback = fallback
	}
}

// WithcompCategorizer 设置技能分类器组件
func WithcompCategorizer(categorizer *extractor.DeepCategorizer) ComponentOpt {
	return func(c *Components) {
		c.Categorizer = categorizer
	}
}

// WithcompValidator 设置校验器组件
func WithcompValidator(validator *extractor.ExtractionValidator) ComponentOpt {
	return func(c *Components) {
		c.Validator = validator
	}
}

// WithcompFeedbackstore 设置反馈存储组件
func WithcompFeedbackstore(store FeedbackStore) ComponentOpt {
	return func(c *Components) {
		c.Store = store
	}
}

// WithcompPublisher 设置结果发布组件
func WithcompPublisher(publisher ResultPublisher) ComponentOpt {
	return func(c *Components) {
		c.Publisher = publisher
	}
}

// WithcompArchiver 设置文本归档组件
func WithcompArchiver(archiver TextArchiver) ComponentOpt {
	return func(c *Components) {
		c.Archiver = archiver
	}
}

// WithcompCheckpointstore 设置检查点存储组件
func WithcompCheckpointstore(checkpoints CheckpointStore) ComponentOpt {
	return func(c *Components) {
		c.Checkpoints = checkpoints
	}
}

// ----- 设置选项 -----

// WithsetConcurrency 设置批处理并行度
func WithsetConcurrency(concurrency int) SettingOpt {
	return func(s *Settings) {
		if concurrency > 0 {
			s.Concurrency = concurrency
		}
	}
}
