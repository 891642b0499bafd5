package processor

import (
	"context"

	"resume-agent-go/internal/types"
)

// FeedbackStore 抽取结果与人工修正的持久层
// 由 storage.MySQL 实现；Record必须原子更新字段统计
type FeedbackStore interface {
	// Record 写入一份抽取结果及其裁决，并累加各字段的统计计数
	Record(ctx context.Context, batchID string, record *types.ExtractionRecord, verdict types.ValidationVerdict) error
	// SaveCorrection 记录复核人员对单个字段的修正
	SaveCorrection(ctx context.Context, documentID, field, original, corrected, contextText string) error
	// PriorStats 读取若干字段的历史统计，缺失字段返回零值
	PriorStats(ctx context.Context, fields []string) (map[string]types.FieldStats, error)
}

// ResultPublisher 抽取结果的下游通道
// 由 storage.RabbitMQ 实现
type ResultPublisher interface {
	PublishJSON(ctx context.Context, routingKey string, data interface{}) error
	RoutingKeyForStatus(status string) string
}

// TextArchiver 规范化文本归档
// 由 storage.MinIO 实现
type TextArchiver interface {
	UploadNormalizedText(ctx context.Context, documentID, text string) (string, error)
}

// CheckpointStore 批次断点游标
// 由 storage.Redis 实现
type CheckpointStore interface {
	SaveCheckpoint(ctx context.Context, batchID, documentID string) error
	LoadCheckpoint(ctx context.Context, batchID string) (string, error)
}
