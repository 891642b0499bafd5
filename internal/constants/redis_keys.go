package constants

import "fmt"

// Redis键前缀，集中管理避免散落各处
const (
	// CheckpointKeyPrefix 批次检查点游标
	CheckpointKeyPrefix = "checkpoint:"
	// FieldStatsKeyPrefix 字段统计快照缓存
	FieldStatsKeyPrefix = "stats:field:"
)

// CheckpointKey 返回某批次的检查点键
func CheckpointKey(batchID string) string {
	return fmt.Sprintf("%s%s", CheckpointKeyPrefix, batchID)
}

// FieldStatsKey 返回某字段统计快照的缓存键
func FieldStatsKey(fieldName string) string {
	return fmt.Sprintf("%s%s", FieldStatsKeyPrefix, fieldName)
}
