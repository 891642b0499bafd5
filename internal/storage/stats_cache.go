package storage

import (
	"context"
	"errors"

	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/storage/models"
	"resume-agent-go/internal/types"
)

// CachedFeedbackStore 在MySQL反馈存储之上给PriorStats加一层Redis快照缓存
// 写路径（Record、SaveCorrection、发件箱）直透MySQL，不经过缓存；
// 统计快照本身允许短暂滞后，TTL过期后自然回源
type CachedFeedbackStore struct {
	db    *MySQL
	cache *Redis
}

// NewCachedFeedbackStore 创建带统计缓存的反馈存储
func NewCachedFeedbackStore(db *MySQL, cache *Redis) *CachedFeedbackStore {
	return &CachedFeedbackStore{db: db, cache: cache}
}

// Record 写入抽取结果，直透MySQL
func (c *CachedFeedbackStore) Record(ctx context.Context, batchID string, record *types.ExtractionRecord, verdict types.ValidationVerdict) error {
	return c.db.Record(ctx, batchID, record, verdict)
}

// SaveCorrection 写入人工修正，直透MySQL
func (c *CachedFeedbackStore) SaveCorrection(ctx context.Context, documentID, field, original, corrected, contextText string) error {
	return c.db.SaveCorrection(ctx, documentID, field, original, corrected, contextText)
}

// EnqueueOutbox 发件箱兜底，直透MySQL
func (c *CachedFeedbackStore) EnqueueOutbox(ctx context.Context, documentID, routingKey string, payload []byte) error {
	return c.db.EnqueueOutbox(ctx, documentID, routingKey, payload)
}

// OutcomesByBatch 批次结果查询，直透MySQL
func (c *CachedFeedbackStore) OutcomesByBatch(ctx context.Context, batchID string, limit, offset int) ([]models.ExtractionOutcome, error) {
	return c.db.OutcomesByBatch(ctx, batchID, limit, offset)
}

// PriorStats 读取字段历史统计，全部命中缓存时不触库
// 任一字段未命中就整组回源并重建缓存，保证同一快照内各字段来自同一时刻
func (c *CachedFeedbackStore) PriorStats(ctx context.Context, fields []string) (map[string]types.FieldStats, error) {
	stats := make(map[string]types.FieldStats, len(fields))
	for _, field := range fields {
		cached, err := c.cache.GetCachedFieldStats(ctx, field)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				logger.Warn().Err(err).Str("field", field).Msg("读取字段统计缓存失败，回源MySQL")
			}
			return c.refresh(ctx, fields)
		}
		stats[field] = cached
	}
	return stats, nil
}

func (c *CachedFeedbackStore) refresh(ctx context.Context, fields []string) (map[string]types.FieldStats, error) {
	stats, err := c.db.PriorStats(ctx, fields)
	if err != nil {
		return nil, err
	}
	for _, stat := range stats {
		if err := c.cache.CacheFieldStats(ctx, stat); err != nil {
			logger.Warn().Err(err).Str("field", stat.FieldName).Msg("回填字段统计缓存失败")
		}
	}
	return stats, nil
}
