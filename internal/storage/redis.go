package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/types"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound 键不存在，包装底层的redis.Nil以便上层判断
var ErrNotFound = redis.Nil

// Redis 键值存储：批次检查点游标 + 字段统计快照缓存
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter 创建Redis客户端连接
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis配置不能为空")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("未配置redis地址")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
	}

	client := redis.NewClient(opt)

	// OpenTelemetry钩子记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("注册Redis追踪钩子失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("连接Redis %s 失败: %w", cfg.Address, err)
	}

	return &Redis{Client: client, config: cfg}, nil
}

// Close 关闭连接
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping 健康检查
func (r *Redis) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

// SaveCheckpoint 保存批次检查点游标
// 游标是最后一份完整处理（含反馈落库）的文档ID，必须在Record成功之后调用
func (r *Redis) SaveCheckpoint(ctx context.Context, batchID, documentID string) error {
	key := constants.CheckpointKey(batchID)
	if err := r.Client.Set(ctx, key, documentID, 0).Err(); err != nil {
		return fmt.Errorf("保存检查点失败: %w", err)
	}
	return nil
}

// LoadCheckpoint 读取批次检查点游标，批次没有检查点时返回ErrNotFound
func (r *Redis) LoadCheckpoint(ctx context.Context, batchID string) (string, error) {
	key := constants.CheckpointKey(batchID)
	val, err := r.Client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("读取检查点失败: %w", err)
	}
	return val, nil
}

// CacheFieldStats 缓存一个字段的统计快照，带TTL
func (r *Redis) CacheFieldStats(ctx context.Context, stats types.FieldStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("序列化字段统计失败: %w", err)
	}
	ttl := time.Duration(r.config.StatsSnapshotTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	key := constants.FieldStatsKey(stats.FieldName)
	if err := r.Client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("缓存字段统计失败: %w", err)
	}
	return nil
}

// GetCachedFieldStats 读取缓存的字段统计快照，未命中返回ErrNotFound
func (r *Redis) GetCachedFieldStats(ctx context.Context, fieldName string) (types.FieldStats, error) {
	key := constants.FieldStatsKey(fieldName)
	data, err := r.Client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return types.FieldStats{}, ErrNotFound
		}
		return types.FieldStats{}, fmt.Errorf("读取字段统计缓存失败: %w", err)
	}

	var stats types.FieldStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return types.FieldStats{}, fmt.Errorf("解析字段统计缓存失败: %w", err)
	}
	return stats, nil
}
