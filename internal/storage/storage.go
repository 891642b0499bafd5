package storage

import (
	"context"
	"fmt"
	"strings"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/logger"
)

// Storage 存储管理器，聚合所有存储相关依赖
type Storage struct {
	// 对象存储：规范化文本归档
	MinIO *MinIO

	// 消息队列：抽取结果发布
	RabbitMQ *RabbitMQ

	// 关系型数据库：反馈存储
	MySQL *MySQL

	// 键值存储：检查点与统计快照缓存
	Redis *Redis
}

// NewStorage 创建存储管理器
// MySQL是硬依赖，其余组件初始化失败降级为警告，对应能力缺失
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	storage := &Storage{}
	var err error
	var initErrors []string

	storage.MySQL, err = NewMySQL(&cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("初始化MySQL失败: %w", err)
	}
	logger.Info().Msg("MySQL连接初始化成功")

	storage.MinIO, err = NewMinIO(&cfg.MinIO)
	if err != nil {
		logger.Warn().Err(err).Msg("初始化MinIO失败，规范化文本将不归档")
		initErrors = append(initErrors, fmt.Sprintf("MinIO: %v", err))
		storage.MinIO = nil
	}

	if cfg.RabbitMQ.URL != "" {
		storage.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化RabbitMQ失败，抽取结果将不发布")
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
			storage.RabbitMQ = nil
		}
	}

	storage.Redis, err = NewRedisAdapter(&cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("初始化Redis失败，检查点与统计缓存不可用")
		initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		storage.Redis = nil
	}

	if len(initErrors) > 0 {
		logger.Warn().Str("components", strings.Join(initErrors, "; ")).Msg("部分存储组件初始化失败，以降级模式运行")
	}
	return storage, nil
}

// Close 关闭所有存储连接
func (s *Storage) Close() {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭Redis连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭MySQL连接失败")
		}
	}
}
