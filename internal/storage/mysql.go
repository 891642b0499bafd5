package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/storage/models"
	"resume-agent-go/internal/tracing"
	"resume-agent-go/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var mysqlTracer = otel.Tracer("resume-agent-go/storage/mysql")

// MySQL 提供关系数据库功能，是FeedbackStore的持久化后端
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	// 构建DSN，添加超时设置
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = logger.Silent
	case 2:
		logLevel = logger.Error
	case 3:
		logLevel = logger.Warn
	default:
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	m := &MySQL{db: db, cfg: cfg}
	if err := m.autoMigrateSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}
	return m, nil
}

// autoMigrateSchema 使用GORM自动迁移数据库表结构
func (m *MySQL) autoMigrateSchema() error {
	return m.db.AutoMigrate(
		&models.ExtractionOutcome{},
		&models.ManualCorrection{},
		&models.FieldStat{},
		&models.OutboxMessage{},
	)
}

// DB 返回底层的gorm.DB
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// statFields Record要累加统计的字段集合
var statFields = []string{types.FieldName, types.FieldEmail, types.FieldPhone}

// Record 落一条抽取结果：插入outcome并在同一事务里累加field_stats
// 单文档原子，失败时整体回滚
func (m *MySQL) Record(ctx context.Context, batchID string, record *types.ExtractionRecord, verdict types.ValidationVerdict) error {
	ctx, span := mysqlTracer.Start(ctx, "FeedbackStore.Record")
	defer span.End()
	span.SetAttributes(
		attribute.String("document_id", record.DocumentID),
		attribute.Bool("accepted", verdict.Accepted),
	)

	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化抽取记录失败: %w", err)
	}
	verdictJSON, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("序列化校验裁决失败: %w", err)
	}

	status := "ACCEPTED"
	if !verdict.Accepted {
		status = "FLAGGED_FOR_REVIEW"
	}

	flagged := make(map[string]bool, len(verdict.FlaggedFields))
	for _, f := range verdict.FlaggedFields {
		flagged[f] = true
	}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		outcome := models.ExtractionOutcome{
			DocumentID:   record.DocumentID,
			BatchID:      batchID,
			Status:       status,
			RecordJSON:   recordJSON,
			VerdictJSON:  verdictJSON,
			Accepted:     verdict.Accepted,
			FlaggedCount: len(verdict.FlaggedFields),
		}
		if err := tx.Create(&outcome).Error; err != nil {
			return err
		}

		for _, field := range statFields {
			flaggedDelta := int64(0)
			if flagged[field] {
				flaggedDelta = 1
			}
			stat := models.FieldStat{FieldName: field, Total: 1, Flagged: flaggedDelta}
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "field_name"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"total":   gorm.Expr("total + 1"),
					"flagged": gorm.Expr("flagged + ?", flaggedDelta),
				}),
			}).Create(&stat).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return fmt.Errorf("写入抽取结果失败: %w", err)
	}
	return nil
}

// SaveCorrection 落一条人工修正并累加对应字段的corrected计数
func (m *MySQL) SaveCorrection(ctx context.Context, documentID, field, original, corrected, contextText string) error {
	ctx, span := mysqlTracer.Start(ctx, "FeedbackStore.SaveCorrection")
	defer span.End()
	span.SetAttributes(
		attribute.String("document_id", documentID),
		attribute.String("field", field),
		attribute.String("corrected_value", tracing.SafeAttributeValue(field, corrected, tracing.DefaultMaxLength)),
	)

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		correction := models.ManualCorrection{
			DocumentID: documentID,
			FieldName:  field,
			Original:   original,
			Corrected:  corrected,
			Context:    tracing.TruncateString(contextText, 2000),
		}
		if err := tx.Create(&correction).Error; err != nil {
			return err
		}

		stat := models.FieldStat{FieldName: field, Corrected: 1}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "field_name"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"corrected": gorm.Expr("corrected + 1"),
			}),
		}).Create(&stat).Error
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return fmt.Errorf("写入人工修正失败: %w", err)
	}
	return nil
}

// PriorStats 读取一组字段的历史统计，没有记录的字段返回零值
func (m *MySQL) PriorStats(ctx context.Context, fields []string) (map[string]types.FieldStats, error) {
	ctx, span := mysqlTracer.Start(ctx, "FeedbackStore.PriorStats")
	defer span.End()

	var rows []models.FieldStat
	if err := m.db.WithContext(ctx).Where("field_name IN ?", fields).Find(&rows).Error; err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, fmt.Errorf("读取字段统计失败: %w", err)
	}

	stats := make(map[string]types.FieldStats, len(fields))
	for _, field := range fields {
		stats[field] = types.FieldStats{FieldName: field}
	}
	for _, row := range rows {
		stats[row.FieldName] = types.FieldStats{
			FieldName: row.FieldName,
			Total:     row.Total,
			Flagged:   row.Flagged,
			Corrected: row.Corrected,
		}
	}
	return stats, nil
}

// EnqueueOutbox 把一条直连发布失败的结果消息落入发件箱，等中继补发
func (m *MySQL) EnqueueOutbox(ctx context.Context, documentID, routingKey string, payload []byte) error {
	msg := models.OutboxMessage{
		DocumentID: documentID,
		RoutingKey: routingKey,
		Payload:    string(payload),
		Status:     models.OutboxPending,
	}
	if err := m.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return fmt.Errorf("写入发件箱失败: %w", err)
	}
	return nil
}

// OutcomesByBatch 按批次查询抽取结果，供复核界面分页拉取
func (m *MySQL) OutcomesByBatch(ctx context.Context, batchID string, limit, offset int) ([]models.ExtractionOutcome, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []models.ExtractionOutcome
	err := m.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("id ASC").
		Limit(limit).Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("查询批次结果失败: %w", err)
	}
	return rows, nil
}
