package outbox

import (
	"context"
	"time"

	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/storage/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPollingInterval = 5 * time.Second
	defaultBatchSize       = 10
	maxRetryCount          = 5
)

// MessageRelay 轮询发件箱表并补发直连发布失败的抽取结果消息
// 流水线优先直发RabbitMQ，失败的消息落进outbox_messages，由这里兜底
type MessageRelay struct {
	db              *gorm.DB
	publisher       *storage.RabbitMQ
	pollingInterval time.Duration
	batchSize       int
	done            chan struct{}
	tracer          trace.Tracer
}

// NewMessageRelay 创建消息中继
func NewMessageRelay(db *gorm.DB, publisher *storage.RabbitMQ) *MessageRelay {
	return &MessageRelay{
		db:              db,
		publisher:       publisher,
		pollingInterval: defaultPollingInterval,
		batchSize:       defaultBatchSize,
		done:            make(chan struct{}),
		tracer:          otel.Tracer("resume-agent-go/outbox"),
	}
}

// Start 启动后台轮询
func (r *MessageRelay) Start() {
	logger.Info().Dur("interval", r.pollingInterval).Msg("发件箱中继启动")
	ticker := time.NewTicker(r.pollingInterval)

	go func() {
		for {
			select {
			case <-r.done:
				ticker.Stop()
				logger.Info().Msg("发件箱中继已停止")
				return
			case <-ticker.C:
				if err := r.processPendingMessages(context.Background()); err != nil {
					logger.Warn().Err(err).Msg("处理发件箱待发消息失败")
				}
			}
		}
	}()
}

// Stop 优雅停止中继
func (r *MessageRelay) Stop() {
	close(r.done)
}

// processPendingMessages 取一批待发消息并逐条补发
// FOR UPDATE SKIP LOCKED 保证多实例部署时不会重复补发同一条消息
func (r *MessageRelay) processPendingMessages(ctx context.Context) error {
	var messages []models.OutboxMessage

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer tx.Rollback()

	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", models.OutboxPending).
		Order("created_at asc").
		Limit(r.batchSize).
		Find(&messages).Error
	if err != nil {
		return err
	}

	// 空轮询不产生Span
	if len(messages) == 0 {
		return tx.Commit().Error
	}

	ctx, span := r.tracer.Start(ctx, "outbox.ProcessBatch",
		trace.WithAttributes(attribute.Int("messaging.batch.message_count", len(messages))))
	defer span.End()

	for i := range messages {
		msg := &messages[i]
		publishErr := r.publisher.PublishMessage(ctx, msg.RoutingKey, []byte(msg.Payload))
		if publishErr != nil {
			msg.RetryCount++
			msg.LastError = publishErr.Error()
			if msg.RetryCount >= maxRetryCount {
				msg.Status = models.OutboxFailed
				logger.Error().Str("document_id", msg.DocumentID).Int("retries", msg.RetryCount).Msg("发件箱消息补发重试耗尽")
			}
		} else {
			msg.Status = models.OutboxSent
			now := time.Now()
			msg.ProcessedAt = &now
			msg.LastError = ""
		}

		if err := tx.Save(msg).Error; err != nil {
			// 更新失败整个事务回滚，这批消息下次轮询重新拾取
			return err
		}
	}

	return tx.Commit().Error
}
