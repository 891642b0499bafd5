package models

import "time"

// 发件箱消息状态
const (
	OutboxPending = "PENDING"
	OutboxSent    = "SENT"
	OutboxFailed  = "FAILED"
)

// OutboxMessage 直连发布失败的抽取结果消息，由中继轮询补发
type OutboxMessage struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	DocumentID string `gorm:"type:varchar(36);not null;index"`
	RoutingKey string `gorm:"type:varchar(255);not null"`
	Payload    string `gorm:"type:json;not null"`
	Status     string `gorm:"type:varchar(20);default:'PENDING';not null;index:idx_outbox_status_created_at"`
	RetryCount int    `gorm:"default:0"`
	LastError  string `gorm:"type:text"`

	CreatedAt   time.Time  `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_outbox_status_created_at,sort:asc"`
	ProcessedAt *time.Time `gorm:"type:datetime(6);null"`
}

// TableName 指定表名
func (OutboxMessage) TableName() string {
	return "outbox_messages"
}
