package models

import (
	"time"

	"gorm.io/datatypes"
)

// ExtractionOutcome 抽取结果表，流水线视角只追加不修改
type ExtractionOutcome struct {
	ID         uint64         `gorm:"primaryKey;autoIncrement"`
	DocumentID string         `gorm:"type:char(36);index:idx_outcomes_document_id;not null"`
	BatchID    string         `gorm:"type:char(36);index:idx_outcomes_batch_id"`
	Status     string         `gorm:"type:varchar(32);index:idx_outcomes_status;not null"`
	RecordJSON datatypes.JSON `gorm:"type:json;not null"`
	// VerdictJSON 校验裁决，含flagged_fields和reason
	VerdictJSON  datatypes.JSON `gorm:"type:json;not null"`
	Accepted     bool           `gorm:"index:idx_outcomes_accepted"`
	FlaggedCount int            `gorm:"type:int;default:0"`
	CreatedAt    time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (ExtractionOutcome) TableName() string {
	return "extraction_outcomes"
}

// ManualCorrection 人工修正表，保留修正历史供反馈统计消费
type ManualCorrection struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	DocumentID string    `gorm:"type:char(36);index:idx_corrections_document_id;not null"`
	FieldName  string    `gorm:"type:varchar(64);index:idx_corrections_field_name;not null"`
	Original   string    `gorm:"type:text"`
	Corrected  string    `gorm:"type:text;not null"`
	Context    string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (ManualCorrection) TableName() string {
	return "manual_corrections"
}

// FieldStat 字段级聚合统计，Record和SaveCorrection以upsert方式累加
type FieldStat struct {
	FieldName string    `gorm:"type:varchar(64);primaryKey"`
	Total     int64     `gorm:"type:bigint;default:0"`
	Flagged   int64     `gorm:"type:bigint;default:0"`
	Corrected int64     `gorm:"type:bigint;default:0"`
	UpdatedAt time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (FieldStat) TableName() string {
	return "field_stats"
}
