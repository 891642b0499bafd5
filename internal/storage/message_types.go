package storage

import (
	"time"

	"resume-agent-go/internal/types"
)

// ExtractionOutcomeMessage 抽取结果消息，发往下游消费者
// accepted路由键的消费者入库，review路由键的消费者是人工复核系统
type ExtractionOutcomeMessage struct {
	DocumentID string `json:"document_id"`
	BatchID    string `json:"batch_id,omitempty"`
	// Status ACCEPTED 或 FLAGGED_FOR_REVIEW
	Status  string                   `json:"status"`
	Record  *types.ExtractionRecord  `json:"record"`
	Verdict types.ValidationVerdict  `json:"verdict"`
	// NormalizedTextPath 归档文本在对象存储中的路径，复核时取用
	NormalizedTextPath string    `json:"normalized_text_path,omitempty"`
	ProcessedAt        time.Time `json:"processed_at"`
}
