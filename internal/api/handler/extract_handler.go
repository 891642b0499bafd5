package handler

import (
	"context"
	"fmt"
	"strings"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/processor"
	"resume-agent-go/internal/storage/models"
	"resume-agent-go/internal/types"

	"github.com/google/uuid"
)

// ExtractHandler 抽取接口处理器，协调HTTP请求与流水线
type ExtractHandler struct {
	cfg      *config.Config
	pipeline *processor.Pipeline
}

// NewExtractHandler 创建抽取接口处理器
func NewExtractHandler(cfg *config.Config, pipeline *processor.Pipeline) *ExtractHandler {
	return &ExtractHandler{
		cfg:      cfg,
		pipeline: pipeline,
	}
}

// ExtractRequest 单文档抽取请求
type ExtractRequest struct {
	// DocumentID 为空时服务端生成UUID
	DocumentID string `json:"document_id"`
	Text       string `json:"text"`
}

// ExtractResponse 单文档抽取响应
type ExtractResponse struct {
	DocumentID string                  `json:"document_id"`
	Record     *types.ExtractionRecord `json:"record"`
	Verdict    types.ValidationVerdict `json:"verdict"`
}

// BatchExtractRequest 批量抽取请求
type BatchExtractRequest struct {
	// BatchID 为空时服务端生成UUID，断点续跑需要调用方传同一个BatchID
	BatchID   string                    `json:"batch_id"`
	Documents []processor.BatchDocument `json:"documents"`
}

// CorrectionRequest 复核人员提交的字段修正
type CorrectionRequest struct {
	DocumentID string `json:"document_id"`
	Field      string `json:"field"`
	Original   string `json:"original"`
	Corrected  string `json:"corrected"`
	Context    string `json:"context"`
}

// HandleExtract 处理单文档抽取请求
func (h *ExtractHandler) HandleExtract(ctx context.Context, req *ExtractRequest) (*ExtractResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("text不能为空")
	}

	documentID := req.DocumentID
	if documentID == "" {
		documentID = uuid.NewString()
	}

	record, verdict, err := h.pipeline.ProcessDocument(ctx, documentID, req.Text)
	if err != nil {
		return nil, err
	}

	return &ExtractResponse{
		DocumentID: documentID,
		Record:     record,
		Verdict:    verdict,
	}, nil
}

// HandleBatchExtract 处理批量抽取请求
func (h *ExtractHandler) HandleBatchExtract(ctx context.Context, req *BatchExtractRequest) (*processor.BatchResult, error) {
	if len(req.Documents) == 0 {
		return nil, fmt.Errorf("documents不能为空")
	}

	batchID := req.BatchID
	if batchID == "" {
		batchID = uuid.NewString()
	}
	for i := range req.Documents {
		if req.Documents[i].DocumentID == "" {
			req.Documents[i].DocumentID = uuid.NewString()
		}
	}

	return h.pipeline.ProcessBatch(ctx, batchID, req.Documents)
}

// batchOutcomeReader 支持按批次分页查询结果的反馈存储
type batchOutcomeReader interface {
	OutcomesByBatch(ctx context.Context, batchID string, limit, offset int) ([]models.ExtractionOutcome, error)
}

// HandleBatchOutcomes 按批次分页查询已落库的抽取结果，供复核界面拉取
func (h *ExtractHandler) HandleBatchOutcomes(ctx context.Context, batchID string, limit, offset int) ([]models.ExtractionOutcome, error) {
	if batchID == "" {
		return nil, fmt.Errorf("batch_id不能为空")
	}
	reader, ok := h.pipeline.Store.(batchOutcomeReader)
	if !ok {
		return nil, fmt.Errorf("反馈存储不可用")
	}
	return reader.OutcomesByBatch(ctx, batchID, limit, offset)
}

// HandleCorrection 记录一次人工修正，供后续批次的自适应阈值使用
func (h *ExtractHandler) HandleCorrection(ctx context.Context, req *CorrectionRequest) error {
	if req.DocumentID == "" || req.Field == "" {
		return fmt.Errorf("document_id和field不能为空")
	}
	if h.pipeline.Store == nil {
		return fmt.Errorf("反馈存储不可用")
	}

	err := h.pipeline.Store.SaveCorrection(ctx, req.DocumentID, req.Field, req.Original, req.Corrected, req.Context)
	if err != nil {
		logger.Error().Err(err).Str("document_id", req.DocumentID).Str("field", req.Field).Msg("记录人工修正失败")
		return err
	}
	logger.Info().Str("document_id", req.DocumentID).Str("field", req.Field).Msg("记录人工修正")
	return nil
}
