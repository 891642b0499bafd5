package processor

import (
	"context"
	"errors"
	"sync"

	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/types"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// BatchDocument 批处理的一份输入文档
type BatchDocument struct {
	DocumentID string `json:"document_id"`
	Text       string `json:"text"`
}

// DocumentOutcome 批次内单份文档的处理结果
type DocumentOutcome struct {
	DocumentID string                  `json:"document_id"`
	Record     *types.ExtractionRecord `json:"record,omitempty"`
	Verdict    types.ValidationVerdict `json:"verdict"`
	Err        error                   `json:"-"`
	ErrMessage string                  `json:"error,omitempty"`
}

// BatchResult 一个批次的汇总结果
type BatchResult struct {
	BatchID  string            `json:"batch_id"`
	Total    int               `json:"total"`
	Accepted int               `json:"accepted"`
	Flagged  int               `json:"flagged"`
	Failed   int               `json:"failed"`
	Skipped  int               `json:"skipped"`
	Outcomes []DocumentOutcome `json:"outcomes"`
}

// ProcessBatch 并行处理一个批次
// 历史统计在批次开始时快照一次，批内所有文档用同一份快照，
// 避免批内早期结果影响后期文档的校验阈值。
// 检查点游标只随"前缀全部完成"推进，重启后从游标之后续跑；
// 单份文档失败计入Failed，不中断批次。
func (p *Pipeline) ProcessBatch(ctx context.Context, batchID string, docs []BatchDocument) (*BatchResult, error) {
	ctx, span := pipelineTracer.Start(ctx, "pipeline.process_batch",
		trace.WithAttributes(
			attribute.String("batch.id", batchID),
			attribute.Int("batch.size", len(docs)),
		))
	defer span.End()

	result := &BatchResult{
		BatchID:  batchID,
		Total:    len(docs),
		Outcomes: make([]DocumentOutcome, len(docs)),
	}
	if len(docs) == 0 {
		return result, nil
	}

	// 断点续跑：游标之前（含游标）的文档已完整处理过
	startIndex := p.resumeIndex(ctx, batchID, docs)
	result.Skipped = startIndex
	for i := 0; i < startIndex; i++ {
		result.Outcomes[i] = DocumentOutcome{DocumentID: docs[i].DocumentID}
	}

	priorStats := p.priorStatsSnapshot(ctx)

	concurrency := p.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	semaphore := make(chan struct{}, concurrency)

	// done按下标记录完成情况，游标只推进连续完成的前缀
	var mutex sync.Mutex
	done := make([]bool, len(docs))
	cursor := startIndex
	for i := 0; i < startIndex; i++ {
		done[i] = true
	}

	advance := func(index int) {
		mutex.Lock()
		defer mutex.Unlock()
		done[index] = true
		moved := false
		for cursor < len(docs) && done[cursor] {
			cursor++
			moved = true
		}
		if !moved || p.Checkpoints == nil {
			return
		}
		checkpointID := docs[cursor-1].DocumentID
		if err := p.Checkpoints.SaveCheckpoint(ctx, batchID, checkpointID); err != nil {
			logger.Warn().Err(NewCheckpointError(checkpointID, err.Error())).Str("batch_id", batchID).Msg("保存批次检查点失败")
		}
	}

	var wg sync.WaitGroup
	for i := startIndex; i < len(docs); i++ {
		index := i
		doc := docs[i]

		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			result.Outcomes[index] = DocumentOutcome{DocumentID: doc.DocumentID, Err: ctx.Err(), ErrMessage: ctx.Err().Error()}
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-semaphore }()

			record, verdict, err := p.processDocument(ctx, batchID, doc.DocumentID, doc.Text, priorStats)
			outcome := DocumentOutcome{DocumentID: doc.DocumentID, Record: record, Verdict: verdict, Err: err}
			if err != nil {
				outcome.ErrMessage = err.Error()
				logger.Error().Err(err).Str("batch_id", batchID).Str("document_id", doc.DocumentID).Msg("批次内文档处理失败")
			} else {
				// 只有完整落库的文档才允许推进游标
				advance(index)
			}
			result.Outcomes[index] = outcome
		}()
	}
	wg.Wait()

	for i := startIndex; i < len(docs); i++ {
		outcome := result.Outcomes[i]
		switch {
		case outcome.Err != nil:
			result.Failed++
		case outcome.Verdict.Accepted:
			result.Accepted++
		default:
			result.Flagged++
		}
	}

	span.SetAttributes(
		attribute.Int("batch.accepted", result.Accepted),
		attribute.Int("batch.flagged", result.Flagged),
		attribute.Int("batch.failed", result.Failed),
		attribute.Int("batch.skipped", result.Skipped),
	)
	logger.Info().
		Str("batch_id", batchID).
		Int("total", result.Total).
		Int("accepted", result.Accepted).
		Int("flagged", result.Flagged).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("批次处理完成")
	return result, nil
}

// resumeIndex 根据检查点游标计算本次批处理的起始下标
// 游标指向的文档ID不在批次内时视为无检查点，从头处理
func (p *Pipeline) resumeIndex(ctx context.Context, batchID string, docs []BatchDocument) int {
	if p.Checkpoints == nil {
		return 0
	}
	checkpointID, err := p.Checkpoints.LoadCheckpoint(ctx, batchID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.Warn().Err(err).Str("batch_id", batchID).Msg("读取批次检查点失败，从头处理")
		}
		return 0
	}
	for i, doc := range docs {
		if doc.DocumentID == checkpointID {
			logger.Info().Str("batch_id", batchID).Str("document_id", checkpointID).Int("skipped", i+1).Msg("从检查点之后续跑批次")
			return i + 1
		}
	}
	return 0
}
