package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/extractor"
	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/tracing"
	"resume-agent-go/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var pipelineTracer = otel.Tracer("resume-agent-go/processor")

// statFields 参与历史统计快照的字段
var statFields = []string{types.FieldName, types.FieldEmail, types.FieldPhone}

// Components 流水线的业务组件集合
type Components struct {
	Normalizer  *extractor.TextNormalizer
	Pattern     *extractor.PatternExtractor
	Header      *extractor.HeaderExtractor
	Fallback    *extractor.FallbackExtractor
	Categorizer *extractor.DeepCategorizer
	Validator   *extractor.ExtractionValidator

	// 存储层依赖，任一可为nil，对应能力降级
	Store       FeedbackStore
	Publisher   ResultPublisher
	Archiver    TextArchiver
	Checkpoints CheckpointStore
}

// Settings 纯配置项，不包含任何业务逻辑组件
type Settings struct {
	// Concurrency 批处理时跨文档的并行上限
	Concurrency int
}

// Pipeline 简历抽取流水线
// 单份文档的处理是确定性编排：规范化、双路抽取、合并、兜底、分类、校验、落库、发布。
// LLM相关失败一律降级，只有反馈存储失败会让一份文档以错误告终。
type Pipeline struct {
	Components
	Settings
}

// NewPipeline 按组件选项和设置选项组装流水线
func NewPipeline(compOpts []ComponentOpt, setOpts []SettingOpt) (*Pipeline, error) {
	comp := &Components{}
	for _, opt := range compOpts {
		opt(comp)
	}
	set := &Settings{Concurrency: 4}
	for _, opt := range setOpts {
		opt(set)
	}

	if comp.Normalizer == nil {
		return nil, fmt.Errorf("流水线缺少文本规范化器")
	}
	if comp.Pattern == nil {
		return nil, fmt.Errorf("流水线缺少模式抽取器")
	}
	if comp.Validator == nil {
		return nil, fmt.Errorf("流水线缺少校验器")
	}
	if comp.Store == nil {
		logger.Warn().Msg("流水线未注入反馈存储，抽取结果将不落库")
	}

	return &Pipeline{Components: *comp, Settings: *set}, nil
}

// ProcessDocument 处理单份文档并返回抽取记录与裁决
// 历史统计快照即时读取；批处理路径用 ProcessBatch 以复用批次级快照
func (p *Pipeline) ProcessDocument(ctx context.Context, documentID, rawText string) (*types.ExtractionRecord, types.ValidationVerdict, error) {
	return p.processDocument(ctx, "", documentID, rawText, p.priorStatsSnapshot(ctx))
}

func (p *Pipeline) processDocument(ctx context.Context, batchID, documentID, rawText string, priorStats map[string]types.FieldStats) (*types.ExtractionRecord, types.ValidationVerdict, error) {
	ctx, span := pipelineTracer.Start(ctx, "pipeline.process_document",
		trace.WithAttributes(attribute.String("document.id", documentID)))
	defer span.End()

	start := time.Now()
	var verdict types.ValidationVerdict

	// 阶段一：文本规范化
	text := p.Normalizer.Normalize(rawText)
	if text == "" {
		err := NewEmptyDocumentError(documentID)
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, verdict, err
	}
	if extractor.LooksVertical(text) {
		text = p.Normalizer.RepairVertical(ctx, text)
	}
	span.SetAttributes(attribute.String("document.text_preview", tracing.SafeResumeText(text)))
	p.logState(documentID, types.StateNormalized)

	// 归档规范化文本，失败不阻塞流水线
	archivePath := p.archiveText(ctx, span, documentID, text)

	// 阶段二：双路抽取。模式抽取是纯计算，与头部LLM调用并行
	patternCh := make(chan extractor.PatternResult, 1)
	go func() {
		patternCh <- p.Pattern.Extract(text)
	}()

	var hdr extractor.HeaderFields
	if p.Header != nil {
		hdr = p.Header.Extract(ctx, text)
	}
	pat := <-patternCh
	p.logState(documentID, types.StatePatternDone)
	p.logState(documentID, types.StateHeaderDone)

	// 阶段三：合并。确定性结果优先于LLM结果
	record := types.NewExtractionRecord(documentID)
	extractor.MergeHeader(record, pat, hdr)
	record.Skills = pat.Skills
	record.Experience = pat.Experience
	record.Education = pat.Education
	// 非空字段必须有对应的来源记录
	if len(record.Skills) > 0 {
		record.Provenance["skills"] = types.ProvenancePattern
	}
	if len(record.Experience) > 0 {
		record.Provenance["experience"] = types.ProvenancePattern
	}
	if len(record.Education) > 0 {
		record.Provenance["education"] = types.ProvenancePattern
	}

	var unrepairable []string
	if hdr.Unrepairable {
		unrepairable = append(unrepairable, types.FieldName, types.FieldEmail, types.FieldPhone)
	}

	// 阶段四：缺失字段兜底
	if p.Fallback != nil {
		for _, field := range []string{types.FieldName, types.FieldPhone} {
			if record.FieldValue(field) != "" {
				continue
			}
			if value := p.Fallback.ExtractField(ctx, text, field); value != "" {
				record.SetField(field, value, types.ProvenanceAIFallback)
			}
		}
	}

	// 阶段五：技能深度分类，失败时token保持未分类
	if p.Categorizer != nil {
		record.Skills = p.Categorizer.Categorize(ctx, record.Skills)
		for i := range record.Skills {
			if record.Skills[i].Source == types.SourceAI {
				record.Provenance["skills"] = types.ProvenanceAIDeep
				break
			}
		}
	}
	p.logState(documentID, types.StateCategorized)

	// 阶段六：校验裁决
	verdict = p.Validator.Validate(ctx, extractor.ValidatorInput{
		Record:             record,
		Text:               text,
		UnrepairableFields: unrepairable,
	}, priorStats)
	p.logState(documentID, types.StateValidated)

	status := constants.StatusFlaggedForReview
	finalState := types.StateFlaggedForReview
	if verdict.Accepted {
		status = constants.StatusAccepted
		finalState = types.StateAccepted
	}
	span.SetAttributes(
		attribute.String("document.status", status),
		attribute.Int("document.flagged_fields", len(verdict.FlaggedFields)),
	)

	// 阶段七：反馈落库。这是唯一致命的阶段
	if p.Store != nil {
		if err := p.Store.Record(ctx, batchID, record, verdict); err != nil {
			wrapped := NewFeedbackStoreError(documentID, err.Error())
			tracing.RecordErrorWithInfo(span, wrapped, tracing.ErrorTypeDB,
				attribute.String("batch_id", batchID))
			return record, verdict, wrapped
		}
	}

	// 阶段八：发布结果消息，落库成功之后才发
	p.publishOutcome(ctx, span, batchID, documentID, status, archivePath, record, verdict)

	p.logState(documentID, finalState)
	logger.Info().
		Str("document_id", documentID).
		Str("status", status).
		Strs("flagged_fields", verdict.FlaggedFields).
		Dur("elapsed", time.Since(start)).
		Msg("文档处理完成")
	return record, verdict, nil
}

// archiveText 归档规范化文本，返回对象路径，失败返回空串
func (p *Pipeline) archiveText(ctx context.Context, span trace.Span, documentID, text string) string {
	if p.Archiver == nil {
		return ""
	}
	path, err := p.Archiver.UploadNormalizedText(ctx, documentID, text)
	if err != nil {
		tracing.RecordError(span, NewArchiveError(documentID, err.Error()), tracing.ErrorTypeStorage)
		logger.Warn().Err(err).Str("document_id", documentID).Msg("归档规范化文本失败，继续处理")
		return ""
	}
	return path
}

// outboxEnqueuer 支持发件箱兜底的反馈存储
type outboxEnqueuer interface {
	EnqueueOutbox(ctx context.Context, documentID, routingKey string, payload []byte) error
}

// publishOutcome 发布抽取结果消息
// 直发失败时落入发件箱由中继补发，两者都失败才算消息丢失，且不影响文档结果
func (p *Pipeline) publishOutcome(ctx context.Context, span trace.Span, batchID, documentID, status, archivePath string, record *types.ExtractionRecord, verdict types.ValidationVerdict) {
	if p.Publisher == nil {
		return
	}
	message := storage.ExtractionOutcomeMessage{
		DocumentID:         documentID,
		BatchID:            batchID,
		Status:             status,
		Record:             record,
		Verdict:            verdict,
		NormalizedTextPath: archivePath,
		ProcessedAt:        time.Now(),
	}
	routingKey := p.Publisher.RoutingKeyForStatus(status)
	err := p.Publisher.PublishJSON(ctx, routingKey, message)
	if err == nil {
		return
	}
	tracing.RecordError(span, NewPublishError(documentID, err.Error()), tracing.ErrorTypeRabbitMQ)
	logger.Warn().Err(err).Str("document_id", documentID).Str("routing_key", routingKey).Msg("发布抽取结果消息失败，尝试落入发件箱")

	enqueuer, ok := p.Store.(outboxEnqueuer)
	if !ok {
		return
	}
	payload, marshalErr := json.Marshal(message)
	if marshalErr != nil {
		return
	}
	if enqueueErr := enqueuer.EnqueueOutbox(ctx, documentID, routingKey, payload); enqueueErr != nil {
		logger.Error().Err(enqueueErr).Str("document_id", documentID).Msg("落入发件箱失败，结果消息丢失")
	}
}

// priorStatsSnapshot 读取字段历史统计，存储不可用时返回空快照
func (p *Pipeline) priorStatsSnapshot(ctx context.Context) map[string]types.FieldStats {
	if p.Store == nil {
		return map[string]types.FieldStats{}
	}
	stats, err := p.Store.PriorStats(ctx, statFields)
	if err != nil {
		logger.Warn().Err(err).Msg("读取字段历史统计失败，使用空快照")
		return map[string]types.FieldStats{}
	}
	return stats
}

func (p *Pipeline) logState(documentID string, state types.DocumentState) {
	logger.Debug().Str("document_id", documentID).Str("state", string(state)).Msg("文档状态推进")
}
