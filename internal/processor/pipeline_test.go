package processor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"resume-agent-go/internal/agent"
	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/extractor"
	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ----- 测试用Mock实现 -----

type mockOutboxEntry struct {
	DocumentID string
	RoutingKey string
	Payload    []byte
}

// mockFeedbackStore 内存版反馈存储，支持按文档注入失败
type mockFeedbackStore struct {
	mu          sync.Mutex
	records     []*types.ExtractionRecord
	verdicts    map[string]types.ValidationVerdict
	priorStats  map[string]types.FieldStats
	recordErrOn map[string]error
	outbox      []mockOutboxEntry
	enqueueErr  error
}

func newMockFeedbackStore() *mockFeedbackStore {
	return &mockFeedbackStore{
		verdicts:    make(map[string]types.ValidationVerdict),
		priorStats:  make(map[string]types.FieldStats),
		recordErrOn: make(map[string]error),
	}
}

func (m *mockFeedbackStore) Record(ctx context.Context, batchID string, record *types.ExtractionRecord, verdict types.ValidationVerdict) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.recordErrOn[record.DocumentID]; err != nil {
		return err
	}
	m.records = append(m.records, record)
	m.verdicts[record.DocumentID] = verdict
	return nil
}

func (m *mockFeedbackStore) SaveCorrection(ctx context.Context, documentID, field, original, corrected, contextText string) error {
	return nil
}

func (m *mockFeedbackStore) PriorStats(ctx context.Context, fields []string) (map[string]types.FieldStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := make(map[string]types.FieldStats, len(fields))
	for _, field := range fields {
		stats[field] = m.priorStats[field]
	}
	return stats, nil
}

func (m *mockFeedbackStore) EnqueueOutbox(ctx context.Context, documentID, routingKey string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.outbox = append(m.outbox, mockOutboxEntry{DocumentID: documentID, RoutingKey: routingKey, Payload: payload})
	return nil
}

type mockPublished struct {
	RoutingKey string
	Data       interface{}
}

// mockPublisher 内存版结果发布器
type mockPublisher struct {
	mu         sync.Mutex
	published  []mockPublished
	publishErr error
}

func (m *mockPublisher) PublishJSON(ctx context.Context, routingKey string, data interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, mockPublished{RoutingKey: routingKey, Data: data})
	return nil
}

func (m *mockPublisher) RoutingKeyForStatus(status string) string {
	if status == constants.StatusAccepted {
		return "extraction.accepted"
	}
	return "extraction.review"
}

// mockArchiver 内存版文本归档
type mockArchiver struct {
	mu        sync.Mutex
	uploads   map[string]string
	uploadErr error
}

func newMockArchiver() *mockArchiver {
	return &mockArchiver{uploads: make(map[string]string)}
}

func (m *mockArchiver) UploadNormalizedText(ctx context.Context, documentID, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	path := "normalized/" + documentID + ".txt"
	m.uploads[documentID] = text
	return path, nil
}

// mockCheckpointStore 内存版批次检查点
type mockCheckpointStore struct {
	mu      sync.Mutex
	cursors map[string]string
	saved   []string
	saveErr error
}

func newMockCheckpointStore() *mockCheckpointStore {
	return &mockCheckpointStore{cursors: make(map[string]string)}
}

func (m *mockCheckpointStore) SaveCheckpoint(ctx context.Context, batchID, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.cursors[batchID] = documentID
	m.saved = append(m.saved, documentID)
	return nil
}

func (m *mockCheckpointStore) LoadCheckpoint(ctx context.Context, batchID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cursor, ok := m.cursors[batchID]
	if !ok {
		return "", storage.ErrNotFound
	}
	return cursor, nil
}

// ----- 测试装配 -----

type testDeps struct {
	store       *mockFeedbackStore
	publisher   *mockPublisher
	archiver    *mockArchiver
	checkpoints *mockCheckpointStore
}

func newTestPipeline(t *testing.T, mock *agent.MockChatClient, setOpts ...SettingOpt) (*Pipeline, *testDeps) {
	t.Helper()

	llm := extractor.NewLLMClient(mock, 5*time.Second, 0, time.Millisecond)
	deps := &testDeps{
		store:       newMockFeedbackStore(),
		publisher:   &mockPublisher{},
		archiver:    newMockArchiver(),
		checkpoints: newMockCheckpointStore(),
	}

	p, err := NewPipeline([]ComponentOpt{
		WithcompNormalizer(extractor.NewTextNormalizer(nil)),
		WithcompPattern(extractor.NewPatternExtractor(50)),
		WithcompHeader(extractor.NewHeaderExtractor(llm, 3000)),
		WithcompFallback(extractor.NewFallbackExtractor(llm, 1500)),
		WithcompCategorizer(extractor.NewDeepCategorizer(llm)),
		WithcompValidator(extractor.NewExtractionValidator(extractor.NewConfidenceScorer(llm), 40, 0.5)),
		WithcompFeedbackstore(deps.store),
		WithcompPublisher(deps.publisher),
		WithcompArchiver(deps.archiver),
		WithcompCheckpointstore(deps.checkpoints),
	}, setOpts)
	require.NoError(t, err)
	return p, deps
}

const fullResumeText = `Jane Doe
jane.doe@example.com
(555) 123-4567

SKILLS
Python, SQL, Communication, Leadership

EDUCATION
State University
Bachelor of Science in Computer Science
2012 - 2016`

// ----- 单文档流水线测试 -----

// TestNewPipelineRequiresCoreComponents 测试缺少核心组件时组装失败
func TestNewPipelineRequiresCoreComponents(t *testing.T) {
	_, err := NewPipeline(nil, nil)
	require.Error(t, err)

	_, err = NewPipeline([]ComponentOpt{
		WithcompNormalizer(extractor.NewTextNormalizer(nil)),
		WithcompPattern(extractor.NewPatternExtractor(50)),
	}, nil)
	require.Error(t, err)
}

// TestProcessDocumentHappyPath 测试完整简历端到端：接受、落库、发布
func TestProcessDocumentHappyPath(t *testing.T) {
	// 调用顺序：头部抽取，然后技能分类
	mock := agent.NewMockChatClientSequential([]agent.MockResponse{
		{Content: `{"name": "Jane Doe", "email": "jane.doe@example.com", "phone": "(555) 123-4567"}`},
		{Content: `{"technical": ["Python", "SQL"], "soft": ["Communication", "Leadership"]}`},
	})
	p, deps := newTestPipeline(t, mock)

	record, verdict, err := p.ProcessDocument(context.Background(), "doc-1", fullResumeText)
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.True(t, verdict.Accepted)
	assert.Empty(t, verdict.FlaggedFields)

	assert.Equal(t, "Jane Doe", record.Name)
	assert.Equal(t, types.ProvenanceAIHeader, record.Provenance[types.FieldName])
	// 严格邮箱和模式电话压过LLM结果
	assert.Equal(t, "jane.doe@example.com", record.Email)
	assert.Equal(t, types.ProvenancePattern, record.Provenance[types.FieldEmail])
	assert.Equal(t, "(555) 123-4567", record.Phone)
	assert.Equal(t, types.ProvenancePattern, record.Provenance[types.FieldPhone])

	// 全部技能被分类且来源升级为ai
	require.Len(t, record.Skills, 4)
	for _, s := range record.Skills {
		assert.NotEmpty(t, s.Category)
		assert.Equal(t, types.SourceAI, s.Source)
	}
	assert.Equal(t, types.ProvenanceAIDeep, record.Provenance["skills"])

	// 落库一条，发布到accepted路由，归档了规范化文本
	require.Len(t, deps.store.records, 1)
	assert.Equal(t, "doc-1", deps.store.records[0].DocumentID)
	require.Len(t, deps.publisher.published, 1)
	assert.Equal(t, "extraction.accepted", deps.publisher.published[0].RoutingKey)
	assert.Contains(t, deps.archiver.uploads, "doc-1")

	message, ok := deps.publisher.published[0].Data.(storage.ExtractionOutcomeMessage)
	require.True(t, ok)
	assert.Equal(t, constants.StatusAccepted, message.Status)
	assert.Equal(t, "normalized/doc-1.txt", message.NormalizedTextPath)
}

// TestProcessDocumentEmptyText 测试空文档直接报错
func TestProcessDocumentEmptyText(t *testing.T) {
	p, deps := newTestPipeline(t, agent.NewMockChatClient("", errors.New("不应该被调用")))

	_, _, err := p.ProcessDocument(context.Background(), "doc-1", "  \n\n ")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyDocument)
	assert.Empty(t, deps.store.records)
	assert.Empty(t, deps.publisher.published)
}

// TestProcessDocumentDegradedWithoutLLM 测试所有LLM调用失败时纯模式路径仍能接受完整简历
func TestProcessDocumentDegradedWithoutLLM(t *testing.T) {
	mock := agent.NewMockChatClient("", errors.New("service unavailable"))
	p, deps := newTestPipeline(t, mock)

	record, verdict, err := p.ProcessDocument(context.Background(), "doc-1", fullResumeText)
	require.NoError(t, err)

	assert.True(t, verdict.Accepted)
	assert.Equal(t, "Jane Doe", record.Name)
	assert.Equal(t, types.ProvenancePattern, record.Provenance[types.FieldName])
	assert.Equal(t, "jane.doe@example.com", record.Email)
	assert.Equal(t, "(555) 123-4567", record.Phone)

	// 分类失败：token保持未分类，来源仍是模式抽取
	require.Len(t, record.Skills, 4)
	for _, s := range record.Skills {
		assert.Empty(t, s.Category)
		assert.Equal(t, types.SourcePattern, s.Source)
	}
	assert.Equal(t, types.ProvenancePattern, record.Provenance["skills"])
	assert.Equal(t, types.ProvenancePattern, record.Provenance["education"])

	require.Len(t, deps.store.records, 1)
	require.Len(t, deps.publisher.published, 1)
	assert.Equal(t, "extraction.accepted", deps.publisher.published[0].RoutingKey)
}

// TestProcessDocumentCategorizeFailureStillAccepted 测试分类失败不影响裁决
func TestProcessDocumentCategorizeFailureStillAccepted(t *testing.T) {
	mock := agent.NewMockChatClientSequential([]agent.MockResponse{
		{Content: `{"name": "Jane Doe", "email": "", "phone": ""}`},
		{Error: errors.New("categorize timeout")},
	})
	p, _ := newTestPipeline(t, mock)

	record, verdict, err := p.ProcessDocument(context.Background(), "doc-1", fullResumeText)
	require.NoError(t, err)

	assert.True(t, verdict.Accepted)
	for _, s := range record.Skills {
		assert.Empty(t, s.Category)
	}
}

// TestProcessDocumentFallbackFillsName 测试合并后缺姓名时兜底调用补上
func TestProcessDocumentFallbackFillsName(t *testing.T) {
	text := `contact@example.com
(555) 123-4567

SKILLS
Python, SQL, Docker, AWS, Leadership`
	mock := agent.NewMockChatClientSequential([]agent.MockResponse{
		{Content: `{"name": "", "email": "", "phone": ""}`},
		{Content: "Mary Major"},
		{Content: `{"technical": ["Python", "SQL", "Docker", "AWS"], "soft": ["Leadership"]}`},
	})
	p, _ := newTestPipeline(t, mock)

	record, verdict, err := p.ProcessDocument(context.Background(), "doc-1", text)
	require.NoError(t, err)

	assert.True(t, verdict.Accepted)
	assert.Equal(t, "Mary Major", record.Name)
	assert.Equal(t, types.ProvenanceAIFallback, record.Provenance[types.FieldName])
}

// TestProcessDocumentFlaggedGoesToReview 测试被标记的记录发布到复核路由
func TestProcessDocumentFlaggedGoesToReview(t *testing.T) {
	// 文档里没有姓名也没有联系方式，所有LLM调用失败
	mock := agent.NewMockChatClient("", errors.New("service unavailable"))
	p, deps := newTestPipeline(t, mock)

	record, verdict, err := p.ProcessDocument(context.Background(), "doc-1", "an anonymous text without any of the usual details")
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.False(t, verdict.Accepted)
	assert.Contains(t, verdict.FlaggedFields, types.FieldName)
	assert.Contains(t, verdict.FlaggedFields, types.FieldEmail)
	assert.Contains(t, verdict.FlaggedFields, types.FieldPhone)

	// 被标记的记录照常落库，只是走另一个路由
	require.Len(t, deps.store.records, 1)
	require.Len(t, deps.publisher.published, 1)
	assert.Equal(t, "extraction.review", deps.publisher.published[0].RoutingKey)

	message, ok := deps.publisher.published[0].Data.(storage.ExtractionOutcomeMessage)
	require.True(t, ok)
	assert.Equal(t, constants.StatusFlaggedForReview, message.Status)
}

// TestProcessDocumentStoreFailureIsFatal 测试反馈落库失败是唯一致命阶段
func TestProcessDocumentStoreFailureIsFatal(t *testing.T) {
	mock := agent.NewMockChatClient("", errors.New("service unavailable"))
	p, deps := newTestPipeline(t, mock)
	deps.store.recordErrOn["doc-1"] = errors.New("deadlock found")

	record, verdict, err := p.ProcessDocument(context.Background(), "doc-1", fullResumeText)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFeedbackStoreFailed)

	// 记录和裁决仍返回给调用方，但不发布消息
	assert.NotNil(t, record)
	assert.True(t, verdict.Accepted)
	assert.Empty(t, deps.publisher.published)
}

// TestProcessDocumentOutboxFallback 测试直发失败时消息落入发件箱
func TestProcessDocumentOutboxFallback(t *testing.T) {
	mock := agent.NewMockChatClient("", errors.New("service unavailable"))
	p, deps := newTestPipeline(t, mock)
	deps.publisher.publishErr = errors.New("channel closed")

	_, _, err := p.ProcessDocument(context.Background(), "doc-1", fullResumeText)
	// 消息通道故障不影响文档结果
	require.NoError(t, err)

	require.Len(t, deps.store.outbox, 1)
	entry := deps.store.outbox[0]
	assert.Equal(t, "doc-1", entry.DocumentID)
	assert.Equal(t, "extraction.accepted", entry.RoutingKey)

	var message storage.ExtractionOutcomeMessage
	require.NoError(t, json.Unmarshal(entry.Payload, &message))
	assert.Equal(t, "doc-1", message.DocumentID)
	assert.Equal(t, constants.StatusAccepted, message.Status)
}

// TestProcessDocumentArchiveFailureNonFatal 测试归档失败不阻塞流水线
func TestProcessDocumentArchiveFailureNonFatal(t *testing.T) {
	mock := agent.NewMockChatClient("", errors.New("service unavailable"))
	p, deps := newTestPipeline(t, mock)
	deps.archiver.uploadErr = errors.New("bucket missing")

	_, verdict, err := p.ProcessDocument(context.Background(), "doc-1", fullResumeText)
	require.NoError(t, err)
	assert.True(t, verdict.Accepted)

	require.Len(t, deps.publisher.published, 1)
	message := deps.publisher.published[0].Data.(storage.ExtractionOutcomeMessage)
	assert.Empty(t, message.NormalizedTextPath)
}
