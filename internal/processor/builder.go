package processor

import (
	"time"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/extractor"
	"resume-agent-go/internal/ratelimit"
	"resume-agent-go/internal/storage"

	"github.com/cloudwego/eino/components/model"
)

// BuildPipeline 按配置组装一条完整流水线
// chatModel 先套限流代理再交给LLM客户端，所有call_kind共享同一个令牌桶；
// st 可为nil（纯内存模式），此时落库、发布、归档、检查点全部降级
func BuildPipeline(cfg *config.Config, chatModel model.ToolCallingChatModel, st *storage.Storage) (*Pipeline, error) {
	throttled := ratelimit.NewThrottledChatModel(chatModel, cfg.Extractor.QPM)
	llm := extractor.NewLLMClient(
		throttled,
		config.GetDuration(cfg.Extractor.CallTimeout, 60*time.Second),
		cfg.Extractor.MaxRetries,
		time.Duration(cfg.Extractor.RetryWaitSeconds)*time.Second,
	)
	// 每个任务解析出确定的模型档位，未单独配置的任务落到默认模型
	llm.SetTaskModels(map[string]string{
		constants.TaskHeader:         cfg.GetModelForTask(constants.TaskHeader),
		constants.TaskCategorize:     cfg.GetModelForTask(constants.TaskCategorize),
		constants.TaskFallbackField:  cfg.GetModelForTask(constants.TaskFallbackField),
		constants.TaskNameValidation: cfg.GetModelForTask(constants.TaskNameValidation),
		constants.TaskVerticalRepair: cfg.GetModelForTask(constants.TaskVerticalRepair),
	})

	scorer := extractor.NewConfidenceScorer(llm)
	compOpts := []ComponentOpt{
		WithcompNormalizer(extractor.NewTextNormalizer(llm)),
		WithcompPattern(extractor.NewPatternExtractor(cfg.Extractor.MaxSkills)),
		WithcompHeader(extractor.NewHeaderExtractor(llm, cfg.Extractor.HeaderChars)),
		WithcompFallback(extractor.NewFallbackExtractor(llm, cfg.Extractor.FallbackChars)),
		WithcompCategorizer(extractor.NewDeepCategorizer(llm)),
		WithcompValidator(extractor.NewExtractionValidator(scorer, cfg.Extractor.LazyDumpMinLen, cfg.Extractor.NameThreshold)),
	}
	if st != nil {
		if st.MySQL != nil {
			var feedbackStore FeedbackStore = st.MySQL
			if st.Redis != nil {
				// 统计快照走Redis缓存，写路径仍直透MySQL
				feedbackStore = storage.NewCachedFeedbackStore(st.MySQL, st.Redis)
			}
			compOpts = append(compOpts, WithcompFeedbackstore(feedbackStore))
		}
		if st.RabbitMQ != nil {
			compOpts = append(compOpts, WithcompPublisher(st.RabbitMQ))
		}
		if st.MinIO != nil {
			compOpts = append(compOpts, WithcompArchiver(st.MinIO))
		}
		if st.Redis != nil {
			compOpts = append(compOpts, WithcompCheckpointstore(st.Redis))
		}
	}

	setOpts := []SettingOpt{
		WithsetConcurrency(cfg.Extractor.Concurrency),
	}
	return NewPipeline(compOpts, setOpts)
}
