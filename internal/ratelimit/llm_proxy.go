package ratelimit

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ThrottledChatModel 对模型调用做QPM限流的代理
// 只负责限流，重试和超时由上层的调用封装处理，避免双重重试
type ThrottledChatModel struct {
	original model.ToolCallingChatModel
	bucket   *TokenBucket
}

// NewThrottledChatModel 创建限流模型代理
func NewThrottledChatModel(original model.ToolCallingChatModel, qpm int) *ThrottledChatModel {
	if qpm <= 0 {
		qpm = 30
	}
	return &ThrottledChatModel{
		original: original,
		bucket:   NewTokenBucket(qpm, qpm/2),
	}
}

// Generate 等到令牌可用后转发调用
func (t *ThrottledChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	if err := t.bucket.Wait(ctx); err != nil {
		return nil, err
	}
	return t.original.Generate(ctx, messages, options...)
}

// Stream 等到令牌可用后转发调用
func (t *ThrottledChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	if err := t.bucket.Wait(ctx); err != nil {
		return nil, err
	}
	return t.original.Stream(ctx, messages, options...)
}

// WithTools 代理WithTools方法，新模型沿用同一个令牌桶
func (t *ThrottledChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	newModel, err := t.original.WithTools(tools)
	if err != nil {
		return nil, err
	}
	return &ThrottledChatModel{original: newModel, bucket: t.bucket}, nil
}
