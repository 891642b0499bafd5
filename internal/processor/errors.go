package processor

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
// LLM相关失败不在此列：抽取阶段的LLM错误一律降级，不会从流水线冒出来
var (
	ErrEmptyDocument       = errors.New("文档文本为空")
	ErrArchiveFailed       = errors.New("归档规范化文本失败")
	ErrFeedbackStoreFailed = errors.New("反馈存储写入失败")
	ErrPublishFailed       = errors.New("发布抽取结果消息失败")
	ErrCheckpointFailed    = errors.New("保存批次检查点失败")
)

// ExtractError 包含详细错误信息的自定义错误
type ExtractError struct {
	DocumentID string
	Op         string
	BaseErr    error
	Detail     string
}

func (e *ExtractError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, 文档:%s): %s", e.BaseErr, e.Op, e.DocumentID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, 文档:%s)", e.BaseErr, e.Op, e.DocumentID)
}

func (e *ExtractError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *ExtractError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数
func NewEmptyDocumentError(documentID string) error {
	return &ExtractError{
		DocumentID: documentID,
		Op:         "normalize",
		BaseErr:    ErrEmptyDocument,
	}
}

func NewArchiveError(documentID, detail string) error {
	return &ExtractError{
		DocumentID: documentID,
		Op:         "archive",
		BaseErr:    ErrArchiveFailed,
		Detail:     detail,
	}
}

func NewFeedbackStoreError(documentID, detail string) error {
	return &ExtractError{
		DocumentID: documentID,
		Op:         "record",
		BaseErr:    ErrFeedbackStoreFailed,
		Detail:     detail,
	}
}

func NewPublishError(documentID, detail string) error {
	return &ExtractError{
		DocumentID: documentID,
		Op:         "publish",
		BaseErr:    ErrPublishFailed,
		Detail:     detail,
	}
}

func NewCheckpointError(documentID, detail string) error {
	return &ExtractError{
		DocumentID: documentID,
		Op:         "checkpoint",
		BaseErr:    ErrCheckpointFailed,
		Detail:     detail,
	}
}
