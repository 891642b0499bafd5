package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIO 规范化文本归档
// 复核人员看到的必须是流水线实际处理的文本，所以归档的是规范化之后的版本
type MinIO struct {
	client *minio.Client
	cfg    *config.MinIOConfig
	bucket string
}

// NewMinIO 创建MinIO客户端并确保归档桶存在
func NewMinIO(cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	bucket := cfg.NormalizedTextBucket
	if bucket == "" {
		bucket = "normalized-text"
	}

	m := &MinIO{client: client, cfg: cfg, bucket: bucket}
	if err := m.ensureBucketExists(bucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保归档桶 %s 存在失败: %w", bucket, err)
	}

	logger.Info().Str("endpoint", cfg.Endpoint).Str("bucket", bucket).Msg("MinIO客户端初始化成功")
	return m, nil
}

// ensureBucketExists 确保存储桶存在
func (m *MinIO) ensureBucketExists(bucketName, location string) error {
	exists, err := m.client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if !exists {
		if err := m.client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
			return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
		}
	}
	return nil
}

// normalizedTextObjectName 归档对象名：{documentID}.txt
func normalizedTextObjectName(documentID string) string {
	return documentID + constants.NormalizedTextSuffix
}

// UploadNormalizedText 归档一份文档的规范化文本
func (m *MinIO) UploadNormalizedText(ctx context.Context, documentID, text string) (string, error) {
	objectName := normalizedTextObjectName(documentID)
	_, err := m.client.PutObject(ctx, m.bucket, objectName,
		strings.NewReader(text), int64(len(text)),
		minio.PutObjectOptions{ContentType: "text/plain"})
	if err != nil {
		return "", fmt.Errorf("归档规范化文本 %s 失败: %w", objectName, err)
	}
	return objectName, nil
}

// GetNormalizedText 取回归档的规范化文本
func (m *MinIO) GetNormalizedText(ctx context.Context, documentID string) (string, error) {
	objectName := normalizedTextObjectName(documentID)
	obj, err := m.client.GetObject(ctx, m.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("获取归档文本 %s 失败: %w", objectName, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return "", fmt.Errorf("读取归档文本 %s 失败: %w", objectName, err)
	}
	return string(data), nil
}
