package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"ats-engine/internal/config"
	"ats-engine/internal/types"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// maxResumeObjectBytes 单份简历文本对象的读取上限
const maxResumeObjectBytes = 4 << 20

// ResumeTextStore 预抽取简历文本的对象存储
type ResumeTextStore interface {
	GetResumeText(ctx context.Context, objectKey string) (string, error)
	PutResumeText(ctx context.Context, candidateID, text string) (string, error)
}

var _ ResumeTextStore = (*MinIO)(nil)

// MinIO 简历文本对象存储
type MinIO struct {
	client *minio.Client
	cfg    *config.MinIOConfig
	bucket string
	logger zerolog.Logger
}

// NewMinIO 创建客户端并确保存储桶存在
func NewMinIO(cfg *config.MinIOConfig, logger zerolog.Logger) (*MinIO, error) {
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

	m := &MinIO{client: client, cfg: cfg, bucket: cfg.ResumeBucket, logger: logger}
	if err := m.ensureBucketExists(context.Background(), m.bucket, cfg.Location); err != nil {
		return nil, err
	}
	logger.Info().Str("endpoint", cfg.Endpoint).Str("bucket", m.bucket).Msg("MinIO客户端初始化成功")
	return m, nil
}

func (m *MinIO) ensureBucketExists(ctx context.Context, bucketName, location string) error {
	exists, err := m.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
		return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
	}
	m.logger.Info().Str("bucket", bucketName).Msg("存储桶已创建")
	return nil
}

// GetResumeText 读取简历文本，对象不存在时返回 types.ErrNotFound
func (m *MinIO) GetResumeText(ctx context.Context, objectKey string) (string, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("获取简历文本 %s 失败: %w", objectKey, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, maxResumeObjectBytes))
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return "", fmt.Errorf("简历文本 %s: %w", objectKey, types.ErrNotFound)
		}
		return "", fmt.Errorf("读取简历文本 %s 失败: %w", objectKey, err)
	}
	return string(data), nil
}

// PutResumeText 上传简历文本，返回对象键
func (m *MinIO) PutResumeText(ctx context.Context, candidateID, text string) (string, error) {
	objectKey := fmt.Sprintf("resume/%s/text.txt", candidateID)
	_, err := m.client.PutObject(ctx, m.bucket, objectKey, strings.NewReader(text), int64(len(text)),
		minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
	if err != nil {
		return "", fmt.Errorf("上传简历文本 %s 失败: %w", objectKey, err)
	}
	return objectKey, nil
}
