package storage

import (
	"context"
	"fmt"
	"strings"

	"ats-engine/internal/config"

	"github.com/rs/zerolog"
)

// Storage 聚合所有存储依赖。MySQL 必需，其余组件初始化失败时记录告警并置空。
type Storage struct {
	MySQL      *MySQL
	Candidates *CandidateStore
	Redis      *Redis
	RabbitMQ   *RabbitMQ
	MinIO      *MinIO
}

// NewStorage 按配置初始化各存储组件
func NewStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}
	s := &Storage{}
	var initErrors []string
	var err error

	s.MySQL, err = NewMySQL(&cfg.MySQL, logger.With().Str("component", "mysql").Logger())
	if err != nil {
		return nil, fmt.Errorf("初始化MySQL失败: %w", err)
	}
	s.Candidates = NewCandidateStore(s.MySQL.DB(), cfg.RabbitMQ.EventsExchange)

	if cfg.Redis.Address != "" {
		if s.Redis, err = NewRedisAdapter(&cfg.Redis); err != nil {
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		}
	}

	if cfg.RabbitMQ.URL != "" {
		mq, err := NewRabbitMQ(&cfg.RabbitMQ, logger.With().Str("component", "rabbitmq").Logger())
		if err == nil {
			if err = mq.SetupTopology(); err != nil {
				mq.Close()
			}
		}
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
		} else {
			s.RabbitMQ = mq
		}
	}

	if cfg.MinIO.Endpoint != "" {
		if s.MinIO, err = NewMinIO(&cfg.MinIO, logger.With().Str("component", "minio").Logger()); err != nil {
			initErrors = append(initErrors, fmt.Sprintf("MinIO: %v", err))
		}
	}

	if len(initErrors) > 0 {
		logger.Warn().Str("errors", strings.Join(initErrors, "; ")).Msg("部分存储组件初始化失败")
	}
	return s, nil
}

// Close 关闭所有连接
func (s *Storage) Close(logger zerolog.Logger) {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			logger.Error().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logger.Error().Err(err).Msg("关闭Redis连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			logger.Error().Err(err).Msg("关闭MySQL连接失败")
		}
	}
}
