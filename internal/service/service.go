package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"checkin-campaign/backend/config"
	"checkin-campaign/backend/internal/repository"
	"checkin-campaign/backend/pkg/calendar"
)

// Locker 分布式锁，返回释放函数
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Cache JSON 缓存
type Cache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) error
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Options 可选依赖，Redis 不可用时为 nil
type Options struct {
	Locker Locker
	Cache  Cache
	Clock  calendar.Clock
}

// Service 所有 Service 的聚合入口
type Service struct {
	Schedule      CheckinScheduleService
	SelfSchedule  SelfScheduleService
	Qualification QualificationService
	CohortStats   CohortStatsService
	Export        ExportService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	opts Options,
	logger *zap.Logger,
) *Service {
	if opts.Clock == nil {
		opts.Clock = calendar.SystemClock{}
	}

	stats := NewCohortStatsService(cfg, repo, opts.Cache, opts.Clock, logger)
	schedule := newCheckinScheduleService(cfg, repo, stats, logger)
	qualification := NewQualificationService(repo, opts.Clock, logger)

	return &Service{
		Schedule:      schedule,
		SelfSchedule:  NewSelfScheduleService(cfg, repo, schedule, opts.Locker, opts.Clock, logger),
		Qualification: qualification,
		CohortStats:   stats,
		Export:        NewExportService(repo, opts.Clock, logger),
	}
}
