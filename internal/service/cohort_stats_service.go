package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"checkin-campaign/backend/config"
	"checkin-campaign/backend/internal/dto"
	"checkin-campaign/backend/internal/model"
	"checkin-campaign/backend/internal/repository"
	"checkin-campaign/backend/pkg/calendar"
	"checkin-campaign/backend/pkg/redis"
)

const statsCacheKeyPrefix = "checkin:stats:"

// CohortStatsService 全体生效周期统计接口
type CohortStatsService interface {
	// Aggregate 统计所有生效周期的进度分布
	Aggregate(ctx context.Context) (*dto.CohortStatsResponse, error)
	// Invalidate 清除当日统计缓存，失败只记录日志
	Invalidate(ctx context.Context)
}

type cohortStatsService struct {
	repo   *repository.Repository
	cache  Cache
	ttl    time.Duration
	clock  calendar.Clock
	logger *zap.Logger
}

// NewCohortStatsService 创建 CohortStatsService 实例，cache 可为 nil
func NewCohortStatsService(cfg *config.Config, repo *repository.Repository, cache Cache, clock calendar.Clock, logger *zap.Logger) CohortStatsService {
	return &cohortStatsService{
		repo:   repo,
		cache:  cache,
		ttl:    cfg.Campaign.StatsCacheTTL,
		clock:  clock,
		logger: logger,
	}
}

func (s *cohortStatsService) Aggregate(ctx context.Context) (*dto.CohortStatsResponse, error) {
	today := calendar.Today(s.clock)
	key := statsCacheKeyPrefix + calendar.FormatDate(today)

	if s.cache != nil {
		var cached dto.CohortStatsResponse
		err := s.cache.GetJSON(ctx, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, redis.ErrCacheMiss) {
			s.logger.Warn("读取统计缓存失败", zap.Error(err))
		}
	}

	entries, err := loadCohort(ctx, s.repo, s.logger)
	if err != nil {
		return nil, err
	}

	stats := &dto.CohortStatsResponse{
		Today:       calendar.FormatDate(today),
		TotalActive: len(entries),
	}
	for _, e := range entries {
		switch EvaluateProgress(e.start, e.end, e.valid, today) {
		case ProgressQualified:
			stats.Qualified++
		case ProgressForgot:
			stats.Forgot++
		case ProgressNotStarted:
			stats.NotStarted++
		}
		if calendar.InWindow(today, e.start, e.end) {
			stats.InProgress++
		}
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, stats, s.ttl); err != nil {
			s.logger.Warn("写入统计缓存失败", zap.Error(err))
		}
	}
	return stats, nil
}

func (s *cohortStatsService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	key := statsCacheKeyPrefix + calendar.FormatDate(calendar.Today(s.clock))
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("清除统计缓存失败", zap.Error(err))
	}
}

// ── 生效周期汇总 ──

type cohortEntry struct {
	window     *model.CheckinSchedule
	start, end time.Time
	valid      int
	records    []model.CheckinRecord
}

// loadCohort 取全部生效周期，一次查询覆盖所有周期的打卡记录，
// 再按学员各自的 [start, end] 过滤
func loadCohort(ctx context.Context, repo *repository.Repository, logger *zap.Logger) ([]cohortEntry, error) {
	windows, err := repo.CheckinSchedule.ListAllActive(ctx)
	if err != nil {
		logger.Error("查询生效安排失败", zap.Error(err))
		return nil, storeFailure("查询生效安排", err)
	}
	if len(windows) == 0 {
		return []cohortEntry{}, nil
	}

	ids := make([]string, 0, len(windows))
	from, to := calendar.DateOf(windows[0].StartDate), calendar.DateOf(windows[0].EndDate)
	for i := range windows {
		ids = append(ids, windows[i].StudentID)
		if start := calendar.DateOf(windows[i].StartDate); start.Before(from) {
			from = start
		}
		if end := calendar.DateOf(windows[i].EndDate); end.After(to) {
			to = end
		}
	}

	records, err := repo.CheckinRecord.ListByStudentsInRange(ctx, ids, from, to)
	if err != nil {
		logger.Error("查询打卡记录失败", zap.Error(err))
		return nil, storeFailure("查询打卡记录", err)
	}
	byStudent := make(map[string][]model.CheckinRecord, len(windows))
	for _, r := range records {
		byStudent[r.StudentID] = append(byStudent[r.StudentID], r)
	}

	entries := make([]cohortEntry, 0, len(windows))
	for i := range windows {
		w := &windows[i]
		start, end := calendar.DateOf(w.StartDate), calendar.DateOf(w.EndDate)
		own := byStudent[w.StudentID]
		entries = append(entries, cohortEntry{
			window:  w,
			start:   start,
			end:     end,
			valid:   CountValidInWindow(own, start, end),
			records: own,
		})
	}
	return entries, nil
}
