package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"checkin-campaign/backend/config"
	"checkin-campaign/backend/internal/dto"
	"checkin-campaign/backend/internal/model"
	"checkin-campaign/backend/internal/repository"
	"checkin-campaign/backend/pkg/calendar"
	pkgerrors "checkin-campaign/backend/pkg/errors"
	"checkin-campaign/backend/pkg/idrange"
)

// CheckinScheduleService 打卡安排业务接口
type CheckinScheduleService interface {
	// AllocateSingle 为单个学员分配 93 天打卡周期
	AllocateSingle(ctx context.Context, req *dto.AllocateScheduleRequest, callerID string) (*dto.ScheduleResponse, error)
	// AllocateBatch 按学号区间批量分配，重复提交同一指令是幂等的
	AllocateBatch(ctx context.Context, req *dto.BatchAllocateRequest, callerID string) (*dto.BatchAllocateResponse, error)
	// GetActive 获取学员当前生效的安排，没有时返回 nil
	GetActive(ctx context.Context, studentID string) (*dto.ScheduleResponse, error)
	ListActive(ctx context.Context, req *dto.ScheduleListRequest) ([]dto.ScheduleResponse, int64, error)
	DeactivateAndDelete(ctx context.Context, studentID, callerID string) error
}

// statsInvalidator 安排变化后清除统计缓存
type statsInvalidator interface {
	Invalidate(ctx context.Context)
}

type checkinScheduleService struct {
	cfg    *config.Config
	repo   *repository.Repository
	stats  statsInvalidator
	logger *zap.Logger
}

// NewCheckinScheduleService 创建 CheckinScheduleService 实例
func NewCheckinScheduleService(cfg *config.Config, repo *repository.Repository, stats statsInvalidator, logger *zap.Logger) CheckinScheduleService {
	return newCheckinScheduleService(cfg, repo, stats, logger)
}

func newCheckinScheduleService(cfg *config.Config, repo *repository.Repository, stats statsInvalidator, logger *zap.Logger) *checkinScheduleService {
	return &checkinScheduleService{cfg: cfg, repo: repo, stats: stats, logger: logger}
}

// newWindow 构造打卡周期，所有来源共用，结束日只在这里计算
func newWindow(studentID string, start time.Time, scheduleType, createdBy string) *model.CheckinSchedule {
	start = calendar.DateOf(start)
	return &model.CheckinSchedule{
		StudentID:    studentID,
		StartDate:    start,
		EndDate:      calendar.WindowEnd(start),
		ScheduleType: scheduleType,
		CreatedBy:    createdBy,
		IsActive:     true,
	}
}

// ────────────────────── AllocateSingle ──────────────────────

func (s *checkinScheduleService) AllocateSingle(ctx context.Context, req *dto.AllocateScheduleRequest, callerID string) (*dto.ScheduleResponse, error) {
	start, err := calendar.ParseDate(req.StartDate)
	if err != nil {
		return nil, ErrInvalidDate
	}

	participant, err := s.getParticipant(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.CheckinSchedule.GetActive(ctx, req.StudentID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询生效安排失败", zap.String("student_id", req.StudentID), zap.Error(err))
		return nil, storeFailure("查询生效安排", err)
	}
	if existing != nil && !req.ForceUpdate {
		return nil, &ScheduleConflictError{StudentIDs: []string{req.StudentID}}
	}

	window := newWindow(req.StudentID, start, model.ScheduleTypeAdmin, callerID)
	if existing != nil {
		// 旧安排停用与新安排写入必须同时成功
		err = s.repo.Tx.WithinTx(ctx, func(tx *repository.Repository) error {
			if _, err := tx.CheckinSchedule.DeactivateByStudent(ctx, req.StudentID); err != nil {
				return err
			}
			return tx.CheckinSchedule.Create(ctx, window)
		})
	} else {
		err = s.repo.CheckinSchedule.Create(ctx, window)
	}
	if err != nil {
		if errors.Is(err, pkgerrors.ErrDuplicateActive) {
			return nil, &ScheduleConflictError{StudentIDs: []string{req.StudentID}}
		}
		s.logger.Error("写入打卡安排失败", zap.String("student_id", req.StudentID), zap.Error(err))
		return nil, storeFailure("写入打卡安排", err)
	}

	s.stats.Invalidate(ctx)
	s.logger.Info("分配打卡周期",
		zap.String("student_id", req.StudentID),
		zap.String("start_date", calendar.FormatDate(window.StartDate)),
		zap.Bool("replaced", existing != nil),
		zap.String("operator", callerID),
	)

	resp := toScheduleResponse(window)
	resp.StudentName = participant.Name
	return &resp, nil
}

// ────────────────────── AllocateBatch ──────────────────────

func (s *checkinScheduleService) AllocateBatch(ctx context.Context, req *dto.BatchAllocateRequest, callerID string) (*dto.BatchAllocateResponse, error) {
	start, err := calendar.ParseDate(req.StartDate)
	if err != nil {
		return nil, ErrInvalidDate
	}

	size, err := idrange.Size(req.BatchStartID, req.BatchEndID)
	if err != nil {
		return nil, ErrInvalidRange
	}
	if size > uint64(s.cfg.Campaign.BatchMaxSize) {
		return nil, ErrBatchTooLarge
	}
	ids, err := idrange.Expand(req.BatchStartID, req.BatchEndID)
	if err != nil {
		return nil, ErrInvalidRange
	}

	// 1. 只处理已注册学员
	participants, err := s.repo.Participant.ListByStudentIDs(ctx, ids)
	if err != nil {
		s.logger.Error("批量查询学员失败", zap.Error(err))
		return nil, storeFailure("批量查询学员", err)
	}
	registered := make(map[string]bool, len(participants))
	for _, p := range participants {
		registered[p.StudentID] = true
	}

	targets := make([]string, 0, len(participants))
	skipped := make([]string, 0)
	for _, id := range ids {
		if registered[id] {
			targets = append(targets, id)
		} else {
			skipped = append(skipped, id)
		}
	}

	// 2. 开始日期不同的生效安排视为冲突；相同开始日期的重复提交直接幂等写入
	active, err := s.repo.CheckinSchedule.ListActiveByStudentIDs(ctx, targets)
	if err != nil {
		s.logger.Error("批量查询生效安排失败", zap.Error(err))
		return nil, storeFailure("批量查询生效安排", err)
	}
	replace := make(map[string]bool)
	var conflicts []string
	for _, a := range active {
		if !calendar.DateOf(a.StartDate).Equal(start) {
			replace[a.StudentID] = true
			conflicts = append(conflicts, a.StudentID)
		}
	}
	if len(conflicts) > 0 && !req.ForceUpdate {
		return nil, &ScheduleConflictError{StudentIDs: conflicts}
	}

	// 3. 逐个写入，失败时报告已提交部分
	committed := make([]string, 0, len(targets))
	defer func() {
		if len(committed) > 0 {
			s.stats.Invalidate(ctx)
		}
	}()

	for _, id := range targets {
		window := newWindow(id, start, model.ScheduleTypeAdmin, callerID)
		if replace[id] {
			err = s.repo.Tx.WithinTx(ctx, func(tx *repository.Repository) error {
				if _, err := tx.CheckinSchedule.DeactivateByStudent(ctx, id); err != nil {
					return err
				}
				return tx.CheckinSchedule.Upsert(ctx, window)
			})
		} else {
			err = s.repo.CheckinSchedule.Upsert(ctx, window)
		}
		if err != nil {
			cause := storeFailure("批量写入打卡安排", err)
			if errors.Is(err, pkgerrors.ErrDuplicateActive) {
				// 预检之后有并发写入了不同开始日期的安排
				cause = &ScheduleConflictError{StudentIDs: []string{id}}
			}
			s.logger.Error("批量分配中断",
				zap.String("student_id", id),
				zap.Int("committed", len(committed)),
				zap.Error(err),
			)
			return nil, &BatchAllocationError{Committed: committed, FailedStudentID: id, Err: cause}
		}
		committed = append(committed, id)
	}

	s.logger.Info("批量分配打卡周期",
		zap.String("range", req.BatchStartID+"~"+req.BatchEndID),
		zap.String("start_date", calendar.FormatDate(start)),
		zap.Int("allocated", len(committed)),
		zap.Int("skipped", len(skipped)),
		zap.Int("replaced", len(replace)),
		zap.String("operator", callerID),
	)

	return &dto.BatchAllocateResponse{
		StartDate: calendar.FormatDate(start),
		EndDate:   calendar.FormatDate(calendar.WindowEnd(start)),
		Requested: len(ids),
		Allocated: committed,
		Skipped:   skipped,
	}, nil
}

// ────────────────────── 查询 ──────────────────────

func (s *checkinScheduleService) GetActive(ctx context.Context, studentID string) (*dto.ScheduleResponse, error) {
	window, err := s.activeWindow(ctx, studentID)
	if err != nil || window == nil {
		return nil, err
	}
	resp := toScheduleResponse(window)
	return &resp, nil
}

func (s *checkinScheduleService) ListActive(ctx context.Context, req *dto.ScheduleListRequest) ([]dto.ScheduleResponse, int64, error) {
	if req.StudentID != "" {
		resp, err := s.GetActive(ctx, req.StudentID)
		if err != nil {
			return nil, 0, err
		}
		if resp == nil {
			return []dto.ScheduleResponse{}, 0, nil
		}
		return []dto.ScheduleResponse{*resp}, 1, nil
	}

	windows, total, err := s.repo.CheckinSchedule.ListActive(ctx, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出生效安排失败", zap.Error(err))
		return nil, 0, storeFailure("列出生效安排", err)
	}

	list := make([]dto.ScheduleResponse, 0, len(windows))
	for i := range windows {
		resp := toScheduleResponse(&windows[i])
		if windows[i].Participant != nil {
			resp.StudentName = windows[i].Participant.Name
		}
		list = append(list, resp)
	}
	return list, total, nil
}

// ────────────────────── DeactivateAndDelete ──────────────────────

func (s *checkinScheduleService) DeactivateAndDelete(ctx context.Context, studentID, callerID string) error {
	n, err := s.repo.CheckinSchedule.DeleteActiveByStudent(ctx, studentID)
	if err != nil {
		s.logger.Error("删除打卡安排失败", zap.String("student_id", studentID), zap.Error(err))
		return storeFailure("删除打卡安排", err)
	}
	if n == 0 {
		return ErrNoActiveSchedule
	}

	s.stats.Invalidate(ctx)
	s.logger.Info("删除打卡安排", zap.String("student_id", studentID), zap.String("operator", callerID))
	return nil
}

// ────────────────────── 内部方法 ──────────────────────

// insertWindow 普通插入，学员已有生效安排时返回冲突
func (s *checkinScheduleService) insertWindow(ctx context.Context, window *model.CheckinSchedule) error {
	if err := s.repo.CheckinSchedule.Create(ctx, window); err != nil {
		if errors.Is(err, pkgerrors.ErrDuplicateActive) {
			return &ScheduleConflictError{StudentIDs: []string{window.StudentID}}
		}
		s.logger.Error("写入打卡安排失败", zap.String("student_id", window.StudentID), zap.Error(err))
		return storeFailure("写入打卡安排", err)
	}
	s.stats.Invalidate(ctx)
	return nil
}

// removeWindow 按 ID 删除，用于补偿
func (s *checkinScheduleService) removeWindow(ctx context.Context, scheduleID string) error {
	if err := s.repo.CheckinSchedule.DeleteByID(ctx, scheduleID); err != nil {
		return storeFailure("删除打卡安排", err)
	}
	s.stats.Invalidate(ctx)
	return nil
}

func (s *checkinScheduleService) activeWindow(ctx context.Context, studentID string) (*model.CheckinSchedule, error) {
	window, err := s.repo.CheckinSchedule.GetActive(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		s.logger.Error("查询生效安排失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, storeFailure("查询生效安排", err)
	}
	return window, nil
}

func (s *checkinScheduleService) getParticipant(ctx context.Context, studentID string) (*model.Participant, error) {
	return loadParticipant(ctx, s.repo, s.logger, studentID)
}

func loadParticipant(ctx context.Context, repo *repository.Repository, logger *zap.Logger, studentID string) (*model.Participant, error) {
	p, err := repo.Participant.GetByStudentID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrParticipantNotFound
		}
		logger.Error("查询学员失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, storeFailure("查询学员", err)
	}
	return p, nil
}

func toScheduleResponse(w *model.CheckinSchedule) dto.ScheduleResponse {
	return dto.ScheduleResponse{
		ScheduleID:   w.ScheduleID,
		StudentID:    w.StudentID,
		StartDate:    calendar.FormatDate(calendar.DateOf(w.StartDate)),
		EndDate:      calendar.FormatDate(calendar.DateOf(w.EndDate)),
		TotalDays:    calendar.TotalDays(w.StartDate, w.EndDate),
		ScheduleType: w.ScheduleType,
		CreatedBy:    w.CreatedBy,
		IsActive:     w.IsActive,
		CreatedAt:    w.CreatedAt.Format(time.RFC3339),
	}
}
