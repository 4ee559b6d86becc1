package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"checkin-campaign/backend/config"
	"checkin-campaign/backend/internal/dto"
	"checkin-campaign/backend/internal/model"
	"checkin-campaign/backend/internal/repository"
	"checkin-campaign/backend/pkg/calendar"
	pkgerrors "checkin-campaign/backend/pkg/errors"
	"checkin-campaign/backend/pkg/idrange"
	"checkin-campaign/backend/pkg/redis"
)

// SelfScheduleState 学员自主设定状态
type SelfScheduleState string

const (
	SelfScheduleIneligible SelfScheduleState = "ineligible"
	SelfScheduleEligible   SelfScheduleState = "eligible"
	SelfScheduleExpired    SelfScheduleState = "expired"
	SelfScheduleUsed       SelfScheduleState = "used"
)

// SelfScheduleService 自主设定业务接口
type SelfScheduleService interface {
	// EnsureAutoGrant 读取时可能写入：命中自动授权前缀且尚无权限的学员会被授予权限，返回是否发生了授权
	EnsureAutoGrant(ctx context.Context, studentID string) (bool, error)
	GetStatus(ctx context.Context, studentID string) (*dto.SelfScheduleStatusResponse, error)
	// TrySelfSchedule 学员一次性自主选择开始日期
	TrySelfSchedule(ctx context.Context, studentID string, req *dto.SelfScheduleRequest) (*dto.ScheduleResponse, error)

	GrantPermission(ctx context.Context, req *dto.GrantPermissionRequest, callerID string) (*dto.GrantPermissionResponse, error)
	RevokePermission(ctx context.Context, req *dto.RevokePermissionRequest, callerID string) (*dto.RevokePermissionResponse, error)
	ListPermissions(ctx context.Context, req *dto.PaginationRequest) ([]dto.PermissionResponse, int64, error)
}

// windowWriter 打卡安排的插入与补偿删除
type windowWriter interface {
	insertWindow(ctx context.Context, window *model.CheckinSchedule) error
	removeWindow(ctx context.Context, scheduleID string) error
	activeWindow(ctx context.Context, studentID string) (*model.CheckinSchedule, error)
}

type selfScheduleService struct {
	cfg     *config.Config
	repo    *repository.Repository
	windows windowWriter
	locker  Locker
	clock   calendar.Clock
	logger  *zap.Logger
}

// NewSelfScheduleService 创建 SelfScheduleService 实例，locker 可为 nil
func NewSelfScheduleService(
	cfg *config.Config,
	repo *repository.Repository,
	windows windowWriter,
	locker Locker,
	clock calendar.Clock,
	logger *zap.Logger,
) SelfScheduleService {
	return &selfScheduleService{
		cfg:     cfg,
		repo:    repo,
		windows: windows,
		locker:  locker,
		clock:   clock,
		logger:  logger,
	}
}

// deriveSelfScheduleState 纯函数：由学员标志、是否存在生效安排和今天推导状态
// 优先级：无权限 → 已使用（标志已消耗或已有任意来源的生效安排）→ 已过期 → 可用
func deriveSelfScheduleState(p *model.Participant, hasActiveWindow bool, today time.Time) (SelfScheduleState, time.Time) {
	deadline := calendar.EffectiveDeadline(p.CreatedAt, p.SelfScheduleDeadline)
	switch {
	case !p.CanSelfSchedule:
		return SelfScheduleIneligible, deadline
	case p.HasUsedSelfSchedule || hasActiveWindow:
		return SelfScheduleUsed, deadline
	case today.After(calendar.InstantDate(deadline)):
		return SelfScheduleExpired, deadline
	default:
		return SelfScheduleEligible, deadline
	}
}

// ────────────────────── EnsureAutoGrant ──────────────────────

func (s *selfScheduleService) EnsureAutoGrant(ctx context.Context, studentID string) (bool, error) {
	p, err := loadParticipant(ctx, s.repo, s.logger, studentID)
	if err != nil {
		return false, err
	}
	_, granted, err := s.ensureAutoGrant(ctx, p)
	return granted, err
}

func (s *selfScheduleService) ensureAutoGrant(ctx context.Context, p *model.Participant) (*model.Participant, bool, error) {
	if p.CanSelfSchedule || !s.hasAutoGrantPrefix(p.StudentID) {
		return p, false, nil
	}

	deadline := calendar.DefaultDeadline(p.CreatedAt)
	granted, err := s.repo.Participant.GrantSelfScheduleIfUnset(ctx, p.StudentID, deadline)
	if err != nil {
		s.logger.Error("自动授予自主设定权限失败", zap.String("student_id", p.StudentID), zap.Error(err))
		return nil, false, storeFailure("自动授权", err)
	}
	if !granted {
		// 并发请求已完成授权，以存储为准
		fresh, err := loadParticipant(ctx, s.repo, s.logger, p.StudentID)
		return fresh, false, err
	}

	s.logger.Info("自动授予自主设定权限",
		zap.String("student_id", p.StudentID),
		zap.Time("deadline", deadline),
	)
	p.CanSelfSchedule = true
	p.SelfScheduleDeadline = &deadline
	return p, true, nil
}

func (s *selfScheduleService) hasAutoGrantPrefix(studentID string) bool {
	for _, prefix := range s.cfg.Campaign.AutoGrantPrefixes {
		if prefix != "" && strings.HasPrefix(studentID, prefix) {
			return true
		}
	}
	return false
}

// ────────────────────── GetStatus ──────────────────────

func (s *selfScheduleService) GetStatus(ctx context.Context, studentID string) (*dto.SelfScheduleStatusResponse, error) {
	p, err := loadParticipant(ctx, s.repo, s.logger, studentID)
	if err != nil {
		return nil, err
	}
	if p, _, err = s.ensureAutoGrant(ctx, p); err != nil {
		return nil, err
	}

	window, err := s.windows.activeWindow(ctx, studentID)
	if err != nil {
		return nil, err
	}

	today := calendar.Today(s.clock)
	state, deadline := deriveSelfScheduleState(p, window != nil, today)

	resp := &dto.SelfScheduleStatusResponse{
		State:               string(state),
		CanSelfSchedule:     p.CanSelfSchedule,
		HasUsedSelfSchedule: p.HasUsedSelfSchedule,
	}
	if p.CanSelfSchedule {
		resp.Deadline = deadline.In(calendar.Location).Format(time.RFC3339)
	}
	if state == SelfScheduleEligible {
		resp.MinStartDate = calendar.FormatDate(today)
		resp.MaxStartDate = calendar.FormatDate(calendar.InstantDate(deadline))
	}
	if window != nil {
		sr := toScheduleResponse(window)
		resp.Schedule = &sr
	}
	return resp, nil
}

// ────────────────────── TrySelfSchedule ──────────────────────

func (s *selfScheduleService) TrySelfSchedule(ctx context.Context, studentID string, req *dto.SelfScheduleRequest) (*dto.ScheduleResponse, error) {
	start, err := calendar.ParseDate(req.StartDate)
	if err != nil {
		return nil, ErrInvalidDate
	}

	release, err := s.acquire(ctx, studentID)
	if err != nil {
		return nil, err
	}
	defer release()

	// 1. 重新推导状态
	p, err := loadParticipant(ctx, s.repo, s.logger, studentID)
	if err != nil {
		return nil, err
	}
	if p, _, err = s.ensureAutoGrant(ctx, p); err != nil {
		return nil, err
	}
	existing, err := s.windows.activeWindow(ctx, studentID)
	if err != nil {
		return nil, err
	}

	today := calendar.Today(s.clock)
	state, deadline := deriveSelfScheduleState(p, existing != nil, today)
	switch state {
	case SelfScheduleIneligible:
		return nil, ErrSelfScheduleNotPermitted
	case SelfScheduleUsed:
		return nil, ErrSelfScheduleUsed
	case SelfScheduleExpired:
		return nil, ErrSelfScheduleExpired
	}

	// 2. today ≤ start ≤ deadline
	if start.Before(today) {
		return nil, ErrStartBeforeToday
	}
	if start.After(calendar.InstantDate(deadline)) {
		return nil, ErrStartAfterDeadline
	}

	// 3. 写入安排
	window := newWindow(studentID, start, model.ScheduleTypeSelf, studentID)
	if err := s.windows.insertWindow(ctx, window); err != nil {
		var conflict *ScheduleConflictError
		if errors.As(err, &conflict) {
			// 并发请求或管理员先一步写入了安排
			return nil, ErrSelfScheduleUsed
		}
		return nil, err
	}

	// 4. 消耗设定机会，失败时删除刚写入的安排
	if err := s.repo.Participant.MarkSelfScheduleUsed(ctx, studentID); err != nil {
		if compErr := s.windows.removeWindow(ctx, window.ScheduleID); compErr != nil {
			s.logger.Error("补偿删除打卡安排失败，学员处于不一致状态",
				zap.String("student_id", studentID),
				zap.String("schedule_id", window.ScheduleID),
				zap.Error(errors.Join(err, compErr)),
			)
		} else {
			s.logger.Warn("标记设定机会失败，已回滚打卡安排",
				zap.String("student_id", studentID),
				zap.Error(err),
			)
		}
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrSelfScheduleUsed
		}
		return nil, storeFailure("标记设定机会", err)
	}

	s.logger.Info("学员自主设定打卡周期",
		zap.String("student_id", studentID),
		zap.String("start_date", calendar.FormatDate(window.StartDate)),
	)

	resp := toScheduleResponse(window)
	resp.StudentName = p.Name
	return &resp, nil
}

// acquire 尽力获取防重复提交锁；Redis 故障时放行，由唯一索引兜底
func (s *selfScheduleService) acquire(ctx context.Context, studentID string) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}
	release, err := s.locker.Lock(ctx, "self_schedule:"+studentID, s.cfg.Campaign.SelfScheduleLockTTL)
	if err != nil {
		if errors.Is(err, redis.ErrLockHeld) {
			return nil, ErrSelfScheduleBusy
		}
		s.logger.Warn("获取自主设定锁失败，继续处理", zap.String("student_id", studentID), zap.Error(err))
		return noop, nil
	}
	return release, nil
}

// ────────────────────── 管理员权限管理 ──────────────────────

func (s *selfScheduleService) GrantPermission(ctx context.Context, req *dto.GrantPermissionRequest, callerID string) (*dto.GrantPermissionResponse, error) {
	ids := append([]string{}, req.StudentIDs...)
	if req.BatchStartID != "" || req.BatchEndID != "" {
		size, err := idrange.Size(req.BatchStartID, req.BatchEndID)
		if err != nil {
			return nil, ErrInvalidRange
		}
		if size > uint64(s.cfg.Campaign.BatchMaxSize) {
			return nil, ErrBatchTooLarge
		}
		expanded, err := idrange.Expand(req.BatchStartID, req.BatchEndID)
		if err != nil {
			return nil, ErrInvalidRange
		}
		ids = append(ids, expanded...)
	}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, ErrEmptyPermissionReq
	}

	participants, err := s.repo.Participant.ListByStudentIDs(ctx, ids)
	if err != nil {
		s.logger.Error("批量查询学员失败", zap.Error(err))
		return nil, storeFailure("批量查询学员", err)
	}
	byID := make(map[string]*model.Participant, len(participants))
	for i := range participants {
		byID[participants[i].StudentID] = &participants[i]
	}

	resp := &dto.GrantPermissionResponse{Granted: []string{}, Skipped: []string{}}
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			resp.Skipped = append(resp.Skipped, id)
			continue
		}
		deadline := calendar.DefaultDeadline(p.CreatedAt)
		if err := s.repo.Participant.GrantSelfSchedule(ctx, id, deadline, req.ResetUsage); err != nil {
			s.logger.Error("授予自主设定权限失败", zap.String("student_id", id), zap.Error(err))
			return nil, storeFailure("授予自主设定权限", err)
		}
		resp.Granted = append(resp.Granted, id)
	}

	s.logger.Info("授予自主设定权限",
		zap.Int("granted", len(resp.Granted)),
		zap.Int("skipped", len(resp.Skipped)),
		zap.Bool("reset_usage", req.ResetUsage),
		zap.String("operator", callerID),
	)
	return resp, nil
}

func (s *selfScheduleService) RevokePermission(ctx context.Context, req *dto.RevokePermissionRequest, callerID string) (*dto.RevokePermissionResponse, error) {
	n, err := s.repo.Participant.RevokeSelfSchedule(ctx, dedupe(req.StudentIDs))
	if err != nil {
		s.logger.Error("收回自主设定权限失败", zap.Error(err))
		return nil, storeFailure("收回自主设定权限", err)
	}
	s.logger.Info("收回自主设定权限", zap.Int64("revoked", n), zap.String("operator", callerID))
	return &dto.RevokePermissionResponse{Revoked: n}, nil
}

func (s *selfScheduleService) ListPermissions(ctx context.Context, req *dto.PaginationRequest) ([]dto.PermissionResponse, int64, error) {
	participants, total, err := s.repo.Participant.List(ctx, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出学员失败", zap.Error(err))
		return nil, 0, storeFailure("列出学员", err)
	}

	list := make([]dto.PermissionResponse, 0, len(participants))
	for i := range participants {
		p := &participants[i]
		deadline := calendar.EffectiveDeadline(p.CreatedAt, p.SelfScheduleDeadline)
		list = append(list, dto.PermissionResponse{
			StudentID:           p.StudentID,
			Name:                p.Name,
			CanSelfSchedule:     p.CanSelfSchedule,
			HasUsedSelfSchedule: p.HasUsedSelfSchedule,
			Deadline:            deadline.In(calendar.Location).Format(time.RFC3339),
			RegisteredAt:        p.CreatedAt.In(calendar.Location).Format(time.RFC3339),
		})
	}
	return list, total, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
