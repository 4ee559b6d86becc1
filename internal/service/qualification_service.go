package service

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"checkin-campaign/backend/internal/dto"
	"checkin-campaign/backend/internal/model"
	"checkin-campaign/backend/internal/repository"
	"checkin-campaign/backend/pkg/calendar"
	pkgerrors "checkin-campaign/backend/pkg/errors"
)

// QualificationService 打卡资格业务接口
type QualificationService interface {
	// GetProgress 当前周期的打卡进度
	GetProgress(ctx context.Context, studentID string) (*dto.ProgressResponse, error)
	// CheckCompletion 毕业/退款资格判定
	CheckCompletion(ctx context.Context, studentID string) (*dto.CompletionResponse, error)
	// RequestRefund 满足毕业条件时为当前周期提交退款申请，同一周期重复提交返回原申请
	RequestRefund(ctx context.Context, studentID string) (*dto.RefundRequestResponse, error)
}

type qualificationService struct {
	repo   *repository.Repository
	clock  calendar.Clock
	logger *zap.Logger
}

// NewQualificationService 创建 QualificationService 实例
func NewQualificationService(repo *repository.Repository, clock calendar.Clock, logger *zap.Logger) QualificationService {
	return &qualificationService{repo: repo, clock: clock, logger: logger}
}

func (s *qualificationService) GetProgress(ctx context.Context, studentID string) (*dto.ProgressResponse, error) {
	window, records, err := s.load(ctx, studentID)
	if err != nil {
		return nil, err
	}

	today := calendar.Today(s.clock)
	start, end := calendar.DateOf(window.StartDate), calendar.DateOf(window.EndDate)
	valid := CountValidInWindow(records, start, end)
	current, longest := Streaks(records, start, end, today)

	return &dto.ProgressResponse{
		StudentID:      studentID,
		StartDate:      calendar.FormatDate(start),
		EndDate:        calendar.FormatDate(end),
		ScheduleType:   window.ScheduleType,
		TotalDays:      calendar.TotalDays(start, end),
		DaysElapsed:    daysCounted(start, end, today),
		ValidDays:      valid,
		CompletionRate: math.Round(CompletionRate(start, end, valid, today)*10000) / 10000,
		Status:         string(EvaluateProgress(start, end, valid, today)),
		CurrentStreak:  current,
		LongestStreak:  longest,
	}, nil
}

func (s *qualificationService) CheckCompletion(ctx context.Context, studentID string) (*dto.CompletionResponse, error) {
	window, records, err := s.load(ctx, studentID)
	if err != nil {
		return nil, err
	}

	start, end := calendar.DateOf(window.StartDate), calendar.DateOf(window.EndDate)
	result := EvaluateCompletion(CountValidInWindow(records, start, end))

	return &dto.CompletionResponse{
		StudentID: studentID,
		StartDate: calendar.FormatDate(start),
		EndDate:   calendar.FormatDate(end),
		ValidDays: result.ValidDays,
		Required:  result.Required,
		Remaining: result.Remaining,
		Eligible:  result.Eligible,
	}, nil
}

func (s *qualificationService) RequestRefund(ctx context.Context, studentID string) (*dto.RefundRequestResponse, error) {
	window, records, err := s.load(ctx, studentID)
	if err != nil {
		return nil, err
	}

	existing, err := s.existingRefund(ctx, studentID, window.ScheduleID)
	if err != nil || existing != nil {
		return existing, err
	}

	start, end := calendar.DateOf(window.StartDate), calendar.DateOf(window.EndDate)
	result := EvaluateCompletion(CountValidInWindow(records, start, end))
	if !result.Eligible {
		return nil, ErrRefundNotEligible
	}

	req := &model.RefundRequest{
		StudentID:   studentID,
		ScheduleID:  window.ScheduleID,
		WindowStart: start,
		WindowEnd:   end,
		PassedDays:  result.ValidDays,
		FailedDays:  FailedDaysInWindow(records, start, end),
		Status:      model.RefundStatusPending,
	}
	if err := s.repo.RefundRequest.Create(ctx, req); err != nil {
		if errors.Is(err, pkgerrors.ErrDuplicateRefund) {
			// 并发请求已先写入
			return s.existingRefund(ctx, studentID, window.ScheduleID)
		}
		s.logger.Error("写入退款申请失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, storeFailure("写入退款申请", err)
	}

	s.logger.Info("提交退款申请",
		zap.String("student_id", studentID),
		zap.String("schedule_id", window.ScheduleID),
		zap.Int("passed_days", req.PassedDays),
	)
	resp := toRefundResponse(req)
	resp.Created = true
	return &resp, nil
}

// existingRefund 查询周期内已有的申请，没有时返回 nil
func (s *qualificationService) existingRefund(ctx context.Context, studentID, scheduleID string) (*dto.RefundRequestResponse, error) {
	req, err := s.repo.RefundRequest.GetByWindow(ctx, studentID, scheduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		s.logger.Error("查询退款申请失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, storeFailure("查询退款申请", err)
	}
	resp := toRefundResponse(req)
	return &resp, nil
}

func toRefundResponse(r *model.RefundRequest) dto.RefundRequestResponse {
	return dto.RefundRequestResponse{
		RequestID:   r.RequestID,
		StudentID:   r.StudentID,
		ScheduleID:  r.ScheduleID,
		WindowStart: calendar.FormatDate(calendar.DateOf(r.WindowStart)),
		WindowEnd:   calendar.FormatDate(calendar.DateOf(r.WindowEnd)),
		PassedDays:  r.PassedDays,
		FailedDays:  r.FailedDays,
		Status:      r.Status,
		RequestedAt: r.CreatedAt.In(calendar.Location).Format(time.RFC3339),
	}
}

// load 取学员的生效周期及周期内的打卡记录
func (s *qualificationService) load(ctx context.Context, studentID string) (*model.CheckinSchedule, []model.CheckinRecord, error) {
	if _, err := loadParticipant(ctx, s.repo, s.logger, studentID); err != nil {
		return nil, nil, err
	}

	window, err := s.repo.CheckinSchedule.GetActive(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNoActiveSchedule
		}
		s.logger.Error("查询生效安排失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, nil, storeFailure("查询生效安排", err)
	}

	records, err := s.repo.CheckinRecord.ListByStudentInRange(ctx, studentID, window.StartDate, window.EndDate)
	if err != nil {
		s.logger.Error("查询打卡记录失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, nil, storeFailure("查询打卡记录", err)
	}
	return window, records, nil
}
