package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"checkin-campaign/backend/internal/model"
	pkgerrors "checkin-campaign/backend/pkg/errors"
)

// CheckinScheduleRepository 打卡安排数据访问接口
type CheckinScheduleRepository interface {
	// Create 插入新安排；学员已有生效安排时返回 ErrDuplicateActive
	Create(ctx context.Context, schedule *model.CheckinSchedule) error
	// Upsert 以 (student_id, start_date) 为自然键幂等写入；已存在时只刷新 updated_at
	Upsert(ctx context.Context, schedule *model.CheckinSchedule) error
	GetActive(ctx context.Context, studentID string) (*model.CheckinSchedule, error)
	ListActive(ctx context.Context, offset, limit int) ([]model.CheckinSchedule, int64, error)
	ListAllActive(ctx context.Context) ([]model.CheckinSchedule, error)
	ListActiveByStudentIDs(ctx context.Context, studentIDs []string) ([]model.CheckinSchedule, error)
	DeactivateByStudent(ctx context.Context, studentID string) (int64, error)
	DeleteByID(ctx context.Context, scheduleID string) error
	DeleteActiveByStudent(ctx context.Context, studentID string) (int64, error)
}

type checkinScheduleRepo struct {
	db *gorm.DB
}

func NewCheckinScheduleRepo(db *gorm.DB) CheckinScheduleRepository {
	return &checkinScheduleRepo{db: db}
}

func (r *checkinScheduleRepo) Create(ctx context.Context, schedule *model.CheckinSchedule) error {
	err := r.db.WithContext(ctx).Create(schedule).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return pkgerrors.ErrDuplicateActive
	}
	return err
}

func (r *checkinScheduleRepo) Upsert(ctx context.Context, schedule *model.CheckinSchedule) error {
	// 冲突目标对应部分唯一索引 uq_checkin_schedules_active_natural
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:     []clause.Column{{Name: "student_id"}, {Name: "start_date"}},
			TargetWhere: clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "is_active"}}},
			DoUpdates:   clause.Assignments(map[string]interface{}{"updated_at": time.Now()}),
		}).
		Create(schedule).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// 同一学员已有开始日期不同的生效安排
		return pkgerrors.ErrDuplicateActive
	}
	return err
}

func (r *checkinScheduleRepo) GetActive(ctx context.Context, studentID string) (*model.CheckinSchedule, error) {
	var schedule model.CheckinSchedule
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND is_active = ?", studentID, true).
		First(&schedule).Error
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *checkinScheduleRepo) ListActive(ctx context.Context, offset, limit int) ([]model.CheckinSchedule, int64, error) {
	var schedules []model.CheckinSchedule
	var total int64

	db := r.db.WithContext(ctx).Model(&model.CheckinSchedule{}).
		Where("is_active = ?", true)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Preload("Participant").
		Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&schedules).Error
	return schedules, total, err
}

func (r *checkinScheduleRepo) ListAllActive(ctx context.Context) ([]model.CheckinSchedule, error) {
	var schedules []model.CheckinSchedule
	err := r.db.WithContext(ctx).
		Preload("Participant").
		Where("is_active = ?", true).
		Order("student_id ASC").
		Find(&schedules).Error
	return schedules, err
}

func (r *checkinScheduleRepo) ListActiveByStudentIDs(ctx context.Context, studentIDs []string) ([]model.CheckinSchedule, error) {
	var schedules []model.CheckinSchedule
	if len(studentIDs) == 0 {
		return schedules, nil
	}
	err := r.db.WithContext(ctx).
		Where("student_id IN ? AND is_active = ?", studentIDs, true).
		Order("student_id ASC").
		Find(&schedules).Error
	return schedules, err
}

func (r *checkinScheduleRepo) DeactivateByStudent(ctx context.Context, studentID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.CheckinSchedule{}).
		Where("student_id = ? AND is_active = ?", studentID, true).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

func (r *checkinScheduleRepo) DeleteByID(ctx context.Context, scheduleID string) error {
	return r.db.WithContext(ctx).
		Where("schedule_id = ?", scheduleID).
		Delete(&model.CheckinSchedule{}).Error
}

func (r *checkinScheduleRepo) DeleteActiveByStudent(ctx context.Context, studentID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("student_id = ? AND is_active = ?", studentID, true).
		Delete(&model.CheckinSchedule{})
	return result.RowsAffected, result.Error
}
