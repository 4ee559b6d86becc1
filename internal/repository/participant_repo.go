package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"checkin-campaign/backend/internal/model"
	pkgerrors "checkin-campaign/backend/pkg/errors"
)

// ParticipantRepository 学员数据访问接口
type ParticipantRepository interface {
	Create(ctx context.Context, p *model.Participant) error
	GetByStudentID(ctx context.Context, studentID string) (*model.Participant, error)
	List(ctx context.Context, offset, limit int) ([]model.Participant, int64, error)
	ListByStudentIDs(ctx context.Context, studentIDs []string) ([]model.Participant, error)
	// ListByIDRange 按学号字典序取 [startID, endID] 内的已注册学员
	ListByIDRange(ctx context.Context, startID, endID string) ([]model.Participant, error)
	// GrantSelfSchedule 开启自主设定权限并写入截止时间；resetUsage 为 true 时同时恢复设定机会
	GrantSelfSchedule(ctx context.Context, studentID string, deadline time.Time, resetUsage bool) error
	// GrantSelfScheduleIfUnset 仅在尚无权限时开启，返回是否实际写入
	GrantSelfScheduleIfUnset(ctx context.Context, studentID string, deadline time.Time) (bool, error)
	RevokeSelfSchedule(ctx context.Context, studentIDs []string) (int64, error)
	// MarkSelfScheduleUsed 标记已使用设定机会；已被标记时返回 ErrOptimisticLock
	MarkSelfScheduleUsed(ctx context.Context, studentID string) error
}

// participantRepo ParticipantRepository 的 GORM 实现
type participantRepo struct {
	db *gorm.DB
}

// NewParticipantRepo 创建 ParticipantRepository 实例
func NewParticipantRepo(db *gorm.DB) ParticipantRepository {
	return &participantRepo{db: db}
}

func (r *participantRepo) Create(ctx context.Context, p *model.Participant) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *participantRepo) GetByStudentID(ctx context.Context, studentID string) (*model.Participant, error) {
	var p model.Participant
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *participantRepo) List(ctx context.Context, offset, limit int) ([]model.Participant, int64, error) {
	var participants []model.Participant
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Participant{}).
		Where("role = ?", model.RoleStudent)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(offset).Limit(limit).
		Order("student_id ASC").
		Find(&participants).Error
	return participants, total, err
}

func (r *participantRepo) ListByStudentIDs(ctx context.Context, studentIDs []string) ([]model.Participant, error) {
	var participants []model.Participant
	if len(studentIDs) == 0 {
		return participants, nil
	}
	err := r.db.WithContext(ctx).
		Where("student_id IN ?", studentIDs).
		Order("student_id ASC").
		Find(&participants).Error
	return participants, err
}

func (r *participantRepo) ListByIDRange(ctx context.Context, startID, endID string) ([]model.Participant, error) {
	var participants []model.Participant
	err := r.db.WithContext(ctx).
		Where("student_id >= ? AND student_id <= ?", startID, endID).
		Order("student_id ASC").
		Find(&participants).Error
	return participants, err
}

func (r *participantRepo) GrantSelfSchedule(ctx context.Context, studentID string, deadline time.Time, resetUsage bool) error {
	updates := map[string]interface{}{
		"can_self_schedule":      true,
		"self_schedule_deadline": deadline,
		"updated_at":             time.Now(),
	}
	if resetUsage {
		updates["has_used_self_schedule"] = false
	}
	return r.db.WithContext(ctx).
		Model(&model.Participant{}).
		Where("student_id = ?", studentID).
		Updates(updates).Error
}

func (r *participantRepo) GrantSelfScheduleIfUnset(ctx context.Context, studentID string, deadline time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Participant{}).
		Where("student_id = ? AND can_self_schedule = ?", studentID, false).
		Updates(map[string]interface{}{
			"can_self_schedule":      true,
			"self_schedule_deadline": deadline,
			"updated_at":             time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *participantRepo) RevokeSelfSchedule(ctx context.Context, studentIDs []string) (int64, error) {
	if len(studentIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&model.Participant{}).
		Where("student_id IN ?", studentIDs).
		Updates(map[string]interface{}{
			"can_self_schedule": false,
			"updated_at":        time.Now(),
		})
	return result.RowsAffected, result.Error
}

func (r *participantRepo) MarkSelfScheduleUsed(ctx context.Context, studentID string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Participant{}).
		Where("student_id = ? AND has_used_self_schedule = ?", studentID, false).
		Updates(map[string]interface{}{
			"has_used_self_schedule": true,
			"updated_at":             time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}
