package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"checkin-campaign/backend/internal/model"
)

// CheckinRecordRepository 打卡记录数据访问接口（只读为主）
type CheckinRecordRepository interface {
	Create(ctx context.Context, record *model.CheckinRecord) error
	// ListByStudentInRange 取 [from, to] 日期区间内的记录
	ListByStudentInRange(ctx context.Context, studentID string, from, to time.Time) ([]model.CheckinRecord, error)
	ListByStudentsInRange(ctx context.Context, studentIDs []string, from, to time.Time) ([]model.CheckinRecord, error)
}

type checkinRecordRepo struct {
	db *gorm.DB
}

func NewCheckinRecordRepo(db *gorm.DB) CheckinRecordRepository {
	return &checkinRecordRepo{db: db}
}

func (r *checkinRecordRepo) Create(ctx context.Context, record *model.CheckinRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *checkinRecordRepo) ListByStudentInRange(ctx context.Context, studentID string, from, to time.Time) ([]model.CheckinRecord, error) {
	var records []model.CheckinRecord
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND checkin_date >= ? AND checkin_date <= ?", studentID, dateArg(from), dateArg(to)).
		Order("checkin_date ASC").
		Find(&records).Error
	return records, err
}

func (r *checkinRecordRepo) ListByStudentsInRange(ctx context.Context, studentIDs []string, from, to time.Time) ([]model.CheckinRecord, error) {
	var records []model.CheckinRecord
	if len(studentIDs) == 0 {
		return records, nil
	}
	err := r.db.WithContext(ctx).
		Where("student_id IN ? AND checkin_date >= ? AND checkin_date <= ?", studentIDs, dateArg(from), dateArg(to)).
		Order("student_id ASC, checkin_date ASC").
		Find(&records).Error
	return records, err
}

// dateArg 以 YYYY-MM-DD 传参，避免驱动按时区换算 date 列
func dateArg(t time.Time) string {
	return t.Format("2006-01-02")
}
