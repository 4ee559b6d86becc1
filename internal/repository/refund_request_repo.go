package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"checkin-campaign/backend/internal/model"
	pkgerrors "checkin-campaign/backend/pkg/errors"
)

// RefundRequestRepository 退款申请数据访问接口
type RefundRequestRepository interface {
	// Create 写入申请；同一周期已有申请时返回 ErrDuplicateRefund
	Create(ctx context.Context, req *model.RefundRequest) error
	GetByWindow(ctx context.Context, studentID, scheduleID string) (*model.RefundRequest, error)
}

type refundRequestRepo struct {
	db *gorm.DB
}

func NewRefundRequestRepo(db *gorm.DB) RefundRequestRepository {
	return &refundRequestRepo{db: db}
}

func (r *refundRequestRepo) Create(ctx context.Context, req *model.RefundRequest) error {
	err := r.db.WithContext(ctx).Create(req).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return pkgerrors.ErrDuplicateRefund
	}
	return err
}

func (r *refundRequestRepo) GetByWindow(ctx context.Context, studentID, scheduleID string) (*model.RefundRequest, error) {
	var req model.RefundRequest
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND schedule_id = ?", studentID, scheduleID).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}
