package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Participant     ParticipantRepository
	CheckinSchedule CheckinScheduleRepository
	CheckinRecord   CheckinRecordRepository
	RefundRequest   RefundRequestRepository
	Tx              TxManager
}

// TxManager 事务管理
// fn 收到的 Repository 绑定在同一事务上，fn 返回错误时整体回滚
type TxManager interface {
	WithinTx(ctx context.Context, fn func(txRepo *Repository) error) error
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Participant:     NewParticipantRepo(db),
		CheckinSchedule: NewCheckinScheduleRepo(db),
		CheckinRecord:   NewCheckinRecordRepo(db),
		RefundRequest:   NewRefundRequestRepo(db),
		Tx:              &gormTxManager{db: db},
	}
}

type gormTxManager struct {
	db *gorm.DB
}

func (m *gormTxManager) WithinTx(ctx context.Context, fn func(txRepo *Repository) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}
