package model

import "time"

// 退款申请状态，审核由财务流程完成，本服务只写入 pending
const (
	RefundStatusPending = "pending"
)

// RefundRequest 退款申请，对应 refund_requests
// 每个打卡周期至多一条
type RefundRequest struct {
	RequestID   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"request_id"`
	StudentID   string    `gorm:"type:varchar(32);not null"                      json:"student_id"`
	ScheduleID  string    `gorm:"type:uuid;not null"                             json:"schedule_id"`
	WindowStart time.Time `gorm:"type:date;not null"                             json:"window_start"`
	WindowEnd   time.Time `gorm:"type:date;not null"                             json:"window_end"`
	PassedDays  int       `gorm:"not null"                                       json:"passed_days"`
	FailedDays  int       `gorm:"not null"                                       json:"failed_days"`
	Status      string    `gorm:"type:varchar(20);not null;default:'pending'"    json:"status"`
	BaseModel
}

func (RefundRequest) TableName() string { return "refund_requests" }
