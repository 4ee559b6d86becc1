package model

import "time"

// 学员角色
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// Participant 学员表，对应 users
// CreatedAt 即注册时间，创建后不再修改
type Participant struct {
	StudentID            string     `gorm:"type:varchar(32);primaryKey"                json:"student_id"`
	Name                 string     `gorm:"type:varchar(100);not null;default:''"      json:"name"`
	Role                 string     `gorm:"type:varchar(20);not null;default:'student'" json:"role"`
	CanSelfSchedule      bool       `gorm:"not null;default:false"                     json:"can_self_schedule"`
	HasUsedSelfSchedule  bool       `gorm:"not null;default:false"                     json:"has_used_self_schedule"`
	SelfScheduleDeadline *time.Time `json:"self_schedule_deadline,omitempty"`
	BaseModel
}

// TableName 指定表名
func (Participant) TableName() string { return "users" }
