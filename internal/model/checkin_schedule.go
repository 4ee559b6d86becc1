package model

import "time"

// 打卡安排来源
const (
	ScheduleTypeAdmin = "admin_set"
	ScheduleTypeSelf  = "self_set"
)

// CheckinSchedule 打卡安排（93 天周期），对应 checkin_schedules
// 创建后除 IsActive 外不再修改；更正需停用后重建
type CheckinSchedule struct {
	ScheduleID   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"schedule_id"`
	StudentID    string    `gorm:"type:varchar(32);not null"                      json:"student_id"`
	StartDate    time.Time `gorm:"type:date;not null"                             json:"start_date"`
	EndDate      time.Time `gorm:"type:date;not null"                             json:"end_date"`
	ScheduleType string    `gorm:"type:varchar(20);not null;default:'admin_set'"  json:"schedule_type"` // admin_set | self_set
	CreatedBy    string    `gorm:"type:varchar(32);not null"                      json:"created_by"`
	IsActive     bool      `gorm:"not null;default:true"                          json:"is_active"`
	BaseModel

	// 关联
	Participant *Participant `gorm:"foreignKey:StudentID;references:StudentID" json:"participant,omitempty"`
}

func (CheckinSchedule) TableName() string { return "checkin_schedules" }
