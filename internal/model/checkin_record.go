package model

import "time"

// CheckinRecord 每日打卡记录，对应 checkin_records
// 由打卡提交模块写入，本服务只读
type CheckinRecord struct {
	RecordID    string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"record_id"`
	StudentID   string    `gorm:"type:varchar(32);not null"                      json:"student_id"`
	CheckinDate time.Time `gorm:"type:date;not null"                             json:"checkin_date"`
	Passed      bool      `gorm:"not null;default:false"                         json:"passed"`
	BaseModel
}

func (CheckinRecord) TableName() string { return "checkin_records" }
