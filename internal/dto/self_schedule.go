package dto

// ── 自主设定 DTO ──

// SelfScheduleRequest 学员自主选择开始日期
type SelfScheduleRequest struct {
	StartDate string `json:"start_date" binding:"required"`
}

// SelfScheduleStatusResponse 自主设定资格
type SelfScheduleStatusResponse struct {
	State               string            `json:"state"` // ineligible | eligible | expired | used
	CanSelfSchedule     bool              `json:"can_self_schedule"`
	HasUsedSelfSchedule bool              `json:"has_used_self_schedule"`
	Deadline            string            `json:"deadline,omitempty"` // RFC3339
	MinStartDate        string            `json:"min_start_date,omitempty"`
	MaxStartDate        string            `json:"max_start_date,omitempty"`
	Schedule            *ScheduleResponse `json:"schedule,omitempty"`
}

// GrantPermissionRequest 授予自主设定权限
// 可以直接给出学号列表，也可以给出学号区间
type GrantPermissionRequest struct {
	StudentIDs   []string `json:"student_ids"    binding:"omitempty,max=1000,dive,required,max=32"`
	BatchStartID string   `json:"batch_start_id" binding:"omitempty,max=32"`
	BatchEndID   string   `json:"batch_end_id"   binding:"omitempty,max=32"`
	ResetUsage   bool     `json:"reset_usage"` // 同时恢复已使用的设定机会
}

// RevokePermissionRequest 收回自主设定权限
type RevokePermissionRequest struct {
	StudentIDs []string `json:"student_ids" binding:"required,min=1,max=1000,dive,required,max=32"`
}

// PermissionResponse 学员权限
type PermissionResponse struct {
	StudentID           string `json:"student_id"`
	Name                string `json:"name"`
	CanSelfSchedule     bool   `json:"can_self_schedule"`
	HasUsedSelfSchedule bool   `json:"has_used_self_schedule"`
	Deadline            string `json:"deadline"`
	RegisteredAt        string `json:"registered_at"`
}

// GrantPermissionResponse 授权结果
type GrantPermissionResponse struct {
	Granted []string `json:"granted"`
	Skipped []string `json:"skipped"`
}

// RevokePermissionResponse 收回结果
type RevokePermissionResponse struct {
	Revoked int64 `json:"revoked"`
}
