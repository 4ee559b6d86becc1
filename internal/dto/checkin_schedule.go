package dto

// ── 打卡安排 DTO ──

// AllocateScheduleRequest 管理员为单个学员分配打卡周期
type AllocateScheduleRequest struct {
	StudentID   string `json:"student_id"   binding:"required,max=32"`
	StartDate   string `json:"start_date"   binding:"required"` // YYYY-MM-DD
	ForceUpdate bool   `json:"force_update"`                    // 已有生效安排时停用旧安排
}

// BatchAllocateRequest 按学号区间批量分配
type BatchAllocateRequest struct {
	BatchStartID string `json:"batch_start_id" binding:"required,max=32"`
	BatchEndID   string `json:"batch_end_id"   binding:"required,max=32"`
	StartDate    string `json:"start_date"     binding:"required"`
	ForceUpdate  bool   `json:"force_update"`
}

// ScheduleListRequest 生效安排列表查询参数
type ScheduleListRequest struct {
	PaginationRequest
	StudentID string `form:"student_id" binding:"omitempty,max=32"`
}

// ScheduleResponse 打卡安排
type ScheduleResponse struct {
	ScheduleID   string `json:"schedule_id"`
	StudentID    string `json:"student_id"`
	StudentName  string `json:"student_name,omitempty"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	TotalDays    int    `json:"total_days"`
	ScheduleType string `json:"schedule_type"`
	CreatedBy    string `json:"created_by"`
	IsActive     bool   `json:"is_active"`
	CreatedAt    string `json:"created_at"`
}

// BatchAllocateResponse 批量分配结果
type BatchAllocateResponse struct {
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Requested int      `json:"requested"`
	Allocated []string `json:"allocated"`
	Skipped   []string `json:"skipped"` // 未注册的学号
}

// ScheduleConflictResponse 冲突明细
type ScheduleConflictResponse struct {
	StudentIDs []string `json:"student_ids"`
}

// BatchFailureResponse 批量分配中途失败时已提交的学号
type BatchFailureResponse struct {
	Committed       []string `json:"committed"`
	FailedStudentID string   `json:"failed_student_id"`
}
