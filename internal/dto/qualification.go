package dto

// ── 资格计算 DTO ──

// ProgressResponse 打卡进度
type ProgressResponse struct {
	StudentID      string  `json:"student_id"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	ScheduleType   string  `json:"schedule_type"`
	TotalDays      int     `json:"total_days"`
	DaysElapsed    int     `json:"days_elapsed"`
	ValidDays      int     `json:"valid_days"`
	CompletionRate float64 `json:"completion_rate"`
	Status         string  `json:"status"` // qualified | forgot | not_started
	CurrentStreak  int     `json:"current_streak"`
	LongestStreak  int     `json:"longest_streak"`
}

// CompletionResponse 毕业/退款资格
type CompletionResponse struct {
	StudentID string `json:"student_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	ValidDays int    `json:"valid_days"`
	Required  int    `json:"required"`
	Remaining int    `json:"remaining"`
	Eligible  bool   `json:"eligible"`
}

// RefundRequestResponse 退款申请
// Created 为 false 表示该周期此前已提交过，返回的是原申请
type RefundRequestResponse struct {
	RequestID   string `json:"request_id"`
	StudentID   string `json:"student_id"`
	ScheduleID  string `json:"schedule_id"`
	WindowStart string `json:"window_start"`
	WindowEnd   string `json:"window_end"`
	PassedDays  int    `json:"passed_days"`
	FailedDays  int    `json:"failed_days"`
	Status      string `json:"status"`
	Created     bool   `json:"created"`
	RequestedAt string `json:"requested_at"`
}

// CohortStatsResponse 全体生效周期统计
type CohortStatsResponse struct {
	Today       string `json:"today"`
	TotalActive int    `json:"total_active"`
	Qualified   int    `json:"qualified"`
	NotStarted  int    `json:"not_started"`
	Forgot      int    `json:"forgot"`
	InProgress  int    `json:"in_progress"`
}
