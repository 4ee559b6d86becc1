package service

import (
	"sort"
	"time"

	"checkin-campaign/backend/internal/model"
	"checkin-campaign/backend/pkg/calendar"
)

// ProgressStatus 打卡进度状态
type ProgressStatus string

const (
	ProgressQualified  ProgressStatus = "qualified"
	ProgressForgot     ProgressStatus = "forgot"
	ProgressNotStarted ProgressStatus = "not_started"
)

const (
	// 周期结束后有效打卡率达到 80% 视为合格
	qualifiedRatePercent = 80

	// CompletionRequiredDays 毕业/退款所需有效打卡天数
	CompletionRequiredDays = 90
)

// CountValidInWindow 统计 [start, end] 内通过审核的不同日期数，窗口外的记录忽略
func CountValidInWindow(records []model.CheckinRecord, start, end time.Time) int {
	return len(validDates(records, start, end))
}

func validDates(records []model.CheckinRecord, start, end time.Time) map[time.Time]bool {
	dates := make(map[time.Time]bool)
	for i := range records {
		if !records[i].Passed {
			continue
		}
		d := calendar.DateOf(records[i].CheckinDate)
		if calendar.InWindow(d, start, end) {
			dates[d] = true
		}
	}
	return dates
}

// FailedDaysInWindow 统计 [start, end] 内有打卡但当天没有任何一条通过的日期数
func FailedDaysInWindow(records []model.CheckinRecord, start, end time.Time) int {
	valid := validDates(records, start, end)
	failed := make(map[time.Time]bool)
	for i := range records {
		d := calendar.DateOf(records[i].CheckinDate)
		if !records[i].Passed && !valid[d] && calendar.InWindow(d, start, end) {
			failed[d] = true
		}
	}
	return len(failed)
}

// EvaluateProgress 判断周期内的打卡进度
//
//   - 已结束：有效天数 ≥ 总天数 × 80% 为合格，否则为未达标
//   - 未开始：not_started
//   - 进行中：0 天为 not_started；少于已过天数为 forgot；否则合格
func EvaluateProgress(start, end time.Time, validCount int, today time.Time) ProgressStatus {
	start, end, today = calendar.DateOf(start), calendar.DateOf(end), calendar.DateOf(today)

	if today.After(end) {
		total := calendar.TotalDays(start, end)
		if validCount*100 >= total*qualifiedRatePercent {
			return ProgressQualified
		}
		return ProgressForgot
	}
	if today.Before(start) {
		return ProgressNotStarted
	}

	switch elapsed := calendar.DaysElapsed(start, today); {
	case validCount == 0:
		return ProgressNotStarted
	case validCount < elapsed:
		return ProgressForgot
	default:
		return ProgressQualified
	}
}

// CompletionResult 毕业/退款资格
type CompletionResult struct {
	ValidDays int
	Required  int
	Remaining int
	Eligible  bool
}

// EvaluateCompletion 有效天数达到 90 即合格，与当前日期无关
func EvaluateCompletion(validCount int) CompletionResult {
	remaining := CompletionRequiredDays - validCount
	if remaining < 0 {
		remaining = 0
	}
	return CompletionResult{
		ValidDays: validCount,
		Required:  CompletionRequiredDays,
		Remaining: remaining,
		Eligible:  validCount >= CompletionRequiredDays,
	}
}

// CompletionRate 已过天数中的有效打卡比例，未开始为 0
func CompletionRate(start, end time.Time, validCount int, today time.Time) float64 {
	elapsed := daysCounted(start, end, today)
	if elapsed <= 0 {
		return 0
	}
	rate := float64(validCount) / float64(elapsed)
	if rate > 1 {
		rate = 1
	}
	return rate
}

// daysCounted 已过天数，封顶为周期总天数
func daysCounted(start, end, today time.Time) int {
	if calendar.DateOf(today).Before(calendar.DateOf(start)) {
		return 0
	}
	elapsed := calendar.DaysElapsed(start, today)
	if total := calendar.TotalDays(start, end); elapsed > total {
		return total
	}
	return elapsed
}

// Streaks 返回窗口内截至今天的当前连续天数与最长连续天数。
// 今天尚未打卡时当前连续从昨天起算。
func Streaks(records []model.CheckinRecord, start, end, today time.Time) (current, longest int) {
	dates := validDates(records, start, end)
	if len(dates) == 0 {
		return 0, 0
	}

	sorted := make([]time.Time, 0, len(dates))
	for d := range dates {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	run := 0
	for i, d := range sorted {
		if i > 0 && calendar.DaysBetween(sorted[i-1], d) == 1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	anchor := calendar.DateOf(today)
	if end = calendar.DateOf(end); anchor.After(end) {
		anchor = end
	}
	if !dates[anchor] {
		anchor = anchor.AddDate(0, 0, -1)
	}
	for dates[anchor] {
		current++
		anchor = anchor.AddDate(0, 0, -1)
	}
	return current, longest
}
