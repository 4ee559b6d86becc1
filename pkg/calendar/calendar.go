// Package calendar 提供打卡活动统一使用的日历工具。
//
// 所有"今天"的判断都基于固定的 UTC+8 时区，与宿主机时区无关。
// 日期值（不含时刻）统一表示为该日 00:00 UTC 的 time.Time，
// 以保证与 PostgreSQL date 列往返时不发生偏移。
package calendar

import (
	"fmt"
	"time"
)

const (
	// DateLayout 日期字符串格式
	DateLayout = "2006-01-02"

	// WindowDays 打卡周期总天数（含开始日）
	WindowDays = 93

	// windowSpan 结束日 = 开始日 + 92 天
	windowSpan = WindowDays - 1

	// DeadlineGraceMonths 自主设定截止时间 = 注册时间 + 6 个月
	DeadlineGraceMonths = 6

	utcOffsetSeconds = 8 * 60 * 60
)

// Location 固定的业务时区（UTC+8）
var Location = time.FixedZone("UTC+8", utcOffsetSeconds)

// Clock 时间源，便于测试注入固定时间
type Clock interface {
	Now() time.Time
}

// SystemClock 使用系统时间
type SystemClock struct{}

// Now 返回当前时间
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock 固定时间，测试用
type FixedClock struct {
	T time.Time
}

// Now 返回固定时间
func (c FixedClock) Now() time.Time { return c.T }

// Date 构造日期值
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Today 返回 UTC+8 下的今天
func Today(clock Clock) time.Time {
	return InstantDate(clock.Now())
}

// InstantDate 返回某一时刻在 UTC+8 下所处的日期
func InstantDate(t time.Time) time.Time {
	local := t.In(Location)
	return Date(local.Year(), local.Month(), local.Day())
}

// DateOf 取日期型时间值自身的年月日（数据库 date 列读出的值使用此函数）
func DateOf(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// ParseDate 解析 YYYY-MM-DD
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("无效日期 %q: %w", s, err)
	}
	return DateOf(t), nil
}

// FormatDate 格式化为 YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// WindowEnd 计算打卡周期结束日（含），所有分配路径共用
func WindowEnd(start time.Time) time.Time {
	return DateOf(start).AddDate(0, 0, windowSpan)
}

// DaysBetween 返回 b - a 的自然日差
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}

// TotalDays 周期总天数（首尾都算）
func TotalDays(start, end time.Time) int {
	return DaysBetween(start, end) + 1
}

// DaysElapsed 从开始日到今天已经过的天数（开始日当天为 1）
func DaysElapsed(start, today time.Time) int {
	return DaysBetween(start, today) + 1
}

// AddMonths 按自然月相加，月末溢出时顺延（与日历滚动一致）
func AddMonths(t time.Time, months int) time.Time {
	return t.AddDate(0, months, 0)
}

// IsValidTimestamp 判断存储的时间戳是否可用
// nil、零值以及不晚于 Unix 纪元的值都视为缺失
func IsValidTimestamp(t *time.Time) bool {
	if t == nil || t.IsZero() {
		return false
	}
	return t.Unix() > 0
}

// DefaultDeadline 注册时间 + 6 个月（以 UTC+8 计月）
func DefaultDeadline(registeredAt time.Time) time.Time {
	return AddMonths(registeredAt.In(Location), DeadlineGraceMonths)
}

// EffectiveDeadline 返回自主设定截止时刻。
// 存储值无效时回退为注册时间 + 6 个月，调用方不得再自行判断。
func EffectiveDeadline(registeredAt time.Time, stored *time.Time) time.Time {
	if IsValidTimestamp(stored) {
		return *stored
	}
	return DefaultDeadline(registeredAt)
}

// InWindow 判断日期是否落在 [start, end] 内
func InWindow(d, start, end time.Time) bool {
	d = DateOf(d)
	return !d.Before(DateOf(start)) && !d.After(DateOf(end))
}
