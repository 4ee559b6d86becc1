package service

import (
	"errors"
	"fmt"
	"strings"
)

// ── 错误类别 ──
// 每个业务错误恰好包装一个类别，调用方可用 errors.Is 匹配具体错误或类别

var (
	ErrInvalidInput = errors.New("参数无效")
	ErrConflict     = errors.New("状态冲突")
	ErrForbidden    = errors.New("无权操作")
	ErrNotFound     = errors.New("资源不存在")
	ErrStoreFailure = errors.New("存储失败")
)

// ── 业务错误 ──

var (
	ErrParticipantNotFound = fmt.Errorf("%w: 学员不存在", ErrNotFound)
	ErrNoActiveSchedule    = fmt.Errorf("%w: 学员没有生效的打卡安排", ErrNotFound)

	ErrScheduleExists   = fmt.Errorf("%w: 学员已有生效的打卡安排", ErrConflict)
	ErrSelfScheduleBusy = fmt.Errorf("%w: 自主设定请求正在处理", ErrConflict)

	ErrInvalidDate        = fmt.Errorf("%w: 日期格式应为 YYYY-MM-DD", ErrInvalidInput)
	ErrInvalidRange       = fmt.Errorf("%w: 学号范围无效", ErrInvalidInput)
	ErrStartBeforeToday   = fmt.Errorf("%w: 开始日期不能早于今天", ErrInvalidInput)
	ErrStartAfterDeadline = fmt.Errorf("%w: 开始日期不能晚于自主设定截止日期", ErrInvalidInput)
	ErrBatchTooLarge      = fmt.Errorf("%w: 批量范围超出上限", ErrInvalidInput)
	ErrEmptyPermissionReq = fmt.Errorf("%w: 需提供学号列表或学号区间", ErrInvalidInput)

	ErrSelfScheduleNotPermitted = fmt.Errorf("%w: 未开通自主设定权限", ErrForbidden)
	ErrSelfScheduleExpired      = fmt.Errorf("%w: 自主设定已过截止时间", ErrForbidden)
	ErrSelfScheduleUsed         = fmt.Errorf("%w: 自主设定机会已使用", ErrForbidden)
	ErrRefundNotEligible        = fmt.Errorf("%w: 有效打卡未满 90 天，暂不能申请退款", ErrForbidden)
)

// ScheduleConflictError 已持有生效安排的学员
type ScheduleConflictError struct {
	StudentIDs []string
}

func (e *ScheduleConflictError) Error() string {
	return fmt.Sprintf("%v: %s", ErrScheduleExists, strings.Join(e.StudentIDs, ","))
}

func (e *ScheduleConflictError) Unwrap() error { return ErrScheduleExists }

// BatchAllocationError 批量分配中途失败，Committed 为失败前已写入的学号
type BatchAllocationError struct {
	Committed       []string
	FailedStudentID string
	Err             error
}

func (e *BatchAllocationError) Error() string {
	return fmt.Sprintf("批量分配在 %s 处中断（已提交 %d 个）: %v", e.FailedStudentID, len(e.Committed), e.Err)
}

func (e *BatchAllocationError) Unwrap() error { return e.Err }

func storeFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreFailure, op, err)
}
