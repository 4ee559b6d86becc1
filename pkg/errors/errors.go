package errors

import "errors"

var (
	// ErrOptimisticLock 条件更新未命中：记录已被其他操作修改
	ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

	// ErrDuplicateActive 违反"每名学员至多一个生效打卡安排"的唯一约束
	ErrDuplicateActive = errors.New("该学员已存在生效的打卡安排")

	// ErrDuplicateRefund 同一打卡周期已提交过退款申请
	ErrDuplicateRefund = errors.New("该打卡周期已提交退款申请")
)
