package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"checkin-campaign/backend/internal/dto"
	"checkin-campaign/backend/internal/service"
	"checkin-campaign/backend/pkg/response"
)

// handleServiceError 将业务错误映射为 HTTP 状态与业务码
// 先匹配具体错误，再按类别兜底，未知错误一律 500
func handleServiceError(c *gin.Context, err error) {
	var batchErr *service.BatchAllocationError
	var conflict *service.ScheduleConflictError

	switch {
	case errors.As(err, &batchErr):
		status, code := http.StatusInternalServerError, 20008
		if errors.Is(err, service.ErrConflict) {
			status, code = http.StatusConflict, 20007
		}
		response.ErrorWithData(c, status, code, "批量分配中断，部分学员已分配", dto.BatchFailureResponse{
			Committed:       batchErr.Committed,
			FailedStudentID: batchErr.FailedStudentID,
		})
	case errors.As(err, &conflict):
		response.ErrorWithData(c, http.StatusConflict, 20001, "学员已有生效的打卡安排", dto.ScheduleConflictResponse{
			StudentIDs: conflict.StudentIDs,
		})

	// ── 打卡安排 ──
	case errors.Is(err, service.ErrParticipantNotFound):
		response.NotFound(c, 20002, "学员不存在")
	case errors.Is(err, service.ErrNoActiveSchedule):
		response.NotFound(c, 20003, "学员没有生效的打卡安排")
	case errors.Is(err, service.ErrInvalidDate):
		response.BadRequest(c, 20004, "日期格式应为 YYYY-MM-DD")
	case errors.Is(err, service.ErrInvalidRange):
		response.BadRequest(c, 20005, "学号范围无效")
	case errors.Is(err, service.ErrBatchTooLarge):
		response.BadRequest(c, 20006, "批量范围超出上限")

	// ── 自主设定 ──
	case errors.Is(err, service.ErrStartBeforeToday):
		response.BadRequest(c, 21001, "开始日期不能早于今天")
	case errors.Is(err, service.ErrStartAfterDeadline):
		response.BadRequest(c, 21002, "开始日期不能晚于自主设定截止日期")
	case errors.Is(err, service.ErrSelfScheduleNotPermitted):
		response.Forbidden(c, 21003, "未开通自主设定权限")
	case errors.Is(err, service.ErrSelfScheduleBusy):
		response.Conflict(c, 21004, "请求正在处理，请勿重复提交")
	case errors.Is(err, service.ErrSelfScheduleExpired):
		response.Forbidden(c, 21005, "自主设定已过截止时间，请联系管理员")
	case errors.Is(err, service.ErrSelfScheduleUsed):
		response.Forbidden(c, 21006, "自主设定机会已使用")
	case errors.Is(err, service.ErrEmptyPermissionReq):
		response.BadRequest(c, 21007, "需提供学号列表或学号区间")

	// ── 退款 ──
	case errors.Is(err, service.ErrRefundNotEligible):
		response.Forbidden(c, 22001, "有效打卡未满 90 天，暂不能申请退款")

	// ── 类别兜底 ──
	case errors.Is(err, service.ErrInvalidInput):
		response.BadRequest(c, 10001, "参数校验失败")
	case errors.Is(err, service.ErrConflict):
		response.Conflict(c, 10006, "状态冲突")
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, 10003, "无权限访问")
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(c, 10007, "资源不存在")
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}
