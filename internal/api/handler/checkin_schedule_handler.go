package handler

import (
	"github.com/gin-gonic/gin"

	"checkin-campaign/backend/internal/dto"
	"checkin-campaign/backend/internal/service"
	"checkin-campaign/backend/pkg/response"
)

// CheckinScheduleHandler 打卡安排 HTTP 处理器
type CheckinScheduleHandler struct {
	scheduleSvc service.CheckinScheduleService
}

// NewCheckinScheduleHandler 创建 CheckinScheduleHandler
func NewCheckinScheduleHandler(scheduleSvc service.CheckinScheduleService) *CheckinScheduleHandler {
	return &CheckinScheduleHandler{scheduleSvc: scheduleSvc}
}

// Allocate 为单个学员分配打卡周期
// POST /api/v1/admin/checkin-schedules
func (h *CheckinScheduleHandler) Allocate(c *gin.Context) {
	var req dto.AllocateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetStudentID(c)
	if !ok {
		return
	}

	schedule, err := h.scheduleSvc.AllocateSingle(c.Request.Context(), &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, schedule)
}

// AllocateBatch 按学号区间批量分配
// POST /api/v1/admin/checkin-schedules/batch
func (h *CheckinScheduleHandler) AllocateBatch(c *gin.Context) {
	var req dto.BatchAllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetStudentID(c)
	if !ok {
		return
	}

	result, err := h.scheduleSvc.AllocateBatch(c.Request.Context(), &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, result)
}

// List 生效安排列表，可按学号过滤
// GET /api/v1/admin/checkin-schedules?student_id=&page=&page_size=
func (h *CheckinScheduleHandler) List(c *gin.Context) {
	var req dto.ScheduleListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.scheduleSvc.ListActive(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// Delete 删除学员的生效安排
// DELETE /api/v1/admin/checkin-schedules/:student_id
func (h *CheckinScheduleHandler) Delete(c *gin.Context) {
	studentID := c.Param("student_id")
	if studentID == "" {
		response.BadRequest(c, 10001, "学号不能为空")
		return
	}

	callerID, ok := MustGetStudentID(c)
	if !ok {
		return
	}

	if err := h.scheduleSvc.DeactivateAndDelete(c.Request.Context(), studentID, callerID); err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, nil)
}

// GetMine 当前学员的生效安排，没有时 data 为 null
// GET /api/v1/me/checkin-schedule
func (h *CheckinScheduleHandler) GetMine(c *gin.Context) {
	studentID, ok := MustGetStudentID(c)
	if !ok {
		return
	}

	schedule, err := h.scheduleSvc.GetActive(c.Request.Context(), studentID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"schedule": schedule})
}
