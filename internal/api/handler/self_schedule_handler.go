package handler

import (
	"github.com/gin-gonic/gin"

	"checkin-campaign/backend/internal/dto"
	"checkin-campaign/backend/internal/service"
	"checkin-campaign/backend/pkg/response"
)

// SelfScheduleHandler 自主设定 HTTP 处理器
type SelfScheduleHandler struct {
	selfSvc service.SelfScheduleService
}

// NewSelfScheduleHandler 创建 SelfScheduleHandler
func NewSelfScheduleHandler(selfSvc service.SelfScheduleService) *SelfScheduleHandler {
	return &SelfScheduleHandler{selfSvc: selfSvc}
}

// GetStatus 当前学员的自主设定资格
// GET /api/v1/self-schedule
func (h *SelfScheduleHandler) GetStatus(c *gin.Context) {
	studentID, ok := MustGetStudentID(c)
	if !ok {
		return
	}

	status, err := h.selfSvc.GetStatus(c.Request.Context(), studentID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, status)
}

// Submit 学员自主选择开始日期
// POST /api/v1/self-schedule
func (h *SelfScheduleHandler) Submit(c *gin.Context) {
	var req dto.SelfScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	studentID, ok := MustGetStudentID(c)
	if !ok {
		return
	}

	schedule, err := h.selfSvc.TrySelfSchedule(c.Request.Context(), studentID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, schedule)
}

// ListPermissions 学员自主设定权限列表
// GET /api/v1/admin/self-schedule/permissions
func (h *SelfScheduleHandler) ListPermissions(c *gin.Context) {
	var req dto.PaginationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.selfSvc.ListPermissions(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// GrantPermissions 授予自主设定权限
// POST /api/v1/admin/self-schedule/permissions
func (h *SelfScheduleHandler) GrantPermissions(c *gin.Context) {
	var req dto.GrantPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetStudentID(c)
	if !ok {
		return
	}

	result, err := h.selfSvc.GrantPermission(c.Request.Context(), &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, result)
}

// RevokePermissions 收回自主设定权限
// POST /api/v1/admin/self-schedule/permissions/revoke
func (h *SelfScheduleHandler) RevokePermissions(c *gin.Context) {
	var req dto.RevokePermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetStudentID(c)
	if !ok {
		return
	}

	result, err := h.selfSvc.RevokePermission(c.Request.Context(), &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, result)
}
