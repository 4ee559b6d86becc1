package handler

import (
	"github.com/gin-gonic/gin"

	"checkin-campaign/backend/internal/service"
	"checkin-campaign/backend/pkg/response"
)

// QualificationHandler 进度、毕业资格与统计 HTTP 处理器
type QualificationHandler struct {
	qualificationSvc service.QualificationService
	statsSvc         service.CohortStatsService
}

// NewQualificationHandler 创建 QualificationHandler
func NewQualificationHandler(qualificationSvc service.QualificationService, statsSvc service.CohortStatsService) *QualificationHandler {
	return &QualificationHandler{qualificationSvc: qualificationSvc, statsSvc: statsSvc}
}

// GetProgress 指定学员的打卡进度
// GET /api/v1/admin/participants/:student_id/progress
func (h *QualificationHandler) GetProgress(c *gin.Context) {
	h.progress(c, c.Param("student_id"))
}

// GetMyProgress 当前学员的打卡进度
// GET /api/v1/me/progress
func (h *QualificationHandler) GetMyProgress(c *gin.Context) {
	studentID, ok := MustGetStudentID(c)
	if !ok {
		return
	}
	h.progress(c, studentID)
}

// GetCompletion 指定学员的毕业资格
// GET /api/v1/admin/participants/:student_id/completion
func (h *QualificationHandler) GetCompletion(c *gin.Context) {
	h.completion(c, c.Param("student_id"))
}

// GetMyCompletion 当前学员的毕业资格
// GET /api/v1/me/completion
func (h *QualificationHandler) GetMyCompletion(c *gin.Context) {
	studentID, ok := MustGetStudentID(c)
	if !ok {
		return
	}
	h.completion(c, studentID)
}

// RequestMyRefund 当前学员提交退款申请，同一周期重复提交返回原申请
// POST /api/v1/me/refund-request
func (h *QualificationHandler) RequestMyRefund(c *gin.Context) {
	studentID, ok := MustGetStudentID(c)
	if !ok {
		return
	}

	req, err := h.qualificationSvc.RequestRefund(c.Request.Context(), studentID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	if req.Created {
		response.Created(c, req)
		return
	}
	response.OK(c, req)
}

// GetCohortStats 全体生效周期统计
// GET /api/v1/admin/checkin-stats
func (h *QualificationHandler) GetCohortStats(c *gin.Context) {
	stats, err := h.statsSvc.Aggregate(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, stats)
}

func (h *QualificationHandler) progress(c *gin.Context, studentID string) {
	if studentID == "" {
		response.BadRequest(c, 10001, "学号不能为空")
		return
	}

	progress, err := h.qualificationSvc.GetProgress(c.Request.Context(), studentID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, progress)
}

func (h *QualificationHandler) completion(c *gin.Context, studentID string) {
	if studentID == "" {
		response.BadRequest(c, 10001, "学号不能为空")
		return
	}

	result, err := h.qualificationSvc.CheckCompletion(c.Request.Context(), studentID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, result)
}
