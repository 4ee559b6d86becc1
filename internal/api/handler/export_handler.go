package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"checkin-campaign/backend/internal/service"
	"checkin-campaign/backend/pkg/response"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeICS  = "text/calendar; charset=utf-8"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportReport 导出打卡报表
// GET /api/v1/admin/export/checkin-report
func (h *ExportHandler) ExportReport(c *gin.Context) {
	buf, filename, err := h.exportSvc.ExportCohortReport(c.Request.Context())
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	response.File(c, contentTypeXLSX, filename, buf.Bytes())
}

// ExportMyScheduleICS 导出当前学员打卡周期日历
// GET /api/v1/me/checkin-schedule.ics
func (h *ExportHandler) ExportMyScheduleICS(c *gin.Context) {
	studentID, ok := MustGetStudentID(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportScheduleICS(c.Request.Context(), studentID)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	response.File(c, contentTypeICS, filename, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrExportGenerateFail) {
		response.InternalError(c)
		return
	}
	handleServiceError(c, err)
}
