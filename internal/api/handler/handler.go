package handler

import "checkin-campaign/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Schedule      *CheckinScheduleHandler
	SelfSchedule  *SelfScheduleHandler
	Qualification *QualificationHandler
	Export        *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Schedule:      NewCheckinScheduleHandler(svc.Schedule),
		SelfSchedule:  NewSelfScheduleHandler(svc.SelfSchedule),
		Qualification: NewQualificationHandler(svc.Qualification, svc.CohortStats),
		Export:        NewExportHandler(svc.Export),
	}
}
