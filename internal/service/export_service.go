package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"checkin-campaign/backend/internal/model"
	"checkin-campaign/backend/internal/repository"
	"checkin-campaign/backend/pkg/calendar"
)

// ── 导出模块业务错误 ──

var ErrExportGenerateFail = errors.New("生成导出文件失败")

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置响应头后写入
type ExportService interface {
	// ExportCohortReport 导出所有生效周期的打卡报表 (.xlsx)
	ExportCohortReport(ctx context.Context) (*bytes.Buffer, string, error)
	// ExportScheduleICS 导出学员打卡周期为 iCalendar，可导入日历应用
	ExportScheduleICS(ctx context.Context, studentID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	clock  calendar.Clock
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, clock calendar.Clock, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, clock: clock, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportCohortReport 打卡报表
// ═══════════════════════════════════════════════════════════
//
// 每个生效周期一行：学号、姓名、开始、结束、来源、有效天数、进度、毕业资格

var reportHeaders = []string{"学号", "姓名", "开始日期", "结束日期", "来源", "有效天数", "进度", "毕业资格"}

var progressLabels = map[ProgressStatus]string{
	ProgressQualified:  "达标",
	ProgressForgot:     "未达标",
	ProgressNotStarted: "未开始",
}

var scheduleTypeLabels = map[string]string{
	model.ScheduleTypeAdmin: "管理员分配",
	model.ScheduleTypeSelf:  "自主设定",
}

func (s *exportService) ExportCohortReport(ctx context.Context) (*bytes.Buffer, string, error) {
	entries, err := loadCohort(ctx, s.repo, s.logger)
	if err != nil {
		return nil, "", err
	}
	today := calendar.Today(s.clock)

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "打卡报表"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 18)
	f.SetColWidth(sheetName, "B", "B", 12)
	f.SetColWidth(sheetName, "C", "D", 12)
	f.SetColWidth(sheetName, "E", "H", 10)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	for i, h := range reportHeaders {
		f.SetCellValue(sheetName, cell(colName(i), 1), h)
	}
	f.SetCellStyle(sheetName, "A1", cell(colName(len(reportHeaders)-1), 1), headerStyle)

	row := 2
	for _, e := range entries {
		name := ""
		if e.window.Participant != nil {
			name = e.window.Participant.Name
		}
		eligible := "否"
		if EvaluateCompletion(e.valid).Eligible {
			eligible = "是"
		}

		f.SetCellValue(sheetName, cell("A", row), e.window.StudentID)
		f.SetCellValue(sheetName, cell("B", row), name)
		f.SetCellValue(sheetName, cell("C", row), calendar.FormatDate(e.start))
		f.SetCellValue(sheetName, cell("D", row), calendar.FormatDate(e.end))
		f.SetCellValue(sheetName, cell("E", row), scheduleTypeLabels[e.window.ScheduleType])
		f.SetCellValue(sheetName, cell("F", row), e.valid)
		f.SetCellValue(sheetName, cell("G", row), progressLabels[EvaluateProgress(e.start, e.end, e.valid, today)])
		f.SetCellValue(sheetName, cell("H", row), eligible)
		row++
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("打卡报表_%s.xlsx", calendar.FormatDate(today))
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// ExportScheduleICS 打卡周期日历
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportScheduleICS(ctx context.Context, studentID string) (*bytes.Buffer, string, error) {
	window, err := s.repo.CheckinSchedule.GetActive(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrNoActiveSchedule
		}
		s.logger.Error("查询生效安排失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, "", storeFailure("查询生效安排", err)
	}

	start, end := calendar.DateOf(window.StartDate), calendar.DateOf(window.EndDate)

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//checkin-campaign//schedule//CN")

	event := cal.AddEvent(window.ScheduleID + "@checkin-campaign")
	event.SetDtStampTime(s.clock.Now().UTC())
	event.SetAllDayStartAt(start)
	// 全天事件的 DTEND 不含当天
	event.SetAllDayEndAt(end.AddDate(0, 0, 1))
	event.SetSummary(fmt.Sprintf("打卡周期（%d 天）", calendar.TotalDays(start, end)))
	event.SetDescription(fmt.Sprintf("%s ~ %s，累计 %d 天有效打卡即可获得毕业资格",
		calendar.FormatDate(start), calendar.FormatDate(end), CompletionRequiredDays))

	buf := bytes.NewBufferString(cal.Serialize())
	filename := fmt.Sprintf("checkin_%s.ics", studentID)
	return buf, filename, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
