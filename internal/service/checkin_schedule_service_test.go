package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"checkin-campaign/backend/internal/dto"
	"checkin-campaign/backend/internal/model"
	"checkin-campaign/backend/pkg/calendar"
)

var registered = time.Date(2025, 1, 1, 9, 0, 0, 0, calendar.Location)

// ── AllocateSingle ──

func TestCheckinScheduleService_AllocateSingle_Success(t *testing.T) {
	env := newTestEnv(clockAt(2025, 1, 20))
	env.participants.add("AXCF2025010001", registered)

	resp, err := env.svc.Schedule.AllocateSingle(context.Background(), &dto.AllocateScheduleRequest{
		StudentID: "AXCF2025010001",
		StartDate: "2025-02-01",
	}, "admin-001")
	if err != nil {
		t.Fatalf("AllocateSingle 应成功: %v", err)
	}
	if resp.StartDate != "2025-02-01" || resp.EndDate != "2025-05-04" {
		t.Errorf("期望周期 2025-02-01 ~ 2025-05-04，实际 %s ~ %s", resp.StartDate, resp.EndDate)
	}
	if resp.TotalDays != calendar.WindowDays {
		t.Errorf("期望 TotalDays=%d，实际=%d", calendar.WindowDays, resp.TotalDays)
	}
	if resp.ScheduleType != model.ScheduleTypeAdmin {
		t.Errorf("期望来源 admin_set，实际=%s", resp.ScheduleType)
	}
	if resp.CreatedBy != "admin-001" {
		t.Errorf("期望 CreatedBy=admin-001，实际=%s", resp.CreatedBy)
	}
	if resp.StudentName == "" {
		t.Error("期望返回学员姓名")
	}
}

func TestCheckinScheduleService_AllocateSingle_ParticipantNotFound(t *testing.T) {
	env := newTestEnv(clockAt(2025, 1, 20))

	_, err := env.svc.Schedule.AllocateSingle(context.Background(), &dto.AllocateScheduleRequest{
		StudentID: "AXCF9999",
		StartDate: "2025-02-01",
	}, "admin-001")
	if !errors.Is(err, ErrParticipantNotFound) || !errors.Is(err, ErrNotFound) {
		t.Errorf("期望 ErrParticipantNotFound，实际: %v", err)
	}
}

func TestCheckinScheduleService_AllocateSingle_InvalidDate(t *testing.T) {
	env := newTestEnv(clockAt(2025, 1, 20))
	env.participants.add("AXCF0001", registered)

	for _, d := range []string{"", "2025/02/01", "2025-02-30"} {
		_, err := env.svc.Schedule.AllocateSingle(context.Background(), &dto.AllocateScheduleRequest{
			StudentID: "AXCF0001",
			StartDate: d,
		}, "admin-001")
		if !errors.Is(err, ErrInvalidDate) || !errors.Is(err, ErrInvalidInput) {
			t.Errorf("日期 %q 期望 ErrInvalidDate，实际: %v", d, err)
		}
	}
}

func TestCheckinScheduleService_AllocateSingle_ConflictWithoutForce(t *testing.T) {
	env := newTestEnv(clockAt(2025, 1, 20))
	env.participants.add("AXCF0001", registered)
	env.schedules.seed("AXCF0001", calendar.Date(2025, 2, 1), model.ScheduleTypeSelf)

	_, err := env.svc.Schedule.AllocateSingle(context.Background(), &dto.AllocateScheduleRequest{
		StudentID: "AXCF0001",
		StartDate: "2025-03-01",
	}, "admin-001")

	var conflict *ScheduleConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("期望 ScheduleConflictError，实际: %v", err)
	}
	if len(conflict.StudentIDs) != 1 || conflict.StudentIDs[0] != "AXCF0001" {
		t.Errorf("冲突学号错误: %v", conflict.StudentIDs)
	}
	if !errors.Is(err, ErrScheduleExists) || !errors.Is(err, ErrConflict) {
		t.Error("ScheduleConflictError 应归类为 ErrConflict")
	}
	if env.schedules.total() != 1 {
		t.Errorf("冲突时不应写入新安排，实际共 %d 条", env.schedules.total())
	}
}

func TestCheckinScheduleService_AllocateSingle_ForceReplaces(t *testing.T) {
	env := newTestEnv(clockAt(2025, 1, 20))
	env.participants.add("AXCF0001", registered)
	old := env.schedules.seed("AXCF0001", calendar.Date(2025, 2, 1), model.ScheduleTypeSelf)

	resp, err := env.svc.Schedule.AllocateSingle(context.Background(), &dto.AllocateScheduleRequest{
		StudentID:   "AXCF0001",
		StartDate:   "2025-03-01",
		ForceUpdate: true,
	}, "admin-001")
	if err != nil {
		t.Fatalf("强制更新应成功: %v", err)
	}
	if resp.ScheduleID == old.ScheduleID {
		t.Error("强制更新应创建新安排而不是修改旧安排")
	}
	if n := env.schedules.activeCount("AXCF0001"); n != 1 {
		t.Errorf("期望 1 个生效安排，实际 %d", n)
	}
	active, _ := env.svc.Schedule.GetActive(context.Background(), "AXCF0001")
	if active == nil || active.StartDate != "2025-03-01" || active.EndDate != "2025-06-01" {
		t.Errorf("生效安排不正确: %+v", active)
	}
	if env.schedules.total() != 2 {
		t.Errorf("旧安排应停用保留，期望共 2 条，实际 %d", env.schedules.total())
	}
}

func TestCheckinScheduleService_AllocateSingle_Concurrent(t *testing.T) {
	env := newTestEnv(clockAt(2025, 1, 20))
	env.participants.add("AXCF0001", registered)

	const n = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	success, conflicts := 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Schedule.AllocateSingle(context.Background(), &dto.AllocateScheduleRequest{
				StudentID: "AXCF0001",
				StartDate: "2025-02-01",
			}, "admin-001")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Errorf("意外错误: %v", err)
			}
		}()
	}
	wg.Wait()

	if success != 1 {
		t.Errorf("期望恰好 1 个请求成功，实际 %d", success)
	}
	if conflicts != n-1 {
		t.Errorf("期望 %d 个冲突，实际 %d", n-1, conflicts)
	}
	if c := env.schedules.activeCount("AXCF0001"); c != 1 {
		t.Errorf("期望 1 个生效安排，实际 %d", c)
	}
}

// ── AllocateBatch ──

func setupBatchEnv() *testEnv {
	env := newTestEnv(clockAt(2025, 1, 20))
	for _, id := range []string{"AXCF0098", "AXCF0099", "AXCF0101"} {
		env.participants.add(id, registered)
	}
	return env
}

func TestCheckinScheduleService_AllocateBatch_SkipsUnregistered(t *testing.T) {
	env := setupBatchEnv()

	resp, err := env.svc.Schedule.AllocateBatch(context.Background(), &dto.BatchAllocateRequest{
		BatchStartID: "AXCF0098",
		BatchEndID:   "AXCF0101",
		StartDate:    "2025-02-01",
	}, "admin-001")
	if err != nil {
		t.Fatalf("AllocateBatch 应成功: %v", err)
	}
	if resp.Requested != 4 {
		t.Errorf("期望 Requested=4，实际=%d", resp.Requested)
	}
	if len(resp.Allocated) != 3 {
		t.Errorf("期望分配 3 个，实际 %v", resp.Allocated)
	}
	if len(resp.Skipped) != 1 || resp.Skipped[0] != "AXCF0100" {
		t.Errorf("期望跳过 AXCF0100，实际 %v", resp.Skipped)
	}
	if resp.EndDate != "2025-05-04" {
		t.Errorf("期望结束日 2025-05-04，实际 %s", resp.EndDate)
	}
}

func TestCheckinScheduleService_AllocateBatch_Idempotent(t *testing.T) {
	env := setupBatchEnv()
	req := &dto.BatchAllocateRequest{
		BatchStartID: "AXCF0098",
		BatchEndID:   "AXCF0101",
		StartDate:    "2025-02-01",
	}

	first, err := env.svc.Schedule.AllocateBatch(context.Background(), req, "admin-001")
	if err != nil {
		t.Fatalf("第一次批量分配应成功: %v", err)
	}
	second, err := env.svc.Schedule.AllocateBatch(context.Background(), req, "admin-001")
	if err != nil {
		t.Fatalf("重复提交同一指令应成功: %v", err)
	}
	if len(first.Allocated) != len(second.Allocated) {
		t.Errorf("两次结果不一致: %v vs %v", first.Allocated, second.Allocated)
	}
	if env.schedules.total() != 3 {
		t.Errorf("重复提交不应新增安排，期望 3 条，实际 %d", env.schedules.total())
	}
	for _, id := range first.Allocated {
		if c := env.schedules.activeCount(id); c != 1 {
			t.Errorf("%s 期望 1 个生效安排，实际 %d", id, c)
		}
	}
}

func TestCheckinScheduleService_AllocateBatch_Conflict(t *testing.T) {
	env := setupBatchEnv()
	env.schedules.seed("AXCF0099", calendar.Date(2025, 1, 15), model.ScheduleTypeSelf)

	req := &dto.BatchAllocateRequest{
		BatchStartID: "AXCF0098",
		BatchEndID:   "AXCF0101",
		StartDate:    "2025-02-01",
	}
	_, err := env.svc.Schedule.AllocateBatch(context.Background(), req, "admin-001")

	var conflict *ScheduleConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("期望 ScheduleConflictError，实际: %v", err)
	}
	if len(conflict.StudentIDs) != 1 || conflict.StudentIDs[0] != "AXCF0099" {
		t.Errorf("冲突学号错误: %v", conflict.StudentIDs)
	}
	if env.schedules.total() != 1 {
		t.Error("冲突时不应写入任何安排")
	}

	// 强制覆盖
	req.ForceUpdate = true
	resp, err := env.svc.Schedule.AllocateBatch(context.Background(), req, "admin-001")
	if err != nil {
		t.Fatalf("强制批量分配应成功: %v", err)
	}
	if len(resp.Allocated) != 3 {
		t.Errorf("期望分配 3 个，实际 %v", resp.Allocated)
	}
	active, _ := env.svc.Schedule.GetActive(context.Background(), "AXCF0099")
	if active == nil || active.StartDate != "2025-02-01" {
		t.Errorf("AXCF0099 应被新安排覆盖: %+v", active)
	}
	if c := env.schedules.activeCount("AXCF0099"); c != 1 {
		t.Errorf("期望 1 个生效安排，实际 %d", c)
	}
}

func TestCheckinScheduleService_AllocateBatch_PartialFailure(t *testing.T) {
	env := setupBatchEnv()
	env.schedules.upsertFailAt = "AXCF0101"

	_, err := env.svc.Schedule.AllocateBatch(context.Background(), &dto.BatchAllocateRequest{
		BatchStartID: "AXCF0098",
		BatchEndID:   "AXCF0101",
		StartDate:    "2025-02-01",
	}, "admin-001")

	var batchErr *BatchAllocationError
	if !errors.As(err, &batchErr) {
		t.Fatalf("期望 BatchAllocationError，实际: %v", err)
	}
	if batchErr.FailedStudentID != "AXCF0101" {
		t.Errorf("期望失败学号 AXCF0101，实际 %s", batchErr.FailedStudentID)
	}
	if len(batchErr.Committed) != 2 || batchErr.Committed[0] != "AXCF0098" || batchErr.Committed[1] != "AXCF0099" {
		t.Errorf("已提交学号错误: %v", batchErr.Committed)
	}
	if !errors.Is(err, ErrStoreFailure) {
		t.Errorf("期望归类为 ErrStoreFailure，实际: %v", err)
	}
}

func TestCheckinScheduleService_AllocateBatch_InvalidInput(t *testing.T) {
	env := setupBatchEnv()
	env.cfg.Campaign.BatchMaxSize = 5

	tests := []struct {
		name string
		req  dto.BatchAllocateRequest
		want error
	}{
		{"前缀不同", dto.BatchAllocateRequest{BatchStartID: "AXCF0001", BatchEndID: "AXCG0002", StartDate: "2025-02-01"}, ErrInvalidRange},
		{"起始大于结束", dto.BatchAllocateRequest{BatchStartID: "AXCF0010", BatchEndID: "AXCF0001", StartDate: "2025-02-01"}, ErrInvalidRange},
		{"超出上限", dto.BatchAllocateRequest{BatchStartID: "AXCF0001", BatchEndID: "AXCF0010", StartDate: "2025-02-01"}, ErrBatchTooLarge},
		{"数量超出 uint64", dto.BatchAllocateRequest{BatchStartID: "AXCF0", BatchEndID: "AXCF18446744073709551615", StartDate: "2025-02-01"}, ErrInvalidRange},
		{"数量接近 uint64 上限", dto.BatchAllocateRequest{BatchStartID: "AXCF1", BatchEndID: "AXCF18446744073709551615", StartDate: "2025-02-01"}, ErrBatchTooLarge},
		{"日期无效", dto.BatchAllocateRequest{BatchStartID: "AXCF0001", BatchEndID: "AXCF0002", StartDate: "02-01"}, ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Schedule.AllocateBatch(context.Background(), &tt.req, "admin-001")
			if !errors.Is(err, tt.want) || !errors.Is(err, ErrInvalidInput) {
				t.Errorf("期望 %v，实际: %v", tt.want, err)
			}
		})
	}
}

// ── 查询与删除 ──

func TestCheckinScheduleService_GetActive_None(t *testing.T) {
	env := newTestEnv(clockAt(2025, 1, 20))
	env.participants.add("AXCF0001", registered)

	resp, err := env.svc.Schedule.GetActive(context.Background(), "AXCF0001")
	if err != nil {
		t.Fatalf("无安排不应返回错误: %v", err)
	}
	if resp != nil {
		t.Errorf("期望 nil，实际 %+v", resp)
	}
}

func TestCheckinScheduleService_ListActive(t *testing.T) {
	env := setupBatchEnv()
	env.schedules.seed("AXCF0098", calendar.Date(2025, 2, 1), model.ScheduleTypeAdmin)
	env.schedules.seed("AXCF0099", calendar.Date(2025, 2, 2), model.ScheduleTypeSelf)

	list, total, err := env.svc.Schedule.ListActive(context.Background(), &dto.ScheduleListRequest{})
	if err != nil {
		t.Fatalf("ListActive 应成功: %v", err)
	}
	if total != 2 || len(list) != 2 {
		t.Errorf("期望 2 条，实际 total=%d len=%d", total, len(list))
	}

	list, total, err = env.svc.Schedule.ListActive(context.Background(), &dto.ScheduleListRequest{StudentID: "AXCF0101"})
	if err != nil || total != 0 || len(list) != 0 {
		t.Errorf("按学号查询无安排应返回空列表: %v %d %v", list, total, err)
	}
}

func TestCheckinScheduleService_DeactivateAndDelete(t *testing.T) {
	env := newTestEnv(clockAt(2025, 1, 20))
	env.participants.add("AXCF0001", registered)

	err := env.svc.Schedule.DeactivateAndDelete(context.Background(), "AXCF0001", "admin-001")
	if !errors.Is(err, ErrNoActiveSchedule) {
		t.Errorf("期望 ErrNoActiveSchedule，实际: %v", err)
	}

	env.schedules.seed("AXCF0001", calendar.Date(2025, 2, 1), model.ScheduleTypeAdmin)
	if err := env.svc.Schedule.DeactivateAndDelete(context.Background(), "AXCF0001", "admin-001"); err != nil {
		t.Fatalf("删除应成功: %v", err)
	}
	if c := env.schedules.activeCount("AXCF0001"); c != 0 {
		t.Errorf("删除后不应有生效安排，实际 %d", c)
	}
}

func TestCheckinScheduleService_AllocationInvalidatesStats(t *testing.T) {
	env := newTestEnv(clockAt(2025, 1, 20))
	env.participants.add("AXCF0001", registered)

	if _, err := env.svc.CohortStats.Aggregate(context.Background()); err != nil {
		t.Fatalf("Aggregate 应成功: %v", err)
	}
	_, err := env.svc.Schedule.AllocateSingle(context.Background(), &dto.AllocateScheduleRequest{
		StudentID: "AXCF0001",
		StartDate: "2025-01-20",
	}, "admin-001")
	if err != nil {
		t.Fatalf("AllocateSingle 应成功: %v", err)
	}

	stats, err := env.svc.CohortStats.Aggregate(context.Background())
	if err != nil {
		t.Fatalf("Aggregate 应成功: %v", err)
	}
	if stats.TotalActive != 1 {
		t.Errorf("分配后统计应刷新，期望 TotalActive=1，实际 %d", stats.TotalActive)
	}
}
