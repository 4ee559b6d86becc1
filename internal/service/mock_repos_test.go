package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"checkin-campaign/backend/config"
	"checkin-campaign/backend/internal/dto"
	"checkin-campaign/backend/internal/model"
	"checkin-campaign/backend/internal/repository"
	"checkin-campaign/backend/pkg/calendar"
	pkgerrors "checkin-campaign/backend/pkg/errors"
	"checkin-campaign/backend/pkg/redis"
)

// ── Mock ParticipantRepository ──

type mockParticipantRepo struct {
	mu           sync.Mutex
	participants map[string]*model.Participant

	markUsedErr error // 注入 MarkSelfScheduleUsed 失败
	grantCalls  int
}

func newMockParticipantRepo() *mockParticipantRepo {
	return &mockParticipantRepo{participants: make(map[string]*model.Participant)}
}

func (m *mockParticipantRepo) add(studentID string, registeredAt time.Time) *model.Participant {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &model.Participant{StudentID: studentID, Name: "学员" + studentID, Role: model.RoleStudent}
	p.CreatedAt = registeredAt
	p.UpdatedAt = registeredAt
	m.participants[studentID] = p
	return p
}

func (m *mockParticipantRepo) get(studentID string) model.Participant {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.participants[studentID]
}

func (m *mockParticipantRepo) Create(_ context.Context, p *model.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.participants[p.StudentID] = &cp
	return nil
}

func (m *mockParticipantRepo) GetByStudentID(_ context.Context, studentID string) (*model.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.participants[studentID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockParticipantRepo) sorted() []model.Participant {
	var result []model.Participant
	for _, p := range m.participants {
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StudentID < result[j].StudentID })
	return result
}

func (m *mockParticipantRepo) List(_ context.Context, offset, limit int) ([]model.Participant, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted()
	total := int64(len(all))
	if offset >= len(all) {
		return []model.Participant{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockParticipantRepo) ListByStudentIDs(_ context.Context, studentIDs []string) ([]model.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Participant
	for _, id := range studentIDs {
		if p, ok := m.participants[id]; ok {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *mockParticipantRepo) ListByIDRange(_ context.Context, startID, endID string) ([]model.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Participant
	for _, p := range m.sorted() {
		if p.StudentID >= startID && p.StudentID <= endID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *mockParticipantRepo) GrantSelfSchedule(_ context.Context, studentID string, deadline time.Time, resetUsage bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[studentID]
	if !ok {
		return nil
	}
	m.grantCalls++
	p.CanSelfSchedule = true
	p.SelfScheduleDeadline = &deadline
	if resetUsage {
		p.HasUsedSelfSchedule = false
	}
	return nil
}

func (m *mockParticipantRepo) GrantSelfScheduleIfUnset(_ context.Context, studentID string, deadline time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[studentID]
	if !ok || p.CanSelfSchedule {
		return false, nil
	}
	m.grantCalls++
	p.CanSelfSchedule = true
	p.SelfScheduleDeadline = &deadline
	return true, nil
}

func (m *mockParticipantRepo) RevokeSelfSchedule(_ context.Context, studentIDs []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range studentIDs {
		if p, ok := m.participants[id]; ok {
			p.CanSelfSchedule = false
			n++
		}
	}
	return n, nil
}

func (m *mockParticipantRepo) MarkSelfScheduleUsed(_ context.Context, studentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markUsedErr != nil {
		return m.markUsedErr
	}
	p, ok := m.participants[studentID]
	if !ok || p.HasUsedSelfSchedule {
		return pkgerrors.ErrOptimisticLock
	}
	p.HasUsedSelfSchedule = true
	return nil
}

// ── Mock CheckinScheduleRepository ──
// 与数据库一样保证每名学员至多一个生效安排

type mockScheduleRepo struct {
	mu        sync.Mutex
	schedules []*model.CheckinSchedule
	seq       int

	upsertFailAt string // 对该学号的 Upsert 返回错误
	deleteErr    error  // 注入 DeleteByID 失败
	createCalls  int
}

func newMockScheduleRepo() *mockScheduleRepo {
	return &mockScheduleRepo{}
}

func (m *mockScheduleRepo) activeLocked(studentID string) *model.CheckinSchedule {
	for _, s := range m.schedules {
		if s.StudentID == studentID && s.IsActive {
			return s
		}
	}
	return nil
}

func (m *mockScheduleRepo) insertLocked(schedule *model.CheckinSchedule) {
	m.seq++
	schedule.ScheduleID = fmt.Sprintf("sch-%04d", m.seq)
	schedule.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cp := *schedule
	m.schedules = append(m.schedules, &cp)
}

// seed 直接写入一条生效安排
func (m *mockScheduleRepo) seed(studentID string, start time.Time, scheduleType string) *model.CheckinSchedule {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := newWindow(studentID, start, scheduleType, "seed")
	m.insertLocked(w)
	return w
}

func (m *mockScheduleRepo) activeCount(studentID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.schedules {
		if s.StudentID == studentID && s.IsActive {
			n++
		}
	}
	return n
}

func (m *mockScheduleRepo) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.schedules)
}

func (m *mockScheduleRepo) Create(_ context.Context, schedule *model.CheckinSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.activeLocked(schedule.StudentID) != nil {
		return pkgerrors.ErrDuplicateActive
	}
	m.insertLocked(schedule)
	return nil
}

func (m *mockScheduleRepo) Upsert(_ context.Context, schedule *model.CheckinSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertFailAt == schedule.StudentID {
		return fmt.Errorf("连接中断")
	}
	if existing := m.activeLocked(schedule.StudentID); existing != nil {
		if existing.StartDate.Equal(schedule.StartDate) {
			schedule.ScheduleID = existing.ScheduleID
			return nil
		}
		return pkgerrors.ErrDuplicateActive
	}
	m.insertLocked(schedule)
	return nil
}

func (m *mockScheduleRepo) GetActive(_ context.Context, studentID string) (*model.CheckinSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.activeLocked(studentID); s != nil {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockScheduleRepo) ListActive(_ context.Context, offset, limit int) ([]model.CheckinSchedule, int64, error) {
	all, _ := m.ListAllActive(context.Background())
	total := int64(len(all))
	if offset >= len(all) {
		return []model.CheckinSchedule{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockScheduleRepo) ListAllActive(_ context.Context) ([]model.CheckinSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.CheckinSchedule
	for _, s := range m.schedules {
		if s.IsActive {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StudentID < result[j].StudentID })
	return result, nil
}

func (m *mockScheduleRepo) ListActiveByStudentIDs(_ context.Context, studentIDs []string) ([]model.CheckinSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.CheckinSchedule
	for _, id := range studentIDs {
		if s := m.activeLocked(id); s != nil {
			result = append(result, *s)
		}
	}
	return result, nil
}

func (m *mockScheduleRepo) DeactivateByStudent(_ context.Context, studentID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.schedules {
		if s.StudentID == studentID && s.IsActive {
			s.IsActive = false
			n++
		}
	}
	return n, nil
}

func (m *mockScheduleRepo) DeleteByID(_ context.Context, scheduleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for i, s := range m.schedules {
		if s.ScheduleID == scheduleID {
			m.schedules = append(m.schedules[:i], m.schedules[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *mockScheduleRepo) DeleteActiveByStudent(_ context.Context, studentID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	kept := m.schedules[:0]
	for _, s := range m.schedules {
		if s.StudentID == studentID && s.IsActive {
			n++
			continue
		}
		kept = append(kept, s)
	}
	m.schedules = kept
	return n, nil
}

// ── Mock CheckinRecordRepository ──

type mockRecordRepo struct {
	mu      sync.Mutex
	records []model.CheckinRecord
}

func newMockRecordRepo() *mockRecordRepo {
	return &mockRecordRepo{}
}

// addDays 从 from 起连续 n 天写入通过的打卡记录
func (m *mockRecordRepo) addDays(studentID string, from time.Time, n int) {
	for i := 0; i < n; i++ {
		m.add(studentID, from.AddDate(0, 0, i), true)
	}
}

func (m *mockRecordRepo) add(studentID string, date time.Time, passed bool) {
	_ = m.Create(context.Background(), &model.CheckinRecord{StudentID: studentID, CheckinDate: date, Passed: passed})
}

func (m *mockRecordRepo) Create(_ context.Context, record *model.CheckinRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record.RecordID = fmt.Sprintf("rec-%d", len(m.records)+1)
	m.records = append(m.records, *record)
	return nil
}

func (m *mockRecordRepo) ListByStudentInRange(ctx context.Context, studentID string, from, to time.Time) ([]model.CheckinRecord, error) {
	return m.ListByStudentsInRange(ctx, []string{studentID}, from, to)
}

func (m *mockRecordRepo) ListByStudentsInRange(_ context.Context, studentIDs []string, from, to time.Time) ([]model.CheckinRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		want[id] = true
	}
	var result []model.CheckinRecord
	for _, r := range m.records {
		if want[r.StudentID] && calendar.InWindow(r.CheckinDate, from, to) {
			result = append(result, r)
		}
	}
	return result, nil
}

// ── Mock RefundRequestRepository ──

type mockRefundRepo struct {
	mu       sync.Mutex
	requests []model.RefundRequest

	createErr error
	// preempt 非空时模拟并发请求先写入：Create 存入 preempt 后返回重复错误
	preempt     *model.RefundRequest
	createCalls int
}

func newMockRefundRepo() *mockRefundRepo {
	return &mockRefundRepo{}
}

func (m *mockRefundRepo) Create(_ context.Context, req *model.RefundRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	if m.preempt != nil {
		m.insertLocked(m.preempt)
		m.preempt = nil
		return pkgerrors.ErrDuplicateRefund
	}
	for _, r := range m.requests {
		if r.StudentID == req.StudentID && r.ScheduleID == req.ScheduleID {
			return pkgerrors.ErrDuplicateRefund
		}
	}
	m.insertLocked(req)
	return nil
}

func (m *mockRefundRepo) insertLocked(req *model.RefundRequest) {
	req.RequestID = fmt.Sprintf("refund-%d", len(m.requests)+1)
	req.CreatedAt = time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC)
	m.requests = append(m.requests, *req)
}

func (m *mockRefundRepo) GetByWindow(_ context.Context, studentID, scheduleID string) (*model.RefundRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.requests {
		if m.requests[i].StudentID == studentID && m.requests[i].ScheduleID == scheduleID {
			r := m.requests[i]
			return &r, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock TxManager ──
// 内存实现没有真正的事务，fn 直接在同一组 Repository 上执行

type mockTx struct {
	repo *repository.Repository
}

func (m *mockTx) WithinTx(_ context.Context, fn func(txRepo *repository.Repository) error) error {
	return fn(m.repo)
}

// ── Mock Cache / Locker ──

type mockCache struct {
	mu      sync.Mutex
	values  map[string]interface{}
	deletes int
	err     error
}

func newMockCache() *mockCache {
	return &mockCache{values: make(map[string]interface{})}
}

func (m *mockCache) GetJSON(_ context.Context, key string, dst interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	v, ok := m.values[key]
	if !ok {
		return redis.ErrCacheMiss
	}
	stats, ok := v.(dto.CohortStatsResponse)
	if !ok {
		return redis.ErrCacheMiss
	}
	*(dst.(*dto.CohortStatsResponse)) = stats
	return nil
}

func (m *mockCache) SetJSON(_ context.Context, key string, v interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if stats, ok := v.(*dto.CohortStatsResponse); ok {
		m.values[key] = *stats
	}
	return nil
}

func (m *mockCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	m.deletes++
	return nil
}

type mockLocker struct {
	mu   sync.Mutex
	held map[string]bool
	err  error
}

func newMockLocker() *mockLocker {
	return &mockLocker{held: make(map[string]bool)}
}

func (m *mockLocker) Lock(_ context.Context, key string, _ time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.held[key] {
		return nil, redis.ErrLockHeld
	}
	m.held[key] = true
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.held, key)
	}, nil
}

// ── 测试环境 ──

type testEnv struct {
	cfg          *config.Config
	clock        *calendar.FixedClock
	participants *mockParticipantRepo
	schedules    *mockScheduleRepo
	records      *mockRecordRepo
	refunds      *mockRefundRepo
	cache        *mockCache
	locker       *mockLocker
	svc          *Service
}

// clockAt 北京时间某日中午
func clockAt(year int, month time.Month, day int) calendar.FixedClock {
	return calendar.FixedClock{T: time.Date(year, month, day, 12, 0, 0, 0, calendar.Location)}
}

func testConfig() *config.Config {
	return &config.Config{
		Campaign: config.CampaignConfig{
			AutoGrantPrefixes:   []string{"AXCF202505"},
			BatchMaxSize:        1000,
			StatsCacheTTL:       time.Minute,
			SelfScheduleLockTTL: 10 * time.Second,
		},
	}
}

func newTestEnv(clock calendar.FixedClock) *testEnv {
	env := &testEnv{
		cfg:          testConfig(),
		clock:        &clock,
		participants: newMockParticipantRepo(),
		schedules:    newMockScheduleRepo(),
		records:      newMockRecordRepo(),
		refunds:      newMockRefundRepo(),
		cache:        newMockCache(),
		locker:       newMockLocker(),
	}
	repo := &repository.Repository{
		Participant:     env.participants,
		CheckinSchedule: env.schedules,
		CheckinRecord:   env.records,
		RefundRequest:   env.refunds,
	}
	repo.Tx = &mockTx{repo: repo}

	env.svc = NewService(env.cfg, repo, Options{
		Locker: env.locker,
		Cache:  env.cache,
		Clock:  env.clock,
	}, zap.NewNop())
	return env
}
