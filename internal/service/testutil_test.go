package service

import (
	"context"
	"sync"
	"time"

	"github.com/RaduRoibu23/timetable-distributed-system/config"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/dto"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/model"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/repository"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/repository/memrepo"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/snapshot"
)

// ── 测试辅助 ──

func testConfig() *config.Config {
	return &config.Config{
		Scheduler: config.SchedulerConfig{
			DaysPerWeek:      5,
			SlotsPerDay:      7,
			MaxBacktracks:    1000,
			CapacityTracking: true,
		},
		Catalog: config.CatalogConfig{DeletePolicy: config.DeletePolicyReject},
	}
}

func newLoader(cfg *config.Config, repo *repository.Repository) *snapshot.Loader {
	return snapshot.NewLoader(repo, snapshot.NewGrid(&cfg.Scheduler))
}

var (
	secretariat = &dto.Caller{Subject: "sec-1", Username: "secretary", Roles: []string{model.RoleSecretariat}}
	schedulerC  = &dto.Caller{Subject: "sch-1", Username: "planner", Roles: []string{model.RoleScheduler}}
)

func strPtr(s string) *string { return &s }
func uintPtr(v uint) *uint    { return &v }
func intPtr(v int) *int       { return &v }
func boolPtr(v bool) *bool    { return &v }

// school 两个班级、两门科目、两位教师、两间教室
type school struct {
	store            *memrepo.Store
	repo             *repository.Repository
	class5A, class5B uint
	math, physics    uint
	ion, maria       uint
	roomA, roomB     uint
}

func newSchool() *school {
	store, repo := memrepo.New()
	s := &school{store: store, repo: repo}
	s.class5A = store.AddClass("5A", 28)
	s.class5B = store.AddClass("5B", 30)
	s.math = store.AddSubject("数学", "MATH")
	s.physics = store.AddSubject("物理", "PHYS")
	s.ion = store.AddTeacher("Ion", strPtr("ion"), s.math, s.physics)
	s.maria = store.AddTeacher("Maria", strPtr("maria"), s.math)
	s.roomA = store.AddRoom("A101", 32)
	s.roomB = store.AddRoom("B202", 20)
	store.AddCurriculum(s.class5A, s.math, 3)
	store.AddCurriculum(s.class5B, s.physics, 2)
	return s
}

// recordingRecorder 记录条目修改结果的指标桩
type recordingRecorder struct {
	mu      sync.Mutex
	results []string
}

func (r *recordingRecorder) JobStarted()                            {}
func (r *recordingRecorder) JobFinished(string, time.Duration, int) {}

func (r *recordingRecorder) EntryUpdate(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

// bumpingEntryRepo 在写入前模拟另一个请求抢先修改了条目
type bumpingEntryRepo struct {
	repository.TimetableEntryRepository
	store *memrepo.Store
}

func (r *bumpingEntryRepo) UpdateWithVersion(ctx context.Context, e *model.TimetableEntry, expected int) error {
	r.store.BumpVersion(e.ID)
	return r.TimetableEntryRepository.UpdateWithVersion(ctx, e, expected)
}

func (r *recordingRecorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.results) == 0 {
		return ""
	}
	return r.results[len(r.results)-1]
}
