package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/RaduRoibu23/timetable-distributed-system/internal/model"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/repository/memrepo"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/scheduler"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/snapshot"
	pkgerrors "github.com/RaduRoibu23/timetable-distributed-system/pkg/errors"
	"github.com/RaduRoibu23/timetable-distributed-system/pkg/redis"
)

// fixture 一个班级、一门科目、一位教师、一间教室
type fixture struct {
	store   *memrepo.Store
	manager *Manager
	classID uint
	subject uint
	teacher uint
}

func newFixture(t *testing.T, grid snapshot.Grid, hours int, opts Options) *fixture {
	t.Helper()
	store, repo := memrepo.New()
	f := &fixture{store: store}
	f.classID = store.AddClass("5A", 25)
	f.subject = store.AddSubject("数学", "MATH")
	f.teacher = store.AddTeacher("张老师", nil, f.subject)
	store.AddRoom("101", 30)
	store.AddCurriculum(f.classID, f.subject, hours)

	if opts.Workers == 0 {
		opts.Workers = 1
	}
	if opts.QueueSize == 0 {
		opts.QueueSize = 8
	}
	if opts.CommitAttempts == 0 {
		opts.CommitAttempts = 3
	}
	f.manager = NewManager(repo, snapshot.NewLoader(repo, grid), opts, zap.NewNop())
	t.Cleanup(f.manager.Stop)
	return f
}

func (f *fixture) waitFinished(t *testing.T, id uint) *model.GenerationJob {
	t.Helper()
	require.Eventually(t, func() bool {
		j, ok := f.store.JobSnapshot(id)
		return ok && j.Status.Finished()
	}, 5*time.Second, 5*time.Millisecond)
	job, err := f.manager.Get(context.Background(), id)
	require.NoError(t, err)
	return job
}

func (f *fixture) auditActions() []string {
	var out []string
	for _, l := range f.store.Audit() {
		out = append(out, l.Action)
	}
	return out
}

var week = snapshot.Grid{Days: 5, PerDay: 7}

func TestSubmit_RunsToSucceeded(t *testing.T) {
	f := newFixture(t, week, 3, Options{CommitPartial: true})
	f.manager.Start()

	jobs, err := f.manager.Submit(context.Background(), []uint{f.classID}, "secretary")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, model.JobQueued, jobs[0].Status)

	job := f.waitFinished(t, jobs[0].ID)
	assert.Equal(t, model.JobSucceeded, job.Status)
	assert.Equal(t, 3, job.PlacedUnits)
	assert.Equal(t, 0, job.UnsatisfiedUnits)
	assert.NotNil(t, job.StartedAt)
	assert.NotNil(t, job.FinishedAt)
	assert.Nil(t, job.ErrorMessage)

	entries := f.store.EntriesOf(f.classID)
	assert.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, 1, e.Version)
		assert.Equal(t, f.teacher, e.TeacherID)
	}

	_, report, err := f.manager.Conflicts(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Empty(t, report.Conflicts)
	assert.Contains(t, f.auditActions(), "timetable_generated")
}

func TestSubmit_Validation(t *testing.T) {
	f := newFixture(t, week, 1, Options{})

	_, err := f.manager.Submit(context.Background(), nil, "x")
	assert.ErrorIs(t, err, ErrNoClasses)

	_, err = f.manager.Submit(context.Background(), []uint{f.classID, 999}, "x")
	assert.ErrorIs(t, err, ErrClassNotFound)

	// 任一班级不存在时不创建任何任务
	assert.Empty(t, f.store.Jobs)
}

func TestSubmit_RejectsClassWithActiveJob(t *testing.T) {
	f := newFixture(t, week, 1, Options{})

	first, err := f.manager.Submit(context.Background(), []uint{f.classID}, "a")
	require.NoError(t, err)

	_, err = f.manager.Submit(context.Background(), []uint{f.classID}, "b")
	assert.ErrorIs(t, err, ErrJobInProgress)

	// 其他实例提交时由数据库层检查拒绝
	store := f.store
	other := NewManager(f.manager.repo, f.manager.loader, Options{QueueSize: 1}, zap.NewNop())
	_, err = other.Submit(context.Background(), []uint{f.classID}, "c")
	assert.ErrorIs(t, err, ErrJobInProgress)

	j, ok := store.JobSnapshot(first[0].ID)
	require.True(t, ok)
	assert.Equal(t, model.JobQueued, j.Status)
}

func TestSubmit_MultipleClassesCreateOneJobEach(t *testing.T) {
	f := newFixture(t, week, 1, Options{CommitPartial: true})
	second := f.store.AddClass("5B", 20)
	f.store.AddCurriculum(second, f.subject, 1)
	f.manager.Start()

	jobs, err := f.manager.Submit(context.Background(), []uint{second, f.classID, second}, "a")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, f.classID, jobs[0].ClassID)
	assert.Equal(t, second, jobs[1].ClassID)

	for _, j := range jobs {
		assert.Equal(t, model.JobSucceeded, f.waitFinished(t, j.ID).Status)
	}
	// 同一教师不能在同一节次出现两次
	a, b := f.store.EntriesOf(f.classID), f.store.EntriesOf(second)
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.False(t, a[0].Weekday == b[0].Weekday && a[0].IndexInDay == b[0].IndexInDay)
}

func TestConflicts_BeforeAndAfterFinish(t *testing.T) {
	// 网格只有两个节次，教师第二节不可用，两课时只能排入一个
	f := newFixture(t, snapshot.Grid{Days: 1, PerDay: 2}, 2, Options{CommitPartial: true})
	f.store.SetTeacherUnavailable(f.teacher, 0, 2)

	jobs, err := f.manager.Submit(context.Background(), []uint{f.classID}, "a")
	require.NoError(t, err)

	job, report, err := f.manager.Conflicts(context.Background(), jobs[0].ID)
	require.NoError(t, err)
	assert.False(t, job.Status.Finished())
	assert.Empty(t, report.Conflicts)

	f.manager.Start()
	done := f.waitFinished(t, jobs[0].ID)
	assert.Equal(t, model.JobSucceeded, done.Status)
	assert.Equal(t, 1, done.PlacedUnits)
	assert.Equal(t, 1, done.UnsatisfiedUnits)

	for i := 0; i < 2; i++ {
		_, report, err = f.manager.Conflicts(context.Background(), done.ID)
		require.NoError(t, err)
		require.Len(t, report.Conflicts, 1)
		assert.Equal(t, f.subject, report.Conflicts[0].SubjectID)
		assert.NotEmpty(t, report.Conflicts[0].Reason)
	}
	assert.Len(t, f.store.EntriesOf(f.classID), 1)
}

func TestCommitPartialDisabled_KeepsPreviousTimetable(t *testing.T) {
	f := newFixture(t, snapshot.Grid{Days: 1, PerDay: 1}, 2, Options{CommitPartial: false})
	old := f.store.AddEntry(model.TimetableEntry{ClassID: f.classID, SubjectID: f.subject, TeacherID: f.teacher, Weekday: 0, IndexInDay: 1})
	f.manager.Start()

	jobs, err := f.manager.Submit(context.Background(), []uint{f.classID}, "a")
	require.NoError(t, err)
	job := f.waitFinished(t, jobs[0].ID)

	assert.Equal(t, model.JobSucceeded, job.Status)
	assert.Equal(t, 0, job.PlacedUnits)
	assert.Equal(t, 1, job.UnsatisfiedUnits)
	entries := f.store.EntriesOf(f.classID)
	require.Len(t, entries, 1)
	assert.Equal(t, old, entries[0].ID)
}

func TestCommit_RetriesOnDuplicate(t *testing.T) {
	f := newFixture(t, week, 2, Options{CommitPartial: true, CommitAttempts: 3})
	f.store.ReplaceHook = func(_ uint, attempt int) error {
		if attempt == 1 {
			return &pkgerrors.ConstraintError{Err: pkgerrors.ErrDuplicate, Constraint: "uq_entries_teacher_slot"}
		}
		return nil
	}
	f.manager.Start()

	jobs, err := f.manager.Submit(context.Background(), []uint{f.classID}, "a")
	require.NoError(t, err)
	job := f.waitFinished(t, jobs[0].ID)

	assert.Equal(t, model.JobSucceeded, job.Status)
	assert.Equal(t, 2, f.store.ReplaceCalls(f.classID))
	assert.Len(t, f.store.EntriesOf(f.classID), 2)
}

func TestCommit_FailsAfterAttemptsExhausted(t *testing.T) {
	f := newFixture(t, week, 2, Options{CommitPartial: true, CommitAttempts: 2})
	f.store.ReplaceHook = func(uint, int) error {
		return &pkgerrors.ConstraintError{Err: pkgerrors.ErrDuplicate, Constraint: "uq_entries_room_slot"}
	}
	f.manager.Start()

	jobs, err := f.manager.Submit(context.Background(), []uint{f.classID}, "a")
	require.NoError(t, err)
	job := f.waitFinished(t, jobs[0].ID)

	assert.Equal(t, model.JobFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, msgSystem, *job.ErrorMessage)
	assert.Equal(t, 2, f.store.ReplaceCalls(f.classID))
	assert.Empty(t, f.store.EntriesOf(f.classID))
	assert.Contains(t, f.auditActions(), "timetable_generation_failed")

	_, report, err := f.manager.Conflicts(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, report.Conflicts, 2)
	assert.Equal(t, scheduler.ReasonSystemFailure, report.Conflicts[0].Reason)
}

func TestCancel_QueuedJob(t *testing.T) {
	f := newFixture(t, week, 2, Options{})

	jobs, err := f.manager.Submit(context.Background(), []uint{f.classID}, "a")
	require.NoError(t, err)

	_, err = f.manager.Cancel(context.Background(), jobs[0].ID)
	require.NoError(t, err)

	job, report, err := f.manager.Conflicts(context.Background(), jobs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, msgCancelled, *job.ErrorMessage)
	require.Len(t, report.Conflicts, 2)
	assert.Equal(t, scheduler.ReasonCancelled, report.Conflicts[1].Reason)

	_, err = f.manager.Cancel(context.Background(), jobs[0].ID)
	assert.ErrorIs(t, err, ErrJobFinished)

	// 取消后班级可以再次提交，且旧任务出队时被跳过
	f.manager.Start()
	again, err := f.manager.Submit(context.Background(), []uint{f.classID}, "a")
	require.NoError(t, err)
	assert.Equal(t, model.JobSucceeded, f.waitFinished(t, again[0].ID).Status)
	assert.Equal(t, 1, f.store.ReplaceCalls(f.classID))
}

func TestCancel_RunningJob(t *testing.T) {
	f := newFixture(t, week, 2, Options{CommitPartial: true})
	old := f.store.AddEntry(model.TimetableEntry{ClassID: f.classID, SubjectID: f.subject, TeacherID: f.teacher, Weekday: 4, IndexInDay: 7})

	entered := make(chan struct{})
	release := make(chan struct{})
	f.manager.WithLocker(&fakeLocker{gate: func() {
		close(entered)
		<-release
	}})
	f.manager.Start()

	jobs, err := f.manager.Submit(context.Background(), []uint{f.classID}, "a")
	require.NoError(t, err)

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("任务未被 worker 取出")
	}
	_, err = f.manager.Cancel(context.Background(), jobs[0].ID)
	require.NoError(t, err)
	close(release)

	job := f.waitFinished(t, jobs[0].ID)
	assert.Equal(t, model.JobFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, msgCancelled, *job.ErrorMessage)

	// 已接受的取消使提交中止，原课表保留
	assert.Equal(t, 0, f.store.ReplaceCalls(f.classID))
	entries := f.store.EntriesOf(f.classID)
	require.Len(t, entries, 1)
	assert.Equal(t, old, entries[0].ID)
}

func TestCancel_AfterCommitPointIsRejected(t *testing.T) {
	f := newFixture(t, week, 2, Options{CommitPartial: true})

	entered := make(chan struct{})
	release := make(chan struct{})
	f.store.ReplaceHook = func(uint, int) error {
		close(entered)
		<-release
		return nil
	}
	f.manager.Start()

	jobs, err := f.manager.Submit(context.Background(), []uint{f.classID}, "a")
	require.NoError(t, err)

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("任务未进入提交阶段")
	}
	running, err := f.manager.Get(context.Background(), jobs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobRunning, running.Status)

	_, err = f.manager.Cancel(context.Background(), jobs[0].ID)
	assert.ErrorIs(t, err, ErrCommitting)
	close(release)

	// 提交照常完成，任务成功
	job := f.waitFinished(t, jobs[0].ID)
	assert.Equal(t, model.JobSucceeded, job.Status)
	assert.Nil(t, job.ErrorMessage)
	assert.Len(t, f.store.EntriesOf(f.classID), 2)
}

func TestCancel_UnknownJob(t *testing.T) {
	f := newFixture(t, week, 1, Options{})
	_, err := f.manager.Cancel(context.Background(), 12345)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestTimeout_FailsJob(t *testing.T) {
	f := newFixture(t, week, 1, Options{CommitPartial: true, Timeout: 20 * time.Millisecond})
	f.store.ReplaceHook = func(uint, int) error {
		time.Sleep(60 * time.Millisecond)
		return nil
	}
	f.manager.Start()

	jobs, err := f.manager.Submit(context.Background(), []uint{f.classID}, "a")
	require.NoError(t, err)
	job := f.waitFinished(t, jobs[0].ID)

	assert.Equal(t, model.JobFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, msgTimeout, *job.ErrorMessage)
	assert.Empty(t, f.store.EntriesOf(f.classID))
}

type fakeLocker struct {
	held     bool
	gate     func() // 非 nil 时在获取锁前调用，用于让任务停在搜索之前
	acquired atomic.Int32
	released atomic.Int32
}

func (l *fakeLocker) AcquireLock(context.Context, string, time.Duration) (*redis.Lock, error) {
	if l.gate != nil {
		l.gate()
	}
	if l.held {
		return nil, redis.ErrLockHeld
	}
	l.acquired.Add(1)
	return &redis.Lock{}, nil
}

func (l *fakeLocker) ReleaseLock(context.Context, *redis.Lock) error {
	l.released.Add(1)
	return nil
}

func TestLocker_HeldByOtherInstance(t *testing.T) {
	f := newFixture(t, week, 1, Options{CommitPartial: true})
	f.manager.WithLocker(&fakeLocker{held: true})
	f.manager.Start()

	jobs, err := f.manager.Submit(context.Background(), []uint{f.classID}, "a")
	require.NoError(t, err)
	job := f.waitFinished(t, jobs[0].ID)

	assert.Equal(t, model.JobFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, msgLockHeld, *job.ErrorMessage)
}

func TestLocker_ReleasedAfterRun(t *testing.T) {
	f := newFixture(t, week, 1, Options{CommitPartial: true})
	locker := &fakeLocker{}
	f.manager.WithLocker(locker)
	f.manager.Start()

	jobs, err := f.manager.Submit(context.Background(), []uint{f.classID}, "a")
	require.NoError(t, err)
	assert.Equal(t, model.JobSucceeded, f.waitFinished(t, jobs[0].ID).Status)

	require.Eventually(t, func() bool { return locker.released.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), locker.acquired.Load())
}

func TestRecover_FailsRunningAndRequeuesQueued(t *testing.T) {
	f := newFixture(t, week, 1, Options{CommitPartial: true})
	other := f.store.AddClass("6A", 20)
	f.store.AddCurriculum(other, f.subject, 1)

	started := time.Now().Add(-time.Minute)
	stale := f.store.AddJob(model.GenerationJob{ClassID: f.classID, Status: model.JobRunning, StartedAt: &started})
	queued := f.store.AddJob(model.GenerationJob{ClassID: other, Status: model.JobQueued})

	require.NoError(t, f.manager.Recover(context.Background()))

	j, _ := f.store.JobSnapshot(stale)
	assert.Equal(t, model.JobFailed, j.Status)
	require.NotNil(t, j.ErrorMessage)
	assert.Equal(t, msgInterrupted, *j.ErrorMessage)

	f.manager.Start()
	assert.Equal(t, model.JobSucceeded, f.waitFinished(t, queued).Status)
}

func TestSubmit_QueueFull(t *testing.T) {
	f := newFixture(t, week, 1, Options{QueueSize: 1})
	second := f.store.AddClass("5B", 20)

	_, err := f.manager.Submit(context.Background(), []uint{f.classID}, "a")
	require.NoError(t, err)

	_, err = f.manager.Submit(context.Background(), []uint{second}, "a")
	require.True(t, errors.Is(err, ErrQueueFull))

	var failed int
	for _, j := range f.store.Jobs {
		if j.ClassID == second && j.Status == model.JobFailed {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}
