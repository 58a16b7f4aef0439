// Package jobs 异步执行课表生成任务
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/RaduRoibu23/timetable-distributed-system/config"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/model"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/repository"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/scheduler"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/snapshot"
	pkgerrors "github.com/RaduRoibu23/timetable-distributed-system/pkg/errors"
	"github.com/RaduRoibu23/timetable-distributed-system/pkg/metrics"
	"github.com/RaduRoibu23/timetable-distributed-system/pkg/mqtt"
	"github.com/RaduRoibu23/timetable-distributed-system/pkg/redis"
)

var (
	ErrJobNotFound    = errors.New("生成任务不存在")
	ErrClassNotFound  = errors.New("班级不存在")
	ErrNoClasses      = errors.New("未指定要生成的班级")
	ErrJobInProgress  = errors.New("该班级已有进行中的生成任务")
	ErrQueueFull      = errors.New("生成队列已满，请稍后重试")
	ErrJobFinished    = errors.New("任务已结束，无法取消")
	ErrNotCancellable = errors.New("任务正在其他实例上运行，无法取消")
	ErrCommitting     = errors.New("任务已开始提交课表，无法取消")
)

// 写入 error_message 的失败原因
const (
	msgCancelled   = "已取消"
	msgTimeout     = "生成超时"
	msgShutdown    = "服务关闭，任务中断"
	msgInterrupted = "interrupted"
	msgLockHeld    = "其他实例正在生成该班级课表"
	msgQueueFull   = "生成队列已满"
	msgSystem      = "系统错误，生成失败"
)

// Locker 跨实例的班级生成锁，由 pkg/redis 实现
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (*redis.Lock, error)
	ReleaseLock(ctx context.Context, lock *redis.Lock) error
}

// Report 持久化在 conflict_report 列中的内容
type Report struct {
	Conflicts []scheduler.Conflict `json:"conflicts"`
	Warnings  []scheduler.Warning  `json:"warnings"`
}

// Options 任务执行参数
type Options struct {
	Workers        int
	QueueSize      int
	Timeout        time.Duration // 0 表示不限时
	CommitAttempts int
	CommitPartial  bool
	LockTTL        time.Duration
	Scheduler      scheduler.Options
}

// NewOptions 由全局配置构建任务参数
func NewOptions(cfg *config.Config) Options {
	return Options{
		Workers:        cfg.Jobs.Workers,
		QueueSize:      cfg.Jobs.QueueSize,
		Timeout:        cfg.Jobs.Timeout,
		CommitAttempts: cfg.Jobs.CommitAttempts,
		CommitPartial:  cfg.Scheduler.CommitPartial,
		LockTTL:        cfg.Redis.LockTTL,
		Scheduler: scheduler.Options{
			MaxBacktracks:        cfg.Scheduler.MaxBacktracks,
			CapacityTracking:     cfg.Scheduler.CapacityTracking,
			CapacityBlocking:     cfg.Scheduler.CapacityBlocking,
			MaxSameSubjectPerDay: cfg.Scheduler.MaxSameSubjectPerDay,
			PreferredMaxIndex:    cfg.Scheduler.PreferredMaxIndex,
		},
	}
}

// Manager 生成任务管理器：有界队列 + 固定数量的 worker
type Manager struct {
	repo   *repository.Repository
	loader *snapshot.Loader
	opts   Options
	logger *zap.Logger

	locker  Locker
	events  mqtt.Publisher
	metrics metrics.Recorder
	now     func() time.Time

	queue chan uint

	mu         sync.Mutex
	active     map[uint]uint               // class_id → 进行中的 job_id
	running    map[uint]context.CancelFunc // job_id → 取消函数
	cancelled  map[uint]bool
	committing map[uint]bool               // 已越过提交点的任务不再接受取消

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once
}

// NewManager 创建任务管理器，调用 Start 后开始消费队列
func NewManager(repo *repository.Repository, loader *snapshot.Loader, opts Options, logger *zap.Logger) *Manager {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	if opts.CommitAttempts < 1 {
		opts.CommitAttempts = 1
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		repo:       repo,
		loader:     loader,
		opts:       opts,
		logger:     logger,
		events:     mqtt.NopPublisher{},
		metrics:    metrics.NopRecorder{},
		now:        time.Now,
		queue:      make(chan uint, opts.QueueSize),
		active:     make(map[uint]uint),
		running:    make(map[uint]context.CancelFunc),
		cancelled:  make(map[uint]bool),
		committing: make(map[uint]bool),
		baseCtx:    ctx,
		stop:       cancel,
	}
}

// WithLocker 启用跨实例生成锁
func (m *Manager) WithLocker(l Locker) *Manager {
	m.locker = l
	return m
}

// WithEvents 设置事件发布器
func (m *Manager) WithEvents(p mqtt.Publisher) *Manager {
	if p != nil {
		m.events = p
	}
	return m
}

// WithMetrics 设置指标记录器
func (m *Manager) WithMetrics(r metrics.Recorder) *Manager {
	if r != nil {
		m.metrics = r
	}
	return m
}

// Start 启动 worker
func (m *Manager) Start() {
	for i := 0; i < m.opts.Workers; i++ {
		m.wg.Add(1)
		go m.worker()
	}
	m.logger.Info("生成任务 worker 已启动", zap.Int("workers", m.opts.Workers), zap.Int("queue_size", m.opts.QueueSize))
}

// Stop 取消运行中的任务并等待 worker 退出，可重复调用
func (m *Manager) Stop() {
	m.once.Do(func() {
		m.stop()
		m.wg.Wait()
		m.logger.Info("生成任务 worker 已停止")
	})
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.baseCtx.Done():
			return
		case id := <-m.queue:
			m.run(id)
		}
	}
}

// ────────────────────── 提交与查询 ──────────────────────

// Submit 为每个班级创建一个排队任务并立即返回
// 班级按 ID 升序处理，遇到错误时已创建的任务保留并继续执行
func (m *Manager) Submit(ctx context.Context, classIDs []uint, requestedBy string) ([]model.GenerationJob, error) {
	ids := dedupe(classIDs)
	if len(ids) == 0 {
		return nil, ErrNoClasses
	}

	for _, id := range ids {
		if _, err := m.repo.Class.GetByID(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: %d", ErrClassNotFound, id)
			}
			m.logger.Error("查询班级失败", zap.Uint("class_id", id), zap.Error(err))
			return nil, err
		}
	}

	m.mu.Lock()
	for _, id := range ids {
		if _, busy := m.active[id]; busy {
			m.mu.Unlock()
			return nil, fmt.Errorf("%w: 班级 %d", ErrJobInProgress, id)
		}
	}
	m.mu.Unlock()

	created := make([]model.GenerationJob, 0, len(ids))
	for _, id := range ids {
		job := &model.GenerationJob{ClassID: id, Status: model.JobQueued, RequestedBy: requestedBy}
		if err := m.repo.Job.CreateIfIdle(ctx, job); err != nil {
			switch {
			case errors.Is(err, repository.ErrJobActive):
				return created, fmt.Errorf("%w: 班级 %d", ErrJobInProgress, id)
			case errors.Is(err, gorm.ErrRecordNotFound):
				return created, fmt.Errorf("%w: %d", ErrClassNotFound, id)
			}
			m.logger.Error("创建生成任务失败", zap.Uint("class_id", id), zap.Error(err))
			return created, err
		}

		m.track(job)
		if !m.enqueue(job.ID) {
			m.failQueued(context.Background(), job, msgQueueFull, scheduler.ReasonSystemFailure)
			return created, ErrQueueFull
		}
		m.logger.Info("生成任务已排队", zap.Uint("job_id", job.ID), zap.Uint("class_id", id), zap.String("requested_by", requestedBy))
		m.publishJob(job)
		created = append(created, *job)
	}
	return created, nil
}

// Get 查询任务
func (m *Manager) Get(ctx context.Context, id uint) (*model.GenerationJob, error) {
	job, err := m.repo.Job.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// Conflicts 返回任务及其冲突报告，未结束的任务报告为空
func (m *Manager) Conflicts(ctx context.Context, id uint) (*model.GenerationJob, *Report, error) {
	job, err := m.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	report := &Report{Conflicts: []scheduler.Conflict{}, Warnings: []scheduler.Warning{}}
	if !job.Status.Finished() || len(job.ConflictReport) == 0 {
		return job, report, nil
	}
	if err := json.Unmarshal(job.ConflictReport, report); err != nil {
		m.logger.Error("解析冲突报告失败", zap.Uint("job_id", id), zap.Error(err))
		return nil, nil, err
	}
	if report.Conflicts == nil {
		report.Conflicts = []scheduler.Conflict{}
	}
	if report.Warnings == nil {
		report.Warnings = []scheduler.Warning{}
	}
	return job, report, nil
}

// Cancel 取消任务：排队中的立即失败，运行中的取消其上下文，由 worker 写入失败状态
func (m *Manager) Cancel(ctx context.Context, id uint) (*model.GenerationJob, error) {
	for attempt := 0; attempt < 2; attempt++ {
		job, err := m.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.Status.Finished() {
			return nil, ErrJobFinished
		}

		m.mu.Lock()
		if cancel, ok := m.running[id]; ok {
			if m.committing[id] {
				m.mu.Unlock()
				return nil, ErrCommitting
			}
			m.cancelled[id] = true
			m.mu.Unlock()
			cancel()
			m.logger.Info("已请求取消运行中的任务", zap.Uint("job_id", id))
			return job, nil
		}
		m.mu.Unlock()

		if job.Status == model.JobRunning {
			return nil, ErrNotCancellable
		}
		if m.failQueued(ctx, job, msgCancelled, scheduler.ReasonCancelled) {
			return job, nil
		}
		// 状态已被 worker 改变，重新判断
	}
	return nil, ErrNotCancellable
}

// Recover 处理上次进程遗留的任务：running 标记为失败，queued 重新入队
func (m *Manager) Recover(ctx context.Context) error {
	stale, err := m.repo.Job.ListByStatus(ctx, model.JobRunning)
	if err != nil {
		return err
	}
	for i := range stale {
		job := &stale[i]
		if m.locker != nil {
			lock, err := m.locker.AcquireLock(ctx, lockName(job.ClassID), m.opts.LockTTL)
			if err != nil {
				if errors.Is(err, redis.ErrLockHeld) {
					continue // 其他实例仍在运行
				}
				return err
			}
			_ = m.locker.ReleaseLock(ctx, lock)
		}
		problem, _ := m.loader.Load(ctx, []uint{job.ClassID})
		m.finishFailed(ctx, job, model.JobRunning, msgInterrupted, scheduler.ReasonSystemFailure, problem)
	}

	queued, err := m.repo.Job.ListByStatus(ctx, model.JobQueued)
	if err != nil {
		return err
	}
	for i := range queued {
		job := &queued[i]
		m.track(job)
		if !m.enqueue(job.ID) {
			m.failQueued(ctx, job, msgQueueFull, scheduler.ReasonSystemFailure)
		}
	}
	if len(stale)+len(queued) > 0 {
		m.logger.Info("已恢复遗留的生成任务", zap.Int("running", len(stale)), zap.Int("queued", len(queued)))
	}
	return nil
}

// ────────────────────── 执行 ──────────────────────

func (m *Manager) run(id uint) {
	job, err := m.repo.Job.GetByID(m.baseCtx, id)
	if err != nil {
		m.logger.Error("读取生成任务失败", zap.Uint("job_id", id), zap.Error(err))
		return
	}
	if job.Status != model.JobQueued {
		m.untrack(job)
		return
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if m.opts.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(m.baseCtx, m.opts.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(m.baseCtx)
	}
	defer cancel()
	m.mu.Lock()
	m.running[id] = cancel
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.running, id)
		delete(m.cancelled, id)
		delete(m.committing, id)
		m.mu.Unlock()
		m.untrack(job)
	}()

	if m.locker != nil {
		lock, err := m.locker.AcquireLock(runCtx, lockName(job.ClassID), m.opts.LockTTL)
		if err != nil {
			msg, reason := msgLockHeld, scheduler.ReasonSystemFailure
			if !errors.Is(err, redis.ErrLockHeld) {
				msg, reason = m.classify(runCtx, id, err)
				if msg == msgSystem {
					m.logger.Error("获取生成锁失败", zap.Uint("job_id", id), zap.Error(err))
				}
			}
			m.failQueued(context.Background(), job, msg, reason)
			return
		}
		defer func() {
			if err := m.locker.ReleaseLock(context.Background(), lock); err != nil {
				m.logger.Warn("释放生成锁失败", zap.Uint("class_id", job.ClassID), zap.Error(err))
			}
		}()
	}

	started := m.now()
	job.Status = model.JobRunning
	job.StartedAt = &started
	if err := m.repo.Job.Transition(context.Background(), job, model.JobQueued); err != nil {
		if !errors.Is(err, repository.ErrJobStateChanged) {
			m.logger.Error("更新任务状态失败", zap.Uint("job_id", id), zap.Error(err))
		}
		return
	}
	m.metrics.JobStarted()
	m.publishJob(job)
	m.logger.Info("开始生成课表", zap.Uint("job_id", id), zap.Uint("class_id", job.ClassID))

	problem, result, committed, err := m.generate(runCtx, id, job.ClassID)
	if err != nil {
		msg, reason := m.classify(runCtx, id, err)
		if msg == msgSystem {
			m.logger.Error("生成课表失败", zap.Uint("job_id", id), zap.Error(err))
		}
		m.finishFailed(context.Background(), job, model.JobRunning, msg, reason, problem)
		return
	}
	m.finishSucceeded(job, result, committed)
}

// generate 读取快照、搜索并提交；提交遇到唯一约束冲突时重新读取后再试
func (m *Manager) generate(ctx context.Context, id, classID uint) (*scheduler.Problem, *scheduler.ClassResult, bool, error) {
	var problem *scheduler.Problem
	for attempt := 1; ; attempt++ {
		p, err := m.loader.Load(ctx, []uint{classID})
		if err != nil {
			return problem, nil, false, err
		}
		problem = p

		res, err := scheduler.Generate(ctx, *p, m.opts.Scheduler)
		if err != nil {
			return problem, nil, false, err
		}
		cr := &res.Classes[0]
		if !cr.Complete() && !m.opts.CommitPartial {
			return problem, cr, false, nil
		}

		if err := m.enterCommit(ctx, id); err != nil {
			return problem, nil, false, err
		}
		err = m.repo.TimetableEntry.ReplaceForClass(ctx, classID, toEntries(cr.Assignments))
		if err == nil {
			return problem, cr, true, nil
		}
		if errors.Is(err, pkgerrors.ErrDuplicate) && attempt < m.opts.CommitAttempts {
			m.leaveCommit(id)
			m.logger.Warn("提交课表时发生占用冲突，重新生成",
				zap.Uint("class_id", classID), zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		return problem, nil, false, fmt.Errorf("提交课表失败: %w", err)
	}
}

// enterCommit 越过提交点：此前已接受的取消使提交中止，此后的取消被拒绝
func (m *Manager) enterCommit(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelled[id] {
		return context.Canceled
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.committing[id] = true
	return nil
}

// leaveCommit 提交冲突后重新搜索，期间可再次取消
func (m *Manager) leaveCommit(id uint) {
	m.mu.Lock()
	delete(m.committing, id)
	m.mu.Unlock()
}

func (m *Manager) classify(ctx context.Context, id uint, err error) (string, scheduler.Reason) {
	m.mu.Lock()
	cancelled := m.cancelled[id]
	m.mu.Unlock()

	switch {
	case cancelled:
		return msgCancelled, scheduler.ReasonCancelled
	case m.baseCtx.Err() != nil:
		return msgShutdown, scheduler.ReasonCancelled
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return msgTimeout, scheduler.ReasonSystemFailure
	}
	return msgSystem, scheduler.ReasonSystemFailure
}

func (m *Manager) finishSucceeded(job *model.GenerationJob, cr *scheduler.ClassResult, committed bool) {
	report := Report{Conflicts: cr.Conflicts, Warnings: cr.Warnings}
	finished := m.now()
	job.Status = model.JobSucceeded
	job.FinishedAt = &finished
	job.UnsatisfiedUnits = len(cr.Conflicts)
	job.PlacedUnits = 0
	if committed {
		job.PlacedUnits = len(cr.Assignments)
	}
	job.ConflictReport = encodeReport(report)

	if err := m.repo.Job.Transition(context.Background(), job, model.JobRunning); err != nil {
		m.logger.Error("更新任务状态失败", zap.Uint("job_id", job.ID), zap.Error(err))
		return
	}
	m.metrics.JobFinished(string(job.Status), m.elapsed(job), job.UnsatisfiedUnits)
	m.audit(job, "timetable_generated", map[string]interface{}{
		"job_id":            job.ID,
		"placed_units":      job.PlacedUnits,
		"unsatisfied_units": job.UnsatisfiedUnits,
		"committed":         committed,
	})
	m.publishJob(job)
	if committed {
		m.publish(m.events.Topic("classes", strconv.FormatUint(uint64(job.ClassID), 10), "timetable"), timetableEvent{
			ClassID:          job.ClassID,
			JobID:            job.ID,
			Entries:          job.PlacedUnits,
			UnsatisfiedUnits: job.UnsatisfiedUnits,
			At:               finished,
		})
	}
	m.logger.Info("课表生成完成",
		zap.Uint("job_id", job.ID),
		zap.Uint("class_id", job.ClassID),
		zap.Int("placed", job.PlacedUnits),
		zap.Int("unsatisfied", job.UnsatisfiedUnits),
		zap.Int("backtracks", cr.Backtracks),
		zap.Bool("committed", committed))
}

// failQueued 将排队中的任务直接置为失败，状态已改变时返回 false
func (m *Manager) failQueued(ctx context.Context, job *model.GenerationJob, msg string, reason scheduler.Reason) bool {
	problem, _ := m.loader.Load(ctx, []uint{job.ClassID})
	return m.finishFailed(ctx, job, model.JobQueued, msg, reason, problem)
}

// finishFailed 写入失败状态，报告中列出全部未排课时
func (m *Manager) finishFailed(ctx context.Context, job *model.GenerationJob, from model.JobStatus, msg string,
	reason scheduler.Reason, problem *scheduler.Problem) bool {
	conflicts := failedUnits(problem, job.ClassID, reason, msg)
	finished := m.now()
	job.Status = model.JobFailed
	job.FinishedAt = &finished
	job.PlacedUnits = 0
	job.UnsatisfiedUnits = len(conflicts)
	job.ErrorMessage = &msg
	job.ConflictReport = encodeReport(Report{Conflicts: conflicts})

	if err := m.repo.Job.Transition(ctx, job, from); err != nil {
		if !errors.Is(err, repository.ErrJobStateChanged) {
			m.logger.Error("更新任务状态失败", zap.Uint("job_id", job.ID), zap.Error(err))
		}
		return false
	}
	m.untrack(job)
	// 只有本进程执行过的任务计入耗时
	var elapsed time.Duration
	if m.isRunning(job.ID) {
		elapsed = m.elapsed(job)
	}
	m.metrics.JobFinished(string(job.Status), elapsed, 0)
	m.audit(job, "timetable_generation_failed", map[string]interface{}{
		"job_id": job.ID,
		"reason": reason,
		"error":  msg,
	})
	m.publishJob(job)
	m.logger.Warn("生成任务失败", zap.Uint("job_id", job.ID), zap.Uint("class_id", job.ClassID), zap.String("reason", msg))
	return true
}

func (m *Manager) elapsed(job *model.GenerationJob) time.Duration {
	if job.StartedAt == nil || job.FinishedAt == nil {
		return 0
	}
	if d := job.FinishedAt.Sub(*job.StartedAt); d > 0 {
		return d
	}
	return time.Nanosecond
}

// ────────────────────── 辅助 ──────────────────────

func (m *Manager) track(job *model.GenerationJob) {
	m.mu.Lock()
	m.active[job.ClassID] = job.ID
	m.mu.Unlock()
}

func (m *Manager) untrack(job *model.GenerationJob) {
	m.mu.Lock()
	if m.active[job.ClassID] == job.ID {
		delete(m.active, job.ClassID)
	}
	m.mu.Unlock()
}

func (m *Manager) isRunning(id uint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.running[id]
	return ok
}

func (m *Manager) enqueue(id uint) bool {
	select {
	case m.queue <- id:
		return true
	default:
		return false
	}
}

func (m *Manager) audit(job *model.GenerationJob, action string, detail map[string]interface{}) {
	body, _ := json.Marshal(detail)
	id := job.ClassID
	entry := &model.AuditLog{
		Actor:      job.RequestedBy,
		Action:     action,
		Resource:   "class",
		ResourceID: &id,
		Detail:     datatypes.JSON(body),
	}
	if err := m.repo.AuditLog.Create(context.Background(), entry); err != nil {
		m.logger.Warn("写入审计日志失败", zap.String("action", action), zap.Error(err))
	}
}

// jobEvent 发布到 {prefix}/jobs/{id} 的任务状态事件
type jobEvent struct {
	JobID            uint            `json:"job_id"`
	ClassID          uint            `json:"class_id"`
	Status           model.JobStatus `json:"status"`
	PlacedUnits      int             `json:"placed_units"`
	UnsatisfiedUnits int             `json:"unsatisfied_units"`
	ErrorMessage     *string         `json:"error_message,omitempty"`
	At               time.Time       `json:"at"`
}

// timetableEvent 发布到 {prefix}/classes/{id}/timetable 的课表变更事件
type timetableEvent struct {
	ClassID          uint      `json:"class_id"`
	JobID            uint      `json:"job_id"`
	Entries          int       `json:"entries"`
	UnsatisfiedUnits int       `json:"unsatisfied_units"`
	At               time.Time `json:"at"`
}

func (m *Manager) publishJob(job *model.GenerationJob) {
	m.publish(m.events.Topic("jobs", strconv.FormatUint(uint64(job.ID), 10)), jobEvent{
		JobID:            job.ID,
		ClassID:          job.ClassID,
		Status:           job.Status,
		PlacedUnits:      job.PlacedUnits,
		UnsatisfiedUnits: job.UnsatisfiedUnits,
		ErrorMessage:     job.ErrorMessage,
		At:               m.now(),
	})
}

func (m *Manager) publish(topic string, payload interface{}) {
	if err := m.events.Publish(topic, payload); err != nil {
		m.logger.Warn("发布事件失败", zap.String("topic", topic), zap.Error(err))
	}
}

func lockName(classID uint) string {
	return "generate:class:" + strconv.FormatUint(uint64(classID), 10)
}

func encodeReport(r Report) datatypes.JSON {
	if r.Conflicts == nil {
		r.Conflicts = []scheduler.Conflict{}
	}
	if r.Warnings == nil {
		r.Warnings = []scheduler.Warning{}
	}
	body, _ := json.Marshal(r)
	return datatypes.JSON(body)
}

func toEntries(as []scheduler.Assignment) []model.TimetableEntry {
	out := make([]model.TimetableEntry, 0, len(as))
	for _, a := range as {
		out = append(out, model.TimetableEntry{
			ClassID:    a.ClassID,
			SubjectID:  a.SubjectID,
			TeacherID:  a.TeacherID,
			RoomID:     a.RoomID,
			Weekday:    a.Slot.Weekday,
			IndexInDay: a.Slot.Index,
		})
	}
	return out
}

// failedUnits 失败任务未提交任何条目，全部课时单元按同一原因列出
func failedUnits(p *scheduler.Problem, classID uint, reason scheduler.Reason, detail string) []scheduler.Conflict {
	var out []scheduler.Conflict
	if p == nil {
		return out
	}
	for _, c := range p.Classes {
		if c.ID != classID {
			continue
		}
		for _, r := range c.Requirements {
			for u := 1; u <= r.Hours; u++ {
				out = append(out, scheduler.Conflict{
					ClassID:      classID,
					CurriculumID: r.CurriculumID,
					SubjectID:    r.SubjectID,
					SubjectName:  r.SubjectName,
					Unit:         u,
					Reason:       reason,
					Detail:       detail,
				})
			}
		}
	}
	return out
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
