package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/RaduRoibu23/timetable-distributed-system/config"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/constraint"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/dto"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/model"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/repository"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/snapshot"
	pkgerrors "github.com/RaduRoibu23/timetable-distributed-system/pkg/errors"
	"github.com/RaduRoibu23/timetable-distributed-system/pkg/metrics"
)

// ── TimetableService 接口 ──────────────────────────────────
//
// 条目修改以 version 做乐观锁：读取时版本不一致直接返回冲突，
// 写入时 UPDATE ... WHERE version = ? 未命中同样视为冲突。
// 约束校验与生成算法共用 constraint.Checker，状态来自同一个快照加载器。
// ─────────────────────────────────────────────────────────────

// TimetableService 课表查询与编辑接口
type TimetableService interface {
	GetClassTimetable(ctx context.Context, classID uint) ([]dto.EntryResponse, error)
	UpdateEntry(ctx context.Context, id uint, req *dto.UpdateEntryRequest, caller *dto.Caller) (*dto.UpdateEntryResult, error)
	CreateEntry(ctx context.Context, req *dto.CreateEntryRequest, caller *dto.Caller) (*dto.UpdateEntryResult, error)
	DeleteClassTimetable(ctx context.Context, classID uint, caller *dto.Caller) (*dto.DeleteTimetableResponse, error)
	Stats(ctx context.Context) (*dto.StatsResponse, error)
}

type timetableService struct {
	repo      *repository.Repository
	loader    *snapshot.Loader
	checkOpts constraint.Options
	metrics   metrics.Recorder
	logger    *zap.Logger
}

// NewTimetableService 创建 TimetableService 实例
func NewTimetableService(
	cfg *config.Config,
	repo *repository.Repository,
	loader *snapshot.Loader,
	rec metrics.Recorder,
	logger *zap.Logger,
) TimetableService {
	if rec == nil {
		rec = metrics.NopRecorder{}
	}
	return &timetableService{
		repo:   repo,
		loader: loader,
		checkOpts: constraint.Options{
			CapacityTracking: cfg.Scheduler.CapacityTracking,
			CapacityBlocking: cfg.Scheduler.CapacityBlocking,
		},
		metrics: rec,
		logger:  logger,
	}
}

// 条目修改结果，用作指标标签
const (
	editOK              = "ok"
	editVersionConflict = "version_conflict"
	editViolation       = "constraint_violation"
	editError           = "error"
)

// ═══════════════════════════════════════════════════════════
// 查询
// ═══════════════════════════════════════════════════════════

func (s *timetableService) GetClassTimetable(ctx context.Context, classID uint) ([]dto.EntryResponse, error) {
	_, err := s.repo.Class.GetByID(ctx, classID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		s.logger.Error("查询班级失败", zap.Uint("class_id", classID), zap.Error(err))
		return nil, err
	}

	entries, err := s.repo.TimetableEntry.ListByClass(ctx, classID)
	if err != nil {
		s.logger.Error("查询班级课表失败", zap.Uint("class_id", classID), zap.Error(err))
		return nil, err
	}

	// 空课表返回 []，不返回 null
	resp := make([]dto.EntryResponse, 0, len(entries))
	for i := range entries {
		resp = append(resp, toEntryResponse(&entries[i]))
	}
	return resp, nil
}

// ═══════════════════════════════════════════════════════════
// 编辑
// ═══════════════════════════════════════════════════════════

func (s *timetableService) UpdateEntry(ctx context.Context, id uint, req *dto.UpdateEntryRequest, caller *dto.Caller) (*dto.UpdateEntryResult, error) {
	entry, err := s.getEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.Version != req.Version {
		s.metrics.EntryUpdate(editVersionConflict)
		return nil, &pkgerrors.VersionConflictError{EntityID: id, ExpectedVersion: req.Version, CurrentVersion: entry.Version}
	}

	patched := *entry
	if req.SubjectID != nil {
		if err := s.mustExist(ctx, "subject", *req.SubjectID); err != nil {
			return nil, err
		}
		patched.SubjectID = *req.SubjectID
	}
	if req.TeacherID != nil {
		if err := s.mustExist(ctx, "teacher", *req.TeacherID); err != nil {
			return nil, err
		}
		patched.TeacherID = *req.TeacherID
	}
	if req.RoomID.Set {
		if req.RoomID.Value != nil {
			if err := s.mustExist(ctx, "room", *req.RoomID.Value); err != nil {
				return nil, err
			}
		}
		patched.RoomID = req.RoomID.Value
	}

	soft, err := s.check(ctx, &patched, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.TimetableEntry.UpdateWithVersion(ctx, &patched, req.Version); err != nil {
		return nil, s.entryWriteError(ctx, id, req.Version, err)
	}
	s.metrics.EntryUpdate(editOK)

	writeAudit(ctx, s.repo, s.logger, caller, "timetable_entry_updated", "timetable_entry", id, map[string]interface{}{
		"class_id":    patched.ClassID,
		"subject_id":  patched.SubjectID,
		"teacher_id":  patched.TeacherID,
		"room_id":     patched.RoomID,
		"old_version": req.Version,
		"new_version": req.Version + 1,
	})

	updated, err := s.getEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.UpdateEntryResult{EntryResponse: toEntryResponse(updated), Warnings: soft}, nil
}

func (s *timetableService) CreateEntry(ctx context.Context, req *dto.CreateEntryRequest, caller *dto.Caller) (*dto.UpdateEntryResult, error) {
	if !s.loader.Grid().Contains(req.Weekday, req.IndexInDay) {
		return nil, ErrInvalidSlot
	}
	if err := s.mustExist(ctx, "class", req.ClassID); err != nil {
		return nil, err
	}
	if err := s.mustExist(ctx, "subject", req.SubjectID); err != nil {
		return nil, err
	}
	if err := s.mustExist(ctx, "teacher", req.TeacherID); err != nil {
		return nil, err
	}
	if req.RoomID != nil && *req.RoomID != 0 {
		if err := s.mustExist(ctx, "room", *req.RoomID); err != nil {
			return nil, err
		}
	}

	entry := &model.TimetableEntry{
		ClassID:    req.ClassID,
		SubjectID:  req.SubjectID,
		TeacherID:  req.TeacherID,
		Weekday:    req.Weekday,
		IndexInDay: req.IndexInDay,
	}
	if req.RoomID != nil && *req.RoomID != 0 {
		entry.RoomID = req.RoomID
	}

	soft, err := s.check(ctx, entry, 0)
	if err != nil {
		return nil, err
	}
	if err := s.repo.TimetableEntry.Create(ctx, entry); err != nil {
		if v, ok := uniqueViolation(err); ok {
			return nil, v
		}
		s.logger.Error("创建课表条目失败", zap.Error(err))
		return nil, err
	}

	writeAudit(ctx, s.repo, s.logger, caller, "timetable_entry_created", "timetable_entry", entry.ID, map[string]interface{}{
		"class_id":     entry.ClassID,
		"subject_id":   entry.SubjectID,
		"teacher_id":   entry.TeacherID,
		"room_id":      entry.RoomID,
		"weekday":      entry.Weekday,
		"index_in_day": entry.IndexInDay,
	})

	created, err := s.getEntry(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	return &dto.UpdateEntryResult{EntryResponse: toEntryResponse(created), Warnings: soft}, nil
}

func (s *timetableService) DeleteClassTimetable(ctx context.Context, classID uint, caller *dto.Caller) (*dto.DeleteTimetableResponse, error) {
	if _, err := s.repo.Class.GetByID(ctx, classID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		s.logger.Error("查询班级失败", zap.Uint("class_id", classID), zap.Error(err))
		return nil, err
	}

	deleted, err := s.repo.TimetableEntry.DeleteByClass(ctx, classID)
	if err != nil {
		s.logger.Error("删除班级课表失败", zap.Uint("class_id", classID), zap.Error(err))
		return nil, err
	}

	writeAudit(ctx, s.repo, s.logger, caller, "timetable_deleted", "class", classID, map[string]interface{}{
		"deleted": deleted,
	})
	s.logger.Info("已删除班级课表", zap.Uint("class_id", classID), zap.Int64("deleted", deleted))
	return &dto.DeleteTimetableResponse{Deleted: deleted}, nil
}

// ═══════════════════════════════════════════════════════════
// 统计
// ═══════════════════════════════════════════════════════════

func (s *timetableService) Stats(ctx context.Context) (*dto.StatsResponse, error) {
	classes, err := s.repo.Class.List(ctx)
	if err != nil {
		s.logger.Error("统计班级失败", zap.Error(err))
		return nil, err
	}
	entries, err := s.repo.TimetableEntry.ListAll(ctx)
	if err != nil {
		s.logger.Error("统计课表条目失败", zap.Error(err))
		return nil, err
	}
	curricula, err := s.repo.Curriculum.List(ctx, nil)
	if err != nil {
		s.logger.Error("统计教学计划失败", zap.Error(err))
		return nil, err
	}
	rooms, err := s.repo.Room.List(ctx)
	if err != nil {
		s.logger.Error("统计教室失败", zap.Error(err))
		return nil, err
	}
	teachers, err := s.repo.Teacher.List(ctx)
	if err != nil {
		s.logger.Error("统计教师失败", zap.Error(err))
		return nil, err
	}
	byStatus, err := s.repo.Job.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("统计生成任务失败", zap.Error(err))
		return nil, err
	}
	latest, err := s.repo.Job.LatestFinishedPerClass(ctx)
	if err != nil {
		s.logger.Error("统计最近任务失败", zap.Error(err))
		return nil, err
	}

	resp := &dto.StatsResponse{
		Classes:      int64(len(classes)),
		Entries:      int64(len(entries)),
		JobsByStatus: make(map[string]int64, 4),
	}
	for _, st := range []model.JobStatus{model.JobQueued, model.JobRunning, model.JobSucceeded, model.JobFailed} {
		resp.JobsByStatus[string(st)] = byStatus[st]
	}

	var withRoom int64
	for _, e := range entries {
		if e.RoomID == nil {
			resp.EntriesWithoutRoom++
		} else {
			withRoom++
		}
	}
	for _, c := range curricula {
		resp.RequiredHours += int64(c.HoursPerWeek)
	}
	resp.ScheduledHours = resp.Entries
	resp.Coverage = ratio(resp.ScheduledHours, resp.RequiredHours)
	for _, j := range latest {
		resp.UnsatisfiedUnits += int64(j.UnsatisfiedUnits)
	}

	size := int64(s.loader.Grid().Size())
	resp.RoomUtilization = ratio(withRoom, int64(len(rooms))*size)
	resp.TeacherUtilization = ratio(resp.Entries, int64(len(teachers))*size)
	return resp, nil
}

// ── 内部辅助方法 ──

// check 以 CollectAll 模式校验放置，存在硬约束违规时返回 ViolationError，否则返回软约束告警
func (s *timetableService) check(ctx context.Context, e *model.TimetableEntry, exclude uint) ([]constraint.Violation, error) {
	st, err := s.loader.State(ctx, e.ClassID)
	if err != nil {
		if errors.Is(err, snapshot.ErrClassMissing) {
			return nil, ErrInvalidReference
		}
		s.logger.Error("加载排课状态失败", zap.Uint("class_id", e.ClassID), zap.Error(err))
		return nil, err
	}

	checker := constraint.NewChecker(st, s.checkOpts)
	vs := checker.Check(constraint.Placement{
		ClassID:        e.ClassID,
		SubjectID:      e.SubjectID,
		TeacherID:      e.TeacherID,
		RoomID:         e.RoomID,
		Slot:           constraint.Slot{Weekday: e.Weekday, Index: e.IndexInDay},
		ExcludeEntryID: exclude,
	}, constraint.CollectAll)

	if hard := constraint.Hard(vs); len(hard) > 0 {
		s.metrics.EntryUpdate(editViolation)
		return nil, &constraint.ViolationError{Violations: hard}
	}
	return constraint.Soft(vs), nil
}

// entryWriteError 转换条目写入错误：乐观锁未命中重新读取当前版本，唯一索引冲突转为约束违规
func (s *timetableService) entryWriteError(ctx context.Context, id uint, expected int, err error) error {
	if errors.Is(err, pkgerrors.ErrOptimisticLock) {
		s.metrics.EntryUpdate(editVersionConflict)
		current, getErr := s.getEntry(ctx, id)
		if getErr != nil {
			return getErr
		}
		return &pkgerrors.VersionConflictError{EntityID: id, ExpectedVersion: expected, CurrentVersion: current.Version}
	}
	if v, ok := uniqueViolation(err); ok {
		s.metrics.EntryUpdate(editViolation)
		return v
	}
	s.metrics.EntryUpdate(editError)
	s.logger.Error("更新课表条目失败", zap.Uint("id", id), zap.Error(err))
	return err
}

// uniqueViolation 将唯一索引冲突映射为对应的占用规则
func uniqueViolation(err error) (*constraint.ViolationError, bool) {
	if !errors.Is(err, pkgerrors.ErrDuplicate) {
		return nil, false
	}
	rule, msg := constraint.RuleClassFree, "班级在该节次已有课程"
	var ce *pkgerrors.ConstraintError
	if errors.As(err, &ce) {
		switch ce.Constraint {
		case "uq_entries_teacher_slot":
			rule, msg = constraint.RuleTeacherFree, "教师在该节次已有课程"
		case "uq_entries_room_slot":
			rule, msg = constraint.RuleRoomFree, "教室在该节次已被占用"
		}
	}
	return &constraint.ViolationError{Violations: []constraint.Violation{{Rule: rule, Message: msg}}}, true
}

func (s *timetableService) getEntry(ctx context.Context, id uint) (*model.TimetableEntry, error) {
	entry, err := s.repo.TimetableEntry.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		s.logger.Error("查询课表条目失败", zap.Uint("id", id), zap.Error(err))
		return nil, err
	}
	return entry, nil
}

// mustExist 引用的记录不存在时返回 ErrInvalidReference
func (s *timetableService) mustExist(ctx context.Context, resource string, id uint) error {
	var err error
	switch resource {
	case "class":
		_, err = s.repo.Class.GetByID(ctx, id)
	case "subject":
		_, err = s.repo.Subject.GetByID(ctx, id)
	case "teacher":
		_, err = s.repo.Teacher.GetByID(ctx, id)
	case "room":
		_, err = s.repo.Room.GetByID(ctx, id)
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInvalidReference
	}
	s.logger.Error("查询引用记录失败", zap.String("resource", resource), zap.Uint("id", id), zap.Error(err))
	return err
}

func ratio(num, den int64) float64 {
	if den <= 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func toEntryResponse(e *model.TimetableEntry) dto.EntryResponse {
	resp := dto.EntryResponse{
		ID:         e.ID,
		ClassID:    e.ClassID,
		SubjectID:  e.SubjectID,
		TeacherID:  e.TeacherID,
		RoomID:     e.RoomID,
		Weekday:    e.Weekday,
		IndexInDay: e.IndexInDay,
		Version:    e.Version,
	}
	if e.Subject != nil {
		resp.SubjectName = e.Subject.Name
	}
	if e.Teacher != nil {
		resp.TeacherName = e.Teacher.Name
	}
	if e.Room != nil {
		resp.RoomName = e.Room.Name
	}
	return resp
}
