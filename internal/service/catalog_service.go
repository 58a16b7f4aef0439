package service

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/RaduRoibu23/timetable-distributed-system/config"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/dto"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/model"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/repository"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/snapshot"
	pkgerrors "github.com/RaduRoibu23/timetable-distributed-system/pkg/errors"
)

// CatalogService 基础数据（班级、科目、教室、教师、教学计划、节次）业务接口
type CatalogService interface {
	ListClasses(ctx context.Context) ([]dto.ClassResponse, error)
	GetClass(ctx context.Context, id uint) (*dto.ClassResponse, error)
	CreateClass(ctx context.Context, req *dto.CreateClassRequest) (*dto.ClassResponse, error)
	UpdateClass(ctx context.Context, id uint, req *dto.UpdateClassRequest) (*dto.ClassResponse, error)
	DeleteClass(ctx context.Context, id uint) error

	ListSubjects(ctx context.Context) ([]dto.SubjectResponse, error)
	GetSubject(ctx context.Context, id uint) (*dto.SubjectResponse, error)
	CreateSubject(ctx context.Context, req *dto.CreateSubjectRequest) (*dto.SubjectResponse, error)
	UpdateSubject(ctx context.Context, id uint, req *dto.UpdateSubjectRequest) (*dto.SubjectResponse, error)
	DeleteSubject(ctx context.Context, id uint, cascade bool) error

	ListRooms(ctx context.Context) ([]dto.RoomResponse, error)
	GetRoom(ctx context.Context, id uint) (*dto.RoomResponse, error)
	CreateRoom(ctx context.Context, req *dto.CreateRoomRequest) (*dto.RoomResponse, error)
	UpdateRoom(ctx context.Context, id uint, req *dto.UpdateRoomRequest) (*dto.RoomResponse, error)
	DeleteRoom(ctx context.Context, id uint, cascade bool) error

	ListTeachers(ctx context.Context) ([]dto.TeacherResponse, error)
	GetTeacher(ctx context.Context, id uint) (*dto.TeacherResponse, error)
	CreateTeacher(ctx context.Context, req *dto.CreateTeacherRequest) (*dto.TeacherResponse, error)
	UpdateTeacher(ctx context.Context, id uint, req *dto.UpdateTeacherRequest) (*dto.TeacherResponse, error)
	DeleteTeacher(ctx context.Context, id uint, cascade bool) error

	ListCurricula(ctx context.Context, req *dto.CurriculumListRequest) ([]dto.CurriculumResponse, error)
	GetCurriculum(ctx context.Context, id uint) (*dto.CurriculumResponse, error)
	CreateCurriculum(ctx context.Context, req *dto.CreateCurriculumRequest) (*dto.CurriculumResponse, error)
	UpdateCurriculum(ctx context.Context, id uint, req *dto.UpdateCurriculumRequest) (*dto.CurriculumResponse, error)
	DeleteCurriculum(ctx context.Context, id uint) error

	ListTimeSlots(ctx context.Context) ([]dto.TimeSlotResponse, error)
}

type catalogService struct {
	repo         *repository.Repository
	grid         snapshot.Grid
	deletePolicy string
	logger       *zap.Logger
}

// NewCatalogService 创建 CatalogService 实例
func NewCatalogService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) CatalogService {
	return &catalogService{
		repo:         repo,
		grid:         snapshot.NewGrid(&cfg.Scheduler),
		deletePolicy: cfg.Catalog.DeletePolicy,
		logger:       logger,
	}
}

// ────────────────────── Class ──────────────────────

func (s *catalogService) ListClasses(ctx context.Context) ([]dto.ClassResponse, error) {
	classes, err := s.repo.Class.List(ctx)
	if err != nil {
		s.logger.Error("列出班级失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.ClassResponse, 0, len(classes))
	for i := range classes {
		result = append(result, toClassResponse(&classes[i]))
	}
	return result, nil
}

func (s *catalogService) GetClass(ctx context.Context, id uint) (*dto.ClassResponse, error) {
	class, err := s.getClass(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toClassResponse(class)
	return &resp, nil
}

func (s *catalogService) CreateClass(ctx context.Context, req *dto.CreateClassRequest) (*dto.ClassResponse, error) {
	class := &model.SchoolClass{Name: req.Name, Size: req.Size}
	if err := s.repo.Class.Create(ctx, class); err != nil {
		return nil, s.writeError("创建班级失败", err)
	}
	resp := toClassResponse(class)
	return &resp, nil
}

func (s *catalogService) UpdateClass(ctx context.Context, id uint, req *dto.UpdateClassRequest) (*dto.ClassResponse, error) {
	class, err := s.getClass(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		class.Name = *req.Name
	}
	if req.Size != nil {
		class.Size = *req.Size
	}
	if err := s.repo.Class.Update(ctx, class); err != nil {
		return nil, s.writeError("更新班级失败", err)
	}
	resp := toClassResponse(class)
	return &resp, nil
}

// DeleteClass 删除班级及其课表；教学计划随外键级联删除，生成任务作为历史保留
func (s *catalogService) DeleteClass(ctx context.Context, id uint) error {
	if _, err := s.getClass(ctx, id); err != nil {
		return err
	}
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := tx.TimetableEntry.DeleteByClass(ctx, id); err != nil {
			return err
		}
		return tx.Class.Delete(ctx, id)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrClassNotFound
		}
		s.logger.Error("删除班级失败", zap.Uint("id", id), zap.Error(err))
		return err
	}
	return nil
}

func (s *catalogService) getClass(ctx context.Context, id uint) (*model.SchoolClass, error) {
	class, err := s.repo.Class.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		s.logger.Error("查询班级失败", zap.Uint("id", id), zap.Error(err))
		return nil, err
	}
	return class, nil
}

// ────────────────────── Subject ──────────────────────

func (s *catalogService) ListSubjects(ctx context.Context) ([]dto.SubjectResponse, error) {
	subjects, err := s.repo.Subject.List(ctx)
	if err != nil {
		s.logger.Error("列出科目失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.SubjectResponse, 0, len(subjects))
	for i := range subjects {
		result = append(result, toSubjectResponse(&subjects[i]))
	}
	return result, nil
}

func (s *catalogService) GetSubject(ctx context.Context, id uint) (*dto.SubjectResponse, error) {
	subject, err := s.getSubject(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toSubjectResponse(subject)
	return &resp, nil
}

func (s *catalogService) CreateSubject(ctx context.Context, req *dto.CreateSubjectRequest) (*dto.SubjectResponse, error) {
	subject := &model.Subject{Name: req.Name, ShortCode: req.ShortCode}
	if err := s.repo.Subject.Create(ctx, subject); err != nil {
		return nil, s.writeError("创建科目失败", err)
	}
	resp := toSubjectResponse(subject)
	return &resp, nil
}

func (s *catalogService) UpdateSubject(ctx context.Context, id uint, req *dto.UpdateSubjectRequest) (*dto.SubjectResponse, error) {
	subject, err := s.getSubject(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		subject.Name = *req.Name
	}
	if req.ShortCode != nil {
		subject.ShortCode = *req.ShortCode
	}
	if err := s.repo.Subject.Update(ctx, subject); err != nil {
		return nil, s.writeError("更新科目失败", err)
	}
	resp := toSubjectResponse(subject)
	return &resp, nil
}

func (s *catalogService) DeleteSubject(ctx context.Context, id uint, cascade bool) error {
	if _, err := s.getSubject(ctx, id); err != nil {
		return err
	}
	return s.deleteReferenced(ctx, "subject", id, cascade, s.repo.TimetableEntry.CountBySubject,
		func(tx *repository.Repository) error {
			if _, err := tx.TimetableEntry.DeleteBySubject(ctx, id); err != nil {
				return err
			}
			return tx.Subject.Delete(ctx, id)
		})
}

func (s *catalogService) getSubject(ctx context.Context, id uint) (*model.Subject, error) {
	subject, err := s.repo.Subject.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubjectNotFound
		}
		s.logger.Error("查询科目失败", zap.Uint("id", id), zap.Error(err))
		return nil, err
	}
	return subject, nil
}

// ────────────────────── Room ──────────────────────

func (s *catalogService) ListRooms(ctx context.Context) ([]dto.RoomResponse, error) {
	rooms, err := s.repo.Room.List(ctx)
	if err != nil {
		s.logger.Error("列出教室失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.RoomResponse, 0, len(rooms))
	for i := range rooms {
		result = append(result, toRoomResponse(&rooms[i]))
	}
	return result, nil
}

func (s *catalogService) GetRoom(ctx context.Context, id uint) (*dto.RoomResponse, error) {
	room, err := s.getRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toRoomResponse(room)
	return &resp, nil
}

func (s *catalogService) CreateRoom(ctx context.Context, req *dto.CreateRoomRequest) (*dto.RoomResponse, error) {
	room := &model.Room{Name: req.Name, Capacity: req.Capacity}
	if err := s.repo.Room.Create(ctx, room); err != nil {
		return nil, s.writeError("创建教室失败", err)
	}
	resp := toRoomResponse(room)
	return &resp, nil
}

func (s *catalogService) UpdateRoom(ctx context.Context, id uint, req *dto.UpdateRoomRequest) (*dto.RoomResponse, error) {
	room, err := s.getRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		room.Name = *req.Name
	}
	if req.Capacity != nil {
		room.Capacity = *req.Capacity
	}
	if err := s.repo.Room.Update(ctx, room); err != nil {
		return nil, s.writeError("更新教室失败", err)
	}
	resp := toRoomResponse(room)
	return &resp, nil
}

// DeleteRoom 级联时引用该教室的条目改为无教室，而不是删除
func (s *catalogService) DeleteRoom(ctx context.Context, id uint, cascade bool) error {
	if _, err := s.getRoom(ctx, id); err != nil {
		return err
	}
	return s.deleteReferenced(ctx, "room", id, cascade, s.repo.TimetableEntry.CountByRoom,
		func(tx *repository.Repository) error {
			if _, err := tx.TimetableEntry.DetachRoom(ctx, id); err != nil {
				return err
			}
			return tx.Room.Delete(ctx, id)
		})
}

func (s *catalogService) getRoom(ctx context.Context, id uint) (*model.Room, error) {
	room, err := s.repo.Room.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		s.logger.Error("查询教室失败", zap.Uint("id", id), zap.Error(err))
		return nil, err
	}
	return room, nil
}

// ────────────────────── Teacher ──────────────────────

func (s *catalogService) ListTeachers(ctx context.Context) ([]dto.TeacherResponse, error) {
	teachers, err := s.repo.Teacher.List(ctx)
	if err != nil {
		s.logger.Error("列出教师失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.TeacherResponse, 0, len(teachers))
	for i := range teachers {
		result = append(result, toTeacherResponse(&teachers[i]))
	}
	return result, nil
}

func (s *catalogService) GetTeacher(ctx context.Context, id uint) (*dto.TeacherResponse, error) {
	teacher, err := s.getTeacher(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toTeacherResponse(teacher)
	return &resp, nil
}

func (s *catalogService) CreateTeacher(ctx context.Context, req *dto.CreateTeacherRequest) (*dto.TeacherResponse, error) {
	subjectIDs, err := s.checkSubjects(ctx, req.SubjectIDs)
	if err != nil {
		return nil, err
	}

	teacher := &model.Teacher{Name: req.Name, ExternalID: emptyToNil(req.ExternalID)}
	if err := s.repo.Teacher.Create(ctx, teacher, subjectIDs); err != nil {
		return nil, s.writeError("创建教师失败", err)
	}
	return s.GetTeacher(ctx, teacher.ID)
}

func (s *catalogService) UpdateTeacher(ctx context.Context, id uint, req *dto.UpdateTeacherRequest) (*dto.TeacherResponse, error) {
	teacher, err := s.getTeacher(ctx, id)
	if err != nil {
		return nil, err
	}

	var subjectIDs []uint
	if req.SubjectIDs != nil {
		if subjectIDs, err = s.checkSubjects(ctx, *req.SubjectIDs); err != nil {
			return nil, err
		}
	}
	if req.Name != nil {
		teacher.Name = *req.Name
	}
	if req.ExternalID != nil {
		teacher.ExternalID = emptyToNil(req.ExternalID)
	}

	if err := s.repo.Teacher.Update(ctx, teacher, subjectIDs); err != nil {
		return nil, s.writeError("更新教师失败", err)
	}
	return s.GetTeacher(ctx, id)
}

func (s *catalogService) DeleteTeacher(ctx context.Context, id uint, cascade bool) error {
	if _, err := s.getTeacher(ctx, id); err != nil {
		return err
	}
	return s.deleteReferenced(ctx, "teacher", id, cascade, s.repo.TimetableEntry.CountByTeacher,
		func(tx *repository.Repository) error {
			if _, err := tx.TimetableEntry.DeleteByTeacher(ctx, id); err != nil {
				return err
			}
			return tx.Teacher.Delete(ctx, id)
		})
}

func (s *catalogService) getTeacher(ctx context.Context, id uint) (*model.Teacher, error) {
	teacher, err := s.repo.Teacher.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTeacherNotFound
		}
		s.logger.Error("查询教师失败", zap.Uint("id", id), zap.Error(err))
		return nil, err
	}
	return teacher, nil
}

// checkSubjects 去重并确认科目均存在；返回非 nil 切片以便清空科目
func (s *catalogService) checkSubjects(ctx context.Context, ids []uint) ([]uint, error) {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := s.getSubject(ctx, id); err != nil {
			if errors.Is(err, ErrSubjectNotFound) {
				return nil, ErrInvalidReference
			}
			return nil, err
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// ────────────────────── Curriculum ──────────────────────

func (s *catalogService) ListCurricula(ctx context.Context, req *dto.CurriculumListRequest) ([]dto.CurriculumResponse, error) {
	curricula, err := s.repo.Curriculum.List(ctx, req.ClassID)
	if err != nil {
		s.logger.Error("列出教学计划失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.CurriculumResponse, 0, len(curricula))
	for i := range curricula {
		result = append(result, toCurriculumResponse(&curricula[i]))
	}
	return result, nil
}

func (s *catalogService) GetCurriculum(ctx context.Context, id uint) (*dto.CurriculumResponse, error) {
	c, err := s.getCurriculum(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toCurriculumResponse(c)
	return &resp, nil
}

func (s *catalogService) CreateCurriculum(ctx context.Context, req *dto.CreateCurriculumRequest) (*dto.CurriculumResponse, error) {
	if _, err := s.getClass(ctx, req.ClassID); err != nil {
		if errors.Is(err, ErrClassNotFound) {
			return nil, ErrInvalidReference
		}
		return nil, err
	}
	subject, err := s.getSubject(ctx, req.SubjectID)
	if err != nil {
		if errors.Is(err, ErrSubjectNotFound) {
			return nil, ErrInvalidReference
		}
		return nil, err
	}

	c := &model.Curriculum{ClassID: req.ClassID, SubjectID: req.SubjectID, HoursPerWeek: req.HoursPerWeek}
	if err := s.repo.Curriculum.Create(ctx, c); err != nil {
		return nil, s.writeError("创建教学计划失败", err)
	}
	c.Subject = subject
	resp := toCurriculumResponse(c)
	return &resp, nil
}

func (s *catalogService) UpdateCurriculum(ctx context.Context, id uint, req *dto.UpdateCurriculumRequest) (*dto.CurriculumResponse, error) {
	c, err := s.getCurriculum(ctx, id)
	if err != nil {
		return nil, err
	}
	c.HoursPerWeek = req.HoursPerWeek
	if err := s.repo.Curriculum.Update(ctx, c); err != nil {
		return nil, s.writeError("更新教学计划失败", err)
	}
	resp := toCurriculumResponse(c)
	return &resp, nil
}

func (s *catalogService) DeleteCurriculum(ctx context.Context, id uint) error {
	if err := s.repo.Curriculum.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCurriculumNotFound
		}
		s.logger.Error("删除教学计划失败", zap.Uint("id", id), zap.Error(err))
		return err
	}
	return nil
}

func (s *catalogService) getCurriculum(ctx context.Context, id uint) (*model.Curriculum, error) {
	c, err := s.repo.Curriculum.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCurriculumNotFound
		}
		s.logger.Error("查询教学计划失败", zap.Uint("id", id), zap.Error(err))
		return nil, err
	}
	return c, nil
}

// ────────────────────── TimeSlot ──────────────────────

func (s *catalogService) ListTimeSlots(ctx context.Context) ([]dto.TimeSlotResponse, error) {
	stored, err := s.repo.TimeSlot.List(ctx, s.grid.Days, s.grid.PerDay)
	if err != nil {
		s.logger.Error("列出节次失败", zap.Error(err))
		return nil, err
	}
	slots := s.grid.TimeSlots(stored)
	result := make([]dto.TimeSlotResponse, 0, len(slots))
	for _, ts := range slots {
		result = append(result, dto.TimeSlotResponse{
			ID:         ts.ID,
			Weekday:    ts.Weekday,
			IndexInDay: ts.IndexInDay,
			StartTime:  ts.StartTime,
			EndTime:    ts.EndTime,
		})
	}
	return result, nil
}

// ── 内部辅助方法 ──

// deleteReferenced 按删除策略处理被课表引用的资源
func (s *catalogService) deleteReferenced(
	ctx context.Context,
	resource string,
	id uint,
	cascade bool,
	count func(context.Context, uint) (int64, error),
	remove func(tx *repository.Repository) error,
) error {
	refs, err := count(ctx, id)
	if err != nil {
		s.logger.Error("统计引用失败", zap.String("resource", resource), zap.Uint("id", id), zap.Error(err))
		return err
	}

	cascadeAllowed := s.deletePolicy == config.DeletePolicyCascadeOnRequest
	if refs > 0 && !(cascade && cascadeAllowed) {
		return &InUseError{Resource: resource, ID: id, References: refs, CascadeAllowed: cascadeAllowed}
	}

	if err := s.repo.Transaction(ctx, remove); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundFor(resource)
		}
		s.logger.Error("删除失败", zap.String("resource", resource), zap.Uint("id", id), zap.Error(err))
		return err
	}
	if refs > 0 {
		s.logger.Info("级联删除完成", zap.String("resource", resource), zap.Uint("id", id), zap.Int64("entries", refs))
	}
	return nil
}

// writeError 将约束错误转换为业务错误，其余记录日志后原样返回
func (s *catalogService) writeError(msg string, err error) error {
	switch {
	case errors.Is(err, pkgerrors.ErrDuplicate):
		return ErrDuplicate
	case errors.Is(err, pkgerrors.ErrReferenceMissing):
		return ErrInvalidReference
	}
	s.logger.Error(msg, zap.Error(err))
	return err
}

func notFoundFor(resource string) error {
	switch resource {
	case "subject":
		return ErrSubjectNotFound
	case "room":
		return ErrRoomNotFound
	case "teacher":
		return ErrTeacherNotFound
	}
	return ErrClassNotFound
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

func toClassResponse(c *model.SchoolClass) dto.ClassResponse {
	return dto.ClassResponse{ID: c.ID, Name: c.Name, Size: c.Size}
}

func toSubjectResponse(s *model.Subject) dto.SubjectResponse {
	return dto.SubjectResponse{ID: s.ID, Name: s.Name, ShortCode: s.ShortCode}
}

func toRoomResponse(r *model.Room) dto.RoomResponse {
	return dto.RoomResponse{ID: r.ID, Name: r.Name, Capacity: r.Capacity}
}

func toTeacherResponse(t *model.Teacher) dto.TeacherResponse {
	subjects := make([]dto.SubjectResponse, 0, len(t.Subjects))
	for i := range t.Subjects {
		subjects = append(subjects, toSubjectResponse(&t.Subjects[i]))
	}
	return dto.TeacherResponse{
		ID:         t.ID,
		Name:       t.Name,
		ExternalID: t.ExternalID,
		SubjectIDs: t.SubjectIDs(),
		Subjects:   subjects,
	}
}

func toCurriculumResponse(c *model.Curriculum) dto.CurriculumResponse {
	resp := dto.CurriculumResponse{
		ID:           c.ID,
		ClassID:      c.ClassID,
		SubjectID:    c.SubjectID,
		HoursPerWeek: c.HoursPerWeek,
	}
	if c.Subject != nil {
		resp.SubjectName = c.Subject.Name
	}
	return resp
}
