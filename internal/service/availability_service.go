package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/RaduRoibu23/timetable-distributed-system/config"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/dto"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/model"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/repository"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/snapshot"
)

// AvailabilityService 教师与教室每周可用性业务接口
// 没有记录的节次视为可用
type AvailabilityService interface {
	ListTeacher(ctx context.Context, teacherID uint) ([]dto.AvailabilityResponse, error)
	SetTeacher(ctx context.Context, teacherID uint, req *dto.SetAvailabilityRequest, caller *dto.Caller) (*dto.AvailabilityResponse, error)
	ListRoom(ctx context.Context, roomID uint) ([]dto.AvailabilityResponse, error)
	SetRoom(ctx context.Context, roomID uint, req *dto.SetAvailabilityRequest) (*dto.AvailabilityResponse, error)
}

type availabilityService struct {
	repo   *repository.Repository
	grid   snapshot.Grid
	logger *zap.Logger
}

// NewAvailabilityService 创建 AvailabilityService 实例
func NewAvailabilityService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) AvailabilityService {
	return &availabilityService{repo: repo, grid: snapshot.NewGrid(&cfg.Scheduler), logger: logger}
}

// ────────────────────── Teacher ──────────────────────

func (s *availabilityService) ListTeacher(ctx context.Context, teacherID uint) ([]dto.AvailabilityResponse, error) {
	if _, err := s.getTeacher(ctx, teacherID); err != nil {
		return nil, err
	}
	list, err := s.repo.Availability.ListTeacher(ctx, teacherID)
	if err != nil {
		s.logger.Error("查询教师可用性失败", zap.Uint("teacher_id", teacherID), zap.Error(err))
		return nil, err
	}
	result := make([]dto.AvailabilityResponse, 0, len(list))
	for i := range list {
		result = append(result, toTeacherAvailabilityResponse(&list[i]))
	}
	return result, nil
}

// SetTeacher 仅持有 professor 角色的调用者只能修改自己的记录
func (s *availabilityService) SetTeacher(ctx context.Context, teacherID uint, req *dto.SetAvailabilityRequest, caller *dto.Caller) (*dto.AvailabilityResponse, error) {
	teacher, err := s.getTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if !caller.HasRole(model.RoleSecretariat, model.RoleAdmin) && !ownsTeacher(caller, teacher) {
		return nil, ErrForbidden
	}
	if !s.grid.Contains(req.Weekday, req.IndexInDay) {
		return nil, ErrInvalidSlot
	}

	a := &model.TeacherAvailability{
		TeacherID:  teacherID,
		Weekday:    req.Weekday,
		IndexInDay: req.IndexInDay,
		Available:  availableOrDefault(req.Available),
	}
	if err := s.repo.Availability.UpsertTeacher(ctx, a); err != nil {
		s.logger.Error("设置教师可用性失败", zap.Uint("teacher_id", teacherID), zap.Error(err))
		return nil, err
	}
	resp := toTeacherAvailabilityResponse(a)
	return &resp, nil
}

func (s *availabilityService) getTeacher(ctx context.Context, id uint) (*model.Teacher, error) {
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

// ────────────────────── Room ──────────────────────

func (s *availabilityService) ListRoom(ctx context.Context, roomID uint) ([]dto.AvailabilityResponse, error) {
	if err := s.checkRoom(ctx, roomID); err != nil {
		return nil, err
	}
	list, err := s.repo.Availability.ListRoom(ctx, roomID)
	if err != nil {
		s.logger.Error("查询教室可用性失败", zap.Uint("room_id", roomID), zap.Error(err))
		return nil, err
	}
	result := make([]dto.AvailabilityResponse, 0, len(list))
	for i := range list {
		result = append(result, toRoomAvailabilityResponse(&list[i]))
	}
	return result, nil
}

func (s *availabilityService) SetRoom(ctx context.Context, roomID uint, req *dto.SetAvailabilityRequest) (*dto.AvailabilityResponse, error) {
	if err := s.checkRoom(ctx, roomID); err != nil {
		return nil, err
	}
	if !s.grid.Contains(req.Weekday, req.IndexInDay) {
		return nil, ErrInvalidSlot
	}

	a := &model.RoomAvailability{
		RoomID:     roomID,
		Weekday:    req.Weekday,
		IndexInDay: req.IndexInDay,
		Available:  availableOrDefault(req.Available),
	}
	if err := s.repo.Availability.UpsertRoom(ctx, a); err != nil {
		s.logger.Error("设置教室可用性失败", zap.Uint("room_id", roomID), zap.Error(err))
		return nil, err
	}
	resp := toRoomAvailabilityResponse(a)
	return &resp, nil
}

func (s *availabilityService) checkRoom(ctx context.Context, id uint) error {
	if _, err := s.repo.Room.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoomNotFound
		}
		s.logger.Error("查询教室失败", zap.Uint("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ── 内部辅助方法 ──

// ownsTeacher 教师记录的 external_id 与 Token 的 sub 或用户名一致
func ownsTeacher(caller *dto.Caller, teacher *model.Teacher) bool {
	if caller == nil || !caller.HasRole(model.RoleProfessor) || teacher.ExternalID == nil {
		return false
	}
	ext := *teacher.ExternalID
	return ext != "" && (ext == caller.Subject || ext == caller.Username)
}

func availableOrDefault(v *bool) bool {
	if v == nil {
		return true
	}
	return *v
}

func toTeacherAvailabilityResponse(a *model.TeacherAvailability) dto.AvailabilityResponse {
	id := a.TeacherID
	return dto.AvailabilityResponse{
		ID:         a.ID,
		TeacherID:  &id,
		Weekday:    a.Weekday,
		IndexInDay: a.IndexInDay,
		Available:  a.Available,
	}
}

func toRoomAvailabilityResponse(a *model.RoomAvailability) dto.AvailabilityResponse {
	id := a.RoomID
	return dto.AvailabilityResponse{
		ID:         a.ID,
		RoomID:     &id,
		Weekday:    a.Weekday,
		IndexInDay: a.IndexInDay,
		Available:  a.Available,
	}
}
