package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/RaduRoibu23/timetable-distributed-system/internal/model"
)

// AvailabilityRepository 教师/教室可用性数据访问接口
type AvailabilityRepository interface {
	UpsertTeacher(ctx context.Context, a *model.TeacherAvailability) error
	UpsertRoom(ctx context.Context, a *model.RoomAvailability) error
	ListTeacher(ctx context.Context, teacherID uint) ([]model.TeacherAvailability, error)
	ListRoom(ctx context.Context, roomID uint) ([]model.RoomAvailability, error)
	// ListTeacherUnavailable 全部 available=false 的教师记录
	ListTeacherUnavailable(ctx context.Context) ([]model.TeacherAvailability, error)
	// ListRoomUnavailable 全部 available=false 的教室记录
	ListRoomUnavailable(ctx context.Context) ([]model.RoomAvailability, error)
}

type availabilityRepo struct {
	db *gorm.DB
}

// NewAvailabilityRepo 创建 AvailabilityRepository 实例
func NewAvailabilityRepo(db *gorm.DB) AvailabilityRepository {
	return &availabilityRepo{db: db}
}

// UpsertTeacher 按 (teacher_id, weekday, index_in_day) 插入或更新
func (r *availabilityRepo) UpsertTeacher(ctx context.Context, a *model.TeacherAvailability) error {
	return translateError(r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "teacher_id"}, {Name: "weekday"}, {Name: "index_in_day"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"available": a.Available, "updated_at": gorm.Expr("NOW()")}),
		}).
		Create(a).Error)
}

// UpsertRoom 按 (room_id, weekday, index_in_day) 插入或更新
func (r *availabilityRepo) UpsertRoom(ctx context.Context, a *model.RoomAvailability) error {
	return translateError(r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}, {Name: "weekday"}, {Name: "index_in_day"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"available": a.Available, "updated_at": gorm.Expr("NOW()")}),
		}).
		Create(a).Error)
}

func (r *availabilityRepo) ListTeacher(ctx context.Context, teacherID uint) ([]model.TeacherAvailability, error) {
	var list []model.TeacherAvailability
	err := r.db.WithContext(ctx).
		Where("teacher_id = ?", teacherID).
		Order("weekday ASC, index_in_day ASC").
		Find(&list).Error
	return list, err
}

func (r *availabilityRepo) ListRoom(ctx context.Context, roomID uint) ([]model.RoomAvailability, error) {
	var list []model.RoomAvailability
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("weekday ASC, index_in_day ASC").
		Find(&list).Error
	return list, err
}

func (r *availabilityRepo) ListTeacherUnavailable(ctx context.Context) ([]model.TeacherAvailability, error) {
	var list []model.TeacherAvailability
	err := r.db.WithContext(ctx).
		Where("available = ?", false).
		Order("teacher_id ASC, weekday ASC, index_in_day ASC").
		Find(&list).Error
	return list, err
}

func (r *availabilityRepo) ListRoomUnavailable(ctx context.Context) ([]model.RoomAvailability, error) {
	var list []model.RoomAvailability
	err := r.db.WithContext(ctx).
		Where("available = ?", false).
		Order("room_id ASC, weekday ASC, index_in_day ASC").
		Find(&list).Error
	return list, err
}
