package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/RaduRoibu23/timetable-distributed-system/internal/model"
	pkgerrors "github.com/RaduRoibu23/timetable-distributed-system/pkg/errors"
)

// TimetableEntryRepository 课表条目数据访问接口
type TimetableEntryRepository interface {
	Create(ctx context.Context, entry *model.TimetableEntry) error
	GetByID(ctx context.Context, id uint) (*model.TimetableEntry, error)
	ListByClass(ctx context.Context, classID uint) ([]model.TimetableEntry, error)
	ListAll(ctx context.Context) ([]model.TimetableEntry, error)
	// UpdateWithVersion 仅当当前版本等于 expectedVersion 时更新，成功后版本 +1
	UpdateWithVersion(ctx context.Context, entry *model.TimetableEntry, expectedVersion int) error
	// ReplaceForClass 在同一事务内删除班级全部条目并写入新条目
	ReplaceForClass(ctx context.Context, classID uint, entries []model.TimetableEntry) error
	// DeleteByClass 在同一事务内删除班级全部条目，返回删除条数
	DeleteByClass(ctx context.Context, classID uint) (int64, error)

	CountBySubject(ctx context.Context, subjectID uint) (int64, error)
	CountByTeacher(ctx context.Context, teacherID uint) (int64, error)
	CountByRoom(ctx context.Context, roomID uint) (int64, error)
	DeleteBySubject(ctx context.Context, subjectID uint) (int64, error)
	DeleteByTeacher(ctx context.Context, teacherID uint) (int64, error)
	// DetachRoom 将引用该教室的条目 room_id 置空，版本 +1
	DetachRoom(ctx context.Context, roomID uint) (int64, error)
}

type timetableEntryRepo struct {
	db *gorm.DB
}

// NewTimetableEntryRepo 创建 TimetableEntryRepository 实例
func NewTimetableEntryRepo(db *gorm.DB) TimetableEntryRepository {
	return &timetableEntryRepo{db: db}
}

func (r *timetableEntryRepo) Create(ctx context.Context, entry *model.TimetableEntry) error {
	if entry.Version == 0 {
		entry.Version = 1
	}
	return translateError(r.db.WithContext(ctx).Omit("Subject", "Room", "Teacher").Create(entry).Error)
}

func (r *timetableEntryRepo) GetByID(ctx context.Context, id uint) (*model.TimetableEntry, error) {
	var entry model.TimetableEntry
	err := r.db.WithContext(ctx).
		Preload("Subject").
		Preload("Room").
		Preload("Teacher").
		First(&entry, id).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *timetableEntryRepo) ListByClass(ctx context.Context, classID uint) ([]model.TimetableEntry, error) {
	var entries []model.TimetableEntry
	err := r.db.WithContext(ctx).
		Preload("Subject").
		Preload("Room").
		Preload("Teacher").
		Where("class_id = ?", classID).
		Order("weekday ASC, index_in_day ASC").
		Find(&entries).Error
	return entries, err
}

func (r *timetableEntryRepo) ListAll(ctx context.Context) ([]model.TimetableEntry, error) {
	var entries []model.TimetableEntry
	err := r.db.WithContext(ctx).
		Order("class_id ASC, weekday ASC, index_in_day ASC").
		Find(&entries).Error
	return entries, err
}

func (r *timetableEntryRepo) UpdateWithVersion(ctx context.Context, entry *model.TimetableEntry, expectedVersion int) error {
	result := r.db.WithContext(ctx).
		Model(&model.TimetableEntry{}).
		Where("id = ? AND version = ?", entry.ID, expectedVersion).
		Updates(map[string]interface{}{
			"subject_id": entry.SubjectID,
			"teacher_id": entry.TeacherID,
			"room_id":    entry.RoomID,
			"version":    expectedVersion + 1,
			"updated_at": gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	entry.Version = expectedVersion + 1
	return nil
}

func (r *timetableEntryRepo) ReplaceForClass(ctx context.Context, classID uint, entries []model.TimetableEntry) error {
	return translateError(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("class_id = ?", classID).Delete(&model.TimetableEntry{}).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		for i := range entries {
			entries[i].ClassID = classID
			entries[i].Version = 1
		}
		return tx.Omit("Subject", "Room", "Teacher").Create(&entries).Error
	}))
}

func (r *timetableEntryRepo) DeleteByClass(ctx context.Context, classID uint) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("class_id = ?", classID).Delete(&model.TimetableEntry{})
		deleted = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (r *timetableEntryRepo) count(ctx context.Context, column string, id uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.TimetableEntry{}).
		Where(column+" = ?", id).
		Count(&n).Error
	return n, err
}

func (r *timetableEntryRepo) CountBySubject(ctx context.Context, subjectID uint) (int64, error) {
	return r.count(ctx, "subject_id", subjectID)
}

func (r *timetableEntryRepo) CountByTeacher(ctx context.Context, teacherID uint) (int64, error) {
	return r.count(ctx, "teacher_id", teacherID)
}

func (r *timetableEntryRepo) CountByRoom(ctx context.Context, roomID uint) (int64, error) {
	return r.count(ctx, "room_id", roomID)
}

func (r *timetableEntryRepo) DeleteBySubject(ctx context.Context, subjectID uint) (int64, error) {
	result := r.db.WithContext(ctx).Where("subject_id = ?", subjectID).Delete(&model.TimetableEntry{})
	return result.RowsAffected, result.Error
}

func (r *timetableEntryRepo) DeleteByTeacher(ctx context.Context, teacherID uint) (int64, error) {
	result := r.db.WithContext(ctx).Where("teacher_id = ?", teacherID).Delete(&model.TimetableEntry{})
	return result.RowsAffected, result.Error
}

func (r *timetableEntryRepo) DetachRoom(ctx context.Context, roomID uint) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.TimetableEntry{}).
		Where("room_id = ?", roomID).
		Updates(map[string]interface{}{
			"room_id":    nil,
			"version":    gorm.Expr("version + 1"),
			"updated_at": gorm.Expr("NOW()"),
		})
	return result.RowsAffected, result.Error
}
