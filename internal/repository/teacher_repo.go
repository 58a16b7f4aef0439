package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/RaduRoibu23/timetable-distributed-system/internal/model"
)

// TeacherRepository 教师数据访问接口
type TeacherRepository interface {
	Create(ctx context.Context, teacher *model.Teacher, subjectIDs []uint) error
	GetByID(ctx context.Context, id uint) (*model.Teacher, error)
	GetByExternalID(ctx context.Context, externalID string) (*model.Teacher, error)
	List(ctx context.Context) ([]model.Teacher, error)
	Update(ctx context.Context, teacher *model.Teacher, subjectIDs []uint) error
	Delete(ctx context.Context, id uint) error
}

type teacherRepo struct {
	db *gorm.DB
}

// NewTeacherRepo 创建 TeacherRepository 实例
func NewTeacherRepo(db *gorm.DB) TeacherRepository {
	return &teacherRepo{db: db}
}

func (r *teacherRepo) Create(ctx context.Context, teacher *model.Teacher, subjectIDs []uint) error {
	return translateError(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Subjects").Create(teacher).Error; err != nil {
			return err
		}
		return replaceTeacherSubjects(tx, teacher, subjectIDs)
	}))
}

func (r *teacherRepo) GetByID(ctx context.Context, id uint) (*model.Teacher, error) {
	var teacher model.Teacher
	err := r.db.WithContext(ctx).
		Preload("Subjects", func(db *gorm.DB) *gorm.DB { return db.Order("subjects.id ASC") }).
		First(&teacher, id).Error
	if err != nil {
		return nil, err
	}
	return &teacher, nil
}

func (r *teacherRepo) GetByExternalID(ctx context.Context, externalID string) (*model.Teacher, error) {
	var teacher model.Teacher
	err := r.db.WithContext(ctx).
		Where("external_id = ?", externalID).
		First(&teacher).Error
	if err != nil {
		return nil, err
	}
	return &teacher, nil
}

func (r *teacherRepo) List(ctx context.Context) ([]model.Teacher, error) {
	var teachers []model.Teacher
	err := r.db.WithContext(ctx).
		Preload("Subjects", func(db *gorm.DB) *gorm.DB { return db.Order("subjects.id ASC") }).
		Order("id ASC").
		Find(&teachers).Error
	return teachers, err
}

// Update 更新教师信息；subjectIDs 为 nil 时保留原有科目
func (r *teacherRepo) Update(ctx context.Context, teacher *model.Teacher, subjectIDs []uint) error {
	return translateError(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(teacher).
			Updates(map[string]interface{}{
				"name":        teacher.Name,
				"external_id": teacher.ExternalID,
				"updated_at":  gorm.Expr("NOW()"),
			}).Error
		if err != nil {
			return err
		}
		if subjectIDs == nil {
			return nil
		}
		return replaceTeacherSubjects(tx, teacher, subjectIDs)
	}))
}

func replaceTeacherSubjects(tx *gorm.DB, teacher *model.Teacher, subjectIDs []uint) error {
	subjects := make([]model.Subject, 0, len(subjectIDs))
	for _, id := range subjectIDs {
		subjects = append(subjects, model.Subject{ID: id})
	}
	if err := tx.Model(teacher).Association("Subjects").Replace(subjects); err != nil {
		return err
	}
	teacher.Subjects = subjects
	return nil
}

func (r *teacherRepo) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&model.Teacher{}, id)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
