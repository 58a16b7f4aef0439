package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/RaduRoibu23/timetable-distributed-system/internal/model"
)

// CurriculumRepository 教学计划数据访问接口
type CurriculumRepository interface {
	Create(ctx context.Context, c *model.Curriculum) error
	GetByID(ctx context.Context, id uint) (*model.Curriculum, error)
	// List classID 为 nil 时返回全部
	List(ctx context.Context, classID *uint) ([]model.Curriculum, error)
	Update(ctx context.Context, c *model.Curriculum) error
	Delete(ctx context.Context, id uint) error
}

type curriculumRepo struct {
	db *gorm.DB
}

// NewCurriculumRepo 创建 CurriculumRepository 实例
func NewCurriculumRepo(db *gorm.DB) CurriculumRepository {
	return &curriculumRepo{db: db}
}

func (r *curriculumRepo) Create(ctx context.Context, c *model.Curriculum) error {
	return translateError(r.db.WithContext(ctx).Omit("Class", "Subject").Create(c).Error)
}

func (r *curriculumRepo) GetByID(ctx context.Context, id uint) (*model.Curriculum, error) {
	var c model.Curriculum
	err := r.db.WithContext(ctx).
		Preload("Subject").
		First(&c, id).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *curriculumRepo) List(ctx context.Context, classID *uint) ([]model.Curriculum, error) {
	var list []model.Curriculum
	db := r.db.WithContext(ctx).Preload("Subject")
	if classID != nil {
		db = db.Where("class_id = ?", *classID)
	}
	err := db.Order("class_id ASC, subject_id ASC").Find(&list).Error
	return list, err
}

func (r *curriculumRepo) Update(ctx context.Context, c *model.Curriculum) error {
	return translateError(r.db.WithContext(ctx).
		Model(c).
		Updates(map[string]interface{}{
			"hours_per_week": c.HoursPerWeek,
			"updated_at":     gorm.Expr("NOW()"),
		}).Error)
}

func (r *curriculumRepo) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&model.Curriculum{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
