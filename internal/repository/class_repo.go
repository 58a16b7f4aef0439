package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/RaduRoibu23/timetable-distributed-system/internal/model"
)

// ClassRepository 班级数据访问接口
type ClassRepository interface {
	Create(ctx context.Context, class *model.SchoolClass) error
	GetByID(ctx context.Context, id uint) (*model.SchoolClass, error)
	List(ctx context.Context) ([]model.SchoolClass, error)
	Update(ctx context.Context, class *model.SchoolClass) error
	Delete(ctx context.Context, id uint) error
}

type classRepo struct {
	db *gorm.DB
}

// NewClassRepo 创建 ClassRepository 实例
func NewClassRepo(db *gorm.DB) ClassRepository {
	return &classRepo{db: db}
}

func (r *classRepo) Create(ctx context.Context, class *model.SchoolClass) error {
	return translateError(r.db.WithContext(ctx).Create(class).Error)
}

func (r *classRepo) GetByID(ctx context.Context, id uint) (*model.SchoolClass, error) {
	var class model.SchoolClass
	if err := r.db.WithContext(ctx).First(&class, id).Error; err != nil {
		return nil, err
	}
	return &class, nil
}

func (r *classRepo) List(ctx context.Context) ([]model.SchoolClass, error) {
	var classes []model.SchoolClass
	err := r.db.WithContext(ctx).Order("id ASC").Find(&classes).Error
	return classes, err
}

func (r *classRepo) Update(ctx context.Context, class *model.SchoolClass) error {
	return translateError(r.db.WithContext(ctx).
		Model(class).
		Updates(map[string]interface{}{
			"name":       class.Name,
			"size":       class.Size,
			"updated_at": gorm.Expr("NOW()"),
		}).Error)
}

// Delete 删除班级；课表条目与教学计划由外键级联删除
func (r *classRepo) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&model.SchoolClass{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
