package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/RaduRoibu23/timetable-distributed-system/internal/model"
)

// TimeSlotRepository 节次数据访问接口
type TimeSlotRepository interface {
	// List 返回 weekday < days 且 index_in_day ≤ perDay 的节次，按 (weekday, index_in_day) 升序
	List(ctx context.Context, days, perDay int) ([]model.TimeSlot, error)
}

type timeSlotRepo struct {
	db *gorm.DB
}

// NewTimeSlotRepo 创建 TimeSlotRepository 实例
func NewTimeSlotRepo(db *gorm.DB) TimeSlotRepository {
	return &timeSlotRepo{db: db}
}

func (r *timeSlotRepo) List(ctx context.Context, days, perDay int) ([]model.TimeSlot, error) {
	var slots []model.TimeSlot
	err := r.db.WithContext(ctx).
		Where("weekday < ? AND index_in_day <= ?", days, perDay).
		Order("weekday ASC, index_in_day ASC").
		Find(&slots).Error
	return slots, err
}
