package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	Class          ClassRepository
	Subject        SubjectRepository
	Teacher        TeacherRepository
	Room           RoomRepository
	Curriculum     CurriculumRepository
	TimeSlot       TimeSlotRepository
	Availability   AvailabilityRepository
	TimetableEntry TimetableEntryRepository
	Job            JobRepository
	AuditLog       AuditLogRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:             db,
		Class:          NewClassRepo(db),
		Subject:        NewSubjectRepo(db),
		Teacher:        NewTeacherRepo(db),
		Room:           NewRoomRepo(db),
		Curriculum:     NewCurriculumRepo(db),
		TimeSlot:       NewTimeSlotRepo(db),
		Availability:   NewAvailabilityRepo(db),
		TimetableEntry: NewTimetableEntryRepo(db),
		Job:            NewJobRepo(db),
		AuditLog:       NewAuditLogRepo(db),
	}
}

// Transaction 在单个数据库事务内执行 fn，fn 收到绑定该事务的 Repository
// 未绑定数据库时（内存实现）直接执行 fn
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return translateError(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	}))
}
