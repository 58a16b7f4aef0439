package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/RaduRoibu23/timetable-distributed-system/internal/model"
)

var (
	// ErrJobActive 班级已有排队或运行中的生成任务
	ErrJobActive = errors.New("该班级已有进行中的生成任务")
	// ErrJobStateChanged 任务状态已被其他操作改变，迁移未生效
	ErrJobStateChanged = errors.New("任务状态已变更")
)

// JobRepository 生成任务数据访问接口
type JobRepository interface {
	// CreateIfIdle 锁定班级行后检查无进行中任务再创建，否则返回 ErrJobActive
	CreateIfIdle(ctx context.Context, job *model.GenerationJob) error
	GetByID(ctx context.Context, id uint) (*model.GenerationJob, error)
	ListByStatus(ctx context.Context, statuses ...model.JobStatus) ([]model.GenerationJob, error)
	// Transition 仅当当前状态属于 from 时写入 job 的状态与结果字段，否则返回 ErrJobStateChanged
	Transition(ctx context.Context, job *model.GenerationJob, from ...model.JobStatus) error
	CountByStatus(ctx context.Context) (map[model.JobStatus]int64, error)
	// LatestFinishedPerClass 每个班级最近一次已结束的任务
	LatestFinishedPerClass(ctx context.Context) ([]model.GenerationJob, error)
}

type jobRepo struct {
	db *gorm.DB
}

// NewJobRepo 创建 JobRepository 实例
func NewJobRepo(db *gorm.DB) JobRepository {
	return &jobRepo{db: db}
}

func (r *jobRepo) CreateIfIdle(ctx context.Context, job *model.GenerationJob) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var class model.SchoolClass
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&class, job.ClassID).Error; err != nil {
			return err
		}

		var active int64
		err := tx.Model(&model.GenerationJob{}).
			Where("class_id = ? AND status IN ?", job.ClassID, []model.JobStatus{model.JobQueued, model.JobRunning}).
			Count(&active).Error
		if err != nil {
			return err
		}
		if active > 0 {
			return ErrJobActive
		}
		return tx.Create(job).Error
	})
}

func (r *jobRepo) GetByID(ctx context.Context, id uint) (*model.GenerationJob, error) {
	var job model.GenerationJob
	if err := r.db.WithContext(ctx).First(&job, id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepo) ListByStatus(ctx context.Context, statuses ...model.JobStatus) ([]model.GenerationJob, error) {
	var jobs []model.GenerationJob
	err := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("id ASC").
		Find(&jobs).Error
	return jobs, err
}

func (r *jobRepo) Transition(ctx context.Context, job *model.GenerationJob, from ...model.JobStatus) error {
	result := r.db.WithContext(ctx).
		Model(&model.GenerationJob{}).
		Where("id = ? AND status IN ?", job.ID, from).
		Updates(map[string]interface{}{
			"status":            job.Status,
			"placed_units":      job.PlacedUnits,
			"unsatisfied_units": job.UnsatisfiedUnits,
			"error_message":     job.ErrorMessage,
			"conflict_report":   job.ConflictReport,
			"started_at":        job.StartedAt,
			"finished_at":       job.FinishedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrJobStateChanged
	}
	return nil
}

func (r *jobRepo) CountByStatus(ctx context.Context) (map[model.JobStatus]int64, error) {
	var rows []struct {
		Status model.JobStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.GenerationJob{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[model.JobStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

func (r *jobRepo) LatestFinishedPerClass(ctx context.Context) ([]model.GenerationJob, error) {
	var jobs []model.GenerationJob
	err := r.db.WithContext(ctx).
		Raw(`SELECT DISTINCT ON (class_id) * FROM generation_jobs
			WHERE status IN (?, ?)
			ORDER BY class_id, finished_at DESC NULLS LAST, id DESC`, model.JobSucceeded, model.JobFailed).
		Scan(&jobs).Error
	return jobs, err
}
