package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/RaduRoibu23/timetable-distributed-system/internal/dto"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/jobs"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/model"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/repository"
)

// JobRunner 生成任务执行器，由 jobs.Manager 实现
type JobRunner interface {
	Submit(ctx context.Context, classIDs []uint, requestedBy string) ([]model.GenerationJob, error)
	Get(ctx context.Context, id uint) (*model.GenerationJob, error)
	Conflicts(ctx context.Context, id uint) (*model.GenerationJob, *jobs.Report, error)
	Cancel(ctx context.Context, id uint) (*model.GenerationJob, error)
}

// GenerationService 课表生成任务接口
type GenerationService interface {
	Generate(ctx context.Context, req *dto.GenerateRequest, caller *dto.Caller) (*dto.GenerateResponse, error)
	GetJob(ctx context.Context, id uint) (*dto.JobResponse, error)
	GetConflicts(ctx context.Context, id uint) (*dto.ConflictReportResponse, error)
	CancelJob(ctx context.Context, id uint, caller *dto.Caller) (*dto.JobResponse, error)
}

type generationService struct {
	repo   *repository.Repository
	runner JobRunner
	logger *zap.Logger
}

// NewGenerationService 创建 GenerationService 实例
func NewGenerationService(repo *repository.Repository, runner JobRunner, logger *zap.Logger) GenerationService {
	return &generationService{repo: repo, runner: runner, logger: logger}
}

func (s *generationService) Generate(ctx context.Context, req *dto.GenerateRequest, caller *dto.Caller) (*dto.GenerateResponse, error) {
	classIDs := req.ClassList()
	if len(classIDs) == 0 {
		return nil, jobs.ErrNoClasses
	}

	created, err := s.runner.Submit(ctx, classIDs, caller.Actor())
	for _, job := range created {
		writeAudit(ctx, s.repo, s.logger, caller, "timetable_generation_queued", "class", job.ClassID, map[string]interface{}{
			"job_id": job.ID,
		})
	}
	if err != nil {
		if len(created) > 0 {
			s.logger.Warn("部分班级的生成任务未能创建", zap.Int("created", len(created)), zap.Error(err))
		}
		return nil, err
	}

	resp := &dto.GenerateResponse{JobIDs: make([]uint, 0, len(created))}
	for _, job := range created {
		resp.JobIDs = append(resp.JobIDs, job.ID)
	}
	resp.Message = fmt.Sprintf("已创建 %d 个生成任务", len(created))
	return resp, nil
}

func (s *generationService) GetJob(ctx context.Context, id uint) (*dto.JobResponse, error) {
	job, err := s.runner.Get(ctx, id)
	if err != nil {
		return nil, s.jobError(id, err)
	}
	resp := toJobResponse(job)
	return &resp, nil
}

func (s *generationService) GetConflicts(ctx context.Context, id uint) (*dto.ConflictReportResponse, error) {
	job, report, err := s.runner.Conflicts(ctx, id)
	if err != nil {
		return nil, s.jobError(id, err)
	}
	return &dto.ConflictReportResponse{
		JobID:            job.ID,
		ClassID:          job.ClassID,
		Status:           string(job.Status),
		Finished:         job.Status.Finished(),
		PlacedUnits:      job.PlacedUnits,
		UnsatisfiedUnits: job.UnsatisfiedUnits,
		Conflicts:        report.Conflicts,
		Warnings:         report.Warnings,
	}, nil
}

func (s *generationService) CancelJob(ctx context.Context, id uint, caller *dto.Caller) (*dto.JobResponse, error) {
	if _, err := s.runner.Cancel(ctx, id); err != nil {
		return nil, s.jobError(id, err)
	}
	job, err := s.runner.Get(ctx, id)
	if err != nil {
		return nil, s.jobError(id, err)
	}
	writeAudit(ctx, s.repo, s.logger, caller, "timetable_generation_cancelled", "class", job.ClassID, map[string]interface{}{
		"job_id": id,
	})
	resp := toJobResponse(job)
	return &resp, nil
}

func (s *generationService) jobError(id uint, err error) error {
	if errors.Is(err, jobs.ErrJobNotFound) {
		return ErrJobNotFound
	}
	if errors.Is(err, jobs.ErrJobFinished) || errors.Is(err, jobs.ErrNotCancellable) || errors.Is(err, jobs.ErrCommitting) {
		return err
	}
	s.logger.Error("查询生成任务失败", zap.Uint("job_id", id), zap.Error(err))
	return err
}

func toJobResponse(j *model.GenerationJob) dto.JobResponse {
	resp := dto.JobResponse{
		ID:               j.ID,
		ClassID:          j.ClassID,
		Status:           string(j.Status),
		RequestedBy:      j.RequestedBy,
		PlacedUnits:      j.PlacedUnits,
		UnsatisfiedUnits: j.UnsatisfiedUnits,
		ErrorMessage:     j.ErrorMessage,
		CreatedAt:        j.CreatedAt.Format(time.RFC3339),
	}
	if j.StartedAt != nil {
		s := j.StartedAt.Format(time.RFC3339)
		resp.StartedAt = &s
	}
	if j.FinishedAt != nil {
		s := j.FinishedAt.Format(time.RFC3339)
		resp.FinishedAt = &s
	}
	return resp
}
