package service

import (
	"go.uber.org/zap"

	"github.com/RaduRoibu23/timetable-distributed-system/config"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/repository"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/snapshot"
	"github.com/RaduRoibu23/timetable-distributed-system/pkg/metrics"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Catalog      CatalogService
	Availability AvailabilityService
	Timetable    TimetableService
	Generation   GenerationService
	Export       ExportService
	Audit        AuditService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	loader *snapshot.Loader,
	runner JobRunner,
	rec metrics.Recorder,
	logger *zap.Logger,
) *Service {
	return &Service{
		Catalog:      NewCatalogService(cfg, repo, logger),
		Availability: NewAvailabilityService(cfg, repo, logger),
		Timetable:    NewTimetableService(cfg, repo, loader, rec, logger),
		Generation:   NewGenerationService(repo, runner, logger),
		Export:       NewExportService(repo, loader.Grid(), logger),
		Audit:        NewAuditService(repo, logger),
	}
}
