package handler

import "github.com/RaduRoibu23/timetable-distributed-system/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Catalog      *CatalogHandler
	Availability *AvailabilityHandler
	Timetable    *TimetableHandler
	Generation   *GenerationHandler
	Export       *ExportHandler
	Audit        *AuditHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Catalog:      NewCatalogHandler(svc.Catalog),
		Availability: NewAvailabilityHandler(svc.Availability),
		Timetable:    NewTimetableHandler(svc.Timetable),
		Generation:   NewGenerationHandler(svc.Generation),
		Export:       NewExportHandler(svc.Export),
		Audit:        NewAuditHandler(svc.Audit),
	}
}
