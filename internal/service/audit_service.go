package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/RaduRoibu23/timetable-distributed-system/internal/dto"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/model"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/repository"
)

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 200
)

// AuditService 审计日志查询接口
type AuditService interface {
	List(ctx context.Context, req *dto.AuditLogListRequest) (*dto.AuditLogListResponse, error)
}

type auditService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewAuditService 创建 AuditService 实例
func NewAuditService(repo *repository.Repository, logger *zap.Logger) AuditService {
	return &auditService{repo: repo, logger: logger}
}

func (s *auditService) List(ctx context.Context, req *dto.AuditLogListRequest) (*dto.AuditLogListResponse, error) {
	page, size := req.Page, req.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultAuditPageSize
	}
	if size > maxAuditPageSize {
		size = maxAuditPageSize
	}

	logs, total, err := s.repo.AuditLog.List(ctx, (page-1)*size, size)
	if err != nil {
		s.logger.Error("查询审计日志失败", zap.Error(err))
		return nil, err
	}

	items := make([]dto.AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		items = append(items, dto.AuditLogResponse{
			ID:         l.ID,
			Actor:      l.Actor,
			Role:       l.Role,
			Action:     l.Action,
			Resource:   l.Resource,
			ResourceID: l.ResourceID,
			Detail:     json.RawMessage(l.Detail),
			CreatedAt:  l.CreatedAt.Format(time.RFC3339),
		})
	}
	return &dto.AuditLogListResponse{Items: items, Total: total, Page: page, PageSize: size}, nil
}

// writeAudit 记录一条审计日志，失败只记日志不影响业务结果
func writeAudit(ctx context.Context, repo *repository.Repository, logger *zap.Logger,
	caller *dto.Caller, action, resource string, resourceID uint, detail interface{}) {
	entry := &model.AuditLog{
		Actor:    caller.Actor(),
		Role:     caller.PrimaryRole(),
		Action:   action,
		Resource: resource,
	}
	if resourceID != 0 {
		entry.ResourceID = &resourceID
	}
	if detail != nil {
		body, err := json.Marshal(detail)
		if err == nil {
			entry.Detail = datatypes.JSON(body)
		}
	}
	if err := repo.AuditLog.Create(ctx, entry); err != nil {
		logger.Warn("写入审计日志失败", zap.String("action", action), zap.Error(err))
	}
}
