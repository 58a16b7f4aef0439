package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/RaduRoibu23/timetable-distributed-system/internal/dto"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/service"
	"github.com/RaduRoibu23/timetable-distributed-system/pkg/response"
)

// AuditHandler 审计日志 HTTP 处理器
type AuditHandler struct {
	auditSvc service.AuditService
}

// NewAuditHandler 创建 AuditHandler
func NewAuditHandler(auditSvc service.AuditService) *AuditHandler {
	return &AuditHandler{auditSvc: auditSvc}
}

// List 分页查询审计日志，按时间倒序
// GET /audit-logs?page=1&page_size=50
func (h *AuditHandler) List(c *gin.Context) {
	var req dto.AuditLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	logs, err := h.auditSvc.List(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, logs)
}
