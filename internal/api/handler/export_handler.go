package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/RaduRoibu23/timetable-distributed-system/internal/dto"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/service"
	"github.com/RaduRoibu23/timetable-distributed-system/pkg/response"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportClass 导出班级课表
// GET /timetables/classes/:id/export?format=xlsx|ics&weeks=n
func (h *ExportHandler) ExportClass(c *gin.Context) {
	classID, ok := MustParseID(c, "id")
	if !ok {
		return
	}

	var req dto.ExportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	file, err := h.exportSvc.ExportClass(c.Request.Context(), classID, &req)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	// 设置下载响应头
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(file.FileName))
	c.Data(http.StatusOK, file.ContentType, file.Content.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrClassNotFound):
		response.NotFound(c, 32001, "班级不存在")
	default:
		response.InternalError(c)
	}
}
