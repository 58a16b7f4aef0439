package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/RaduRoibu23/timetable-distributed-system/internal/dto"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/jobs"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/service"
	pkgerrors "github.com/RaduRoibu23/timetable-distributed-system/pkg/errors"
	"github.com/RaduRoibu23/timetable-distributed-system/pkg/response"
)

// GenerationHandler 课表生成任务 HTTP 处理器
type GenerationHandler struct {
	generationSvc service.GenerationService
}

// NewGenerationHandler 创建 GenerationHandler
func NewGenerationHandler(generationSvc service.GenerationService) *GenerationHandler {
	return &GenerationHandler{generationSvc: generationSvc}
}

// Generate 提交生成任务，每个班级一个任务，立即返回
// POST /timetables/generate
func (h *GenerationHandler) Generate(c *gin.Context) {
	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	resp, err := h.generationSvc.Generate(c.Request.Context(), &req, caller)
	if err != nil {
		h.handleGenerationError(c, err)
		return
	}

	response.Accepted(c, resp)
}

// GetJob 查询任务状态
// GET /timetables/jobs/:id
func (h *GenerationHandler) GetJob(c *gin.Context) {
	id, ok := MustParseID(c, "id")
	if !ok {
		return
	}

	job, err := h.generationSvc.GetJob(c.Request.Context(), id)
	if err != nil {
		h.handleGenerationError(c, err)
		return
	}

	response.OK(c, job)
}

// GetConflicts 查询任务冲突报告，任务未结束时返回空报告
// GET /timetables/jobs/:id/conflicts
func (h *GenerationHandler) GetConflicts(c *gin.Context) {
	id, ok := MustParseID(c, "id")
	if !ok {
		return
	}

	report, err := h.generationSvc.GetConflicts(c.Request.Context(), id)
	if err != nil {
		h.handleGenerationError(c, err)
		return
	}

	response.OK(c, report)
}

// CancelJob 取消排队或运行中的任务
// POST /timetables/jobs/:id/cancel
func (h *GenerationHandler) CancelJob(c *gin.Context) {
	id, ok := MustParseID(c, "id")
	if !ok {
		return
	}

	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	job, err := h.generationSvc.CancelJob(c.Request.Context(), id, caller)
	if err != nil {
		h.handleGenerationError(c, err)
		return
	}

	response.OK(c, job)
}

// handleGenerationError 统一处理生成任务模块业务错误
func (h *GenerationHandler) handleGenerationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		response.NotFound(c, 31001, "生成任务不存在")
	case errors.Is(err, jobs.ErrClassNotFound):
		response.NotFound(c, 31002, err.Error())
	case errors.Is(err, jobs.ErrNoClasses):
		response.BadRequest(c, 31003, "未指定要生成的班级")
	case errors.Is(err, jobs.ErrJobInProgress):
		response.Conflict(c, 31004, pkgerrors.KindConflict, err.Error())
	case errors.Is(err, jobs.ErrQueueFull):
		response.Error(c, http.StatusServiceUnavailable, 31005, pkgerrors.KindSystem, "生成队列已满，请稍后重试")
	case errors.Is(err, jobs.ErrJobFinished):
		response.Conflict(c, 31006, pkgerrors.KindConflict, "任务已结束，无法取消")
	case errors.Is(err, jobs.ErrNotCancellable):
		response.Conflict(c, 31007, pkgerrors.KindConflict, "任务正在其他实例上运行，无法取消")
	case errors.Is(err, jobs.ErrCommitting):
		response.Conflict(c, 31007, pkgerrors.KindConflict, "任务已开始提交课表，无法取消")
	default:
		response.InternalError(c)
	}
}
