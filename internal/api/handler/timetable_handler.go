package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/RaduRoibu23/timetable-distributed-system/internal/constraint"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/dto"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/service"
	pkgerrors "github.com/RaduRoibu23/timetable-distributed-system/pkg/errors"
	"github.com/RaduRoibu23/timetable-distributed-system/pkg/response"
)

// TimetableHandler 课表查询与编辑 HTTP 处理器
type TimetableHandler struct {
	timetableSvc service.TimetableService
}

// NewTimetableHandler 创建 TimetableHandler
func NewTimetableHandler(timetableSvc service.TimetableService) *TimetableHandler {
	return &TimetableHandler{timetableSvc: timetableSvc}
}

// GetClassTimetable 获取班级课表
// GET /timetables/classes/:id
func (h *TimetableHandler) GetClassTimetable(c *gin.Context) {
	classID, ok := MustParseID(c, "id")
	if !ok {
		return
	}

	entries, err := h.timetableSvc.GetClassTimetable(c.Request.Context(), classID)
	if err != nil {
		h.handleTimetableError(c, err)
		return
	}

	response.OK(c, entries)
}

// DeleteClassTimetable 删除班级全部课表条目
// DELETE /timetables/classes/:id
func (h *TimetableHandler) DeleteClassTimetable(c *gin.Context) {
	classID, ok := MustParseID(c, "id")
	if !ok {
		return
	}
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	res, err := h.timetableSvc.DeleteClassTimetable(c.Request.Context(), classID, caller)
	if err != nil {
		h.handleTimetableError(c, err)
		return
	}

	response.OK(c, res)
}

// UpdateEntry 修改课表条目（乐观锁）
// PATCH /timetables/entries/:id
func (h *TimetableHandler) UpdateEntry(c *gin.Context) {
	id, ok := MustParseID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	entry, err := h.timetableSvc.UpdateEntry(c.Request.Context(), id, &req, caller)
	if err != nil {
		h.handleTimetableError(c, err)
		return
	}

	response.OK(c, entry)
}

// CreateEntry 手动新增课表条目
// POST /timetables/entries
func (h *TimetableHandler) CreateEntry(c *gin.Context) {
	var req dto.CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	entry, err := h.timetableSvc.CreateEntry(c.Request.Context(), &req, caller)
	if err != nil {
		h.handleTimetableError(c, err)
		return
	}

	response.Created(c, entry)
}

// Stats 排课统计
// GET /timetables/stats
func (h *TimetableHandler) Stats(c *gin.Context) {
	stats, err := h.timetableSvc.Stats(c.Request.Context())
	if err != nil {
		h.handleTimetableError(c, err)
		return
	}

	response.OK(c, stats)
}

// handleTimetableError 统一处理课表模块业务错误
func (h *TimetableHandler) handleTimetableError(c *gin.Context, err error) {
	var vc *pkgerrors.VersionConflictError
	var ve *constraint.ViolationError
	switch {
	case errors.As(err, &vc):
		response.ErrorWithFields(c, http.StatusConflict, 30003, pkgerrors.KindVersionConflict, vc.Error(), gin.H{
			"current_version": vc.CurrentVersion,
		})
	case errors.As(err, &ve):
		response.ErrorWithFields(c, http.StatusConflict, 30004, pkgerrors.KindConstraintViolation, ve.Error(), gin.H{
			"violations": ve.Violations,
		})
	case errors.Is(err, service.ErrClassNotFound):
		response.NotFound(c, 30001, "班级不存在")
	case errors.Is(err, service.ErrEntryNotFound):
		response.NotFound(c, 30002, "课表条目不存在")
	case errors.Is(err, service.ErrInvalidReference):
		response.BadRequest(c, 30005, "引用的班级、科目、教师或教室不存在")
	case errors.Is(err, service.ErrInvalidSlot):
		response.BadRequest(c, 30006, "节次超出排课网格")
	default:
		response.InternalError(c)
	}
}
