package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/RaduRoibu23/timetable-distributed-system/internal/dto"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/service"
	"github.com/RaduRoibu23/timetable-distributed-system/pkg/response"
)

// AvailabilityHandler 教师与教室可用性 HTTP 处理器
type AvailabilityHandler struct {
	availabilitySvc service.AvailabilityService
}

// NewAvailabilityHandler 创建 AvailabilityHandler
func NewAvailabilityHandler(availabilitySvc service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availabilitySvc: availabilitySvc}
}

// ListTeacher GET /teachers/:id/availability
func (h *AvailabilityHandler) ListTeacher(c *gin.Context) {
	id, ok := MustParseID(c, "id")
	if !ok {
		return
	}
	list, err := h.availabilitySvc.ListTeacher(c.Request.Context(), id)
	if err != nil {
		h.handleAvailabilityError(c, err)
		return
	}
	response.OK(c, list)
}

// SetTeacher POST /teachers/:id/availability
// professor 只能修改自己的记录（Service 层鉴权）
func (h *AvailabilityHandler) SetTeacher(c *gin.Context) {
	id, ok := MustParseID(c, "id")
	if !ok {
		return
	}
	var req dto.SetAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	a, err := h.availabilitySvc.SetTeacher(c.Request.Context(), id, &req, caller)
	if err != nil {
		h.handleAvailabilityError(c, err)
		return
	}
	response.OK(c, a)
}

// ListRoom GET /rooms/:id/availability
func (h *AvailabilityHandler) ListRoom(c *gin.Context) {
	id, ok := MustParseID(c, "id")
	if !ok {
		return
	}
	list, err := h.availabilitySvc.ListRoom(c.Request.Context(), id)
	if err != nil {
		h.handleAvailabilityError(c, err)
		return
	}
	response.OK(c, list)
}

// SetRoom POST /rooms/:id/availability
func (h *AvailabilityHandler) SetRoom(c *gin.Context) {
	id, ok := MustParseID(c, "id")
	if !ok {
		return
	}
	var req dto.SetAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	a, err := h.availabilitySvc.SetRoom(c.Request.Context(), id, &req)
	if err != nil {
		h.handleAvailabilityError(c, err)
		return
	}
	response.OK(c, a)
}

func (h *AvailabilityHandler) handleAvailabilityError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTeacherNotFound):
		response.NotFound(c, 21001, "教师不存在")
	case errors.Is(err, service.ErrRoomNotFound):
		response.NotFound(c, 21002, "教室不存在")
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, 21003, "只能修改自己的可用时间")
	case errors.Is(err, service.ErrInvalidSlot):
		response.BadRequest(c, 21004, "节次超出排课网格")
	default:
		response.InternalError(c)
	}
}
