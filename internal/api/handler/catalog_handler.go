package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/RaduRoibu23/timetable-distributed-system/internal/dto"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/service"
	pkgerrors "github.com/RaduRoibu23/timetable-distributed-system/pkg/errors"
	"github.com/RaduRoibu23/timetable-distributed-system/pkg/response"
)

// CatalogHandler 基础数据 HTTP 处理器
type CatalogHandler struct {
	catalogSvc service.CatalogService
}

// NewCatalogHandler 创建 CatalogHandler
func NewCatalogHandler(catalogSvc service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogSvc: catalogSvc}
}

// ────────────────────── Class ──────────────────────

// ListClasses GET /classes
func (h *CatalogHandler) ListClasses(c *gin.Context) {
	list, err := h.catalogSvc.ListClasses(c.Request.Context())
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	response.OK(c, list)
}

// GetClass GET /classes/:id
func (h *CatalogHandler) GetClass(c *gin.Context) {
	id, ok := MustParseID(c, "id")
	if !ok {
		return
	}
	class, err := h.catalogSvc.GetClass(c.Request.Context(), id)
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	response.OK(c, class)
}

// CreateClass POST /classes
func (h *CatalogHandler) CreateClass(c *gin.Context) {
	var req dto.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	class, err := h.catalogSvc.CreateClass(c.Request.Context(), &req)
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	response.Created(c, class)
}

// UpdateClass PUT /classes/:id
func (h *CatalogHandler) UpdateClass(c *gin.Context) {
	id, ok := MustParseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	class, err := h.catalogSvc.UpdateClass(c.Request.Context(), id, &req)
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	response.OK(c, class)
}

// DeleteClass DELETE /classes/:id
func (h *CatalogHandler) DeleteClass(c *gin.Context) {
	id, ok := MustParseID(c, "id")
	if !ok {
		return
	}
	if err := h.catalogSvc.DeleteClass(c.Request.Context(), id); err != nil {
		h.handleCatalogError(c, err)
		return
	}
	response.NoContent(c)
}

// ────────────────────── Subject ──────────────────────

// ListSubjects GET /subjects
func (h *CatalogHandler) ListSubjects(c *gin.Context) {
	list, err := h.catalogSvc.ListSubjects(c.Request.Context())
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	response.OK(c, list)
}

// GetSubject GET /subjects/:id
func (h *CatalogHandler) GetSubject(c *gin.Context) {
	id, ok := MustParseID(c, "id")
	if !ok {
		return
	}
	subject, err := h.catalogSvc.GetSubject(c.Request.Context(), id)
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	response.OK(c, subject)
}

// CreateSubject POST /subjects
func (h *CatalogHandler) CreateSubject(c *gin.Context) {
	var req dto.CreateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	subject, err := h.catalogSvc.CreateSubject(c.Request.Context(), &req)
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	response.Created(c, subject)
}

// UpdateSubject PUT /subjects/:id
func (h *CatalogHandler) UpdateSubject(c *gin.Context) {
	id, ok := MustParseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	subject, err := h.catalogSvc.UpdateSubject(c.Request.Context(), id, &req)
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	response.OK(c, subject)
}

// DeleteSubject DELETE /subjects/:id?cascade=true
func (h *CatalogHandler) DeleteSubject(c *gin.Context) {
	id, ok := MustParseID(c, "id")
	if !ok {
		return
	}
	var req dto.DeleteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	if err := h.catalogSvc.DeleteSubject(c.Request.Context(), id, req.Cascade); err != nil {
		h.handleCatalogError(c, err)
		return
	}
	response.NoContent(c)
}

// ────────────────────── Room ──────────────────────

// ListRooms GET /rooms
func (h *CatalogHandler) ListRooms(c *gin.Context) {
	list, err := h.catalogSvc.ListRooms(c.Request.Context())
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	response.OK(c, list)
}

// GetRoom GET /rooms/:id
func (h *CatalogHandler) GetRoom(c *gin.Context) {
	id, ok := MustParseID(c, "id")
	if !ok {
		return
	}
	room, err := h.catalogSvc.GetRoom(c.Request.Context(), id)
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	response.OK(c, room)
}

// CreateRoom POST /rooms
func (h *CatalogHandler) CreateRoom(c *gin.Context) {
	var req dto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	room, err := h.catalogSvc.CreateRoom(c.Request.Context(), &req)
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	response.Created(c, room)
}

// UpdateRoom PUT /rooms/:id
func (h *CatalogHandler) UpdateRoom(c *gin.Context) {
	id, ok := MustParseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	room, err := h.catalogSvc.UpdateRoom(c.Request.Context(), id, &req)
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	response.OK(c, room)
}

// DeleteRoom DELETE /rooms/:id?cascade=true
// 级联时引用该教室的条目改为无教室
func (h *CatalogHandler) DeleteRoom(c *gin.Context) {
	id, ok := MustParseID(c, "id")
	if !ok {
		return
	}
	var req dto.DeleteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	if err := h.catalogSvc.DeleteRoom(c.Request.Context(), id, req.Cascade); err != nil {
		h.handleCatalogError(c, err)
		return
	}
	response.NoContent(c)
}

// ────────────────────── Teacher ──────────────────────

// ListTeachers GET /teachers
func (h *CatalogHandler) ListTeachers(c *gin.Context) {
	list, err := h.catalogSvc.ListTeachers(c.Request.Context())
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	response.OK(c, list)
}

// GetTeacher GET /teachers/:id
func (h *CatalogHandler) GetTeacher(c *gin.Context) {
	id, ok := MustParseID(c, "id")
	if !ok {
		return
	}
	teacher, err := h.catalogSvc.GetTeacher(c.Request.Context(), id)
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	response.OK(c, teacher)
}

// CreateTeacher POST /teachers
func (h *CatalogHandler) CreateTeacher(c *gin.Context) {
	var req dto.CreateTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	teacher, err := h.catalogSvc.CreateTeacher(c.Request.Context(), &req)
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	response.Created(c, teacher)
}

// UpdateTeacher PUT /teachers/:id
func (h *CatalogHandler) UpdateTeacher(c *gin.Context) {
	id, ok := MustParseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	teacher, err := h.catalogSvc.UpdateTeacher(c.Request.Context(), id, &req)
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	response.OK(c, teacher)
}

// DeleteTeacher DELETE /teachers/:id?cascade=true
func (h *CatalogHandler) DeleteTeacher(c *gin.Context) {
	id, ok := MustParseID(c, "id")
	if !ok {
		return
	}
	var req dto.DeleteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	if err := h.catalogSvc.DeleteTeacher(c.Request.Context(), id, req.Cascade); err != nil {
		h.handleCatalogError(c, err)
		return
	}
	response.NoContent(c)
}

// ────────────────────── Curriculum ──────────────────────

// ListCurricula GET /curricula?class_id=
func (h *CatalogHandler) ListCurricula(c *gin.Context) {
	var req dto.CurriculumListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	list, err := h.catalogSvc.ListCurricula(c.Request.Context(), &req)
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	response.OK(c, list)
}

// GetCurriculum GET /curricula/:id
func (h *CatalogHandler) GetCurriculum(c *gin.Context) {
	id, ok := MustParseID(c, "id")
	if !ok {
		return
	}
	item, err := h.catalogSvc.GetCurriculum(c.Request.Context(), id)
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	response.OK(c, item)
}

// CreateCurriculum POST /curricula
func (h *CatalogHandler) CreateCurriculum(c *gin.Context) {
	var req dto.CreateCurriculumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	item, err := h.catalogSvc.CreateCurriculum(c.Request.Context(), &req)
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	response.Created(c, item)
}

// UpdateCurriculum PUT /curricula/:id
func (h *CatalogHandler) UpdateCurriculum(c *gin.Context) {
	id, ok := MustParseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateCurriculumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	item, err := h.catalogSvc.UpdateCurriculum(c.Request.Context(), id, &req)
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	response.OK(c, item)
}

// DeleteCurriculum DELETE /curricula/:id
func (h *CatalogHandler) DeleteCurriculum(c *gin.Context) {
	id, ok := MustParseID(c, "id")
	if !ok {
		return
	}
	if err := h.catalogSvc.DeleteCurriculum(c.Request.Context(), id); err != nil {
		h.handleCatalogError(c, err)
		return
	}
	response.NoContent(c)
}

// ────────────────────── TimeSlot ──────────────────────

// ListTimeSlots GET /timeslots
func (h *CatalogHandler) ListTimeSlots(c *gin.Context) {
	list, err := h.catalogSvc.ListTimeSlots(c.Request.Context())
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	response.OK(c, list)
}

// handleCatalogError 统一处理基础数据模块业务错误
func (h *CatalogHandler) handleCatalogError(c *gin.Context, err error) {
	var inUse *service.InUseError
	switch {
	case errors.Is(err, service.ErrClassNotFound):
		response.NotFound(c, 20001, "班级不存在")
	case errors.Is(err, service.ErrSubjectNotFound):
		response.NotFound(c, 20002, "科目不存在")
	case errors.Is(err, service.ErrRoomNotFound):
		response.NotFound(c, 20003, "教室不存在")
	case errors.Is(err, service.ErrTeacherNotFound):
		response.NotFound(c, 20004, "教师不存在")
	case errors.Is(err, service.ErrCurriculumNotFound):
		response.NotFound(c, 20005, "教学计划不存在")
	case errors.Is(err, service.ErrDuplicate):
		response.Conflict(c, 20006, pkgerrors.KindConflict, "名称或代码已存在")
	case errors.Is(err, service.ErrInvalidReference):
		response.BadRequest(c, 20007, "引用的班级或科目不存在")
	case errors.As(err, &inUse):
		response.ErrorWithFields(c, http.StatusConflict, 20008, pkgerrors.KindConflict, inUse.Error(), gin.H{
			"references":      inUse.References,
			"cascade_allowed": inUse.CascadeAllowed,
		})
	default:
		response.InternalError(c)
	}
}
