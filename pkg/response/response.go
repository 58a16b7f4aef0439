package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	pkgerrors "github.com/RaduRoibu23/timetable-distributed-system/pkg/errors"
)

// ErrorBody 统一错误响应结构
// 前端按 {detail} 读取错误信息，其余字段供程序判断
type ErrorBody struct {
	Detail string         `json:"detail"`
	Code   int            `json:"code"`
	Kind   pkgerrors.Kind `json:"kind"`
}

// ── 成功响应（前端直接消费原始 JSON，不做包装） ──

// OK 200 成功响应
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created 201 创建成功
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// Accepted 202 已受理（异步任务）
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, data)
}

// NoContent 204
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// ── 错误响应 ──

// Error 通用错误响应
func Error(c *gin.Context, httpStatus int, code int, kind pkgerrors.Kind, detail string) {
	c.JSON(httpStatus, gin.H{
		"detail": detail,
		"code":   code,
		"kind":   kind,
	})
}

// ErrorWithFields 带附加字段的错误响应（如 current_version、violations）
func ErrorWithFields(c *gin.Context, httpStatus int, code int, kind pkgerrors.Kind, detail string, fields gin.H) {
	body := gin.H{
		"detail": detail,
		"code":   code,
		"kind":   kind,
	}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(httpStatus, body)
}

// ── 常见快捷方式 ──

// BadRequest 400
func BadRequest(c *gin.Context, code int, detail string) {
	Error(c, http.StatusBadRequest, code, pkgerrors.KindValidation, detail)
}

// Unauthorized 401
func Unauthorized(c *gin.Context, code int, detail string) {
	Error(c, http.StatusUnauthorized, code, "unauthorized", detail)
}

// Forbidden 403
func Forbidden(c *gin.Context, code int, detail string) {
	Error(c, http.StatusForbidden, code, "forbidden", detail)
}

// NotFound 404
func NotFound(c *gin.Context, code int, detail string) {
	Error(c, http.StatusNotFound, code, pkgerrors.KindNotFound, detail)
}

// Conflict 409
func Conflict(c *gin.Context, code int, kind pkgerrors.Kind, detail string) {
	Error(c, http.StatusConflict, code, kind, detail)
}

// InternalError 500
func InternalError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, 50000, pkgerrors.KindSystem, "服务器内部错误")
}
