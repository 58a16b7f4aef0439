package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/RaduRoibu23/timetable-distributed-system/internal/api/middleware"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/dto"
	"github.com/RaduRoibu23/timetable-distributed-system/pkg/response"
)

// MustGetCaller 从 Gin 上下文中安全提取调用者身份。
// 如果认证中间件未注入身份，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetCaller(c *gin.Context) (*dto.Caller, bool) {
	v, exists := c.Get(middleware.CallerKey)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	caller, ok := v.(*dto.Caller)
	if !ok || caller == nil {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	return caller, true
}

// MustParseID 解析路径参数中的正整数 ID，失败时写入 400 响应
func MustParseID(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		response.BadRequest(c, 10001, "无效的 ID")
		return 0, false
	}
	return uint(v), true
}
