package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	pkgerrors "github.com/RaduRoibu23/timetable-distributed-system/pkg/errors"
	"github.com/RaduRoibu23/timetable-distributed-system/pkg/response"
)

// BodyLimit 请求体大小限制
// 声明的 Content-Length 超限时直接 413；未声明长度的请求体读到上限即报错，由绑定失败返回 400
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, pkgerrors.KindValidation,
				fmt.Sprintf("请求体超过 %d 字节上限", maxBytes))
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
