package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/RaduRoibu23/timetable-distributed-system/internal/dto"
	"github.com/RaduRoibu23/timetable-distributed-system/pkg/jwt"
	"github.com/RaduRoibu23/timetable-distributed-system/pkg/response"
)

// CallerKey 认证通过后调用者身份在 gin.Context 中的键
const CallerKey = "caller"

// JWTAuth Bearer Token 认证中间件
// 身份由外部 IdP 签发，这里只校验签名、有效期与 issuer，角色按声明信任
func JWTAuth(jwtMgr *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, 10002, "缺少认证头")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			response.Unauthorized(c, 10002, "认证头格式无效")
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseToken(parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				response.Unauthorized(c, 10002, "Token 已过期")
			} else {
				response.Unauthorized(c, 10002, "Token 无效")
			}
			c.Abort()
			return
		}

		c.Set(CallerKey, &dto.Caller{
			Subject:  claims.Subject,
			Username: claims.Username(),
			Roles:    claims.AllRoles(),
		})

		c.Next()
	}
}

// RoleAuth 角色权限中间件
// 拥有任一角色即放行，sysadmin 放行所有检查
func RoleAuth(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, exists := c.Get(CallerKey)
		if !exists {
			response.Unauthorized(c, 10002, "未认证")
			c.Abort()
			return
		}

		caller, ok := v.(*dto.Caller)
		if !ok || !caller.HasRole(allowedRoles...) {
			response.Forbidden(c, 10003, "无权限访问")
			c.Abort()
			return
		}

		c.Next()
	}
}
