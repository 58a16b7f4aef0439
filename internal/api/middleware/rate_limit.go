package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RaduRoibu23/timetable-distributed-system/internal/dto"
	"github.com/RaduRoibu23/timetable-distributed-system/pkg/redis"
	"github.com/RaduRoibu23/timetable-distributed-system/pkg/response"
)

// RateLimiter 限流计数器，由 redis.Client 实现
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit 基于 Redis 固定窗口的写接口限流中间件
// limit: 窗口内允许的最大请求数
// window: 窗口时长
// rdb 为 nil 或 limit<=0 时不限流
func RateLimit(rdb *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	var limiter RateLimiter
	if rdb != nil {
		limiter = rdb
	}
	return rateLimit(limiter, limit, window)
}

func rateLimit(limiter RateLimiter, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || limit <= 0 || c.Request.Method == http.MethodGet {
			c.Next()
			return
		}

		who := c.ClientIP()
		if v, ok := c.Get(CallerKey); ok {
			if caller, ok := v.(*dto.Caller); ok && caller.Subject != "" {
				who = caller.Subject
			}
		}

		key := fmt.Sprintf("%s:%s %s", who, c.Request.Method, c.FullPath())
		allowed, err := limiter.CheckRateLimit(c.Request.Context(), key, limit, window)
		if err != nil {
			// Redis 出错时降级放行
			c.Next()
			return
		}

		if !allowed {
			response.Error(c, http.StatusTooManyRequests, 10004, "rate_limited", "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}

		c.Next()
	}
}
