package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaduRoibu23/timetable-distributed-system/config"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/dto"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/model"
	"github.com/RaduRoibu23/timetable-distributed-system/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newJWT(ttl time.Duration) *jwt.Manager {
	return jwt.NewManager(&config.AuthConfig{
		JWTSecret:      "middleware-test-secret",
		Issuer:         "timetable-idp",
		AccessTokenTTL: ttl,
	})
}

// protected 构造 JWTAuth + RoleAuth 保护的路由，处理函数回写调用者
func protected(mgr *jwt.Manager, roles ...string) *gin.Engine {
	r := gin.New()
	r.GET("/p", JWTAuth(mgr), RoleAuth(roles...), func(c *gin.Context) {
		caller := c.MustGet(CallerKey).(*dto.Caller)
		c.JSON(http.StatusOK, gin.H{"subject": caller.Subject, "username": caller.Username})
	})
	return r
}

func get(r *gin.Engine, auth string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	mgr := newJWT(time.Minute)
	r := protected(mgr, model.RoleScheduler)

	token, err := mgr.GenerateAccessToken("kc-7", "planner", []string{model.RoleScheduler})
	require.NoError(t, err)

	w := get(r, "bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"planner"`)
	assert.Contains(t, w.Body.String(), `"subject":"kc-7"`)

	cases := map[string]string{
		"缺少认证头":  "",
		"格式错误":   "Token " + token,
		"空 Token": "Bearer ",
		"签名无效":   "Bearer " + token + "x",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			w := get(r, header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), `"code":10002`)
		})
	}
}

func TestJWTAuth_Expired(t *testing.T) {
	mgr := newJWT(-time.Minute)
	token, err := mgr.GenerateAccessToken("kc-7", "planner", []string{model.RoleScheduler})
	require.NoError(t, err)

	w := get(protected(mgr, model.RoleScheduler), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Token 已过期")
}

func TestRoleAuth(t *testing.T) {
	mgr := newJWT(time.Minute)
	r := protected(mgr, model.RoleScheduler, model.RoleSecretariat)

	cases := []struct {
		name  string
		roles []string
		want  int
	}{
		{"排课员", []string{model.RoleScheduler}, http.StatusOK},
		{"教务", []string{model.RoleProfessor, model.RoleSecretariat}, http.StatusOK},
		{"系统管理员放行", []string{model.RoleSysadmin}, http.StatusOK},
		{"教师被拒", []string{model.RoleProfessor}, http.StatusForbidden},
		{"无角色被拒", nil, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token, err := mgr.GenerateAccessToken("u", "u", tc.roles)
			require.NoError(t, err)
			assert.Equal(t, tc.want, get(r, "Bearer "+token).Code)
		})
	}
}

func TestRoleAuth_WithoutCaller(t *testing.T) {
	r := gin.New()
	r.GET("/p", RoleAuth(model.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusUnauthorized, get(r, "").Code)
}

// ── 限流 ──

type fakeLimiter struct {
	counts map[string]int
	err    error
}

func (f *fakeLimiter) CheckRateLimit(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.counts[key]++
	return f.counts[key] <= limit, nil
}

func limitedRouter(limiter RateLimiter, limit int) *gin.Engine {
	r := gin.New()
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	setCaller := func(c *gin.Context) {
		if sub := c.GetHeader("X-Sub"); sub != "" {
			c.Set(CallerKey, &dto.Caller{Subject: sub})
		}
	}
	r.POST("/w", setCaller, rateLimit(limiter, limit, time.Minute), ok)
	r.GET("/w", setCaller, rateLimit(limiter, limit, time.Minute), ok)
	return r
}

func send(r *gin.Engine, method, sub string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, "/w", nil)
	if sub != "" {
		req.Header.Set("X-Sub", sub)
	}
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimit(t *testing.T) {
	limiter := &fakeLimiter{counts: map[string]int{}}
	r := limitedRouter(limiter, 2)

	assert.Equal(t, http.StatusOK, send(r, http.MethodPost, "alice"))
	assert.Equal(t, http.StatusOK, send(r, http.MethodPost, "alice"))
	assert.Equal(t, http.StatusTooManyRequests, send(r, http.MethodPost, "alice"))

	// 按调用者分别计数，读请求不限流
	assert.Equal(t, http.StatusOK, send(r, http.MethodPost, "bob"))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, send(r, http.MethodGet, "alice"))
	}
	assert.Contains(t, limiter.counts, "alice:POST /w")
}

func TestRateLimit_FailOpen(t *testing.T) {
	r := limitedRouter(&fakeLimiter{err: errors.New("redis down")}, 1)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, send(r, http.MethodPost, "alice"))
	}

	// 未配置 Redis 时不限流
	r = gin.New()
	r.POST("/w", RateLimit(nil, 1, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, send(r, http.MethodPost, ""))
	}
}

// ── 请求 ID ──

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	cases := []struct {
		name   string
		header string
		keep   bool
	}{
		{"透传合法 ID", "web-7f3a.42_b", true},
		{"缺失时生成", "", false},
		{"含换行重新生成", "abc\nforged", false},
		{"超长重新生成", strings.Repeat("a", 65), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.header != "" {
				req.Header.Set(RequestIDHeader, tc.header)
			}
			r.ServeHTTP(w, req)

			got := w.Header().Get(RequestIDHeader)
			assert.Equal(t, got, w.Body.String())
			if tc.keep {
				assert.Equal(t, tc.header, got)
			} else {
				assert.NotEqual(t, tc.header, got)
				assert.Len(t, got, 36)
			}
		})
	}
}

// ── 跨域 ──

func corsRouter(origins ...string) *gin.Engine {
	r := gin.New()
	r.Use(CORS(origins))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func corsRequest(r *gin.Engine, method, origin string, preflight bool) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, "/x", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestCORS_ListedOrigin(t *testing.T) {
	r := corsRouter("http://localhost:3000/")

	w := corsRequest(r, http.MethodGet, "http://localhost:3000", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
	assert.Equal(t, "Origin", w.Header().Get("Vary"))

	w = corsRequest(r, http.MethodOptions, "http://localhost:3000", true)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), RequestIDHeader)
}

func TestCORS_UnlistedOrigin(t *testing.T) {
	r := corsRouter("http://localhost:3000")

	w := corsRequest(r, http.MethodGet, "http://evil.example", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	assert.Equal(t, http.StatusForbidden, corsRequest(r, http.MethodOptions, "http://evil.example", true).Code)

	// 同源请求不带 Origin，不做处理
	w = corsRequest(r, http.MethodGet, "", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Vary"))
}

func TestCORS_Wildcard(t *testing.T) {
	r := corsRouter("*", "http://localhost:3000")

	w := corsRequest(r, http.MethodGet, "http://other.example", false)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))

	w = corsRequest(r, http.MethodGet, "http://localhost:3000", false)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

// ── 请求体限制 ──

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(16))
	r.POST("/x", func(c *gin.Context) {
		var body map[string]interface{}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})

	post := func(body string, chunked bool) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if chunked {
			req.ContentLength = -1
		}
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, post(`{"a":1}`, false).Code)

	w := post(`{"name":"a very long room name"}`, false)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), `"code":10005`)

	// 未声明长度时读到上限即失败
	assert.Equal(t, http.StatusBadRequest, post(`{"name":"a very long room name"}`, true).Code)
}
