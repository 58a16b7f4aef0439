package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/RaduRoibu23/timetable-distributed-system/config"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/api/handler"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/api/middleware"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/model"
	"github.com/RaduRoibu23/timetable-distributed-system/pkg/jwt"
	"github.com/RaduRoibu23/timetable-distributed-system/pkg/metrics"
	"github.com/RaduRoibu23/timetable-distributed-system/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 为 nil 时不限流；gatherer 为 nil 或未启用指标时不暴露 /metrics
func Setup(
	cfg *config.Config,
	h *handler.Handler,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// ── 健康检查与指标 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	if cfg.Metrics.Enabled && gatherer != nil {
		r.GET(cfg.Metrics.Path, gin.WrapH(metrics.Handler(gatherer)))
	}

	editors := []string{model.RoleSecretariat, model.RoleAdmin}
	planners := []string{model.RoleScheduler, model.RoleSecretariat, model.RoleAdmin}

	api := r.Group(cfg.Server.BasePath)
	api.Use(middleware.JWTAuth(jwtMgr))
	api.Use(middleware.RateLimit(rdb, cfg.Server.RateLimit.Limit, cfg.Server.RateLimit.Window))
	{
		// 班级
		classes := api.Group("/classes")
		{
			classes.GET("", h.Catalog.ListClasses)
			classes.GET("/:id", h.Catalog.GetClass)
			classes.POST("", middleware.RoleAuth(editors...), h.Catalog.CreateClass)
			classes.PUT("/:id", middleware.RoleAuth(editors...), h.Catalog.UpdateClass)
			classes.DELETE("/:id", middleware.RoleAuth(editors...), h.Catalog.DeleteClass)
		}

		// 科目
		subjects := api.Group("/subjects")
		{
			subjects.GET("", h.Catalog.ListSubjects)
			subjects.GET("/:id", h.Catalog.GetSubject)
			subjects.POST("", middleware.RoleAuth(editors...), h.Catalog.CreateSubject)
			subjects.PUT("/:id", middleware.RoleAuth(editors...), h.Catalog.UpdateSubject)
			subjects.DELETE("/:id", middleware.RoleAuth(editors...), h.Catalog.DeleteSubject)
		}

		// 教室
		rooms := api.Group("/rooms")
		{
			rooms.GET("", h.Catalog.ListRooms)
			rooms.GET("/:id", h.Catalog.GetRoom)
			rooms.POST("", middleware.RoleAuth(editors...), h.Catalog.CreateRoom)
			// 前端以 /rooms/ 访问，直接注册避免 301/307 重定向
			rooms.GET("/", h.Catalog.ListRooms)
			rooms.POST("/", middleware.RoleAuth(editors...), h.Catalog.CreateRoom)
			rooms.PUT("/:id", middleware.RoleAuth(editors...), h.Catalog.UpdateRoom)
			rooms.DELETE("/:id", middleware.RoleAuth(editors...), h.Catalog.DeleteRoom)
			rooms.GET("/:id/availability", h.Availability.ListRoom)
			rooms.POST("/:id/availability", middleware.RoleAuth(editors...), h.Availability.SetRoom)
		}

		// 教师
		teachers := api.Group("/teachers")
		{
			teachers.GET("", h.Catalog.ListTeachers)
			teachers.GET("/:id", h.Catalog.GetTeacher)
			teachers.POST("", middleware.RoleAuth(editors...), h.Catalog.CreateTeacher)
			teachers.PUT("/:id", middleware.RoleAuth(editors...), h.Catalog.UpdateTeacher)
			teachers.DELETE("/:id", middleware.RoleAuth(editors...), h.Catalog.DeleteTeacher)
			teachers.GET("/:id/availability", h.Availability.ListTeacher)
			// professor 只能改自己（Service 层鉴权）
			teachers.POST("/:id/availability",
				middleware.RoleAuth(model.RoleProfessor, model.RoleSecretariat, model.RoleAdmin),
				h.Availability.SetTeacher)
		}

		// 教学计划
		curricula := api.Group("/curricula")
		{
			curricula.GET("", h.Catalog.ListCurricula)
			curricula.GET("/:id", h.Catalog.GetCurriculum)
			curricula.POST("", middleware.RoleAuth(editors...), h.Catalog.CreateCurriculum)
			curricula.PUT("/:id", middleware.RoleAuth(editors...), h.Catalog.UpdateCurriculum)
			curricula.DELETE("/:id", middleware.RoleAuth(editors...), h.Catalog.DeleteCurriculum)
		}

		api.GET("/timeslots", h.Catalog.ListTimeSlots)

		// 课表
		timetables := api.Group("/timetables")
		{
			timetables.POST("/generate", middleware.RoleAuth(planners...), h.Generation.Generate)
			timetables.GET("/jobs/:id", h.Generation.GetJob)
			timetables.GET("/jobs/:id/conflicts", h.Generation.GetConflicts)
			timetables.POST("/jobs/:id/cancel", middleware.RoleAuth(planners...), h.Generation.CancelJob)

			timetables.GET("/classes/:id", h.Timetable.GetClassTimetable)
			timetables.DELETE("/classes/:id", middleware.RoleAuth(planners...), h.Timetable.DeleteClassTimetable)
			timetables.GET("/classes/:id/export", h.Export.ExportClass)

			timetables.POST("/entries", middleware.RoleAuth(editors...), h.Timetable.CreateEntry)
			timetables.PATCH("/entries/:id", middleware.RoleAuth(planners...), h.Timetable.UpdateEntry)

			timetables.GET("/stats", h.Timetable.Stats)
		}

		// 审计日志
		api.GET("/audit-logs", middleware.RoleAuth(model.RoleAdmin), h.Audit.List)
	}

	return r
}
