package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"checkin-campaign/backend/config"
	"checkin-campaign/backend/internal/api/handler"
	"checkin-campaign/backend/internal/api/middleware"
	"checkin-campaign/backend/pkg/jwt"
	"checkin-campaign/backend/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 可为 nil，此时限流直接放行
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, db *gorm.DB, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		status := gin.H{"status": "ok", "db": "ok", "redis": "disabled"}
		code := http.StatusOK
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status["status"], status["db"] = "degraded", "unreachable"
			code = http.StatusServiceUnavailable
		}
		if rdb != nil {
			status["redis"] = "ok"
			if err := rdb.Ping(c.Request.Context()); err != nil {
				status["redis"] = "unreachable"
			}
		}
		c.JSON(code, status)
	})

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr))
	{
		// 管理端
		admin := v1.Group("/admin")
		admin.Use(middleware.RoleAuth("admin"))
		{
			schedules := admin.Group("/checkin-schedules")
			{
				schedules.POST("", h.Schedule.Allocate)
				schedules.POST("/batch", h.Schedule.AllocateBatch)
				schedules.GET("", h.Schedule.List)
				schedules.DELETE("/:student_id", h.Schedule.Delete)
			}

			permissions := admin.Group("/self-schedule/permissions")
			{
				permissions.GET("", h.SelfSchedule.ListPermissions)
				permissions.POST("", h.SelfSchedule.GrantPermissions)
				permissions.POST("/revoke", h.SelfSchedule.RevokePermissions)
			}

			admin.GET("/checkin-stats", h.Qualification.GetCohortStats)
			admin.GET("/participants/:student_id/progress", h.Qualification.GetProgress)
			admin.GET("/participants/:student_id/completion", h.Qualification.GetCompletion)
			admin.GET("/export/checkin-report", h.Export.ExportReport)
		}

		// 学员自主设定
		selfSchedule := v1.Group("/self-schedule")
		{
			selfSchedule.GET("", h.SelfSchedule.GetStatus)
			selfSchedule.POST("",
				middleware.RateLimit(rdb, cfg.Campaign.SelfScheduleRate, time.Minute, logger),
				h.SelfSchedule.Submit,
			)
		}

		// 学员本人
		me := v1.Group("/me")
		{
			me.GET("/checkin-schedule", h.Schedule.GetMine)
			me.GET("/checkin-schedule.ics", h.Export.ExportMyScheduleICS)
			me.GET("/progress", h.Qualification.GetMyProgress)
			me.GET("/completion", h.Qualification.GetMyCompletion)
			me.POST("/refund-request", h.Qualification.RequestMyRefund)
		}
	}

	return r
}
