package app

import (
	"unilms_backend/docs"
	"unilms_backend/internal/config"
	"unilms_backend/internal/middleware"
	"unilms_backend/internal/model"
	"unilms_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	// 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		authGroup.GET("/me", c.auth.Me)
		authGroup.PUT("/profile", c.user.UpdateProfile)
		authGroup.POST("/profile/avatar", c.user.UploadAvatar)

		// 演示文稿与签到问题：教师维护
		presentations := authGroup.Group("/presentations")
		{
			teacherOnly := presentations.Group("")
			teacherOnly.Use(middleware.RoleMiddleware(model.Teacher))
			{
				teacherOnly.POST("", c.presentation.Create)
				teacherOnly.GET("", c.presentation.List)
				teacherOnly.GET("/:id", c.presentation.Get)
				teacherOnly.GET("/:id/checkpoints", c.presentation.ListCheckpoints)
				teacherOnly.PUT("/:id", c.presentation.Update)
				teacherOnly.DELETE("/:id", c.presentation.Delete)
				teacherOnly.POST("/:id/deck", c.presentation.UploadDeck)
				teacherOnly.POST("/:id/checkpoints", c.presentation.CreateCheckpoint)
				teacherOnly.PUT("/:id/checkpoints/:checkpointId", c.presentation.UpdateCheckpoint)
				teacherOnly.DELETE("/:id/checkpoints/:checkpointId", c.presentation.DeleteCheckpoint)
			}
		}

		// 直播会话
		sessions := authGroup.Group("/sessions")
		{
			sessions.GET("/join/:code", c.session.Join)
			sessions.GET("/:id", c.session.Get)
			sessions.POST("/:id/responses", c.session.SubmitResponse)

			teacherOnly := sessions.Group("")
			teacherOnly.Use(middleware.RoleMiddleware(model.Teacher))
			{
				teacherOnly.POST("", c.session.Create)
				teacherOnly.GET("", c.session.List)
				teacherOnly.POST("/:id/end", c.session.End)
				teacherOnly.GET("/:id/report", c.session.Report)
				teacherOnly.POST("/:id/recording", c.session.UploadRecording)
			}
		}

		// 实时课堂：websocket与问题生命周期
		live := authGroup.Group("/live")
		{
			live.GET("/:id/ws", c.live.Connect)
			live.GET("/:id/state", c.live.CurrentState)

			teacherOnly := live.Group("")
			teacherOnly.Use(middleware.RoleMiddleware(model.Teacher))
			{
				teacherOnly.POST("/:id/checkpoints/start", c.live.StartCheckpoint)
				teacherOnly.POST("/:id/checkpoints/stop", c.live.StopCheckpoint)
			}
		}
	}

	// 管理员相关接口
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg), middleware.RoleMiddleware(model.Admin))
	{
		admin.GET("/users", c.user.GetUsers)
		admin.PUT("/users/:id", c.user.UpdateUser)
		admin.POST("/users/:id/reset-password", c.user.ResetPassword)
		admin.POST("/users/:id/disable", c.user.DisableUser)
	}
}
