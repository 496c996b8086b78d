package app

import (
	"ielts_backend/docs"
	"ielts_backend/internal/config"
	"ielts_backend/internal/middleware"
	"ielts_backend/internal/model"
	"ielts_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
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
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		authGroup.GET("/profile", c.auth.GetProfile)

		// 测试内容
		authGroup.GET("/tests", c.test.ListTests)
		authGroup.GET("/tests/:id", c.test.GetTest)

		// 会话生命周期
		authGroup.POST("/sessions/start", c.session.StartSession)
		authGroup.PUT("/sessions/:id/answers", c.session.RecordAnswers)
		authGroup.POST("/sessions/:id/save", c.session.SaveSession)
		authGroup.POST("/sessions/:id/submit", c.session.SubmitSession)
		authGroup.GET("/sessions/:id/status", c.session.SessionStatus)
		authGroup.POST("/sessions/:id/audio", c.session.UploadSpeakingAudio)

		// 成绩
		authGroup.GET("/results", c.result.ListMyResults)
		authGroup.GET("/results/:id", c.result.GetResult)

		// 教师评阅接口
		review := authGroup.Group("/reviews")
		review.Use(middleware.RoleMiddleware(model.Teacher))
		{
			review.GET("/pending", c.review.PendingReviews)
			review.POST("/:id/grade", c.review.SubmitGrade)
		}
	}
}
