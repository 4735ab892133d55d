package app

import (
	"edu_assessment_backend/docs"
	"edu_assessment_backend/internal/config"
	"edu_assessment_backend/internal/middleware"
	"edu_assessment_backend/internal/model"
	"edu_assessment_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	router.GET("/api/health", c.health.HealthCheck)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		// 学生、教师均可访问，权限由服务层校验
		authGroup.GET("/attempts/:id/result", c.attempt.GetResult)
		authGroup.GET("/enrollments/:id/progress", c.progress.GetProgress)

		a.registerStudentRoutes(authGroup, c)
		a.registerTeacherRoutes(authGroup, c)
		a.registerAdminRoutes(authGroup, c)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	student := rg.Group("")
	student.Use(middleware.RoleMiddleware(model.Student))
	{
		student.POST("/tests/:id/attempts", c.attempt.StartAttempt)
		student.GET("/tests/:id/my-attempts", c.attempt.ListMyAttempts)
		student.GET("/attempts/:id", c.attempt.GetAttempt)
		student.PUT("/attempts/:id/draft", c.attempt.SaveDraft)
		student.POST("/attempts/:id/submit", c.attempt.SubmitAttempt)
		student.POST("/attempts/:id/uploads", c.attempt.UploadAnswerFile)
		student.POST("/enrollments/:id/progress", c.progress.RecordProgress)
	}
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	teacher := rg.Group("")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		teacher.POST("/tests", c.test.CreateTest)
		teacher.GET("/tests", c.test.ListTests)
		teacher.GET("/tests/:id", c.test.GetTest)
		teacher.PATCH("/tests/:id", c.test.UpdateTest)
		teacher.POST("/tests/:id/publish", c.test.PublishTest)
		teacher.POST("/tests/:id/archive", c.test.ArchiveTest)
		teacher.GET("/tests/:id/stats", c.test.GetStats)
		teacher.GET("/tests/:id/attempts", c.test.ListAttempts)
		teacher.POST("/attempts/:id/grade", c.grade.GradeAttempt)
	}
}

func (a *App) registerAdminRoutes(rg *gin.RouterGroup, c *controllers) {
	admin := rg.Group("/admin")
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		admin.POST("/subjects", c.admin.CreateSubject)
		admin.POST("/enrollments", c.admin.CreateEnrollment)
	}
}
