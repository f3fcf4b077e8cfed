package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-enrollment-api/internal/handler"
	"github.com/noah-isme/uni-enrollment-api/internal/middleware"
	"github.com/noah-isme/uni-enrollment-api/internal/models"
	"github.com/noah-isme/uni-enrollment-api/internal/service"
	"github.com/noah-isme/uni-enrollment-api/pkg/config"
	"github.com/noah-isme/uni-enrollment-api/pkg/logger"
	"github.com/noah-isme/uni-enrollment-api/pkg/middleware/requestid"
)

// Handlers groups the HTTP handlers mounted by New.
type Handlers struct {
	Auth        *handler.AuthHandler
	Courses     *handler.CourseHandler
	Enrollments *handler.EnrollmentHandler
	Metrics     *handler.MetricsHandler
}

const (
	admin   = string(models.RoleAdmin)
	teacher = string(models.RoleTeacher)
	student = string(models.RoleStudent)
)

// New builds the gin engine with the global middleware chain and every route.
func New(cfg *config.Config, log *zap.Logger, tokens middleware.TokenValidator, metrics *service.MetricsService, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestid.Middleware())
	r.Use(logger.GinMiddleware(log))
	r.Use(cors.New(corsConfig(cfg.CORS.AllowedOrigins)))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.POST("/auth/login", h.Auth.Login)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(tokens))
	api.GET("/auth/me", h.Auth.Me)

	courses := api.Group("/courses")
	{
		courses.GET("", h.Courses.List)
		courses.GET("/code/:code", h.Courses.GetByCode)
		courses.GET("/:id", h.Courses.Get)
		courses.POST("", middleware.RBAC(admin), h.Courses.Create)
		courses.PUT("/:id", middleware.RBAC(admin), h.Courses.Update)
		courses.DELETE("/:id", middleware.RBAC(admin), h.Courses.Delete)

		courses.GET("/:id/cycle-check/:prerequisiteId", h.Courses.CheckCycle)
		courses.POST("/:id/prerequisites/:prerequisiteId", middleware.RBAC(admin), h.Courses.AddPrerequisite)
		courses.DELETE("/:id/prerequisites/:prerequisiteId", middleware.RBAC(admin), h.Courses.RemovePrerequisite)

		courses.PUT("/:id/teacher/:teacherId", middleware.RBAC(admin), h.Courses.AssignTeacher)
		courses.DELETE("/:id/teacher", middleware.RBAC(admin), h.Courses.UnassignTeacher)

		courses.GET("/:id/enrollments", middleware.RBAC(admin, teacher), h.Enrollments.ListByCourse)
		courses.GET("/:id/roster", middleware.RBAC(admin, teacher), h.Courses.Roster)
	}

	api.GET("/teachers/:id/courses", h.Courses.ListByTeacher)

	students := api.Group("/students/:id")
	{
		students.GET("/enrollments", middleware.RBAC(admin, middleware.Self), h.Enrollments.ListByStudent)
		students.GET("/prerequisite-check/:courseId", middleware.RBAC(admin, teacher, middleware.Self), h.Enrollments.CheckPrerequisites)
	}

	enrollments := api.Group("/enrollments")
	{
		enrollments.GET("", middleware.RBAC(admin), h.Enrollments.List)
		enrollments.GET("/:id", middleware.RBAC(admin, teacher, student), h.Enrollments.Get)
		enrollments.POST("", middleware.RBAC(admin, student), h.Enrollments.Create)
		enrollments.PUT("/:id/status", middleware.RBAC(admin, teacher), h.Enrollments.UpdateStatus)
		enrollments.DELETE("/:id", middleware.RBAC(admin, student), h.Enrollments.Delete)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "route not found"}})
	})

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) > 0 {
		cfg.AllowOrigins = origins
	} else {
		cfg.AllowAllOrigins = true
	}
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", requestid.Header}
	cfg.ExposeHeaders = []string{requestid.Header, "Content-Disposition"}
	cfg.MaxAge = 10 * time.Minute
	return cfg
}
