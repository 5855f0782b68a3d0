package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/handler"
	"github.com/coursehub/coursehub-api/internal/middleware"
	"github.com/coursehub/coursehub-api/internal/models"
	"github.com/coursehub/coursehub-api/internal/repository"
	"github.com/coursehub/coursehub-api/internal/service"
	"github.com/coursehub/coursehub-api/pkg/config"
	"github.com/coursehub/coursehub-api/pkg/logger"
	corsmiddleware "github.com/coursehub/coursehub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/coursehub/coursehub-api/pkg/middleware/requestid"
)

// Dependencies bundles everything the HTTP layer needs.
type Dependencies struct {
	Logger *zap.Logger

	AuthService    *service.AuthService
	MetricsService *service.MetricsService
	UserRepo       *repository.UserRepository

	Auth        *handler.AuthHandler
	Users       *handler.UserHandler
	Profiles    *handler.StudentProfileHandler
	Courses     *handler.CourseHandler
	Sessions    *handler.SessionHandler
	Enrollments *handler.EnrollmentHandler
	Homeworks   *handler.HomeworkHandler
	Submissions *handler.SubmissionHandler
	Resources   *handler.ResourceHandler
	Ratings     *handler.RatingHandler
	Messages    *handler.MessageHandler
	Exports     *handler.ExportHandler
	Metrics     *handler.MetricsHandler

	ReadyCheck func() error
}

// New assembles the gin engine with all routes and middleware.
func New(cfg *config.Config, deps Dependencies) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.MetricsService))

	r.GET("/health", deps.Metrics.Health)
	r.GET("/ready", func(c *gin.Context) {
		if deps.ReadyCheck != nil {
			if err := deps.ReadyCheck(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", deps.Metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if cfg.Uploads.StorageDir != "" {
		r.Static("/uploads", cfg.Uploads.StorageDir)
	}

	api := r.Group(cfg.APIPrefix)

	// Signed downloads carry their credential in the token itself.
	api.GET("/files/:token", deps.Submissions.Download)

	auth := api.Group("/auth")
	{
		auth.POST("/signup", deps.Auth.Signup)
		auth.POST("/login", deps.Auth.Login)
		auth.POST("/refresh", deps.Auth.Refresh)
		auth.POST("/forgot-password", deps.Auth.ForgotPassword)
		auth.POST("/reset-password", deps.Auth.ResetPassword)

		session := auth.Group("")
		session.Use(middleware.JWT(deps.AuthService))
		session.POST("/logout", deps.Auth.Logout)
		session.POST("/change-password", deps.Auth.ChangePassword)
		session.GET("/me", deps.Auth.Me)
	}

	// Catalog routes stay public. The listing is always published-only
	// (drafts live under /courses/mine); claims are attached when a token
	// is presented so the owner can open an unpublished course detail.
	catalog := api.Group("")
	catalog.Use(middleware.OptionalJWT(deps.AuthService))
	{
		catalog.GET("/courses", deps.Courses.Browse)
		catalog.GET("/courses/:id", deps.Courses.Get)
		catalog.GET("/courses/:id/sessions", deps.Sessions.List)
		catalog.GET("/courses/:id/ratings", deps.Ratings.List)
		catalog.GET("/courses/:id/ratings/summary", deps.Ratings.Summary)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(deps.AuthService))
	{
		authed.GET("/users/me", deps.Users.Profile)
		authed.PUT("/users/me", deps.Users.UpdateProfile)

		authed.GET("/enrollments", deps.Enrollments.List)
		// Assignment and material listings are for the roster, not the
		// public catalog; the service checks enrollment or ownership.
		authed.GET("/courses/:id/homeworks", deps.Homeworks.ListByCourse)
		authed.GET("/courses/:id/resources", deps.Resources.ListByCourse)
		authed.GET("/homeworks/:id", deps.Homeworks.Get)
		authed.GET("/submissions/:id/file", deps.Submissions.FileLink)

		authed.POST("/messages", deps.Messages.Send)
		authed.GET("/messages/unread-count", deps.Messages.Unread)
		authed.GET("/courses/:id/messages", deps.Messages.Thread)
	}

	parents := api.Group("/student-profiles")
	parents.Use(middleware.JWT(deps.AuthService), middleware.RequireRoles(models.RoleParent))
	{
		parents.POST("", deps.Profiles.Create)
		parents.GET("", deps.Profiles.List)
		parents.GET("/:id", deps.Profiles.Get)
		parents.PUT("/:id", deps.Profiles.Update)
		parents.DELETE("/:id", deps.Profiles.Delete)
	}

	learners := api.Group("")
	learners.Use(middleware.JWT(deps.AuthService), middleware.RequireRoles(models.RoleStudent, models.RoleParent))
	{
		learners.POST("/enrollments", deps.Enrollments.Create)
		learners.POST("/enrollments/:id/withdraw", deps.Enrollments.Withdraw)
		learners.PUT("/enrollments/:id/progress", deps.Enrollments.UpdateProgress)

		learners.POST("/homeworks/:id/submissions", deps.Submissions.Submit)
		learners.GET("/homeworks/:id/submissions/mine", deps.Submissions.Mine)
		learners.POST("/submissions/files", deps.Submissions.Upload)

		learners.POST("/courses/:id/ratings", deps.Ratings.Rate)
		learners.DELETE("/courses/:id/ratings", deps.Ratings.Delete)
	}

	instructors := api.Group("")
	instructors.Use(middleware.JWT(deps.AuthService), middleware.RequireRoles(models.RoleInstructor, models.RoleAdmin))
	{
		instructors.GET("/courses/mine", deps.Courses.Mine)
		instructors.POST("/courses", deps.Courses.Create)
		instructors.PUT("/courses/:id", deps.Courses.Update)
		instructors.DELETE("/courses/:id", deps.Courses.Delete)
		instructors.POST("/courses/:id/publish", deps.Courses.Publish)
		instructors.POST("/courses/:id/unpublish", deps.Courses.Unpublish)

		instructors.POST("/courses/:id/sessions", deps.Sessions.Create)
		instructors.POST("/courses/:id/sessions/generate", deps.Sessions.Generate)
		instructors.POST("/courses/:id/sessions/generate-more", deps.Sessions.GenerateMore)
		instructors.PUT("/sessions/:id", deps.Sessions.Update)
		instructors.DELETE("/sessions/:id", deps.Sessions.Delete)

		instructors.POST("/courses/:id/homeworks", deps.Homeworks.Create)
		instructors.PUT("/homeworks/:id", deps.Homeworks.Update)
		instructors.DELETE("/homeworks/:id", deps.Homeworks.Delete)

		instructors.GET("/homeworks/:id/submissions", deps.Submissions.ListByHomework)
		instructors.POST("/submissions/:id/grade", deps.Submissions.Grade)
		instructors.POST("/enrollments/:id/complete", deps.Enrollments.Complete)

		instructors.POST("/courses/:id/resources", deps.Resources.CreateLink)
		instructors.POST("/courses/:id/resources/upload", deps.Resources.Upload)
		instructors.PUT("/resources/:id", deps.Resources.Update)
		instructors.DELETE("/resources/:id", deps.Resources.Delete)

		instructors.GET("/courses/:id/roster",
			middleware.Audit(deps.UserRepo, models.AuditActionExport, "roster"),
			deps.Exports.Roster)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.JWT(deps.AuthService), middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/metrics", deps.Metrics.Snapshot)
	}

	return r
}
