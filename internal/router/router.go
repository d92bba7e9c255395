package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/prepgen-backend/internal/config"
	"github.com/stemsi/prepgen-backend/internal/handler"
	"github.com/stemsi/prepgen-backend/internal/middleware"
	"github.com/stemsi/prepgen-backend/internal/model"
	"github.com/stemsi/prepgen-backend/internal/response"
	"github.com/stemsi/prepgen-backend/internal/service"
)

// catalogueMaxAge is how long browsers may reuse the public catalogue.
const catalogueMaxAge = time.Minute

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Health      *handler.HealthHandler
	Auth        *handler.AuthHandler
	Subject     *handler.SubjectHandler
	Question    *handler.QuestionHandler
	Paper       *handler.PaperHandler
	Attempt     *handler.AttemptHandler
	StudentMgmt *handler.StudentManagementHandler
	Admin       *handler.AdminHandler
	Dashboard   *handler.DashboardHandler
	Monitor     *handler.MonitorHandler
	WS          *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	counter middleware.Counter,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID first so the request log and every envelope carry it.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.Health.Check)

	// ─── 0. Public Group (No Auth) ─────────────────────────────────────
	publicAPI := router.Group("/api/v1/public")
	publicAPI.Use(middleware.CacheControl(catalogueMaxAge))
	{
		publicAPI.GET("/subjects", handlers.Subject.Catalogue)
	}

	authLimiter := middleware.NewRateLimiter(counter, "auth", cfg.AuthRateLimitPerMin, time.Minute, log)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(middleware.NoStore())
	{
		auth.POST("/student/register", authLimiter.Middleware(), handlers.Auth.StudentRegister)
		auth.POST("/student/login", authLimiter.Middleware(), handlers.Auth.StudentLogin)
		auth.POST("/admin/login", authLimiter.Middleware(), handlers.Auth.AdminLogin)

		// Authenticated profile routes
		auth.POST("/student/logout",
			middleware.RequireStudentJWT(authService),
			middleware.CheckSingleDeviceSession(authService),
			handlers.Auth.StudentLogout,
		)
		auth.GET("/student/me",
			middleware.RequireStudentJWT(authService),
			middleware.CheckSingleDeviceSession(authService),
			handlers.Auth.GetStudentProfile,
		)
		auth.GET("/admin/me", middleware.RequireAdminJWT(authService), handlers.Auth.GetAdminProfile)
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
		middleware.NoStore(),
	)
	{
		studentAPI.POST("/papers/preview", handlers.Paper.StudentPreview)
		studentAPI.POST("/papers", handlers.Paper.Start)

		studentAPI.GET("/attempts", handlers.Attempt.ListMine)
		studentAPI.GET("/attempts/:attempt_id", handlers.Attempt.GetMine)
		studentAPI.GET("/attempts/:attempt_id/paper", handlers.Attempt.GetPaper)
		studentAPI.PUT("/attempts/:attempt_id/answers", handlers.Attempt.SaveAnswer)
		studentAPI.POST("/attempts/:attempt_id/submit", handlers.Attempt.Submit)
		studentAPI.GET("/attempts/:attempt_id/export", handlers.Attempt.ExportMine)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireStudentWSAuth(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		ws.GET("/student/attempts/:attempt_id/stream", handlers.WS.AttemptStream)
	}

	// ─── 4. Admin Group (JWT + RBAC) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService), middleware.NoStore())
	{
		// Subjects & chapters
		adminAPI.GET("/subjects",
			middleware.RequirePermission(model.PermissionSubjectsRead),
			handlers.Subject.GetAll,
		)
		adminAPI.GET("/subjects/:id",
			middleware.RequirePermission(model.PermissionSubjectsRead),
			handlers.Subject.Get,
		)
		adminAPI.POST("/subjects",
			middleware.RequirePermission(model.PermissionSubjectsWrite),
			handlers.Subject.Create,
		)
		adminAPI.PUT("/subjects/:id",
			middleware.RequirePermission(model.PermissionSubjectsWrite),
			handlers.Subject.Update,
		)
		adminAPI.DELETE("/subjects/:id",
			middleware.RequirePermission(model.PermissionSubjectsWrite),
			handlers.Subject.Delete,
		)
		adminAPI.GET("/subjects/:id/chapters",
			middleware.RequirePermission(model.PermissionSubjectsRead),
			handlers.Subject.ListChapters,
		)
		adminAPI.POST("/subjects/:id/chapters",
			middleware.RequirePermission(model.PermissionSubjectsWrite),
			handlers.Subject.CreateChapter,
		)
		adminAPI.PUT("/subjects/:id/chapters/:chapter_id",
			middleware.RequirePermission(model.PermissionSubjectsWrite),
			handlers.Subject.UpdateChapter,
		)
		adminAPI.DELETE("/subjects/:id/chapters/:chapter_id",
			middleware.RequirePermission(model.PermissionSubjectsWrite),
			handlers.Subject.DeleteChapter,
		)

		// Question bank
		adminAPI.GET("/questions",
			middleware.RequirePermission(model.PermissionQuestionsRead),
			handlers.Question.ListQuestions,
		)
		adminAPI.GET("/questions/:id",
			middleware.RequirePermission(model.PermissionQuestionsRead),
			handlers.Question.GetQuestion,
		)
		adminAPI.POST("/questions",
			middleware.RequirePermission(model.PermissionQuestionsWrite),
			handlers.Question.CreateQuestion,
		)
		adminAPI.POST("/questions/import",
			middleware.RequirePermission(model.PermissionQuestionsWrite),
			handlers.Question.ImportQuestions,
		)
		adminAPI.PUT("/questions/:id",
			middleware.RequirePermission(model.PermissionQuestionsWrite),
			handlers.Question.UpdateQuestion,
		)
		adminAPI.DELETE("/questions/:id",
			middleware.RequirePermission(model.PermissionQuestionsWrite),
			handlers.Question.DeleteQuestion,
		)
		adminAPI.POST("/questions/:id/verify",
			middleware.RequirePermission(model.PermissionQuestionsVerify),
			handlers.Question.VerifyQuestion,
		)

		// Paper preview (reviewers check coverage before students see it)
		adminAPI.POST("/papers/preview",
			middleware.RequireAnyPermission(model.PermissionQuestionsRead, model.PermissionQuestionsVerify),
			handlers.Paper.AdminPreview,
		)

		// Students
		adminAPI.GET("/students",
			middleware.RequirePermission(model.PermissionStudentsRead),
			handlers.StudentMgmt.ListStudents,
		)
		adminAPI.GET("/students/:id",
			middleware.RequirePermission(model.PermissionStudentsRead),
			handlers.StudentMgmt.GetStudent,
		)
		adminAPI.POST("/students",
			middleware.RequirePermission(model.PermissionStudentsWrite),
			handlers.StudentMgmt.CreateStudent,
		)
		adminAPI.PUT("/students/:id",
			middleware.RequirePermission(model.PermissionStudentsWrite),
			handlers.StudentMgmt.UpdateStudent,
		)
		adminAPI.DELETE("/students/:id",
			middleware.RequirePermission(model.PermissionStudentsWrite),
			handlers.StudentMgmt.DeleteStudent,
		)
		adminAPI.GET("/students/:id/attempts",
			middleware.RequireAllPermissions(model.PermissionStudentsRead, model.PermissionAttemptsRead),
			handlers.StudentMgmt.ListStudentAttempts,
		)
		adminAPI.POST("/students/:id/reset-session",
			middleware.RequirePermission(model.PermissionStudentsResetSession),
			handlers.StudentMgmt.ResetStudentSession,
		)

		// Attempts & analytics
		adminAPI.GET("/attempts",
			middleware.RequirePermission(model.PermissionAttemptsRead),
			handlers.Attempt.ListResults,
		)
		adminAPI.GET("/attempts/:attempt_id",
			middleware.RequirePermission(model.PermissionAttemptsRead),
			handlers.Attempt.GetAttempt,
		)
		adminAPI.POST("/attempts/:attempt_id/force-complete",
			middleware.RequirePermission(model.PermissionAttemptsWrite),
			handlers.Attempt.ForceComplete,
		)
		adminAPI.GET("/subjects/:id/analytics",
			middleware.RequirePermission(model.PermissionReportsRead),
			handlers.Attempt.Analytics,
		)
		adminAPI.GET("/subjects/:id/analytics/export",
			middleware.RequirePermission(model.PermissionReportsRead),
			handlers.Attempt.ExportAnalytics,
		)

		// Dashboard & live monitor
		adminAPI.GET("/dashboard",
			middleware.RequirePermission(model.PermissionReportsRead),
			handlers.Dashboard.GetDashboardData,
		)
		adminAPI.GET("/subjects/:id/monitor",
			middleware.RequirePermission(model.PermissionAttemptsRead),
			handlers.Monitor.MonitorSubjectSSE,
		)
		adminAPI.GET("/subjects/:id/monitor/snapshot",
			middleware.RequirePermission(model.PermissionAttemptsRead),
			handlers.Monitor.GetSnapshot,
		)

		// Staff
		adminAPI.GET("/roles",
			middleware.RequirePermission(model.PermissionAdminsManage),
			handlers.Admin.ListRoles,
		)
		adminAPI.GET("/admins",
			middleware.RequirePermission(model.PermissionAdminsManage),
			handlers.Admin.ListAdmins,
		)
		adminAPI.POST("/admins",
			middleware.RequirePermission(model.PermissionAdminsManage),
			handlers.Admin.CreateAdmin,
		)
	}

	return router
}
