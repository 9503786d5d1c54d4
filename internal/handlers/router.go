package handlers

import (
	"html/template"
	"net/http"
	"time"

	"todolist/internal/logging"
	"todolist/internal/middleware"
	"todolist/internal/monitoring"
	"todolist/internal/services"
	"todolist/internal/web"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type RouterConfig struct {
	DB             *gorm.DB
	Accounts       services.AccountService
	Sessions       services.SessionService
	Tasks          services.TaskService
	Cookie         middleware.SessionCookie
	Templates      *template.Template
	Logger         *log.Logger
	Metrics        *monitoring.Metrics
	Health         *monitoring.HealthChecker
	MetricsExtra   map[string]monitoring.StatsFunc
	AllowedOrigins []string
}

// NewRouter wires the pages, the task routes behind the login guard and the
// monitoring endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Metrics == nil {
		cfg.Metrics = monitoring.NewMetrics()
	}
	if cfg.Health == nil {
		cfg.Health = monitoring.NewHealthChecker(5 * time.Second)
	}
	if cfg.Templates == nil {
		cfg.Templates = web.MustTemplates()
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.SetHTMLTemplate(cfg.Templates)

	router.Use(logging.RequestLogger(cfg.Logger))
	router.Use(middleware.RecoveryWithLog())
	router.Use(cfg.Metrics.Middleware())

	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost},
			AllowHeaders:     []string{"Origin", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	monitoring.Register(router, cfg.Metrics, cfg.Health, cfg.MetricsExtra)

	loadSession := middleware.LoadSession(cfg.DB, cfg.Sessions, cfg.Cookie, cfg.Logger)
	accountHandler := NewAccountHandler(cfg.DB, cfg.Accounts, cfg.Sessions, cfg.Cookie, cfg.Logger)
	taskHandler := NewTaskHandler(cfg.DB, cfg.Tasks, cfg.Logger)

	pages := router.Group("/", loadSession)
	{
		pages.GET("/", Home)
		pages.GET("/signup", accountHandler.SignupForm)
		pages.POST("/signup", accountHandler.Signup)
		pages.GET("/signin", accountHandler.SigninForm)
		pages.POST("/signin", accountHandler.Signin)
	}

	private := pages.Group("/", middleware.RequireAuth())
	{
		private.GET("/logout", accountHandler.Signout)
		private.POST("/logout", accountHandler.Signout)

		private.GET("/tasks", taskHandler.ListPending)
		private.GET("/tasks_completed", taskHandler.ListCompleted)
		private.GET("/tasks/create", taskHandler.CreateForm)
		private.POST("/tasks/create", taskHandler.Create)
		private.GET("/tasks/:id", taskHandler.Detail)
		private.POST("/tasks/:id", taskHandler.Update)
		private.POST("/tasks/:id/complete", taskHandler.Complete)
		private.POST("/tasks/:id/delete", taskHandler.Delete)

		for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodDelete} {
			private.Handle(method, "/tasks/:id/complete", taskHandler.PostOnly)
			private.Handle(method, "/tasks/:id/delete", taskHandler.PostOnly)
		}
	}

	router.NoRoute(loadSession, NotFound)
	router.NoMethod(loadSession, MethodNotAllowed)

	return router
}
