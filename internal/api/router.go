package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/emailauth/emailauth/docs"
	"github.com/emailauth/emailauth/internal/api/handler"
	"github.com/emailauth/emailauth/internal/api/middleware"
	"github.com/emailauth/emailauth/internal/core/ports"
)

// Dependencies carries everything the HTTP layer needs. Readiness maps a
// dependency name to its ping function.
type Dependencies struct {
	Auth      ports.AuthService
	Users     ports.UserManager
	JWTSecret string
	Readiness map[string]handler.PingFunc
	Log       zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(middleware.Metrics())

	authHandler := handler.NewAuthHandler(deps.Auth)
	userHandler := handler.NewUserHandler(deps.Users)
	authMiddleware := middleware.Auth(deps.JWTSecret)
	account := middleware.LoadAccount(deps.Users)
	staff := middleware.RequireStaff()
	superuser := middleware.RequireSuperuser()
	canEmail := middleware.RequirePerm(deps.Users, "emailauth.email_user")

	// --- Auth routes ---
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)

	// --- Account routes ---
	users := e.Group("/users", authMiddleware, account)
	users.GET("/me", userHandler.Me)
	users.GET("/me/permissions", userHandler.MyPermissions)
	users.GET("/me/permissions/:app", userHandler.MyModulePerms)
	users.PUT("/me/password", userHandler.ChangePassword)
	users.GET("", userHandler.Lookup, staff)
	users.GET("/:id", userHandler.Get, staff)
	users.POST("/:id/email", userHandler.Email, canEmail)
	users.POST("/superusers", userHandler.CreateSuperuser, superuser)
	users.PUT("/:id/active", userHandler.SetActive, superuser)
	users.DELETE("/:id/password", userHandler.ClearPassword, superuser)
	users.POST("/:id/groups", userHandler.AddToGroup, superuser)
	users.POST("/:id/permissions", userHandler.GrantPermission, superuser)

	groups := e.Group("/groups", authMiddleware, account, superuser)
	groups.PUT("/:name", userHandler.SaveGroup)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(deps.Readiness)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	// --- Operational endpoints ---
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)
	e.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusFound, "/swagger/index.html")
	})

	return e
}
