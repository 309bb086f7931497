package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/rs/zerolog"

	"fitdesk/internal/middleware"
	"fitdesk/internal/service"
)

// Check is a named dependency probe reported by the health endpoint.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type Deps struct {
	Logger      zerolog.Logger
	Environment string
	FrontendURL string
	Auth        *service.AuthService
	Google      *service.GoogleAuthService
	Calendar    CalendarManager
	Tokens      middleware.TokenParser
	RateLimiter *middleware.RateLimiter
	Metrics     http.Handler
	Checks      []Check
}

type HandlerSet struct {
	log         zerolog.Logger
	environment string
	frontendURL string
	auth        *service.AuthService
	google      *service.GoogleAuthService
	calendar    CalendarManager
	tokens      middleware.TokenParser
	limiter     *middleware.RateLimiter
	metrics     http.Handler
	checks      []Check
}

func NewHandlerSet(d Deps) HandlerSet {
	return HandlerSet{
		log:         d.Logger,
		environment: d.Environment,
		frontendURL: d.FrontendURL,
		auth:        d.Auth,
		google:      d.Google,
		calendar:    d.Calendar,
		tokens:      d.Tokens,
		limiter:     d.RateLimiter,
		metrics:     d.Metrics,
		checks:      d.Checks,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	requireAuth := middleware.Auth(h.tokens)
	limited := []gin.HandlerFunc{}
	if h.limiter != nil {
		limited = append(limited, h.limiter.Middleware())
	}

	auth := router.Group("/auth")
	{
		auth.POST("/login", append(limited, h.Login)...)
		auth.POST("/signup", append(limited, h.Signup)...)
		auth.POST("/forgot-password", append(limited, h.ForgotPassword)...)
		auth.POST("/reset-password", append(limited, h.ResetPassword)...)
		auth.POST("/verify-email", h.VerifyEmail)
		auth.POST("/refresh", h.Refresh)

		if h.google != nil {
			auth.GET("/google", h.GoogleAuth)
			auth.GET("/google/callback", h.GoogleCallback)
			auth.POST("/google/create-user", h.GoogleCreateUser)
		}

		protected := auth.Group("")
		protected.Use(requireAuth)
		protected.POST("/logout", h.Logout)
		protected.GET("/me", h.Me)
		protected.GET("/sessions", h.ListSessions)
		protected.DELETE("/sessions/:id", h.RevokeSession)
		protected.POST("/resend-verification", h.ResendVerification)
	}

	if h.calendar != nil {
		cal := router.Group("/calendar")
		// consent redirects arrive without a bearer token; the signed state names the user
		cal.GET("/google/callback", h.CalendarCallback)

		authed := cal.Group("")
		authed.Use(requireAuth)
		authed.GET("/google/auth-url", h.CalendarAuthURL)
		authed.GET("/status", h.CalendarStatus)
		authed.GET("/events", h.ListCalendarEvents)
		authed.POST("/events", h.CreateCalendarEvent)
		authed.PUT("/events/:id", h.UpdateCalendarEvent)
		authed.DELETE("/events/:id", h.DeleteCalendarEvent)
		authed.POST("/sync", middleware.RequireStaff(), h.SyncCalendar)
	}
}

// RegisterMetrics mounts the Prometheus handler outside the /api prefix.
func (h HandlerSet) RegisterMetrics(router gin.IRoutes) {
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}
}

func ok(c *gin.Context, status int, body gin.H) {
	if body == nil {
		body = gin.H{}
	}
	body["success"] = true
	c.JSON(status, body)
}

func errorJSON(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   code,
		"message": message,
	})
}

// fail answers with the client-visible error when there is one and with the
// flow's generic 500 otherwise.
func (h HandlerSet) fail(c *gin.Context, err error, flowCode, flowMessage string) {
	if svcErr, ok := service.AsError(err); ok {
		errorJSON(c, svcErr.Status, svcErr.Code, svcErr.Message)
		return
	}
	h.log.Error().
		Err(err).
		Str("flow", flowCode).
		Str("path", c.FullPath()).
		Str("request_id", c.Writer.Header().Get("X-Request-Id")).
		Msg("request failed")
	errorJSON(c, http.StatusInternalServerError, flowCode, flowMessage)
}

// bindJSON treats an empty body as an empty object so required-field checks
// still produce a validation error instead of a decode error.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if errors.Is(err, io.EOF) {
		err = binding.Validator.ValidateStruct(dst)
	}
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return false
	}
	return true
}

func requestMeta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
}
