package http

import (
	"log/slog"
	"time"

	"github.com/geocoder89/civicfix/internal/domain/user"
	"github.com/geocoder89/civicfix/internal/http/handlers"
	"github.com/geocoder89/civicfix/internal/http/middlewares"
	"github.com/geocoder89/civicfix/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const (
	jsonBodyLimit = 1 << 20
	// a few KB of form fields on top of the images
	multipartOverhead = 1 << 20
)

type RouterDeps struct {
	Env         string
	ServiceName string
	Log         *slog.Logger

	Accounts handlers.AccountService
	Defects  handlers.DefectService
	Tokens   middlewares.TokenVerifier
	Checks   map[string]handlers.Pinger

	Prom     *observability.Prom
	Gatherer prometheus.Gatherer

	CORSOrigins   []string
	UploadDir     string // served at /uploads when non-empty
	MaxImages     int
	MaxImageBytes int64
	AuthRateLimit int
	// per user per minute on defect creation; 0 disables
	CreateRateLimit int
	// proxies whose X-Forwarded-For is believed; none by default
	TrustedProxies []string
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	if err := r.SetTrustedProxies(deps.TrustedProxies); err != nil {
		log.Warn("router.trusted_proxies_invalid", "err", err)
		_ = r.SetTrustedProxies(nil)
	}

	// middleware
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	if deps.ServiceName != "" {
		r.Use(otelgin.Middleware(deps.ServiceName))
	}
	r.Use(middlewares.RequestLogger(deps.Log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORS(deps.CORSOrigins))
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}

	// health
	h := handlers.NewHealthHandler(deps.Checks)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)

	if deps.UploadDir != "" {
		r.Static("/uploads", deps.UploadDir)
	}

	multipartLimit := int64(deps.MaxImages)*deps.MaxImageBytes + multipartOverhead
	r.MaxMultipartMemory = multipartLimit

	api := r.Group("/api")
	api.Use(middlewares.MaxBodyBytes(jsonBodyLimit, multipartLimit))

	authMW := middlewares.NewAuthMiddleware(deps.Tokens)
	limiter := middlewares.NewRateLimiter(deps.AuthRateLimit, time.Minute)

	authH := handlers.NewAuthHandler(deps.Accounts)
	authGroup := api.Group("/auth")
	{
		limited := authGroup.Group("", limiter.Middleware(middlewares.KeyByIP), middlewares.RequireJSON())
		limited.POST("/register", authH.Register)
		limited.POST("/login", authH.Login)

		authGroup.GET("/me", authMW.RequireAuth(), authH.Me)
	}

	createLimiter := middlewares.NewRateLimiter(deps.CreateRateLimit, time.Minute)

	defectsH := handlers.NewDefectsHandler(deps.Defects).WithMaxImages(deps.MaxImages)
	defects := api.Group("/defects", authMW.RequireAuth())
	{
		defects.POST("",
			createLimiter.Middleware(middlewares.KeyByUserOrIP),
			middlewares.RequireContentType("multipart/form-data"),
			defectsH.Create)
		defects.GET("", defectsH.List)

		defects.GET("/suggestions/search", defectsH.Suggestions)
		defects.GET("/notifications/unread", defectsH.Unread)

		defects.GET("/:id", defectsH.Get)
		defects.PUT("/:id", middlewares.RequireJSON(), defectsH.Update)
		defects.DELETE("/:id", defectsH.Delete)

		defects.PUT("/:id/status",
			authMW.RequireRole(user.RoleAdmin, user.RoleModerator),
			middlewares.RequireJSON(),
			defectsH.SetStatus)
		defects.POST("/:id/comment",
			authMW.RequireRole(user.RoleAdmin),
			middlewares.RequireJSON(),
			defectsH.AddComment)
		defects.PUT("/:id/read-comments", defectsH.MarkRead)
	}

	return r
}
