// Package httpapi wires the Gin engine: the shared middleware chain, the
// Slack webhook, health and metrics endpoints, Swagger UI, and the optional
// read-only admin API.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. ContextLogger: request-scoped zerolog logger on the request context
//  4. RedactingLogger: one scrubbed access log line per request
//  5. Recovery: capture panics after logger
//  6. Body size limiter
//  7. Metrics
//
// The admin group adds gzip, CORS, no-store headers, bearer auth and a
// per-subject token bucket, in that order.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/duckbot/internal/config"
	_ "github.com/tbourn/duckbot/internal/docs"
	"github.com/tbourn/duckbot/internal/http/handlers"
	"github.com/tbourn/duckbot/internal/http/middleware"
)

// maxBodyBytes caps every request body. Slack event payloads are a few KiB.
const maxBodyBytes = 1 << 20

// AdminBasePath is where the admin API is mounted.
const AdminBasePath = "/api/v1/admin"

// Deps are the handlers' collaborators.
type Deps struct {
	Events *handlers.Events
	Stats  handlers.StatsReader
}

// RegisterRoutes attaches all middleware and endpoints to r.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.ContextLogger())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(middleware.Metrics())

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/", handlers.Health)
	r.GET("/health", handlers.Health)

	r.POST(cfg.EventsPath, deps.Events.Receive)

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if cfg.Admin.APIEnabled {
		registerAdmin(r, deps, cfg)
	}
}

func registerAdmin(r *gin.Engine, deps Deps, cfg config.Config) {
	ids := make([]string, 0, len(cfg.Tenants))
	for _, t := range cfg.Tenants {
		ids = append(ids, t.ID)
	}
	h := handlers.NewAdmin(deps.Stats, ids)
	rl := middleware.NewRateLimiter(cfg.Admin.RateRPS, cfg.Admin.RateBurst, middleware.KeyBySubjectOrIP())

	admin := r.Group(AdminBasePath)
	admin.Use(gzip.Gzip(gzip.DefaultCompression))
	admin.Use(corsFor(cfg.Admin.CORS.AllowedOrigins))
	admin.Use(middleware.NoStoreHeaders())
	admin.Use(middleware.AdminAuth(cfg.Admin.JWTSecret, cfg.Admin.UserIDs))
	admin.Use(rl.Handler())
	{
		admin.GET("/tenants/:tenant/stats", h.TenantStats)
		admin.GET("/tenants/:tenant/queries", h.RecentQueries)
	}

	// Preflights are answered by the CORS middleware ahead of AdminAuth;
	// these routes only give gin something to match.
	preflight := r.Group(AdminBasePath, corsFor(cfg.Admin.CORS.AllowedOrigins))
	for _, p := range []string{"/tenants/:tenant/stats", "/tenants/:tenant/queries"} {
		preflight.OPTIONS(p, func(c *gin.Context) { c.Status(http.StatusNoContent) })
	}
}

// corsFor allows any origin without credentials when no allowlist is set;
// otherwise only the listed origins are echoed back.
func corsFor(origins []string) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Accept", "Authorization"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return cors.New(c)
}

// limitBody caps request bodies at maxBytes; reads past the cap fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
