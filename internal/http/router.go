// Package httpapi wires the HTTP transport (Gin) to the bot's read side,
// the Telegram webhook, and the middleware stack. It centralizes
// cross-cutting concerns such as tracing, correlation IDs, logging and
// redaction, panic recovery, metrics, CORS, security headers, compression,
// authentication and rate limiting.
//
// Surfaces:
//   - GET  /health, GET /metrics            always
//   - POST /telegram/:secret                when webhook delivery is enabled
//   - GET  {APIBasePath}/...                when ADMIN_API_TOKEN is set
//   - GET  /swagger/*any                    when SWAGGER_ENABLED
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

	"github.com/tbourn/go-feedback-bot/docs"
	"github.com/tbourn/go-feedback-bot/internal/config"
	"github.com/tbourn/go-feedback-bot/internal/http/handlers"
	"github.com/tbourn/go-feedback-bot/internal/http/middleware"
)

// webhookPrefix is the raw path prefix of the webhook route. Everything after
// it is secret.
const webhookPrefix = "/telegram/"

// Deps are the collaborators the routes need.
type Deps struct {
	// Triage backs the admin API.
	Triage handlers.TriageService
	// Sink receives webhook updates; nil when the bot long-polls.
	Sink handlers.UpdateSink
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with secret scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS and Security headers
//
// The admin group adds bearer auth, then the rate limiter keyed by principal,
// then gzip. The webhook is not rate limited here; the dispatcher limits per
// sender instead.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskPathPrefixes: []string{webhookPrefix},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB); Telegram updates are far smaller
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics("/metrics"))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) CORS posture (safe defaults: allow all if none configured)
	corsMethods := []string{"GET", "POST", "OPTIONS"}
	corsHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match"}
	corsExpose := []string{"X-Request-ID", "Content-Length", "ETag"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     corsMethods,
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    corsExpose,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     corsMethods,
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    corsExpose,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS). List
	// responses carry ETags, so clients may cache but must revalidate.
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:            cfg.Security.EnableHSTS,
		HSTSMaxAge:            cfg.Security.HSTSMaxAge,
		Cache:                 middleware.CacheRevalidate,
		EnablePolicy:          true,
		ContentSecurityPolicy: middleware.APIContentSecurityPolicy,
		CSPExemptPrefixes:     []string{"/swagger/"},
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	h := handlers.New(deps.Triage, deps.Sink)

	// Telegram webhook
	if cfg.Webhook.Enabled() && deps.Sink != nil {
		r.POST(webhookPrefix+":secret", h.Webhook(cfg.Webhook.Secret))
	}

	// Read-only admin API
	if cfg.AdminAPIToken != "" && deps.Triage != nil {
		rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByPrincipalOrIP())
		api := groupWithPrefix(r, cfg.APIBasePath)
		api.Use(
			middleware.BearerAuth(cfg.AdminAPIToken),
			rl.Handler(),
			gzip.Gzip(gzip.DefaultCompression),
		)
		{
			api.GET("/unanswered", h.ListUnanswered)
			api.GET("/users", h.ListUsers)
			api.GET("/users/:id/history", h.UserHistory)
		}
	}

	// API docs
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
