// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, CORS,
// security headers, optional Basic authentication, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
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
	"gorm.io/gorm"

	"github.com/tbourn/go-location-broker/docs"
	"github.com/tbourn/go-location-broker/internal/config"
	"github.com/tbourn/go-location-broker/internal/http/handlers"
	"github.com/tbourn/go-location-broker/internal/http/middleware"
	"github.com/tbourn/go-location-broker/internal/repo"
	"github.com/tbourn/go-location-broker/internal/services"
)

const swaggerPath = "/swagger/*any"

var (
	corsMethods       = []string{"GET", "HEAD", "POST", "OPTIONS"}
	corsHeaders       = []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", handlers.HeaderUser, handlers.HeaderDevice}
	corsExposeHeaders = []string{"X-Request-ID", "Content-Length", "Content-Disposition", "ETag"}
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine: one ingestion endpoint per enabled decoder, the datalogger read
// and export API, health, metrics and (optionally) Swagger UI. It fails
// when the configuration names an unknown decoder.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS and Security headers
//  8. Optional Basic auth (before the limiter so users get their own bucket)
//  9. Rate limiter (per user/device/IP)
func RegisterRoutes(r *gin.Engine, db *gorm.DB, arch handlers.Archiver, cfg config.Config) error {
	profiles, err := services.LookupProfiles(cfg.EnabledDecoders)
	if err != nil {
		return err
	}

	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured access logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit
	r.Use(limitBody(cfg.MaxBodyBytes))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) CORS posture (allow all if none configured) and security headers
	useCORS(r, cfg.CORS.AllowedOrigins)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
	}))

	// Dependency injection: services ← repo/db
	store := repo.Store{}
	devSvc := services.NewDeviceService(db, store)
	trackSvc := services.NewTrackService(db, store)
	if cfg.TrackGap > 0 {
		trackSvc.GapThreshold = cfg.TrackGap
	}
	userSvc := services.NewUserService(db, store)

	// 8) Attach the Basic-auth user, if any
	r.Use(middleware.OptionalBasicAuth(userSvc))

	// 9) Token-bucket rate limiter
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).
		Exempt("/health", "/metrics", swaggerPath)
	r.Use(rl.Handler())

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET(swaggerPath, ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := groupWithPrefix(r, cfg.APIBasePath)

	// Ingestion: one endpoint per decoder. Any method is routed so that
	// non-POST requests get the decoder's own 405 text.
	for _, p := range profiles {
		ingSvc := services.NewIngestService(db, store, p)
		if cfg.DedupPolicy != "" {
			ingSvc.DedupPolicy = cfg.DedupPolicy
		}
		ih := handlers.NewIngestHandler(p, arch, devSvc, ingSvc, cfg.Bus.Exchange)
		if cfg.ResponseStyle != "" {
			ih.ResponseStyle = cfg.ResponseStyle
		}
		api.Any("/"+p.App+"/"+p.Name, ih.Handle)
	}

	// Read API
	h := handlers.New(devSvc, trackSvc, cfg.DefaultLength)
	dl := api.Group("/dataloggers", gzip.Gzip(gzip.DefaultCompression))
	{
		dl.GET("", h.ListDataloggers)
		dl.GET("/:id", h.GetDatalogger)
		dl.GET("/:id/track", h.ExportTrack)
	}
	return nil
}

// useCORS installs gin-contrib/cors. With no allowlist every origin is
// accepted; otherwise allowed origins are echoed back explicitly.
func useCORS(r *gin.Engine, origins []string) {
	if len(origins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     corsMethods,
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    corsExposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
		return
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
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
		AllowOrigins:     origins,
		AllowMethods:     corsMethods,
		AllowHeaders:     corsHeaders,
		ExposeHeaders:    corsExposeHeaders,
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error. A non-positive cap disables it.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
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
