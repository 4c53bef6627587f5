// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns
// such as tracing, correlation IDs, logging/redaction, panic recovery,
// metrics, compression, CORS, security headers, idempotency, and rate
// limiting.
//
// Design goals:
//   - Observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/ihirwe/go-triage-backend/internal/config"
	"github.com/ihirwe/go-triage-backend/internal/http/handlers"
	"github.com/ihirwe/go-triage-backend/internal/http/middleware"
	"github.com/ihirwe/go-triage-backend/internal/repo"
	"github.com/ihirwe/go-triage-backend/internal/services"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given
// Gin engine: observability (tracing, metrics), idempotency and rate
// limiting, compression, CORS and security headers, health and metrics
// endpoints, and the versioned public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with patient-PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Gzip compression (reports are large, repetitive JSON)
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per client IP, bypass on replay)
//  10. CORS and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction (patient phones appear in the
	// lookup query string)
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key",
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Response compression; /metrics is left uncompressed for scrapers
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, sessionID uint, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, sessionID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 9) Token-bucket rate limiter per client IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP())
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps
		// tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist.
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
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
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

	// Dependency injection: services ← db
	regSvc := services.NewRegistryService(db)
	sessSvc := services.NewSessionService(db)
	asmtSvc := services.NewAssessmentService(db)
	wfSvc := services.NewWorkflowService(db)
	h := handlers.New(db, regSvc, sessSvc, asmtSvc, wfSvc, cfg.IdempotencyTTL)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Patients
		api.POST("/patients", h.RegisterPatient)
		api.GET("/patients", h.ListPatientsByPhone)
		api.GET("/patients/lookup", h.LookupPatient)
		api.GET("/patients/:id", h.GetPatient)
		api.PATCH("/patients/:id", h.UpdatePatient)
		api.GET("/patients/:id/history", h.PatientHistory)
		api.GET("/patients/:id/sessions", h.ListPatientSessions)
		api.DELETE("/patients/:id", h.DeletePatient)

		// Healthcare workers
		api.POST("/workers", h.RegisterWorker)
		api.GET("/workers", h.ListWorkers)
		api.GET("/workers/:id", h.GetWorker)
		api.DELETE("/workers/:id", h.DeactivateWorker)

		// Sessions and conversation store
		api.POST("/sessions", h.OpenSession)
		api.GET("/sessions/:id", h.GetSession)
		api.POST("/sessions/:id/messages", h.PostMessage)
		api.GET("/sessions/:id/messages", h.ListMessages)
		api.POST("/sessions/:id/symptoms", h.RecordSymptom)
		api.GET("/sessions/:id/symptoms", h.ListSymptoms)
		api.PATCH("/sessions/:id/notes", h.UpdateSessionNotes)
		api.POST("/sessions/:id/close", h.CloseSession)
		api.DELETE("/sessions/:id", h.DeleteSession)

		// Assessments
		api.POST("/sessions/:id/prediction", h.RecordPrediction)
		api.GET("/sessions/:id/prediction", h.GetPrediction)
		api.POST("/predictions/:id/review", h.ReviewPrediction)
		api.POST("/sessions/:id/prescriptions", h.Prescribe)
		api.GET("/sessions/:id/prescriptions", h.ListPrescriptions)
		api.POST("/prescriptions/:id/dispense", h.DispensePrescription)

		// Reports
		api.GET("/reports/review-queue", h.ReviewQueue)
		api.GET("/reports/sessions", h.SessionOverview)
		api.GET("/reports/worker-activity", h.WorkerActivity)
	}
}

// limitBody returns a Gin middleware that caps the request body size for
// all endpoints using http.MaxBytesReader. Requests exceeding the cap will
// cause downstream body reads to error.
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
