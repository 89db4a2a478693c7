// Package server contains the HTTP surface: the auto-post trigger endpoints
// and the scheduling CRUD API.
package server

import (
	"context"
	"log"
	"time"

	"postpilot/internal/bootstrap"
	"postpilot/internal/config"
	"postpilot/internal/engine"
	"postpilot/internal/middleware"
	"postpilot/internal/models"
	"postpilot/internal/repository"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// SweepRunner runs one auto-post sweep. Satisfied by *engine.Engine.
type SweepRunner interface {
	RunSweep(ctx context.Context, trigger string) (*engine.SweepReport, error)
}

// Server holds all dependencies and provides handlers
type Server struct {
	config   *config.Config
	db       *gorm.DB
	redis    *redis.Client
	postRepo repository.ScheduledPostRepository
	userRepo repository.UserRepository
	sweeper  SweepRunner
}

// NewServer builds the HTTP server over a bootstrapped runtime.
func NewServer(rt *bootstrap.Runtime) *Server {
	return &Server{
		config:   rt.Config,
		db:       rt.DB,
		redis:    rt.Redis,
		postRepo: rt.Posts,
		userRepo: rt.Users,
		sweeper:  rt.Engine,
	}
}

// NewServerWithDeps wires a server from pre-built dependencies. Used by tests
// to mount the real routes over stub repositories and engines.
func NewServerWithDeps(
	cfg *config.Config,
	posts repository.ScheduledPostRepository,
	users repository.UserRepository,
	sweeper SweepRunner,
) *Server {
	middleware.InitMiddleware(cfg)
	return &Server{
		config:   cfg,
		postRepo: posts,
		userRepo: users,
		sweeper:  sweeper,
	}
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Request ID for tracing
	app.Use(requestid.New())

	// Security headers
	app.Use(helmet.New())

	// Propagate request ID and user ID into the request context for the
	// context-aware logger.
	app.Use(middleware.ContextMiddleware())

	// Structured logging middleware
	app.Use(middleware.StructuredLogger())

	// Prometheus HTTP metrics
	prom := middleware.InitMetrics("postpilot")
	prom.RegisterAt(app, "/metrics")
	app.Use(middleware.MetricsMiddleware(prom))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Trigger-Caller",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health check
	api.Get("/", s.HealthCheck)
	api.Get("/health", s.HealthCheck)

	// Auto-post trigger routes. /run authenticates machine callers (platform
	// cron, local poller); /run/manual authenticates an admin user.
	autopost := api.Group("/autopost")
	autopost.Post("/run", s.TriggerAuth, s.RunAutoPost)
	autopost.Post("/run/manual", middleware.AuthRequired, s.RunAutoPostManual)

	// Scheduling CRUD, owner-scoped
	schedule := api.Group("/schedule", middleware.AuthRequired)
	schedule.Post("/", middleware.RateLimit(s.redis, 30, time.Minute, "create_schedule"), s.CreateSchedule)
	schedule.Get("/", s.ListSchedules)
	// Define specific /:id/:action routes BEFORE generic /:id route
	schedule.Post("/:id/cancel", s.CancelSchedule)
	schedule.Post("/:id/requeue", s.RequeueSchedule)
	schedule.Get("/:id", s.GetSchedule)
	schedule.Delete("/:id", s.DeleteSchedule)
}

// HealthCheck handles health check requests
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			dbStatus = "unhealthy"
		} else if err := sqlDB.PingContext(ctx); err != nil {
			dbStatus = "unhealthy"
		}
	} else {
		dbStatus = "unavailable"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{
		"service": "postpilot",
		"status":  "healthy",
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now().UTC(),
	})
}

// App builds the Fiber application with middleware and routes mounted.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "PostPilot API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the server
func (s *Server) Start() error {
	app := s.App()
	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}
