// Package main is the entrypoint for the Imgvault API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/imgvault/imgvault/internal/auth"
	"github.com/imgvault/imgvault/internal/cache"
	"github.com/imgvault/imgvault/internal/cleanup"
	"github.com/imgvault/imgvault/internal/config"
	"github.com/imgvault/imgvault/internal/handler"
	"github.com/imgvault/imgvault/internal/imgur"
	"github.com/imgvault/imgvault/internal/metrics"
	"github.com/imgvault/imgvault/internal/middleware"
	"github.com/imgvault/imgvault/internal/repository"
	"github.com/imgvault/imgvault/internal/server"
	"github.com/imgvault/imgvault/internal/service"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	// Initialize provider client
	imgurClient := imgur.NewClient(&imgur.Config{
		ClientID:       cfg.ImgurClientID,
		BaseURL:        cfg.ImgurBaseURL,
		ConnectTimeout: cfg.ImgurConnectTimeout,
		RequestTimeout: cfg.ImgurRequestTimeout,
	}, logger)

	// Initialize auth tokens
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)

	metricsRecorder := metrics.NewNoop()

	// Initialize orphan cleanup pipeline
	var orphans service.OrphanQueue
	var cleanupWorker *cleanup.Worker
	if cfg.CleanupEnabled {
		orphans = cleanup.NewPublisher(cacheClient.Client(), logger, metricsRecorder)
		hostname, _ := os.Hostname()
		cleanupWorker = cleanup.NewWorker(
			cacheClient.Client(),
			imgurClient,
			logger,
			hostname,
			cfg.CleanupMaxAttempts,
			metricsRecorder,
		)
	}

	// Initialize services
	imageService := service.NewImageService(
		imgurClient,
		repo,
		orphans,
		cfg.MaxUploadSize,
		cfg.GetAllowedContentTypes(),
		logger,
		metricsRecorder,
	)
	userService := service.NewUserService(repo, tokens, logger)

	// Initialize handlers
	h := handler.New()
	healthHandler := handler.NewHealthHandler(repo, cacheClient)
	imageHandler := handler.NewImageHandler(imageService, cfg.MaxUploadSize, logger)
	userHandler := handler.NewUserHandler(userService, logger)

	// Setup router
	r := setupRouter(h, healthHandler, imageHandler, userHandler, cacheClient, tokens, cfg, logger)

	// Create server
	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	// Start the cleanup worker before the server so it is the last to stop.
	if cleanupWorker != nil {
		workerCtx, cancelWorker := context.WithCancel(ctx)
		go func() {
			if err := cleanupWorker.Run(workerCtx); err != nil && err != context.Canceled {
				logger.Error("cleanup worker stopped", "error", err)
			}
		}()
		srv.OnShutdown("cleanup_worker", func(ctx context.Context) error {
			cancelWorker()
			return cleanupWorker.Shutdown(ctx)
		})
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"imgur_base_url", cfg.ImgurBaseURL,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	h *handler.Handler,
	healthHandler *handler.HealthHandler,
	imageHandler *handler.ImageHandler,
	userHandler *handler.UserHandler,
	cacheClient *cache.Cache,
	tokens *auth.TokenService,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	// Health endpoints (no auth required)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)

	// Root info endpoint
	r.Get("/", h.Hello)

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:  logger,
		Cache:   cacheClient,
		Enabled: cfg.RateLimitEnabled,
		RPS:     cfg.RateLimitRPS,
		Burst:   cfg.RateLimitBurst,
	}

	// Registration and login (no auth required, rate limited per IP)
	r.Route("/users", func(r chi.Router) {
		r.Use(middleware.RateLimitIP(rateLimitCfg))
		r.Post("/register", userHandler.Register)
		r.Post("/login", userHandler.Login)
	})

	authCfg := middleware.AuthConfig{
		Logger: logger,
		Tokens: tokens,
	}

	// API v1 routes (require authentication)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(authCfg))
		r.Use(middleware.RateLimitIP(rateLimitCfg))

		r.Route("/images", func(r chi.Router) {
			r.Post("/", imageHandler.Upload)
			r.Get("/", imageHandler.List)
			r.Get("/{imageHash}", imageHandler.Get)
			r.Delete("/{imageHash}", imageHandler.Delete)
		})
	})

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
