package app

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/subhamkb4/Crunchyroll-api/internal/checker"
	"github.com/subhamkb4/Crunchyroll-api/internal/maintenance"
	"github.com/subhamkb4/Crunchyroll-api/internal/observability"
)

type Options struct {
	LoadDotEnv bool
}

type Runtime struct {
	Handler http.Handler
	Close   func() error
}

func Build(options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	logger := observability.NewLogger()

	if err := observability.InitSentry(os.Getenv("SENTRY_DSN"), envOrDefault("APP_ENV", "development")); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	sessions := checker.NewSessionFactory(envSecondsOrDefault("CHECK_TIMEOUT_SECONDS", 30))
	accountChecker := checker.New(envOrDefault("TARGET_BASE_URL", checker.DefaultBaseURL), sessions, logger)

	maxClients := envIntOrDefault("RATE_LIMIT_MAX_CLIENTS", 5000)
	singleLimiter := checker.NewRateLimiter(
		envIntOrDefault("CHECK_RATE_LIMIT_MAX", 10),
		envSecondsOrDefault("CHECK_RATE_LIMIT_WINDOW_SECONDS", 60),
		maxClients,
	)
	batchLimiter := checker.NewRateLimiter(
		envIntOrDefault("BATCH_RATE_LIMIT_MAX", 3),
		envSecondsOrDefault("BATCH_RATE_LIMIT_WINDOW_SECONDS", 120),
		maxClients,
	)

	gate := checker.NewGate(envIntOrDefault("CHECK_CONCURRENCY", 1))
	pacing := checker.FixedDelayPacing(envSecondsOrDefault("BATCH_PACING_SECONDS", 3))

	handler := checker.NewHandler(accountChecker, singleLimiter, batchLimiter, gate, pacing, logger)
	cleanupHandler := maintenance.NewCleanupHandler(
		map[string]*checker.RateLimiter{
			"single_check": singleLimiter,
			"batch_check":  batchLimiter,
		},
		logger,
		os.Getenv("CRON_SECRET"),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", handler.Home)
	mux.HandleFunc("GET /api/health", handler.Health)
	mux.HandleFunc("POST /api/check", handler.Check)
	mux.HandleFunc("POST /api/batch-check", handler.BatchCheck)
	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("/", handler.NotFound)

	wrapped := observability.RecoverMiddleware(logger, observability.RequestLoggingMiddleware(logger, mux))

	return &Runtime{
		Handler: wrapped,
		Close: func() error {
			observability.FlushSentry()
			return nil
		},
	}, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}
