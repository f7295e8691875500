package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stemsi/mcqprep-backend/internal/config"
	"github.com/stemsi/mcqprep-backend/internal/database"
	"github.com/stemsi/mcqprep-backend/internal/handler"
	"github.com/stemsi/mcqprep-backend/internal/logger"
	"github.com/stemsi/mcqprep-backend/internal/middleware"
	"github.com/stemsi/mcqprep-backend/internal/repository"
	"github.com/stemsi/mcqprep-backend/internal/router"
	"github.com/stemsi/mcqprep-backend/internal/service"
	"github.com/stemsi/mcqprep-backend/internal/validator"
	"github.com/stemsi/mcqprep-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("question_source", cfg.QuestionSource).
		Msg("Starting MCQ Prep Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Question Bank ─────────────────────────────────────────────────
	var store service.QuestionStore
	switch cfg.QuestionSource {
	case config.SourceFile:
		fileRepo, err := repository.NewQuestionFileRepository(cfg.QuestionsFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.QuestionsFile).Msg("Failed to load question file")
		}
		store = fileRepo
	default:
		var pool *pgxpool.Pool
		pool, err = database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		store = repository.NewQuestionRepository(pool)
	}

	// ─── Initialize Repositories ───────────────────────────────────────
	snapshotRepo := repository.NewSnapshotRepository(rdb, cfg.SnapshotTTL)
	resultRepo := repository.NewResultRepository(rdb, cfg.ResultTTL)

	// ─── Initialize Services ──────────────────────────────────────────
	questionService := service.NewQuestionService(store, rdb, log)
	ticketService := service.NewTicketService(cfg.JWTSecret, cfg.JWTExpiry)
	sessionService := service.NewQuizSessionService(
		questionService,
		snapshotRepo,
		resultRepo,
		ticketService,
		service.SessionSettings{
			Duration:      cfg.QuizDuration,
			SubmitDelay:   cfg.SubmitDelay,
			PassThreshold: cfg.PassThreshold,
		},
		log,
	)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Catalog: handler.NewCatalogHandler(questionService, log),
		Quiz:    handler.NewQuizHandler(sessionService, log),
		WS:      handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	reaperWorker := worker.NewReaperWorker(sessionService, cfg.SessionIdle, log)
	go reaperWorker.Start(workerCtx)

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load every question set into Redis BEFORE accepting traffic.
	if err := questionService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	startLimiter := middleware.NewRateLimiter(rdb, cfg.StartRateLimit, time.Minute, log)
	r := router.SetupRouter(ticketService, startLimiter, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the reaper, then abort live sessions so their results are
	// graded and stored before Redis goes away.
	workerCancel()
	sessionService.Shutdown(shutdownCtx)

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
