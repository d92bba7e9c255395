package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/prepgen-backend/internal/config"
	"github.com/stemsi/prepgen-backend/internal/database"
	"github.com/stemsi/prepgen-backend/internal/generator"
	"github.com/stemsi/prepgen-backend/internal/handler"
	"github.com/stemsi/prepgen-backend/internal/logger"
	"github.com/stemsi/prepgen-backend/internal/middleware"
	"github.com/stemsi/prepgen-backend/internal/repository"
	"github.com/stemsi/prepgen-backend/internal/router"
	"github.com/stemsi/prepgen-backend/internal/scoring"
	"github.com/stemsi/prepgen-backend/internal/service"
	"github.com/stemsi/prepgen-backend/internal/validator"
	"github.com/stemsi/prepgen-backend/internal/worker"
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
		Msg("Starting PrepGen Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	studentRepo := repository.NewStudentRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)
	roleRepo := repository.NewRoleRepository(pool)
	subjectRepo := repository.NewSubjectRepository(pool)
	chapterRepo := repository.NewChapterRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	paperRepo := repository.NewPaperRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	dashboardRepo := repository.NewDashboardRepository(pool)
	monitorRepo := repository.NewMonitorRepository(pool, rdb)

	// ─── Paper Generation & Scoring ────────────────────────────────────
	gen := generator.New(questionRepo, generator.Options{
		MaxRelaxationPasses: cfg.MaxRelaxationPasses,
		IncludeUnverified:   cfg.IncludeUnverified,
	})
	scorer := scoring.New(scoring.Thresholds{
		Qualified:  cfg.QualifiedThreshold,
		Borderline: cfg.BorderlineThreshold,
	})

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	studentService := service.NewStudentService(studentRepo, authService)
	adminService := service.NewAdminService(adminRepo, roleRepo, authService)
	subjectService := service.NewSubjectService(subjectRepo, chapterRepo, rdb, cfg, log)
	questionService := service.NewQuestionService(questionRepo, chapterRepo, log)
	paperService := service.NewPaperService(pool, chapterRepo, questionRepo, paperRepo, attemptRepo, gen, rdb, cfg, log)
	attemptService := service.NewAttemptService(pool, attemptRepo, questionRepo, paperService, scorer, rdb, log)
	exportService := service.NewExportService(attemptService, subjectService, questionRepo, attemptRepo, cfg, log)
	dashboardService := service.NewDashboardService(dashboardRepo)
	monitorService := service.NewMonitorService(monitorRepo, cfg, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Health: handler.NewHealthHandler(map[string]database.Pinger{
			"postgres": pool,
			"redis":    database.RedisPinger{Client: rdb},
		}),
		Auth:        handler.NewAuthHandler(authService, studentService, adminService),
		Subject:     handler.NewSubjectHandler(subjectService),
		Question:    handler.NewQuestionHandler(questionService),
		Paper:       handler.NewPaperHandler(paperService),
		Attempt:     handler.NewAttemptHandler(attemptService, paperService, exportService),
		StudentMgmt: handler.NewStudentManagementHandler(studentService, attemptService),
		Admin:       handler.NewAdminHandler(adminService),
		Dashboard:   handler.NewDashboardHandler(dashboardService),
		Monitor:     handler.NewMonitorHandler(rdb, subjectService, monitorService, log),
		WS:          handler.NewWSHandler(rdb, paperService, attemptService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	queue := worker.RedisQueue{Client: rdb}

	autosaveWorker := worker.NewAutosaveWorker(attemptRepo, queue, cfg.AutosaveBatchSize, log)
	expiryWorker := worker.NewExpiryWorker(attemptService, queue, cfg.ExpiryInterval, cfg.ExpiryBatchSize, log)

	var workers sync.WaitGroup
	workers.Add(2)
	go func() { defer workers.Done(); autosaveWorker.Start(workerCtx) }()
	go func() { defer workers.Done(); expiryWorker.Start(workerCtx) }()

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// The public catalogue is read on every landing page; load it before
	// accepting traffic so the first wave does not all miss together.
	if _, err := subjectService.WarmCatalogue(ctx); err != nil {
		log.Warn().Err(err).Msg("Catalogue prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, middleware.RedisCounter{Client: rdb}, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

	// 2. Stop background workers and wait for the autosave queue to drain.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
