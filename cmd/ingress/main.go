// Command ingress serves the HTTP API: video upload, the read-only video
// catalog, per-video frame listing, and full-text search. It also runs the
// 15-second ocr_index reconciler as a background goroutine.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/mwork/videoindex-api/internal/config"
	"github.com/mwork/videoindex-api/internal/domain/frame"
	"github.com/mwork/videoindex-api/internal/domain/search"
	"github.com/mwork/videoindex-api/internal/domain/video"
	"github.com/mwork/videoindex-api/internal/middleware"
	"github.com/mwork/videoindex-api/internal/pkg/database"
	"github.com/mwork/videoindex-api/internal/pkg/jobqueue"
	"github.com/mwork/videoindex-api/internal/pkg/logger"
	"github.com/mwork/videoindex-api/internal/pkg/response"
	"github.com/mwork/videoindex-api/internal/pkg/selfheal"
	"github.com/mwork/videoindex-api/internal/pkg/storage"
)

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	log.Info().Str("env", cfg.Env).Str("port", cfg.Port).Msg("starting ingress")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer database.ClosePostgres(db)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := selfheal.Heal(ctx, db, log.Logger); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("schema self-heal failed")
	}
	cancel()

	st, err := storage.New(storage.Config{
		Type:        cfg.StorageType,
		LocalPath:   cfg.LocalStoragePath,
		LocalURL:    cfg.LocalStorageURL,
		S3Endpoint:  cfg.StorageEndpoint,
		S3Region:    cfg.StorageRegion,
		S3Bucket:    cfg.StorageBucket,
		S3AccessKey: cfg.StorageAccessKey,
		S3SecretKey: cfg.StorageSecretKey,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize object storage")
	}

	videoRepo := video.NewRepository(db)
	frameRepo := frame.NewRepository(db)
	jobsRepo := jobqueue.NewRepository(db)
	searchRepo := search.NewRepository(db)

	videoService := video.NewService(videoRepo, jobsRepo, st, log.Logger)
	frameService := frame.NewService(frameRepo, st)
	searchService := search.NewService(searchRepo, st)

	videoHandler := video.NewHandler(videoService, cfg.JobMaxRetries)
	frameHandler := frame.NewHandler(frameService)
	searchHandler := search.NewHandler(searchService)

	reconciler := search.NewReconciler(db, log.Logger)
	reconciler.Start()
	defer reconciler.Stop()

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
	r.Use(chimw.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{"status": "ok"})
	})

	r.Mount("/", videoHandler.Routes())
	r.Route("/api/videos/{id}/frames", func(r chi.Router) {
		r.Mount("/", frameHandler.Routes())
	})
	r.Route("/api/search", func(r chi.Router) {
		r.Mount("/", searchHandler.Routes())
	})

	rootHandler := middleware.Logger(middleware.Recover(r))
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down ingress")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("ingress exited properly")
}

func setupLogger(cfg *config.Config) {
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env}); err != nil {
		log.Error().Err(err).Msg("failed to initialize logger")
	}
}
