// Command ocrworker polls the job queue for "ocr" jobs, conditions and
// recognizes each greyscale frame, and promotes videos to ready once every
// sibling frame has been processed.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mwork/videoindex-api/internal/config"
	"github.com/mwork/videoindex-api/internal/domain/frame"
	"github.com/mwork/videoindex-api/internal/domain/video"
	"github.com/mwork/videoindex-api/internal/pipeline/ocrworker"
	"github.com/mwork/videoindex-api/internal/pkg/database"
	"github.com/mwork/videoindex-api/internal/pkg/jobqueue"
	"github.com/mwork/videoindex-api/internal/pkg/logger"
	"github.com/mwork/videoindex-api/internal/pkg/ocr"
	"github.com/mwork/videoindex-api/internal/pkg/storage"
)

func main() {
	cfg := config.Load()
	setupLogger(cfg)
	log.Info().Msg("starting ocrworker")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer database.ClosePostgres(db)

	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("failed to connect to redis - ocr-index-updated events disabled")
		rdb = nil
	}
	defer database.CloseRedis(rdb)

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

	engine := ocr.NewHTTPEngine(cfg.OCREngineURL, 30*time.Second)
	w := ocrworker.New(video.NewRepository(db), frame.NewRepository(db), st, engine, rdb, log.Logger)

	jobs := jobqueue.NewRepository(db)
	runWorkerLoop(cfg, jobs, jobqueue.TypeOCR, func(ctx context.Context, job *jobqueue.Job) error {
		var payload jobqueue.OCRPayload
		if err := job.DecodePayload(&payload); err != nil {
			return err
		}
		return w.Run(ctx, payload)
	})
}

// runWorkerLoop mirrors the other binaries' poll loop, with one addition:
// ocr.ErrOCRFatal skips the retry schedule and fails the job immediately,
// per the OCR engine invocation contract.
func runWorkerLoop(cfg *config.Config, jobs jobqueue.Repository, jobType jobqueue.Type, process func(ctx context.Context, job *jobqueue.Job) error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigChan
		log.Info().Msg("shutdown signal received")
		cancel()
	}()

	ticker := time.NewTicker(cfg.JobPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("job_type", string(jobType)).Msg("worker stopped")
			return
		case <-ticker.C:
		}

		job, err := jobs.Claim(ctx, jobType)
		if err != nil {
			if !errors.Is(err, jobqueue.ErrNoJob) {
				log.Error().Err(err).Msg("claim failed")
			}
			continue
		}

		// The claimed job runs on a context the shutdown signal does not
		// cancel; a panic in process is recovered and nacked as a job error.
		jobCtx := context.WithoutCancel(ctx)
		start := time.Now()
		err = func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					log.Error().Interface("panic", p).Str("job_id", job.ID).Msg("job panicked")
					err = errors.New("job panicked")
				}
			}()
			return process(jobCtx, job)
		}()
		if err != nil {
			log.Error().Err(err).Str("job_id", job.ID).Dur("took", time.Since(start)).Msg("job failed")

			if errors.Is(err, ocr.ErrOCRFatal) {
				if failErr := jobs.Fail(jobCtx, job.ID, err); failErr != nil {
					log.Error().Err(failErr).Str("job_id", job.ID).Msg("failed to mark job fatally failed")
				}
				continue
			}

			if nackErr := jobs.Nack(jobCtx, job.ID, err, cfg.JobRetryBaseDelay); nackErr != nil {
				log.Error().Err(nackErr).Str("job_id", job.ID).Msg("failed to nack job")
			}
			continue
		}

		if ackErr := jobs.Ack(jobCtx, job.ID); ackErr != nil {
			log.Error().Err(ackErr).Str("job_id", job.ID).Msg("failed to ack job")
			continue
		}
		log.Info().Str("job_id", job.ID).Dur("took", time.Since(start)).Msg("job done")
	}
}

func setupLogger(cfg *config.Config) {
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env}); err != nil {
		log.Error().Err(err).Msg("failed to initialize logger")
	}
}
