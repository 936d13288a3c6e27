// Command sampler polls the job queue for "sample" jobs and runs the
// Sampler pipeline stage on each one.
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
	"github.com/mwork/videoindex-api/internal/pipeline/sampler"
	"github.com/mwork/videoindex-api/internal/pkg/database"
	"github.com/mwork/videoindex-api/internal/pkg/jobqueue"
	"github.com/mwork/videoindex-api/internal/pkg/logger"
	"github.com/mwork/videoindex-api/internal/pkg/scenedetect"
	"github.com/mwork/videoindex-api/internal/pkg/storage"
)

func main() {
	cfg := config.Load()
	setupLogger(cfg)
	log.Info().Msg("starting sampler")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer database.ClosePostgres(db)

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

	detector, err := scenedetect.NewFFmpegDetector(cfg.SampleThreshold)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to locate ffmpeg for scene detection")
	}

	s := sampler.New(
		video.NewRepository(db),
		frame.NewRepository(db),
		jobqueue.NewRepository(db),
		st,
		detector,
		cfg.TmpDir,
		log.Logger,
	)

	runWorkerLoop(cfg, jobqueue.NewRepository(db), jobqueue.TypeSample, func(ctx context.Context, job *jobqueue.Job) error {
		var payload jobqueue.SamplePayload
		if err := job.DecodePayload(&payload); err != nil {
			return err
		}
		return s.Run(ctx, payload, cfg.JobMaxRetries)
	})
}

// runWorkerLoop is the Claim/process/Ack-or-Nack poll loop shared by every
// worker binary: idle-poll on a ticker, process one job at a time, and
// react to SIGINT/SIGTERM by finishing the in-flight job before exiting.
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
