package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/consejo-api/internal/handler"
	"github.com/noah-isme/consejo-api/internal/repository"
	"github.com/noah-isme/consejo-api/internal/service"
	"github.com/noah-isme/consejo-api/pkg/config"
	"github.com/noah-isme/consejo-api/pkg/jobs"
	"github.com/noah-isme/consejo-api/pkg/storage"
)

type exportDeps struct {
	db        *sqlx.DB
	petitions *repository.PetitionRepository
	requests  *repository.MembershipRequestRepository
	audit     *repository.AuditRepository
	metrics   *service.MetricsService
	validate  *validator.Validate
	logger    *zap.Logger
}

// startExports boots the export worker pool, replays queued jobs and starts
// the artifact cleanup loop. The queue lives until ctx is cancelled.
func startExports(ctx context.Context, cfg *config.Config, deps exportDeps) (*jobs.Queue, *handler.ExportHandler, error) {
	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return nil, nil, fmt.Errorf("init export storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	jobRepo := repository.NewExportJobRepository(deps.db)

	worker := service.NewExportWorker(jobRepo, deps.petitions, deps.requests, store, signer, deps.metrics, deps.logger, service.ExportWorkerConfig{
		APIPrefix: cfg.APIPrefix,
	})
	queue := jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		RetryDelay: 2 * time.Second,
		OnGiveUp:   worker.GiveUp,
		Logger:     deps.logger,
	})
	queue.Start(ctx)

	exportSvc := service.NewExportService(jobRepo, queue, store, signer, deps.audit, deps.metrics, deps.validate, deps.logger, service.ExportServiceConfig{
		ResultTTL:       signer.TTL(),
		CleanupInterval: cfg.Exports.CleanupInterval,
	})
	exportSvc.RecoverPendingJobs(ctx)
	exportSvc.StartCleanup(ctx)

	return queue, handler.NewExportHandler(exportSvc), nil
}
