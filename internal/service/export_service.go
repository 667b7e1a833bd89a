package service

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/consejo-api/internal/dto"
	"github.com/noah-isme/consejo-api/internal/models"
	"github.com/noah-isme/consejo-api/internal/repository"
	appErrors "github.com/noah-isme/consejo-api/pkg/errors"
	"github.com/noah-isme/consejo-api/pkg/jobs"
)

const cleanupBatchSize = 100

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error)
}

type jobDispatcher interface {
	Enqueue(ctx context.Context, job jobs.Job) error
}

type fileStorage interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type tokenSigner interface {
	Generate(id, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (id, relPath string, expiresAt time.Time, err error)
}

// ExportServiceConfig governs retention and cleanup of export artifacts.
type ExportServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// ExportDownload is a resolved, readable export artifact.
type ExportDownload struct {
	JobID       string
	File        *os.File
	Filename    string
	ContentType string
	ExpiresAt   time.Time
}

// ExportService manages export job requests, status and downloads.
type ExportService struct {
	repo      exportJobStore
	queue     jobDispatcher
	storage   fileStorage
	signer    tokenSigner
	audit     auditLogger
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ExportServiceConfig
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(repo exportJobStore, queue jobDispatcher, storage fileStorage, signer tokenSigner, audit auditLogger, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg ExportServiceConfig) *ExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		repo:      repo,
		queue:     queue,
		storage:   storage,
		signer:    signer,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Request persists an export job and hands it to the worker queue.
func (s *ExportService) Request(ctx context.Context, req dto.ExportRequest, actor *models.JWTClaims) (*dto.ExportJobResponse, error) {
	if actor == nil || actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export request")
	}
	if err := validateExportState(req); err != nil {
		return nil, err
	}

	job := &models.ExportJob{
		Type:      req.Type,
		Format:    req.Format,
		Params:    models.ExportParams{State: req.State, IncludeHidden: req.IncludeHidden},
		Status:    models.ExportStatusQueued,
		CreatedBy: actor.UserID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}
	s.metrics.RecordExportJob(models.ExportStatusQueued)

	if err := s.queue.Enqueue(ctx, jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		failed := models.ExportStatusFailed
		msg := "failed to enqueue job"
		now := s.now().UTC()
		if updateErr := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
			Status:       &failed,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		}); updateErr != nil {
			s.logger.Sugar().Warnw("failed to mark export job failed", "job_id", job.ID, "error", updateErr)
		}
		s.metrics.RecordExportJob(models.ExportStatusFailed)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}

	recordAudit(ctx, s.audit, s.logger, actor, auditEntry{
		Action:     models.AuditActionExportRequest,
		Resource:   "export_job",
		ResourceID: job.ID,
		New:        job.Params,
		Source:     string(job.Type) + "." + string(job.Format),
	})
	return toExportJobResponse(job), nil
}

// Status reports the progress of one export job.
func (s *ExportService) Status(ctx context.Context, id string) (*dto.ExportJobResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	return toExportJobResponse(job), nil
}

// ResolveDownload validates a signed token and opens the artifact it names.
func (s *ExportService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	if token == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "token is required")
	}
	jobID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.ResultURL == nil || tokenFromURL(*job.ResultURL) != token {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ExportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export not ready")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export file expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ExportDownload{
		JobID:       job.ID,
		File:        file,
		Filename:    filepath.Base(relPath),
		ContentType: contentTypeFor(job.Format),
		ExpiresAt:   expiresAt,
	}, nil
}

// RecoverPendingJobs re-enqueues jobs left queued by a previous process.
func (s *ExportService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover queued export jobs", "error", err)
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(ctx, jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
			s.logger.Sugar().Warnw("failed to requeue pending export job", "job_id", job.ID, "error", err)
		}
	}
	if len(pending) > 0 {
		s.logger.Info("recovered queued export jobs", zap.Int("count", len(pending)))
	}
}

// StartCleanup launches a goroutine that purges expired artifacts until ctx ends.
func (s *ExportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *ExportService) cleanupExpired(ctx context.Context) {
	cutoff := s.now().Add(-s.cfg.ResultTTL)
	seen := make(map[string]struct{})
	for {
		expired, err := s.repo.ListFinishedBefore(ctx, cutoff, cleanupBatchSize)
		if err != nil {
			s.logger.Sugar().Warnw("cleanup list failed", "error", err)
			return
		}
		progressed := false
		for _, job := range expired {
			if _, ok := seen[job.ID]; ok {
				continue
			}
			seen[job.ID] = struct{}{}
			progressed = true
			s.deleteArtifact(job)
		}
		if len(expired) < cleanupBatchSize || !progressed {
			break
		}
	}
	if _, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL); err != nil {
		s.logger.Sugar().Warnw("filesystem cleanup failed", "error", err)
	}
}

func (s *ExportService) deleteArtifact(job models.ExportJob) {
	relPath := ""
	if job.ResultPath != nil {
		relPath = *job.ResultPath
	} else if job.ResultURL != nil {
		if _, path, _, err := s.signer.Parse(tokenFromURL(*job.ResultURL), true); err == nil {
			relPath = path
		}
	}
	if relPath == "" {
		return
	}
	if err := s.storage.Delete(relPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Sugar().Warnw("cleanup delete failed", "job_id", job.ID, "error", err)
	}
}

func validateExportState(req dto.ExportRequest) error {
	if req.State == "" {
		return nil
	}
	switch req.Type {
	case models.ExportTypePetitions:
		if !models.PetitionState(req.State).Valid() {
			return appErrors.Clone(appErrors.ErrValidation, "unknown petition state")
		}
	case models.ExportTypeMembershipRequests:
		switch models.MembershipRequestState(req.State) {
		case models.MembershipRequestPending, models.MembershipRequestApproved, models.MembershipRequestRejected:
		default:
			return appErrors.Clone(appErrors.ErrValidation, "unknown membership request state")
		}
	}
	return nil
}

func toExportJobResponse(job *models.ExportJob) *dto.ExportJobResponse {
	resp := &dto.ExportJobResponse{
		ID:     job.ID,
		Type:   job.Type,
		Format: job.Format,
		Status: job.Status,
	}
	if job.Status == models.ExportStatusFinished && job.ResultURL != nil {
		resp.DownloadURL = job.ResultURL
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp
}

func contentTypeFor(format models.ExportFormat) string {
	switch format {
	case models.ExportFormatPDF:
		return "application/pdf"
	case models.ExportFormatCSV:
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}

// tokenFromURL extracts the token query parameter of a download URL.
func tokenFromURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return parsed.Query().Get("token")
}
