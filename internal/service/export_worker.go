package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/consejo-api/internal/models"
	"github.com/noah-isme/consejo-api/internal/repository"
	"github.com/noah-isme/consejo-api/pkg/export"
	"github.com/noah-isme/consejo-api/pkg/jobs"
)

const exportPageSize = 100

type petitionLister interface {
	List(ctx context.Context, filter models.PetitionFilter) ([]models.Petition, int, error)
}

type membershipRequestLister interface {
	ListWithApplicants(ctx context.Context, state models.MembershipRequestState) ([]models.RealMembershipRequest, error)
}

// ExportWorkerConfig carries the public route prefix used in download links.
type ExportWorkerConfig struct {
	APIPrefix string
}

// ExportWorker renders queued export jobs into stored files.
type ExportWorker struct {
	repo      exportJobStore
	petitions petitionLister
	requests  membershipRequestLister
	storage   fileStorage
	signer    tokenSigner
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       ExportWorkerConfig
	now       func() time.Time
}

// NewExportWorker constructs an ExportWorker.
func NewExportWorker(repo exportJobStore, petitions petitionLister, requests membershipRequestLister, storage fileStorage, signer tokenSigner, metrics *MetricsService, logger *zap.Logger, cfg ExportWorkerConfig) *ExportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	return &ExportWorker{
		repo:      repo,
		petitions: petitions,
		requests:  requests,
		storage:   storage,
		signer:    signer,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Handle processes one queued export. A returned error makes the queue retry.
func (w *ExportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	if record.Status == models.ExportStatusFinished {
		return nil
	}
	processing := models.ExportStatusProcessing
	if err := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &processing}); err != nil {
		return err
	}

	relPath, link, err := w.produce(ctx, record)
	if err != nil {
		queued := models.ExportStatusQueued
		msg := err.Error()
		if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
			Status:       &queued,
			ErrorMessage: &msg,
		}); updateErr != nil {
			w.logger.Sugar().Warnw("failed to mark export job queued", "job_id", job.ID, "error", updateErr)
		}
		return err
	}

	finished := models.ExportStatusFinished
	now := w.now().UTC()
	clear := ""
	if err := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:       &finished,
		ResultPath:   &relPath,
		ResultURL:    &link,
		ErrorMessage: &clear,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Sugar().Warnw("failed to mark export job finished", "job_id", job.ID, "error", err)
		return err
	}
	w.metrics.RecordExportJob(models.ExportStatusFinished)
	w.logger.Info("export job finished", zap.String("job_id", job.ID), zap.String("path", relPath))
	return nil
}

// GiveUp marks a job failed once the queue has exhausted its retries.
func (w *ExportWorker) GiveUp(ctx context.Context, job jobs.Job, cause error) {
	failed := models.ExportStatusFailed
	msg := "export failed"
	if cause != nil {
		msg = cause.Error()
	}
	now := w.now().UTC()
	if err := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:       &failed,
		ErrorMessage: &msg,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Sugar().Warnw("failed to mark export job failed", "job_id", job.ID, "error", err)
	}
	w.metrics.RecordExportJob(models.ExportStatusFailed)
}

func (w *ExportWorker) produce(ctx context.Context, record *models.ExportJob) (string, string, error) {
	table, err := w.buildTable(ctx, record)
	if err != nil {
		return "", "", err
	}
	renderer, err := export.RendererFor(export.Format(record.Format))
	if err != nil {
		return "", "", err
	}
	data, err := renderer.Render(table)
	if err != nil {
		return "", "", fmt.Errorf("render export: %w", err)
	}
	relPath, err := w.storage.Save(w.buildFilename(record, renderer.Extension()), data)
	if err != nil {
		return "", "", fmt.Errorf("store export: %w", err)
	}
	token, _, err := w.signer.Generate(record.ID, relPath)
	if err != nil {
		return "", "", fmt.Errorf("sign export: %w", err)
	}
	link := strings.TrimRight(w.cfg.APIPrefix, "/") + "/exports/download?token=" + url.QueryEscape(token)
	return relPath, link, nil
}

func (w *ExportWorker) buildFilename(record *models.ExportJob, ext string) string {
	stamp := w.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s/%s_%s.%s", record.Type, stamp, record.ID, ext)
}

func (w *ExportWorker) buildTable(ctx context.Context, record *models.ExportJob) (export.Table, error) {
	switch record.Type {
	case models.ExportTypePetitions:
		return w.petitionTable(ctx, record.Params)
	case models.ExportTypeMembershipRequests:
		return w.membershipTable(ctx, record.Params)
	default:
		return export.Table{}, fmt.Errorf("unsupported export type %s", record.Type)
	}
}

func (w *ExportWorker) petitionTable(ctx context.Context, params models.ExportParams) (export.Table, error) {
	table := export.Table{
		Title:   "Petitions",
		Columns: []string{"ID", "Title", "State", "Approvals", "Rejections", "Likes", "Hidden", "Created At", "Resolved At"},
	}
	filter := models.PetitionFilter{IncludeHidden: params.IncludeHidden, PageSize: exportPageSize}
	if params.State != "" {
		state := models.PetitionState(params.State)
		filter.State = &state
		table.Title = fmt.Sprintf("Petitions (%s)", state)
	}
	for page := 1; ; page++ {
		filter.Page = page
		items, total, err := w.petitions.List(ctx, filter)
		if err != nil {
			return export.Table{}, err
		}
		for _, p := range items {
			table.AddRow(
				p.ID,
				p.Title,
				string(p.State),
				strconv.Itoa(p.ApprovalCount),
				strconv.Itoa(p.RejectionCount),
				strconv.Itoa(p.Likes),
				strconv.FormatBool(p.Hidden),
				formatExportTime(&p.CreatedAt),
				formatExportTime(p.ResolvedAt),
			)
		}
		if len(items) < exportPageSize || page*exportPageSize >= total {
			break
		}
	}
	return table, nil
}

func (w *ExportWorker) membershipTable(ctx context.Context, params models.ExportParams) (export.Table, error) {
	table := export.Table{
		Title:   "Membership requests",
		Columns: []string{"ID", "Applicant", "State", "Approvals", "Rejections", "Created At", "Resolved At"},
	}
	state := models.MembershipRequestState(params.State)
	if state != "" {
		table.Title = fmt.Sprintf("Membership requests (%s)", state)
	}
	items, err := w.requests.ListWithApplicants(ctx, state)
	if err != nil {
		return export.Table{}, err
	}
	for _, r := range items {
		table.AddRow(
			r.ID,
			r.Applicant.DisplayName,
			string(r.State),
			strconv.Itoa(r.ApprovalCount),
			strconv.Itoa(r.RejectionCount),
			formatExportTime(&r.CreatedAt),
			formatExportTime(r.ResolvedAt),
		)
	}
	return table, nil
}

func formatExportTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
