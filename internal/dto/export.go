package dto

import "github.com/noah-isme/consejo-api/internal/models"

// ExportRequest captures POST /admin/exports payload.
type ExportRequest struct {
	Type          models.ExportType   `json:"type" validate:"required,oneof=petitions membership_requests"`
	Format        models.ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
	State         string              `json:"state,omitempty"`
	IncludeHidden bool                `json:"include_hidden,omitempty"`
}

// ExportJobResponse exposes job progress metadata.
type ExportJobResponse struct {
	ID          string              `json:"id"`
	Type        models.ExportType   `json:"type"`
	Format      models.ExportFormat `json:"format"`
	Status      models.ExportStatus `json:"status"`
	DownloadURL *string             `json:"download_url,omitempty"`
	Error       *string             `json:"error,omitempty"`
}
