package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ExportType enumerates exportable result sets.
type ExportType string

const (
	ExportTypePetitions          ExportType = "petitions"
	ExportTypeMembershipRequests ExportType = "membership_requests"
)

// ExportFormat enumerates supported file formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportStatus captures background job lifecycle states.
type ExportStatus string

const (
	ExportStatusQueued     ExportStatus = "queued"
	ExportStatusProcessing ExportStatus = "processing"
	ExportStatusFinished   ExportStatus = "finished"
	ExportStatusFailed     ExportStatus = "failed"
)

// ExportJob is the persisted metadata of one export.
type ExportJob struct {
	ID           string       `db:"id" json:"id"`
	Type         ExportType   `db:"type" json:"type"`
	Format       ExportFormat `db:"format" json:"format"`
	Params       ExportParams `db:"params" json:"params"`
	Status       ExportStatus `db:"status" json:"status"`
	ResultPath   *string      `db:"result_path" json:"-"`
	ResultURL    *string      `db:"result_url" json:"result_url,omitempty"`
	ErrorMessage *string      `db:"error_message" json:"error_message,omitempty"`
	CreatedBy    string       `db:"created_by" json:"created_by"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time   `db:"finished_at" json:"finished_at,omitempty"`
}

// ExportParams narrows the exported rows; stored as JSONB.
type ExportParams struct {
	State         string `json:"state,omitempty"`
	IncludeHidden bool   `json:"include_hidden,omitempty"`
}

// Value marshals params to JSON for persistence.
func (p ExportParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal export params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *ExportParams) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*p = ExportParams{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ExportParams", value)
	}
	if len(data) == 0 {
		*p = ExportParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal export params: %w", err)
	}
	return nil
}
