package dto

import "github.com/noah-isme/court-dcm-api/internal/models"

// ExportRequest captures POST /exports payload.
type ExportRequest struct {
	Type    models.ExportType   `json:"type" validate:"required,oneof=cause_list case_register"`
	Format  models.ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
	Date    string              `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	BenchID string              `json:"benchId,omitempty"`
	Track   string              `json:"track,omitempty"`
	Status  string              `json:"status,omitempty"`
}

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID     string              `json:"id"`
	Status models.ExportStatus `json:"status"`
}

// ExportStatusResponse exposes job completion metadata.
type ExportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ExportStatus `json:"status"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
