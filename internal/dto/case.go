package dto

import "github.com/noah-isme/court-dcm-api/internal/models"

// CreateCaseRequest captures POST /cases payload.
type CreateCaseRequest struct {
	CaseNumber               string              `json:"caseNumber" validate:"required"`
	Title                    string              `json:"title" validate:"required"`
	Synopsis                 string              `json:"synopsis" validate:"required"`
	CaseType                 models.CaseType     `json:"caseType" validate:"required,oneof=CRIMINAL CIVIL FAMILY COMMERCIAL CONSTITUTIONAL"`
	Priority                 models.CasePriority `json:"priority" validate:"required,oneof=URGENT HIGH MEDIUM LOW"`
	FilingDate               string              `json:"filingDate" validate:"required,datetime=2006-01-02"`
	EstimatedDurationMinutes int                 `json:"estimatedDurationMinutes" validate:"required,min=1"`
}

// UpdateCaseRequest captures PUT /cases/:id payload. Track fields are not
// settable here; they only change through classification or an override.
type UpdateCaseRequest struct {
	Title                    *string              `json:"title,omitempty"`
	Synopsis                 *string              `json:"synopsis,omitempty"`
	Priority                 *models.CasePriority `json:"priority,omitempty" validate:"omitempty,oneof=URGENT HIGH MEDIUM LOW"`
	Status                   *models.CaseStatus   `json:"status,omitempty" validate:"omitempty,oneof=FILED UNDER_REVIEW SCHEDULED IN_PROGRESS DECIDED CLOSED"`
	EstimatedDurationMinutes *int                 `json:"estimatedDurationMinutes,omitempty" validate:"omitempty,min=1"`
}

// OverrideTrackRequest reassigns a case track with an audited justification.
type OverrideTrackRequest struct {
	Track  models.CaseTrack `json:"track" validate:"required,oneof=FAST REGULAR COMPLEX"`
	Reason string           `json:"reason" validate:"required,min=10"`
}

// BatchClassifyRequest selects the cases to classify; empty means all
// unscheduled cases.
type BatchClassifyRequest struct {
	CaseIDs []string `json:"caseIds"`
	Persist bool     `json:"persist"`
}

// BatchClassifyResponse returns per-case classifications plus the aggregate.
type BatchClassifyResponse struct {
	Classifications []models.Classification       `json:"classifications"`
	Summary         *models.ClassificationSummary `json:"summary"`
}
