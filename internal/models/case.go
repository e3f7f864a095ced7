package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// CaseType enumerates the recognised categories of filed matters.
type CaseType string

const (
	CaseTypeCriminal       CaseType = "CRIMINAL"
	CaseTypeCivil          CaseType = "CIVIL"
	CaseTypeFamily         CaseType = "FAMILY"
	CaseTypeCommercial     CaseType = "COMMERCIAL"
	CaseTypeConstitutional CaseType = "CONSTITUTIONAL"
)

// CasePriority is the declared urgency of a case.
type CasePriority string

const (
	PriorityUrgent CasePriority = "URGENT"
	PriorityHigh   CasePriority = "HIGH"
	PriorityMedium CasePriority = "MEDIUM"
	PriorityLow    CasePriority = "LOW"
)

// CaseStatus tracks the administrative lifecycle of a case.
type CaseStatus string

const (
	CaseStatusFiled       CaseStatus = "FILED"
	CaseStatusUnderReview CaseStatus = "UNDER_REVIEW"
	CaseStatusScheduled   CaseStatus = "SCHEDULED"
	CaseStatusInProgress  CaseStatus = "IN_PROGRESS"
	CaseStatusDecided     CaseStatus = "DECIDED"
	CaseStatusClosed      CaseStatus = "CLOSED"
)

// CaseTrack is the DCM processing track assigned by classification or an
// audited override. It is never freely settable.
type CaseTrack string

const (
	TrackFast    CaseTrack = "FAST"
	TrackRegular CaseTrack = "REGULAR"
	TrackComplex CaseTrack = "COMPLEX"
)

// Case represents a filed matter. Track fields are written only by the
// classification engine or an explicit override; the allocator reads cases
// and produces separate Hearing records.
type Case struct {
	ID                       string         `db:"id" json:"id"`
	CaseNumber               string         `db:"case_number" json:"case_number"`
	Title                    string         `db:"title" json:"title"`
	Synopsis                 string         `db:"synopsis" json:"synopsis"`
	CaseType                 CaseType       `db:"case_type" json:"case_type"`
	Status                   CaseStatus     `db:"status" json:"status"`
	Priority                 CasePriority   `db:"priority" json:"priority"`
	FilingDate               time.Time      `db:"filing_date" json:"filing_date"`
	EstimatedDurationMinutes int            `db:"estimated_duration_minutes" json:"estimated_duration_minutes"`
	Track                    *CaseTrack     `db:"track" json:"track,omitempty"`
	TrackScore               *float64       `db:"track_score" json:"track_score,omitempty"`
	TrackConfidence          *float64       `db:"track_confidence" json:"track_confidence,omitempty"`
	TrackReasons             types.JSONText `db:"track_reasons" json:"track_reasons,omitempty"`
	TrackOverriddenBy        *string        `db:"track_overridden_by" json:"track_overridden_by,omitempty"`
	TrackOverrideReason      *string        `db:"track_override_reason" json:"track_override_reason,omitempty"`
	TrackOverriddenAt        *time.Time     `db:"track_overridden_at" json:"track_overridden_at,omitempty"`
	CreatedAt                time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time      `db:"updated_at" json:"updated_at"`
}

// CaseFilter describes query params for listing cases.
type CaseFilter struct {
	Status    *CaseStatus
	CaseType  *CaseType
	Priority  *CasePriority
	Track     *CaseTrack
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Classification is the value object produced by the DCM rules engine.
// Negative scores pull toward the fast track, positive toward complex.
type Classification struct {
	CaseID     string    `json:"case_id"`
	Track      CaseTrack `json:"track"`
	Score      float64   `json:"score"`
	Confidence float64   `json:"confidence"`
	Reasons    []string  `json:"reasons"`
}

// ClassificationSummary aggregates batch classification output.
type ClassificationSummary struct {
	TotalCases        int                   `json:"total_cases"`
	TrackDistribution map[CaseTrack]int     `json:"track_distribution"`
	TrackPercentages  map[CaseTrack]float64 `json:"track_percentages"`
	AverageScore      float64               `json:"average_score"`
	AverageConfidence float64               `json:"average_confidence"`
}
