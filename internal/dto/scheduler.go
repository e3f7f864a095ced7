package dto

import "github.com/noah-isme/court-dcm-api/internal/models"

// AllocateRequest instructs the allocator to schedule the pending backlog
// over a date window.
type AllocateRequest struct {
	StartDate string   `json:"startDate" validate:"required,datetime=2006-01-02"`
	NumDays   int      `json:"numDays" validate:"required,min=1"`
	CaseIDs   []string `json:"caseIds"`
	DryRun    bool     `json:"dryRun"`
}

// HearingProposal is a hearing produced by the allocator.
type HearingProposal struct {
	CaseID                   string  `json:"caseId"`
	CaseNumber               string  `json:"caseNumber"`
	BenchID                  string  `json:"benchId"`
	JudgeID                  string  `json:"judgeId"`
	HearingDate              string  `json:"hearingDate"`
	StartTime                string  `json:"startTime"`
	EstimatedDurationMinutes int     `json:"estimatedDurationMinutes"`
	PriorityScore            float64 `json:"priorityScore"`
}

// UnplacedCase summarises a case that could not be placed in the window.
type UnplacedCase struct {
	CaseID                   string            `json:"caseId"`
	CaseNumber               string            `json:"caseNumber"`
	Track                    *models.CaseTrack `json:"track,omitempty"`
	EstimatedDurationMinutes int               `json:"estimatedDurationMinutes"`
}

// DayBreakdown reports per-day allocation statistics.
type DayBreakdown struct {
	Date                 string `json:"date"`
	ScheduledCount       int    `json:"scheduledCount"`
	TotalDurationMinutes int    `json:"totalDurationMinutes"`
	RemainingMinutes     int    `json:"remainingMinutes"`
}

// SchedulingStats aggregates a full allocation run.
type SchedulingStats struct {
	TotalCases             int            `json:"totalCases"`
	ScheduledCount         int            `json:"scheduledCount"`
	UnplacedCount          int            `json:"unplacedCount"`
	PlacementRatePct       float64        `json:"placementRatePct"`
	TotalDurationScheduled int            `json:"totalDurationScheduled"`
	AverageDurationPerCase float64        `json:"averageDurationPerCase"`
	Days                   []DayBreakdown `json:"days"`
}

// SchedulingResult is the outcome of one allocation run. Partial placement is
// the expected steady state, not an error.
type SchedulingResult struct {
	ScheduledHearings []HearingProposal `json:"scheduledHearings"`
	UnplacedCases     []UnplacedCase    `json:"unplacedCases"`
	Stats             SchedulingStats   `json:"stats"`
}

// CauseListEntry is one row of a bench's daily cause list.
type CauseListEntry struct {
	HearingID  string            `json:"hearingId"`
	CaseID     string            `json:"caseId"`
	CaseNumber string            `json:"caseNumber"`
	CaseTitle  string            `json:"caseTitle"`
	Track      *models.CaseTrack `json:"track,omitempty"`
	JudgeID    string            `json:"judgeId"`
	JudgeName  string            `json:"judgeName"`
	StartTime  string            `json:"startTime"`
	Duration   int               `json:"durationMinutes"`
	Status     string            `json:"status"`
}

// CauseList groups a date's hearings by bench.
type CauseList struct {
	Date    string                      `json:"date"`
	Benches map[string][]CauseListEntry `json:"benches"`
	Total   int                         `json:"total"`
}

// UpdateHearingRequest captures PUT /schedule/hearings/:id payload.
type UpdateHearingRequest struct {
	Status *models.HearingStatus `json:"status,omitempty" validate:"omitempty,oneof=SCHEDULED COMPLETED ADJOURNED CANCELLED"`
	Notes  *string               `json:"notes,omitempty"`
}
