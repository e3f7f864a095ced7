package models

import (
	"fmt"
	"time"
)

// HearingStatus tracks the lifecycle of a scheduled hearing.
type HearingStatus string

const (
	HearingStatusScheduled HearingStatus = "SCHEDULED"
	HearingStatusCompleted HearingStatus = "COMPLETED"
	HearingStatusAdjourned HearingStatus = "ADJOURNED"
	HearingStatusCancelled HearingStatus = "CANCELLED"
)

// Hearing represents a case listed before a bench on a date. Created by the
// allocator or by manual listing; for a fixed (bench, date) no two hearings'
// [start, start+duration) intervals may overlap.
type Hearing struct {
	ID                       string        `db:"id" json:"id"`
	CaseID                   string        `db:"case_id" json:"case_id"`
	BenchID                  string        `db:"bench_id" json:"bench_id"`
	JudgeID                  string        `db:"judge_id" json:"judge_id"`
	HearingDate              time.Time     `db:"hearing_date" json:"hearing_date"`
	StartMinute              int           `db:"start_minute" json:"start_minute"`
	EstimatedDurationMinutes int           `db:"estimated_duration_minutes" json:"estimated_duration_minutes"`
	Status                   HearingStatus `db:"status" json:"status"`
	Notes                    string        `db:"notes" json:"notes"`
	CreatedAt                time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time     `db:"updated_at" json:"updated_at"`
}

// StartClock renders the start minute-of-day as HH:MM.
func (h Hearing) StartClock() string {
	return fmt.Sprintf("%02d:%02d", h.StartMinute/60, h.StartMinute%60)
}

// EndMinute returns the exclusive end of the hearing interval.
func (h Hearing) EndMinute() int {
	return h.StartMinute + h.EstimatedDurationMinutes
}

// Overlaps reports whether two hearings on the same bench and date collide,
// using half-open interval comparison.
func (h Hearing) Overlaps(other Hearing) bool {
	if h.BenchID != other.BenchID || !sameDay(h.HearingDate, other.HearingDate) {
		return false
	}
	return h.StartMinute < other.EndMinute() && other.StartMinute < h.EndMinute()
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// HearingFilter describes query params for listing hearings.
type HearingFilter struct {
	CaseID    string
	BenchID   string
	JudgeID   string
	Status    *HearingStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CauseListRow is one hearing joined with its case and judge for daily cause
// list reads.
type CauseListRow struct {
	HearingID  string        `db:"hearing_id" json:"hearing_id"`
	CaseID     string        `db:"case_id" json:"case_id"`
	CaseNumber string        `db:"case_number" json:"case_number"`
	CaseTitle  string        `db:"case_title" json:"case_title"`
	Track      *CaseTrack    `db:"track" json:"track,omitempty"`
	BenchID     string        `db:"bench_id" json:"bench_id"`
	BenchName   string        `db:"bench_name" json:"bench_name"`
	JudgeID     string        `db:"judge_id" json:"judge_id"`
	JudgeName   string        `db:"judge_name" json:"judge_name"`
	StartMinute int           `db:"start_minute" json:"start_minute"`
	Duration    int           `db:"estimated_duration_minutes" json:"estimated_duration_minutes"`
	Status      HearingStatus `db:"status" json:"status"`
}

// HearingConflict describes two hearings whose time intervals overlap on the
// same bench and date.
type HearingConflict struct {
	Type        string    `json:"type"`
	BenchID     string    `json:"bench_id"`
	Date        time.Time `json:"date"`
	HearingID1  string    `json:"hearing_id_1"`
	HearingID2  string    `json:"hearing_id_2"`
	Description string    `json:"description"`
}
