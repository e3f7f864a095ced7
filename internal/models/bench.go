package models

import "time"

// DefaultBenchCapacityMinutes is the fallback daily sitting capacity for a
// bench (8 working hours) when none is configured on the record.
const DefaultBenchCapacityMinutes = 480

// Bench represents a courtroom resource with a daily time capacity.
type Bench struct {
	ID                   string    `db:"id" json:"id"`
	Name                 string    `db:"name" json:"name"`
	CourtNumber          int       `db:"court_number" json:"court_number"`
	DailyCapacityMinutes int       `db:"daily_capacity_minutes" json:"daily_capacity_minutes"`
	Active               bool      `db:"active" json:"active"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// CapacityMinutes returns the configured capacity, falling back to the
// default when the stored value is non-positive.
func (b Bench) CapacityMinutes() int {
	if b.DailyCapacityMinutes > 0 {
		return b.DailyCapacityMinutes
	}
	return DefaultBenchCapacityMinutes
}

// BenchFilter describes query params for listing benches.
type BenchFilter struct {
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
