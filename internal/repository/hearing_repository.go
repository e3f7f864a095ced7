package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/court-dcm-api/internal/models"
)

const hearingColumns = "id, case_id, bench_id, judge_id, hearing_date, start_minute, estimated_duration_minutes, status, notes, created_at, updated_at"

// HearingRepository provides persistence for hearings.
type HearingRepository struct {
	db *sqlx.DB
}

// NewHearingRepository creates a new hearing repository.
func NewHearingRepository(db *sqlx.DB) *HearingRepository {
	return &HearingRepository{db: db}
}

// List returns hearings with optional filtering and pagination.
func (r *HearingRepository) List(ctx context.Context, filter models.HearingFilter) ([]models.Hearing, int, error) {
	base := "FROM hearings WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.CaseID != "" {
		conditions = append(conditions, fmt.Sprintf("case_id = $%d", len(args)+1))
		args = append(args, filter.CaseID)
	}
	if filter.BenchID != "" {
		conditions = append(conditions, fmt.Sprintf("bench_id = $%d", len(args)+1))
		args = append(args, filter.BenchID)
	}
	if filter.JudgeID != "" {
		conditions = append(conditions, fmt.Sprintf("judge_id = $%d", len(args)+1))
		args = append(args, filter.JudgeID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("hearing_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("hearing_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"hearing_date": true, "start_minute": true, "created_at": true}
	if !allowedSorts[sortBy] {
		sortBy = "hearing_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, start_minute ASC LIMIT %d OFFSET %d", hearingColumns, base, sortBy, order, size, offset)
	var hearings []models.Hearing
	if err := r.db.SelectContext(ctx, &hearings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list hearings: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count hearings: %w", err)
	}

	return hearings, total, nil
}

// FindByID loads a hearing by id.
func (r *HearingRepository) FindByID(ctx context.Context, id string) (*models.Hearing, error) {
	query := fmt.Sprintf("SELECT %s FROM hearings WHERE id = $1", hearingColumns)
	var h models.Hearing
	if err := r.db.GetContext(ctx, &h, query, id); err != nil {
		return nil, err
	}
	return &h, nil
}

// ListByDateRange returns non-cancelled hearings between two dates inclusive,
// ordered deterministically for the allocator's capacity snapshot.
func (r *HearingRepository) ListByDateRange(ctx context.Context, from, to time.Time) ([]models.Hearing, error) {
	query := fmt.Sprintf("SELECT %s FROM hearings WHERE hearing_date >= $1 AND hearing_date <= $2 AND status != $3 ORDER BY hearing_date ASC, bench_id ASC, start_minute ASC", hearingColumns)
	var hearings []models.Hearing
	if err := r.db.SelectContext(ctx, &hearings, query, from, to, models.HearingStatusCancelled); err != nil {
		return nil, fmt.Errorf("list hearings by date range: %w", err)
	}
	return hearings, nil
}

// ListByDate returns non-cancelled hearings for one calendar date.
func (r *HearingRepository) ListByDate(ctx context.Context, date time.Time) ([]models.Hearing, error) {
	return r.ListByDateRange(ctx, date, date)
}

// ListCauseListByDate returns one row per non-cancelled hearing on a date,
// joined with case, bench, and judge details, ordered per bench and start.
func (r *HearingRepository) ListCauseListByDate(ctx context.Context, date time.Time) ([]models.CauseListRow, error) {
	const query = `SELECT h.id AS hearing_id, h.case_id, c.case_number, c.title AS case_title, c.track, h.bench_id, b.name AS bench_name, h.judge_id, u.full_name AS judge_name, h.start_minute, h.estimated_duration_minutes, h.status
		FROM hearings h
		JOIN cases c ON c.id = h.case_id
		JOIN benches b ON b.id = h.bench_id
		JOIN users u ON u.id = h.judge_id
		WHERE h.hearing_date = $1 AND h.status != $2
		ORDER BY b.court_number ASC, h.start_minute ASC`
	var rows []models.CauseListRow
	if err := r.db.SelectContext(ctx, &rows, query, date, models.HearingStatusCancelled); err != nil {
		return nil, fmt.Errorf("list cause list: %w", err)
	}
	return rows, nil
}

// Update modifies the mutable fields of a hearing.
func (r *HearingRepository) Update(ctx context.Context, h *models.Hearing) error {
	h.UpdatedAt = time.Now().UTC()
	const query = `UPDATE hearings SET status = :status, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, h); err != nil {
		return fmt.Errorf("update hearing: %w", err)
	}
	return nil
}

// BulkCreateWithTx inserts hearings using an existing transaction.
func (r *HearingRepository) BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, hearings []models.Hearing) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	now := time.Now().UTC()
	for i := range hearings {
		payload := hearings[i]
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		if payload.CreatedAt.IsZero() {
			payload.CreatedAt = now
		}
		payload.UpdatedAt = now

		if _, err := sqlx.NamedExecContext(ctx, tx, `INSERT INTO hearings (id, case_id, bench_id, judge_id, hearing_date, start_minute, estimated_duration_minutes, status, notes, created_at, updated_at) VALUES (:id, :case_id, :bench_id, :judge_id, :hearing_date, :start_minute, :estimated_duration_minutes, :status, :notes, :created_at, :updated_at)`, &payload); err != nil {
			return fmt.Errorf("bulk insert hearing: %w", err)
		}
		hearings[i] = payload
	}
	return nil
}
