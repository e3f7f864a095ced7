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

const caseColumns = "id, case_number, title, synopsis, case_type, status, priority, filing_date, estimated_duration_minutes, track, track_score, track_confidence, track_reasons, track_overridden_by, track_override_reason, track_overridden_at, created_at, updated_at"

// CaseRepository provides persistence for filed cases.
type CaseRepository struct {
	db *sqlx.DB
}

// NewCaseRepository creates a new case repository.
func NewCaseRepository(db *sqlx.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

// List returns cases with optional filtering and pagination.
func (r *CaseRepository) List(ctx context.Context, filter models.CaseFilter) ([]models.Case, int, error) {
	base := "FROM cases WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.CaseType != nil {
		conditions = append(conditions, fmt.Sprintf("case_type = $%d", len(args)+1))
		args = append(args, *filter.CaseType)
	}
	if filter.Priority != nil {
		conditions = append(conditions, fmt.Sprintf("priority = $%d", len(args)+1))
		args = append(args, *filter.Priority)
	}
	if filter.Track != nil {
		conditions = append(conditions, fmt.Sprintf("track = $%d", len(args)+1))
		args = append(args, *filter.Track)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(case_number) LIKE $%d OR LOWER(title) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "filing_date"
	}
	allowedSorts := map[string]bool{
		"filing_date": true,
		"case_number": true,
		"priority":    true,
		"created_at":  true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "filing_date"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", caseColumns, base, sortBy, order, size, offset)
	var cases []models.Case
	if err := r.db.SelectContext(ctx, &cases, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list cases: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count cases: %w", err)
	}

	return cases, total, nil
}

// FindByID loads a case by id.
func (r *CaseRepository) FindByID(ctx context.Context, id string) (*models.Case, error) {
	query := fmt.Sprintf("SELECT %s FROM cases WHERE id = $1", caseColumns)
	var c models.Case
	if err := r.db.GetContext(ctx, &c, query, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListSchedulable returns cases eligible for hearing allocation, optionally
// restricted to the given ids.
func (r *CaseRepository) ListSchedulable(ctx context.Context, ids []string) ([]models.Case, error) {
	query := fmt.Sprintf("SELECT %s FROM cases WHERE status IN (?, ?)", caseColumns)
	args := []interface{}{models.CaseStatusFiled, models.CaseStatusUnderReview}
	if len(ids) > 0 {
		var err error
		query, args, err = sqlx.In(query+" AND id IN (?)", args[0], args[1], ids)
		if err != nil {
			return nil, fmt.Errorf("expand schedulable case ids: %w", err)
		}
	} else {
		var err error
		query, args, err = sqlx.In(query, args[0], args[1])
		if err != nil {
			return nil, fmt.Errorf("expand schedulable statuses: %w", err)
		}
	}
	query = r.db.Rebind(query + " ORDER BY filing_date ASC, id ASC")

	var cases []models.Case
	if err := r.db.SelectContext(ctx, &cases, query, args...); err != nil {
		return nil, fmt.Errorf("list schedulable cases: %w", err)
	}
	return cases, nil
}

// Create stores a new case record.
func (r *CaseRepository) Create(ctx context.Context, c *models.Case) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	const query = `INSERT INTO cases (id, case_number, title, synopsis, case_type, status, priority, filing_date, estimated_duration_minutes, track, track_score, track_confidence, track_reasons, track_overridden_by, track_override_reason, track_overridden_at, created_at, updated_at) VALUES (:id, :case_number, :title, :synopsis, :case_type, :status, :priority, :filing_date, :estimated_duration_minutes, :track, :track_score, :track_confidence, :track_reasons, :track_overridden_by, :track_override_reason, :track_overridden_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("create case: %w", err)
	}
	return nil
}

// Update modifies the mutable fields of a case.
func (r *CaseRepository) Update(ctx context.Context, c *models.Case) error {
	c.UpdatedAt = time.Now().UTC()
	const query = `UPDATE cases SET title = :title, synopsis = :synopsis, status = :status, priority = :priority, estimated_duration_minutes = :estimated_duration_minutes, track = :track, track_score = :track_score, track_confidence = :track_confidence, track_reasons = :track_reasons, track_overridden_by = :track_overridden_by, track_override_reason = :track_override_reason, track_overridden_at = :track_overridden_at, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	return nil
}

// UpdateStatusWithTx sets a case status within an existing transaction.
func (r *CaseRepository) UpdateStatusWithTx(ctx context.Context, tx *sqlx.Tx, id string, status models.CaseStatus) error {
	const query = `UPDATE cases SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update case status: %w", err)
	}
	return nil
}
