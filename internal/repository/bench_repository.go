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

const benchColumns = "id, name, court_number, daily_capacity_minutes, active, created_at, updated_at"

// BenchRepository provides persistence for courtroom benches.
type BenchRepository struct {
	db *sqlx.DB
}

// NewBenchRepository creates a new bench repository.
func NewBenchRepository(db *sqlx.DB) *BenchRepository {
	return &BenchRepository{db: db}
}

// List returns benches with optional filtering and pagination.
func (r *BenchRepository) List(ctx context.Context, filter models.BenchFilter) ([]models.Bench, int, error) {
	base := "FROM benches WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"name": true, "court_number": true, "created_at": true}
	if !allowedSorts[sortBy] {
		sortBy = "court_number"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", benchColumns, base, sortBy, order, size, offset)
	var benches []models.Bench
	if err := r.db.SelectContext(ctx, &benches, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list benches: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count benches: %w", err)
	}

	return benches, total, nil
}

// FindByID loads a bench by id.
func (r *BenchRepository) FindByID(ctx context.Context, id string) (*models.Bench, error) {
	query := fmt.Sprintf("SELECT %s FROM benches WHERE id = $1", benchColumns)
	var bench models.Bench
	if err := r.db.GetContext(ctx, &bench, query, id); err != nil {
		return nil, err
	}
	return &bench, nil
}

// ListActive returns active benches ordered by court number.
func (r *BenchRepository) ListActive(ctx context.Context) ([]models.Bench, error) {
	query := fmt.Sprintf("SELECT %s FROM benches WHERE active = TRUE ORDER BY court_number ASC", benchColumns)
	var benches []models.Bench
	if err := r.db.SelectContext(ctx, &benches, query); err != nil {
		return nil, fmt.Errorf("list active benches: %w", err)
	}
	return benches, nil
}

// Create stores a new bench record.
func (r *BenchRepository) Create(ctx context.Context, bench *models.Bench) error {
	if bench.ID == "" {
		bench.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if bench.CreatedAt.IsZero() {
		bench.CreatedAt = now
	}
	bench.UpdatedAt = now

	const query = `INSERT INTO benches (id, name, court_number, daily_capacity_minutes, active, created_at, updated_at) VALUES (:id, :name, :court_number, :daily_capacity_minutes, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, bench); err != nil {
		return fmt.Errorf("create bench: %w", err)
	}
	return nil
}

// Update modifies a bench record.
func (r *BenchRepository) Update(ctx context.Context, bench *models.Bench) error {
	bench.UpdatedAt = time.Now().UTC()
	const query = `UPDATE benches SET name = :name, court_number = :court_number, daily_capacity_minutes = :daily_capacity_minutes, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, bench); err != nil {
		return fmt.Errorf("update bench: %w", err)
	}
	return nil
}

// Deactivate marks a bench inactive so the allocator stops using it.
func (r *BenchRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE benches SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate bench: %w", err)
	}
	return nil
}
