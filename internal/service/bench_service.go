package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/court-dcm-api/internal/models"
	appErrors "github.com/noah-isme/court-dcm-api/pkg/errors"
)

type benchRepository interface {
	List(ctx context.Context, filter models.BenchFilter) ([]models.Bench, int, error)
	FindByID(ctx context.Context, id string) (*models.Bench, error)
	Create(ctx context.Context, bench *models.Bench) error
	Update(ctx context.Context, bench *models.Bench) error
	Deactivate(ctx context.Context, id string) error
}

// CreateBenchRequest represents payload for creating benches.
type CreateBenchRequest struct {
	Name                 string `json:"name" validate:"required"`
	CourtNumber          int    `json:"court_number" validate:"required,min=1"`
	DailyCapacityMinutes int    `json:"daily_capacity_minutes" validate:"omitempty,min=1"`
	Active               bool   `json:"active"`
}

// UpdateBenchRequest payload for updating benches.
type UpdateBenchRequest struct {
	Name                 string `json:"name" validate:"required"`
	CourtNumber          int    `json:"court_number" validate:"required,min=1"`
	DailyCapacityMinutes int    `json:"daily_capacity_minutes" validate:"omitempty,min=1"`
	Active               *bool  `json:"active"`
}

// BenchService manages courtroom bench records. Benches are read-only to the
// allocator; deactivating one removes it from future allocation runs.
type BenchService struct {
	repo      benchRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBenchService creates an instance of BenchService.
func NewBenchService(repo benchRepository, validate *validator.Validate, logger *zap.Logger) *BenchService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BenchService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated benches.
func (s *BenchService) List(ctx context.Context, filter models.BenchFilter) ([]models.Bench, *models.Pagination, error) {
	benches, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list benches")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	return benches, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a bench by id.
func (s *BenchService) Get(ctx context.Context, id string) (*models.Bench, error) {
	bench, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "bench not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bench")
	}
	return bench, nil
}

// Create registers a new bench.
func (s *BenchService) Create(ctx context.Context, req CreateBenchRequest) (*models.Bench, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create bench payload")
	}
	capacity := req.DailyCapacityMinutes
	if capacity <= 0 {
		capacity = models.DefaultBenchCapacityMinutes
	}
	bench := &models.Bench{
		Name:                 req.Name,
		CourtNumber:          req.CourtNumber,
		DailyCapacityMinutes: capacity,
		Active:               req.Active,
	}
	if err := s.repo.Create(ctx, bench); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create bench")
	}
	return bench, nil
}

// Update modifies a bench record.
func (s *BenchService) Update(ctx context.Context, id string, req UpdateBenchRequest) (*models.Bench, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update bench payload")
	}
	bench, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	bench.Name = req.Name
	bench.CourtNumber = req.CourtNumber
	if req.DailyCapacityMinutes > 0 {
		bench.DailyCapacityMinutes = req.DailyCapacityMinutes
	}
	if req.Active != nil {
		bench.Active = *req.Active
	}
	if err := s.repo.Update(ctx, bench); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update bench")
	}
	return bench, nil
}

// Deactivate marks a bench inactive so the allocator stops using it.
func (s *BenchService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate bench")
	}
	return nil
}
