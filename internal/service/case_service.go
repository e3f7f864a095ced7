package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/court-dcm-api/internal/dto"
	"github.com/noah-isme/court-dcm-api/internal/models"
	appErrors "github.com/noah-isme/court-dcm-api/pkg/errors"
)

type caseRepository interface {
	List(ctx context.Context, filter models.CaseFilter) ([]models.Case, int, error)
	FindByID(ctx context.Context, id string) (*models.Case, error)
	ListSchedulable(ctx context.Context, ids []string) ([]models.Case, error)
	Create(ctx context.Context, c *models.Case) error
	Update(ctx context.Context, c *models.Case) error
}

type caseAuditStore interface {
	Create(ctx context.Context, log *models.AuditLog) error
	ListByResource(ctx context.Context, resource, resourceID string, limit int) ([]models.AuditLog, error)
}

type caseClassifier interface {
	Classify(c models.Case) models.Classification
	ClassifyBatch(cases []models.Case) []models.Classification
	Summary(cases []models.Case) models.ClassificationSummary
}

// CaseService handles case registry workflows: filing, updates, DCM
// classification, and audited track overrides. Track fields only change
// through Classify or OverrideTrack, never through Update.
type CaseService struct {
	repo       caseRepository
	audit      caseAuditStore
	classifier caseClassifier
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewCaseService creates an instance of CaseService.
func NewCaseService(repo caseRepository, audit caseAuditStore, classifier caseClassifier, validate *validator.Validate, logger *zap.Logger) *CaseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaseService{
		repo:       repo,
		audit:      audit,
		classifier: classifier,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
	}
}

// List returns paginated cases and pagination metadata.
func (s *CaseService) List(ctx context.Context, filter models.CaseFilter) ([]models.Case, *models.Pagination, error) {
	cases, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list cases")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return cases, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a case by id.
func (s *CaseService) Get(ctx context.Context, id string) (*models.Case, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "case not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load case")
	}
	return c, nil
}

// Create files a new case.
func (s *CaseService) Create(ctx context.Context, req dto.CreateCaseRequest, actorID string, meta models.LoginRequest) (*models.Case, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create case payload")
	}
	filingDate, err := time.ParseInLocation("2006-01-02", req.FilingDate, time.UTC)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "filingDate must be formatted as YYYY-MM-DD")
	}
	if filingDate.After(s.now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "filingDate must not be in the future")
	}

	c := &models.Case{
		ID:                       uuid.NewString(),
		CaseNumber:               req.CaseNumber,
		Title:                    req.Title,
		Synopsis:                 req.Synopsis,
		CaseType:                 req.CaseType,
		Status:                   models.CaseStatusFiled,
		Priority:                 req.Priority,
		FilingDate:               filingDate,
		EstimatedDurationMinutes: req.EstimatedDurationMinutes,
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create case")
	}

	s.recordAudit(ctx, actorID, models.AuditActionCaseCreate, c.ID, nil, map[string]interface{}{
		"case_number": c.CaseNumber,
		"case_type":   c.CaseType,
		"priority":    c.Priority,
	}, meta)

	return c, nil
}

// Update modifies the mutable case attributes. Track fields are untouched.
func (s *CaseService) Update(ctx context.Context, id string, req dto.UpdateCaseRequest, actorID string, meta models.LoginRequest) (*models.Case, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update case payload")
	}

	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	old := map[string]interface{}{
		"title":    c.Title,
		"status":   c.Status,
		"priority": c.Priority,
		"duration": c.EstimatedDurationMinutes,
	}

	if req.Title != nil {
		c.Title = *req.Title
	}
	if req.Synopsis != nil {
		c.Synopsis = *req.Synopsis
	}
	if req.Priority != nil {
		c.Priority = *req.Priority
	}
	if req.Status != nil {
		c.Status = *req.Status
	}
	if req.EstimatedDurationMinutes != nil {
		c.EstimatedDurationMinutes = *req.EstimatedDurationMinutes
	}

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update case")
	}

	s.recordAudit(ctx, actorID, models.AuditActionCaseUpdate, c.ID, old, map[string]interface{}{
		"title":    c.Title,
		"status":   c.Status,
		"priority": c.Priority,
		"duration": c.EstimatedDurationMinutes,
	}, meta)

	return c, nil
}

// Classify runs the DCM rules engine for one case and, when persist is set,
// writes the resulting track back onto the case record.
func (s *CaseService) Classify(ctx context.Context, id string, persist bool, actorID string, meta models.LoginRequest) (*models.Classification, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	classification := s.classifier.Classify(*c)

	if persist {
		if err := s.persistClassification(ctx, c, classification); err != nil {
			return nil, err
		}
		s.recordAudit(ctx, actorID, models.AuditActionCaseClassify, c.ID, nil, map[string]interface{}{
			"track":      classification.Track,
			"score":      classification.Score,
			"confidence": classification.Confidence,
		}, meta)
	}

	return &classification, nil
}

// ClassifyBatch classifies the selected cases (all schedulable cases when no
// ids are given) and returns per-case classifications with the aggregate
// summary. Persisting writes each track back onto its case.
func (s *CaseService) ClassifyBatch(ctx context.Context, req dto.BatchClassifyRequest, actorID string, meta models.LoginRequest) (*dto.BatchClassifyResponse, error) {
	cases, err := s.repo.ListSchedulable(ctx, req.CaseIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cases for classification")
	}

	classifications := s.classifier.ClassifyBatch(cases)
	summary := s.classifier.Summary(cases)

	if req.Persist {
		for i := range cases {
			if err := s.persistClassification(ctx, &cases[i], classifications[i]); err != nil {
				return nil, err
			}
		}
		s.recordAudit(ctx, actorID, models.AuditActionCaseClassify, "", nil, map[string]interface{}{
			"batch_size": len(cases),
			"summary":    summary,
		}, meta)
	}

	return &dto.BatchClassifyResponse{Classifications: classifications, Summary: &summary}, nil
}

// OverrideTrack reassigns a case track with a mandatory justification. The
// old and new values are audited.
func (s *CaseService) OverrideTrack(ctx context.Context, id string, req dto.OverrideTrackRequest, actorID string, meta models.LoginRequest) (*models.Case, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid override payload")
	}

	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var oldTrack interface{}
	if c.Track != nil {
		oldTrack = *c.Track
	}

	now := s.now().UTC()
	track := req.Track
	c.Track = &track
	c.TrackOverriddenBy = &actorID
	c.TrackOverrideReason = &req.Reason
	c.TrackOverriddenAt = &now

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to override case track")
	}

	s.recordAudit(ctx, actorID, models.AuditActionTrackOverride, c.ID,
		map[string]interface{}{"track": oldTrack},
		map[string]interface{}{"track": req.Track, "reason": req.Reason}, meta)

	return c, nil
}

// AuditTrail returns the audit history for a case, newest first.
func (s *CaseService) AuditTrail(ctx context.Context, id string) ([]models.AuditLog, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	logs, err := s.audit.ListByResource(ctx, "cases", id, 0)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit trail")
	}
	return logs, nil
}

func (s *CaseService) persistClassification(ctx context.Context, c *models.Case, cl models.Classification) error {
	reasons, err := json.Marshal(cl.Reasons)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode classification reasons")
	}

	track := cl.Track
	score := cl.Score
	confidence := cl.Confidence
	c.Track = &track
	c.TrackScore = &score
	c.TrackConfidence = &confidence
	c.TrackReasons = types.JSONText(reasons)
	// A fresh classification supersedes any prior manual override.
	c.TrackOverriddenBy = nil
	c.TrackOverrideReason = nil
	c.TrackOverriddenAt = nil

	if err := s.repo.Update(ctx, c); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist classification")
	}
	return nil
}

func (s *CaseService) recordAudit(ctx context.Context, actorID, action, resourceID string, oldValues, newValues map[string]interface{}, meta models.LoginRequest) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		Action:    action,
		Resource:  "cases",
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	}
	if actorID != "" {
		entry.UserID = &actorID
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if oldValues != nil {
		entry.OldValues, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		entry.NewValues, _ = json.Marshal(newValues)
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record case audit log", zap.Error(err))
	}
}
