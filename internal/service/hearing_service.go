package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/court-dcm-api/internal/dto"
	"github.com/noah-isme/court-dcm-api/internal/models"
	appErrors "github.com/noah-isme/court-dcm-api/pkg/errors"
)

type hearingRepository interface {
	List(ctx context.Context, filter models.HearingFilter) ([]models.Hearing, int, error)
	FindByID(ctx context.Context, id string) (*models.Hearing, error)
	ListCauseListByDate(ctx context.Context, date time.Time) ([]models.CauseListRow, error)
	Update(ctx context.Context, h *models.Hearing) error
}

type hearingAuditWriter interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

type causeListCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// HearingServiceConfig tunes cause list caching.
type HearingServiceConfig struct {
	CauseListTTL time.Duration
}

// HearingService serves hearing reads and status updates, plus the per-bench
// daily cause list backed by the redis cache.
type HearingService struct {
	repo      hearingRepository
	audit     hearingAuditWriter
	cache     causeListCache
	validator *validator.Validate
	logger    *zap.Logger
	cfg       HearingServiceConfig
}

// NewHearingService creates an instance of HearingService.
func NewHearingService(repo hearingRepository, audit hearingAuditWriter, cache causeListCache, validate *validator.Validate, logger *zap.Logger, cfg HearingServiceConfig) *HearingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CauseListTTL <= 0 {
		cfg.CauseListTTL = 5 * time.Minute
	}
	return &HearingService{repo: repo, audit: audit, cache: cache, validator: validate, logger: logger, cfg: cfg}
}

// List returns paginated hearings.
func (s *HearingService) List(ctx context.Context, filter models.HearingFilter) ([]models.Hearing, *models.Pagination, error) {
	hearings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list hearings")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	return hearings, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a hearing by id.
func (s *HearingService) Get(ctx context.Context, id string) (*models.Hearing, error) {
	h, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "hearing not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load hearing")
	}
	return h, nil
}

// Update changes the hearing status or notes, invalidating the cause list
// cache for the hearing's date.
func (s *HearingService) Update(ctx context.Context, id string, req dto.UpdateHearingRequest, actorID string, meta models.LoginRequest) (*models.Hearing, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update hearing payload")
	}

	h, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	old := map[string]interface{}{"status": h.Status, "notes": h.Notes}

	if req.Status != nil {
		h.Status = *req.Status
	}
	if req.Notes != nil {
		h.Notes = *req.Notes
	}

	if err := s.repo.Update(ctx, h); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update hearing")
	}

	s.invalidate(ctx, h.HearingDate)
	s.recordAudit(ctx, actorID, h.ID, old, map[string]interface{}{"status": h.Status, "notes": h.Notes}, meta)

	return h, nil
}

// CauseList returns the date's hearings grouped by bench. The second return
// value reports whether the payload came from cache.
func (s *HearingService) CauseList(ctx context.Context, date time.Time) (*dto.CauseList, bool, error) {
	key := "causelist:" + date.Format("2006-01-02")

	if s.cache != nil {
		var cached dto.CauseList
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, true, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("cause list cache read failed", zap.Error(err))
		}
	}

	rows, err := s.repo.ListCauseListByDate(ctx, date)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cause list")
	}

	list := &dto.CauseList{
		Date:    date.Format("2006-01-02"),
		Benches: make(map[string][]dto.CauseListEntry),
		Total:   len(rows),
	}
	for _, row := range rows {
		entry := dto.CauseListEntry{
			HearingID:  row.HearingID,
			CaseID:     row.CaseID,
			CaseNumber: row.CaseNumber,
			CaseTitle:  row.CaseTitle,
			Track:      row.Track,
			JudgeID:    row.JudgeID,
			JudgeName:  row.JudgeName,
			StartTime:  minuteClock(row.StartMinute),
			Duration:   row.Duration,
			Status:     string(row.Status),
		}
		list.Benches[row.BenchName] = append(list.Benches[row.BenchName], entry)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, list, s.cfg.CauseListTTL); err != nil {
			s.logger.Warn("cause list cache write failed", zap.Error(err))
		}
	}

	return list, false, nil
}

func (s *HearingService) invalidate(ctx context.Context, date time.Time) {
	if s.cache == nil {
		return
	}
	pattern := "causelist:" + date.Format("2006-01-02") + "*"
	if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("failed to invalidate cause list cache", zap.Error(err))
	}
}

func (s *HearingService) recordAudit(ctx context.Context, actorID, hearingID string, oldValues, newValues map[string]interface{}, meta models.LoginRequest) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		Action:     models.AuditActionHearingUpdate,
		Resource:   "hearings",
		ResourceID: &hearingID,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}
	if actorID != "" {
		entry.UserID = &actorID
	}
	entry.OldValues, _ = json.Marshal(oldValues)
	entry.NewValues, _ = json.Marshal(newValues)
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record hearing audit log", zap.Error(err))
	}
}
