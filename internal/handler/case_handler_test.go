package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/court-dcm-api/internal/dto"
	"github.com/noah-isme/court-dcm-api/internal/models"
	appErrors "github.com/noah-isme/court-dcm-api/pkg/errors"
)

type fakeCaseManager struct {
	cases          map[string]*models.Case
	classification *models.Classification
	gotPersist     bool
	gotOverride    dto.OverrideTrackRequest
	gotFilter      models.CaseFilter
	err            error
}

func (f *fakeCaseManager) List(ctx context.Context, filter models.CaseFilter) ([]models.Case, *models.Pagination, error) {
	f.gotFilter = filter
	out := make([]models.Case, 0, len(f.cases))
	for _, c := range f.cases {
		out = append(out, *c)
	}
	return out, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: len(out)}, nil
}

func (f *fakeCaseManager) Get(ctx context.Context, id string) (*models.Case, error) {
	c, ok := f.cases[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "case not found")
	}
	return c, nil
}

func (f *fakeCaseManager) Create(ctx context.Context, req dto.CreateCaseRequest, actorID string, meta models.LoginRequest) (*models.Case, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Case{ID: "new-case", CaseNumber: req.CaseNumber, Title: req.Title, Status: models.CaseStatusFiled}, nil
}

func (f *fakeCaseManager) Update(ctx context.Context, id string, req dto.UpdateCaseRequest, actorID string, meta models.LoginRequest) (*models.Case, error) {
	return f.Get(ctx, id)
}

func (f *fakeCaseManager) Classify(ctx context.Context, id string, persist bool, actorID string, meta models.LoginRequest) (*models.Classification, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.gotPersist = persist
	return f.classification, nil
}

func (f *fakeCaseManager) ClassifyBatch(ctx context.Context, req dto.BatchClassifyRequest, actorID string, meta models.LoginRequest) (*dto.BatchClassifyResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dto.BatchClassifyResponse{
		Classifications: []models.Classification{},
		Summary:         &models.ClassificationSummary{TotalCases: len(req.CaseIDs)},
	}, nil
}

func (f *fakeCaseManager) OverrideTrack(ctx context.Context, id string, req dto.OverrideTrackRequest, actorID string, meta models.LoginRequest) (*models.Case, error) {
	f.gotOverride = req
	c, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	track := req.Track
	c.Track = &track
	return c, nil
}

func (f *fakeCaseManager) AuditTrail(ctx context.Context, id string) ([]models.AuditLog, error) {
	if _, err := f.Get(ctx, id); err != nil {
		return nil, err
	}
	return []models.AuditLog{{Action: models.AuditActionTrackOverride, Resource: "cases"}}, nil
}

func newCaseRouter(svc *fakeCaseManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &CaseHandler{service: svc}
	r := gin.New()
	r.GET("/cases", h.List)
	r.POST("/cases", h.Create)
	r.GET("/cases/:id", h.Get)
	r.POST("/cases/:id/classify", h.Classify)
	r.POST("/cases/classify-batch", h.ClassifyBatch)
	r.POST("/cases/:id/override-track", h.OverrideTrack)
	r.GET("/cases/:id/audit", h.AuditTrail)
	return r
}

func TestCaseListParsesFilters(t *testing.T) {
	svc := &fakeCaseManager{cases: map[string]*models.Case{}}
	r := newCaseRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/cases?status=FILED&track=FAST&page=2&limit=50", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.gotFilter.Status)
	assert.Equal(t, models.CaseStatusFiled, *svc.gotFilter.Status)
	require.NotNil(t, svc.gotFilter.Track)
	assert.Equal(t, models.TrackFast, *svc.gotFilter.Track)
	assert.Equal(t, 2, svc.gotFilter.Page)
	assert.Equal(t, 50, svc.gotFilter.PageSize)
}

func TestCaseCreateEndpoint(t *testing.T) {
	svc := &fakeCaseManager{cases: map[string]*models.Case{}}
	r := newCaseRouter(svc)

	body := `{"caseNumber":"CIV-001","title":"New matter","synopsis":"details","caseType":"CIVIL","priority":"MEDIUM","filingDate":"2026-03-01","estimatedDurationMinutes":60}`
	req := httptest.NewRequest(http.MethodPost, "/cases", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var envelope struct {
		Data models.Case `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "CIV-001", envelope.Data.CaseNumber)
	assert.Equal(t, models.CaseStatusFiled, envelope.Data.Status)
}

func TestCaseClassifyReadsPersistQuery(t *testing.T) {
	svc := &fakeCaseManager{
		cases: map[string]*models.Case{"case-1": {ID: "case-1"}},
		classification: &models.Classification{
			CaseID: "case-1", Track: models.TrackFast, Score: -3.2, Confidence: 0.64,
			Reasons: []string{"Short estimated duration (60 minutes)"},
		},
	}
	r := newCaseRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/cases/case-1/classify?persist=true", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.gotPersist)

	var envelope struct {
		Data models.Classification `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, models.TrackFast, envelope.Data.Track)
}

func TestCaseClassifyDefaultsToDryRun(t *testing.T) {
	svc := &fakeCaseManager{
		cases:          map[string]*models.Case{"case-1": {ID: "case-1"}},
		classification: &models.Classification{CaseID: "case-1", Track: models.TrackRegular},
	}
	r := newCaseRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/cases/case-1/classify", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, svc.gotPersist)
}

func TestCaseOverrideTrackEndpoint(t *testing.T) {
	svc := &fakeCaseManager{cases: map[string]*models.Case{"case-1": {ID: "case-1"}}}
	r := newCaseRouter(svc)

	body := `{"track":"COMPLEX","reason":"Multiple expert witnesses expected"}`
	req := httptest.NewRequest(http.MethodPost, "/cases/case-1/override-track", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.TrackComplex, svc.gotOverride.Track)

	var envelope struct {
		Data models.Case `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Data.Track)
	assert.Equal(t, models.TrackComplex, *envelope.Data.Track)
}

func TestCaseGetNotFoundEndpoint(t *testing.T) {
	svc := &fakeCaseManager{cases: map[string]*models.Case{}}
	r := newCaseRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/cases/missing", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var envelope struct {
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrNotFound.Code, envelope.Error.Code)
}

func TestCaseAuditTrailEndpoint(t *testing.T) {
	svc := &fakeCaseManager{cases: map[string]*models.Case{"case-1": {ID: "case-1"}}}
	r := newCaseRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/cases/case-1/audit", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data []models.AuditLog `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, models.AuditActionTrackOverride, envelope.Data[0].Action)
}
