package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/court-dcm-api/internal/dto"
	"github.com/noah-isme/court-dcm-api/internal/models"
	"github.com/noah-isme/court-dcm-api/internal/service"
	appErrors "github.com/noah-isme/court-dcm-api/pkg/errors"
	"github.com/noah-isme/court-dcm-api/pkg/response"
)

type caseManager interface {
	List(ctx context.Context, filter models.CaseFilter) ([]models.Case, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Case, error)
	Create(ctx context.Context, req dto.CreateCaseRequest, actorID string, meta models.LoginRequest) (*models.Case, error)
	Update(ctx context.Context, id string, req dto.UpdateCaseRequest, actorID string, meta models.LoginRequest) (*models.Case, error)
	Classify(ctx context.Context, id string, persist bool, actorID string, meta models.LoginRequest) (*models.Classification, error)
	ClassifyBatch(ctx context.Context, req dto.BatchClassifyRequest, actorID string, meta models.LoginRequest) (*dto.BatchClassifyResponse, error)
	OverrideTrack(ctx context.Context, id string, req dto.OverrideTrackRequest, actorID string, meta models.LoginRequest) (*models.Case, error)
	AuditTrail(ctx context.Context, id string) ([]models.AuditLog, error)
}

// CaseHandler exposes the case registry endpoints.
type CaseHandler struct {
	service caseManager
}

// NewCaseHandler constructs a case handler.
func NewCaseHandler(svc *service.CaseService) *CaseHandler {
	return &CaseHandler{service: svc}
}

// List godoc
// @Summary List cases
// @Tags Cases
// @Produce json
// @Param status query string false "Filter by status"
// @Param type query string false "Filter by case type"
// @Param priority query string false "Filter by priority"
// @Param track query string false "Filter by track"
// @Param search query string false "Search keyword"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /cases [get]
func (h *CaseHandler) List(c *gin.Context) {
	var filter models.CaseFilter
	if status := c.Query("status"); status != "" {
		s := models.CaseStatus(status)
		filter.Status = &s
	}
	if caseType := c.Query("type"); caseType != "" {
		t := models.CaseType(caseType)
		filter.CaseType = &t
	}
	if priority := c.Query("priority"); priority != "" {
		p := models.CasePriority(priority)
		filter.Priority = &p
	}
	if track := c.Query("track"); track != "" {
		t := models.CaseTrack(track)
		filter.Track = &t
	}
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	cases, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cases, pagination)
}

// Get godoc
// @Summary Get case by id
// @Tags Cases
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Router /cases/{id} [get]
func (h *CaseHandler) Get(c *gin.Context) {
	found, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, found, nil)
}

// Create godoc
// @Summary File a new case
// @Tags Cases
// @Accept json
// @Produce json
// @Param payload body dto.CreateCaseRequest true "Case payload"
// @Success 201 {object} response.Envelope
// @Router /cases [post]
func (h *CaseHandler) Create(c *gin.Context) {
	var req dto.CreateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	created, err := h.service.Create(c.Request.Context(), req, actorID(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Update godoc
// @Summary Update case
// @Description Updates mutable case fields. Track assignment is not settable here.
// @Tags Cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body dto.UpdateCaseRequest true "Case payload"
// @Success 200 {object} response.Envelope
// @Router /cases/{id} [put]
func (h *CaseHandler) Update(c *gin.Context) {
	var req dto.UpdateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	updated, err := h.service.Update(c.Request.Context(), c.Param("id"), req, actorID(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// Classify godoc
// @Summary Classify case into a DCM track
// @Description Runs the rules engine for one case. Pass persist=true to store the result.
// @Tags Cases
// @Produce json
// @Param id path string true "Case ID"
// @Param persist query bool false "Persist the classification"
// @Success 200 {object} response.Envelope
// @Router /cases/{id}/classify [post]
func (h *CaseHandler) Classify(c *gin.Context) {
	persist, _ := strconv.ParseBool(c.DefaultQuery("persist", "false"))
	classification, err := h.service.Classify(c.Request.Context(), c.Param("id"), persist, actorID(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classification, nil)
}

// ClassifyBatch godoc
// @Summary Classify a batch of cases
// @Description Classifies the selected cases (all unscheduled cases when no ids are given) and returns the track distribution summary.
// @Tags Cases
// @Accept json
// @Produce json
// @Param payload body dto.BatchClassifyRequest true "Batch payload"
// @Success 200 {object} response.Envelope
// @Router /cases/classify-batch [post]
func (h *CaseHandler) ClassifyBatch(c *gin.Context) {
	var req dto.BatchClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.ClassifyBatch(c.Request.Context(), req, actorID(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// OverrideTrack godoc
// @Summary Override case track
// @Description Reassigns a case track with a mandatory justification. Judges and admins only.
// @Tags Cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body dto.OverrideTrackRequest true "Override payload"
// @Success 200 {object} response.Envelope
// @Router /cases/{id}/override-track [post]
func (h *CaseHandler) OverrideTrack(c *gin.Context) {
	var req dto.OverrideTrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	updated, err := h.service.OverrideTrack(c.Request.Context(), c.Param("id"), req, actorID(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// AuditTrail godoc
// @Summary Get case audit trail
// @Tags Cases
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Router /cases/{id}/audit [get]
func (h *CaseHandler) AuditTrail(c *gin.Context) {
	logs, err := h.service.AuditTrail(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}
