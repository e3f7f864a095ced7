package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/court-dcm-api/internal/dto"
	"github.com/noah-isme/court-dcm-api/internal/models"
	"github.com/noah-isme/court-dcm-api/internal/service"
	appErrors "github.com/noah-isme/court-dcm-api/pkg/errors"
	"github.com/noah-isme/court-dcm-api/pkg/response"
)

type hearingAllocator interface {
	Allocate(ctx context.Context, req dto.AllocateRequest, actorID string) (*dto.SchedulingResult, error)
	FindConflicts(ctx context.Context, date time.Time) ([]models.HearingConflict, error)
}

type hearingManager interface {
	List(ctx context.Context, filter models.HearingFilter) ([]models.Hearing, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Hearing, error)
	Update(ctx context.Context, id string, req dto.UpdateHearingRequest, actorID string, meta models.LoginRequest) (*models.Hearing, error)
	CauseList(ctx context.Context, date time.Time) (*dto.CauseList, bool, error)
}

// ScheduleHandler exposes the allocator and hearing endpoints.
type ScheduleHandler struct {
	scheduler hearingAllocator
	hearings  hearingManager
	metrics   *service.MetricsService
}

// NewScheduleHandler constructs a schedule handler.
func NewScheduleHandler(scheduler *service.SchedulerService, hearings *service.HearingService, metrics *service.MetricsService) *ScheduleHandler {
	return &ScheduleHandler{scheduler: scheduler, hearings: hearings, metrics: metrics}
}

// Allocate godoc
// @Summary Run the hearing allocator
// @Description Schedules the pending backlog across benches and judges over a date window. Partial placement is the expected steady state; unplaced cases are returned, not an error. Pass dryRun=true to preview without persisting.
// @Tags Schedule
// @Accept json
// @Produce json
// @Param payload body dto.AllocateRequest true "Allocation payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /schedule/allocate [post]
func (h *ScheduleHandler) Allocate(c *gin.Context) {
	var req dto.AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid allocation payload"))
		return
	}
	result, err := h.scheduler.Allocate(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Conflicts godoc
// @Summary Detect hearing conflicts for a date
// @Description Reports pairs of hearings on the same bench whose time intervals overlap.
// @Tags Schedule
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /schedule/conflicts/{date} [get]
func (h *ScheduleHandler) Conflicts(c *gin.Context) {
	date, err := parseDateParam(c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	conflicts, err := h.scheduler.FindConflicts(c.Request.Context(), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, conflicts, nil)
}

// CauseList godoc
// @Summary Get daily cause list
// @Description Returns the date's hearings grouped by bench, ordered by court number and start time.
// @Tags Schedule
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /schedule/cause-list/{date} [get]
func (h *ScheduleHandler) CauseList(c *gin.Context) {
	date, err := parseDateParam(c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	list, cacheHit, err := h.hearings.CauseList(c.Request.Context(), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordCacheOperation(cacheHit)
	source := "db"
	if cacheHit {
		source = "cache"
	}
	response.JSON(c, http.StatusOK, list, nil, map[string]interface{}{"source": source})
}

// ListHearings godoc
// @Summary List hearings
// @Tags Schedule
// @Produce json
// @Param caseId query string false "Filter by case"
// @Param benchId query string false "Filter by bench"
// @Param judgeId query string false "Filter by judge"
// @Param status query string false "Filter by status"
// @Param from query string false "Date from (YYYY-MM-DD)"
// @Param to query string false "Date to (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /schedule/hearings [get]
func (h *ScheduleHandler) ListHearings(c *gin.Context) {
	var filter models.HearingFilter
	filter.CaseID = c.Query("caseId")
	filter.BenchID = c.Query("benchId")
	filter.JudgeID = c.Query("judgeId")
	if status := c.Query("status"); status != "" {
		s := models.HearingStatus(status)
		filter.Status = &s
	}
	if from := c.Query("from"); from != "" {
		if date, err := time.ParseInLocation("2006-01-02", from, time.UTC); err == nil {
			filter.DateFrom = &date
		}
	}
	if to := c.Query("to"); to != "" {
		if date, err := time.ParseInLocation("2006-01-02", to, time.UTC); err == nil {
			filter.DateTo = &date
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	hearings, pagination, err := h.hearings.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, hearings, pagination)
}

// GetHearing godoc
// @Summary Get hearing by id
// @Tags Schedule
// @Produce json
// @Param id path string true "Hearing ID"
// @Success 200 {object} response.Envelope
// @Router /schedule/hearings/{id} [get]
func (h *ScheduleHandler) GetHearing(c *gin.Context) {
	hearing, err := h.hearings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, hearing, nil)
}

// UpdateHearing godoc
// @Summary Update hearing status or notes
// @Tags Schedule
// @Accept json
// @Produce json
// @Param id path string true "Hearing ID"
// @Param payload body dto.UpdateHearingRequest true "Hearing payload"
// @Success 200 {object} response.Envelope
// @Router /schedule/hearings/{id} [put]
func (h *ScheduleHandler) UpdateHearing(c *gin.Context) {
	var req dto.UpdateHearingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	hearing, err := h.hearings.Update(c.Request.Context(), c.Param("id"), req, actorID(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, hearing, nil)
}

func parseDateParam(raw string) (time.Time, error) {
	date, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "date must be formatted as YYYY-MM-DD")
	}
	return date, nil
}
