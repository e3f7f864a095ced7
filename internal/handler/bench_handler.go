package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/court-dcm-api/internal/models"
	"github.com/noah-isme/court-dcm-api/internal/service"
	appErrors "github.com/noah-isme/court-dcm-api/pkg/errors"
	"github.com/noah-isme/court-dcm-api/pkg/response"
)

// BenchHandler handles courtroom bench endpoints.
type BenchHandler struct {
	service *service.BenchService
}

// NewBenchHandler constructs a bench handler.
func NewBenchHandler(svc *service.BenchService) *BenchHandler {
	return &BenchHandler{service: svc}
}

// List godoc
// @Summary List benches
// @Tags Benches
// @Produce json
// @Param active query bool false "Filter by active flag"
// @Param search query string false "Search keyword"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /benches [get]
func (h *BenchHandler) List(c *gin.Context) {
	var filter models.BenchFilter
	if active := c.Query("active"); active != "" {
		if parsed, err := strconv.ParseBool(active); err == nil {
			filter.Active = &parsed
		}
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

	benches, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, benches, pagination)
}

// Get godoc
// @Summary Get bench by id
// @Tags Benches
// @Produce json
// @Param id path string true "Bench ID"
// @Success 200 {object} response.Envelope
// @Router /benches/{id} [get]
func (h *BenchHandler) Get(c *gin.Context) {
	bench, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bench, nil)
}

// Create godoc
// @Summary Create bench
// @Tags Benches
// @Accept json
// @Produce json
// @Param payload body service.CreateBenchRequest true "Bench payload"
// @Success 201 {object} response.Envelope
// @Router /benches [post]
func (h *BenchHandler) Create(c *gin.Context) {
	var req service.CreateBenchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	bench, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, bench)
}

// Update godoc
// @Summary Update bench
// @Tags Benches
// @Accept json
// @Produce json
// @Param id path string true "Bench ID"
// @Param payload body service.UpdateBenchRequest true "Bench payload"
// @Success 200 {object} response.Envelope
// @Router /benches/{id} [put]
func (h *BenchHandler) Update(c *gin.Context) {
	var req service.UpdateBenchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	bench, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bench, nil)
}

// Deactivate godoc
// @Summary Deactivate bench
// @Description Marks a bench inactive so the allocator stops using it.
// @Tags Benches
// @Produce json
// @Param id path string true "Bench ID"
// @Success 204
// @Router /benches/{id} [delete]
func (h *BenchHandler) Deactivate(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
