package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/labelforge/labelforge-api/internal/dto"
	"github.com/labelforge/labelforge-api/internal/middleware"
	"github.com/labelforge/labelforge-api/internal/models"
	appErrors "github.com/labelforge/labelforge-api/pkg/errors"
	"github.com/labelforge/labelforge-api/pkg/response"
)

type statisticsService interface {
	Snapshot(ctx context.Context, query dto.StatisticsQuery) (*models.PrepressStatistics, bool, error)
}

// StatisticsHandler exposes the HOD dashboard projection.
type StatisticsHandler struct {
	service statisticsService
}

// NewStatisticsHandler constructs the handler.
func NewStatisticsHandler(svc statisticsService) *StatisticsHandler {
	return &StatisticsHandler{service: svc}
}

// Statistics godoc
// @Summary Prepress workload statistics
// @Description Per-status counts, active designers, and average turnaround
// @Tags Prepress
// @Produce json
// @Param dateFrom query string false "YYYY-MM-DD"
// @Param dateTo query string false "YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Router /prepress/statistics [get]
func (h *StatisticsHandler) Statistics(c *gin.Context) {
	var query dto.StatisticsQuery
	if raw := c.Query("dateFrom"); raw != "" {
		ts, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "dateFrom must be YYYY-MM-DD"))
			return
		}
		query.DateFrom = &ts
	}
	if raw := c.Query("dateTo"); raw != "" {
		ts, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "dateTo must be YYYY-MM-DD"))
			return
		}
		query.DateTo = &ts
	}

	stats, cached, err := h.service.Snapshot(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}
