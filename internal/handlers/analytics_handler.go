package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "finledger/internal/errors"
	"finledger/internal/services"
)

// AnalyticsHandler handles budget history analytics requests.
type AnalyticsHandler struct {
	analyticsService services.AnalyticsServicer
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(analyticsService services.AnalyticsServicer) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsService: analyticsService}
}

// GetBudgetTrends handles retrieving utilization trends for a category.
// @Summary     Get budget trends
// @Description Aggregate a category's closed budget periods into utilization trends and a sizing recommendation
// @Tags        analytics
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       category query string true  "Category name"
// @Param       from     query string false "Range start (RFC 3339, default 6 months ago)"
// @Param       to       query string false "Range end (RFC 3339, default now)"
// @Success     200 {object} services.BudgetTrends "Budget trends"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /analytics/budget-trends [get]
func (h *AnalyticsHandler) GetBudgetTrends(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	category := c.Query("category")
	if category == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "category is required"))
		return
	}

	now := time.Now()
	from := now.AddDate(0, -6, 0)
	to := now

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "from must be RFC 3339"))
			return
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "to must be RFC 3339"))
			return
		}
		to = t
	}
	if to.Before(from) {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "to must not be before from"))
		return
	}

	trends, err := h.analyticsService.GetBudgetTrends(userID, category, from, to)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"trends": trends})
}
