package services

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "finledger/internal/errors"
	"finledger/internal/models"
)

var (
	increaseThreshold = decimal.NewFromInt(90)
	decreaseThreshold = decimal.NewFromInt(70)
)

// analyticsService derives trends and recommendations from budget history.
// Read-only: it never mutates ledger state.
type analyticsService struct {
	db *gorm.DB
}

// NewAnalyticsService creates a new AnalyticsServicer.
func NewAnalyticsService(db *gorm.DB) AnalyticsServicer {
	return &analyticsService{db: db}
}

// GetBudgetTrends aggregates the closed periods of a category inside the
// given date range: average utilization, a sizing recommendation, and
// summary totals. With no history it returns zeroes and no recommendation.
func (s *analyticsService) GetBudgetTrends(userID uint, category string, from, to time.Time) (*BudgetTrends, error) {
	var records []models.BudgetHistoryRecord
	err := s.db.
		Where("user_id = ? AND category = ? AND period_start >= ? AND period_start <= ?", userID, category, from, to).
		Order("period_start ASC").
		Find(&records).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, err)
	}

	trends := &BudgetTrends{
		Category:           category,
		Records:            len(records),
		AverageUtilization: decimal.Zero,
		Recommendation:     RecommendationNone,
		TotalSpent:         decimal.Zero,
		AverageSpent:       decimal.Zero,
		TotalRollovers:     decimal.Zero,
	}
	if len(records) == 0 {
		return trends, nil
	}

	utilizationSum := decimal.Zero
	for _, record := range records {
		utilizationSum = utilizationSum.Add(record.UtilizationPct)
		trends.TotalSpent = trends.TotalSpent.Add(record.ActualSpent)
		trends.TotalRollovers = trends.TotalRollovers.Add(record.UnspentAmount)
	}

	n := decimal.NewFromInt(int64(len(records)))
	trends.AverageUtilization = utilizationSum.Div(n).Round(2)
	trends.AverageSpent = trends.TotalSpent.Div(n).Round(2)
	trends.Recommendation = recommend(trends.AverageUtilization)

	return trends, nil
}

// recommend maps average utilization to a budget-sizing recommendation:
// consistently above 90% suggests the cap is too tight, below 70% too loose.
func recommend(avgUtilization decimal.Decimal) Recommendation {
	switch {
	case avgUtilization.GreaterThan(increaseThreshold):
		return RecommendationIncrease
	case avgUtilization.LessThan(decreaseThreshold):
		return RecommendationDecrease
	default:
		return RecommendationNone
	}
}
