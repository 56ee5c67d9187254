package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"finledger/internal/config"
	apperrors "finledger/internal/errors"
	"finledger/internal/models"
	"finledger/internal/pagination"
	"finledger/internal/services"
)

// --- mock budget service ---

type mockBudgetService struct {
	createBudgetFn      func(userID uint, category string, amount decimal.Decimal, period models.BudgetPeriod, startDate, endDate time.Time) (*models.Budget, error)
	getUserBudgetsFn    func(userID uint, page pagination.PageRequest, category *string, period *models.BudgetPeriod) (*pagination.PageResponse[models.Budget], error)
	getBudgetByIDFn     func(userID, budgetID uint) (*models.Budget, error)
	updateBudgetFn      func(userID, budgetID uint, update services.BudgetUpdate) (*models.Budget, error)
	deleteBudgetFn      func(userID, budgetID uint) error
	linkTransactionFn   func(userID, budgetID, transactionID uint) error
	unlinkTransactionFn func(userID, budgetID, transactionID uint) error
	getSummaryFn        func(userID uint) (*services.BudgetSummary, error)
}

func (m *mockBudgetService) CreateBudget(userID uint, category string, amount decimal.Decimal, period models.BudgetPeriod, startDate, endDate time.Time) (*models.Budget, error) {
	if m.createBudgetFn != nil {
		return m.createBudgetFn(userID, category, amount, period, startDate, endDate)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) GetUserBudgets(userID uint, page pagination.PageRequest, category *string, period *models.BudgetPeriod) (*pagination.PageResponse[models.Budget], error) {
	if m.getUserBudgetsFn != nil {
		return m.getUserBudgetsFn(userID, page, category, period)
	}
	return emptyPage[models.Budget](), nil
}

func (m *mockBudgetService) GetBudgetByID(userID, budgetID uint) (*models.Budget, error) {
	if m.getBudgetByIDFn != nil {
		return m.getBudgetByIDFn(userID, budgetID)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) UpdateBudget(userID, budgetID uint, update services.BudgetUpdate) (*models.Budget, error) {
	if m.updateBudgetFn != nil {
		return m.updateBudgetFn(userID, budgetID, update)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) DeleteBudget(userID, budgetID uint) error {
	if m.deleteBudgetFn != nil {
		return m.deleteBudgetFn(userID, budgetID)
	}
	return nil
}

func (m *mockBudgetService) LinkTransaction(userID, budgetID, transactionID uint) error {
	if m.linkTransactionFn != nil {
		return m.linkTransactionFn(userID, budgetID, transactionID)
	}
	return nil
}

func (m *mockBudgetService) UnlinkTransaction(userID, budgetID, transactionID uint) error {
	if m.unlinkTransactionFn != nil {
		return m.unlinkTransactionFn(userID, budgetID, transactionID)
	}
	return nil
}

func (m *mockBudgetService) GetSummary(userID uint) (*services.BudgetSummary, error) {
	if m.getSummaryFn != nil {
		return m.getSummaryFn(userID)
	}
	return &services.BudgetSummary{}, nil
}

func (m *mockBudgetService) ApplyTransaction(_ *models.Transaction) error  { return nil }
func (m *mockBudgetService) RemoveTransaction(_ *models.Transaction) error { return nil }

var _ services.BudgetServicer = (*mockBudgetService)(nil)

// --- mock rollover service ---

type mockRolloverService struct {
	rolloverBudgetFn func(ctx context.Context, userID, budgetID uint, policy config.RolloverPolicy) (*services.RolloverResult, error)
}

func (m *mockRolloverService) RolloverBudget(ctx context.Context, userID, budgetID uint, policy config.RolloverPolicy) (*services.RolloverResult, error) {
	if m.rolloverBudgetFn != nil {
		return m.rolloverBudgetFn(ctx, userID, budgetID, policy)
	}
	return &services.RolloverResult{}, nil
}

func (m *mockRolloverService) SweepDueBudgets(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

var _ services.RolloverServicer = (*mockRolloverService)(nil)

func setupBudgetRouter(handler *BudgetHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(1))
	auth.POST("/budgets", handler.CreateBudget)
	auth.GET("/budgets", handler.GetBudgets)
	auth.GET("/budgets/summary", handler.GetSummary)
	auth.GET("/budgets/:id", handler.GetBudget)
	auth.PUT("/budgets/:id", handler.UpdateBudget)
	auth.DELETE("/budgets/:id", handler.DeleteBudget)
	auth.POST("/budgets/:id/rollover", handler.Rollover)
	auth.POST("/budgets/:id/transactions/:transaction_id", handler.LinkTransaction)
	auth.DELETE("/budgets/:id/transactions/:transaction_id", handler.UnlinkTransaction)
	return r
}

func TestBudgetHandler_CreateBudget(t *testing.T) {
	validBody := `{"category":"Groceries","amount":500,"period":"monthly","start_date":"2026-01-01T00:00:00Z","end_date":"2026-01-31T00:00:00Z"}`

	t.Run("returns 201 on success", func(t *testing.T) {
		svc := &mockBudgetService{
			createBudgetFn: func(_ uint, category string, amount decimal.Decimal, period models.BudgetPeriod, startDate, endDate time.Time) (*models.Budget, error) {
				return &models.Budget{
					Base:      models.Base{ID: 1},
					UserID:    1,
					Category:  category,
					Amount:    amount,
					Period:    period,
					StartDate: startDate,
					EndDate:   endDate,
				}, nil
			},
		}
		handler := NewBudgetHandler(svc, &mockRolloverService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "POST", "/budgets", validBody)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		budget := result["budget"].(map[string]interface{})
		if budget["category"] != "Groceries" {
			t.Errorf("expected Groceries, got %v", budget["category"])
		}
	})

	t.Run("returns 400 on missing category", func(t *testing.T) {
		handler := NewBudgetHandler(&mockBudgetService{}, &mockRolloverService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "POST", "/budgets",
			`{"amount":500,"period":"monthly","start_date":"2026-01-01T00:00:00Z","end_date":"2026-01-31T00:00:00Z"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 400 on invalid period", func(t *testing.T) {
		handler := NewBudgetHandler(&mockBudgetService{}, &mockRolloverService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "POST", "/budgets",
			`{"category":"Groceries","amount":500,"period":"daily","start_date":"2026-01-01T00:00:00Z","end_date":"2026-01-31T00:00:00Z"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 400 on unknown category", func(t *testing.T) {
		svc := &mockBudgetService{
			createBudgetFn: func(_ uint, _ string, _ decimal.Decimal, _ models.BudgetPeriod, _, _ time.Time) (*models.Budget, error) {
				return nil, apperrors.ErrUnknownCategory
			},
		}
		handler := NewBudgetHandler(svc, &mockRolloverService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "POST", "/budgets", validBody)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "UNKNOWN_CATEGORY")
	})

	t.Run("returns 401 without auth", func(t *testing.T) {
		handler := NewBudgetHandler(&mockBudgetService{}, &mockRolloverService{})
		r := gin.New()
		r.POST("/budgets", handler.CreateBudget)

		rec := doRequest(r, "POST", "/budgets", validBody)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestBudgetHandler_GetBudgets(t *testing.T) {
	t.Run("returns 200 with paginated budgets", func(t *testing.T) {
		svc := &mockBudgetService{
			getUserBudgetsFn: func(_ uint, _ pagination.PageRequest, _ *string, _ *models.BudgetPeriod) (*pagination.PageResponse[models.Budget], error) {
				resp := pagination.NewPageResponse([]models.Budget{
					{Base: models.Base{ID: 1}, Category: "Groceries"},
					{Base: models.Base{ID: 2}, Category: "Dining"},
				}, 1, 20, 2)
				return &resp, nil
			},
		}
		handler := NewBudgetHandler(svc, &mockRolloverService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "GET", "/budgets", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		data := result["data"].([]interface{})
		if len(data) != 2 {
			t.Errorf("expected 2 budgets, got %d", len(data))
		}
	})

	t.Run("passes filter params to service", func(t *testing.T) {
		var capturedCategory *string
		var capturedPeriod *models.BudgetPeriod
		svc := &mockBudgetService{
			getUserBudgetsFn: func(_ uint, _ pagination.PageRequest, category *string, period *models.BudgetPeriod) (*pagination.PageResponse[models.Budget], error) {
				capturedCategory = category
				capturedPeriod = period
				return emptyPage[models.Budget](), nil
			},
		}
		handler := NewBudgetHandler(svc, &mockRolloverService{})
		r := setupBudgetRouter(handler)

		doRequest(r, "GET", "/budgets?category=Groceries&period=monthly", "")

		if capturedCategory == nil || *capturedCategory != "Groceries" {
			t.Error("expected category=Groceries to be passed")
		}
		if capturedPeriod == nil || *capturedPeriod != models.BudgetPeriodMonthly {
			t.Error("expected period=monthly to be passed")
		}
	})

	t.Run("returns 400 on invalid period filter", func(t *testing.T) {
		handler := NewBudgetHandler(&mockBudgetService{}, &mockRolloverService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "GET", "/budgets?period=daily", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})
}

func TestBudgetHandler_GetBudget(t *testing.T) {
	t.Run("returns 200 on success", func(t *testing.T) {
		svc := &mockBudgetService{
			getBudgetByIDFn: func(_, budgetID uint) (*models.Budget, error) {
				return &models.Budget{Base: models.Base{ID: budgetID}, Category: "Groceries"}, nil
			},
		}
		handler := NewBudgetHandler(svc, &mockRolloverService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "GET", "/budgets/1", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		result := parseJSON(t, rec)
		budget := result["budget"].(map[string]interface{})
		if budget["category"] != "Groceries" {
			t.Errorf("expected Groceries, got %v", budget["category"])
		}
	})

	t.Run("returns 404 when not found", func(t *testing.T) {
		svc := &mockBudgetService{
			getBudgetByIDFn: func(_, _ uint) (*models.Budget, error) {
				return nil, apperrors.ErrBudgetNotFound
			},
		}
		handler := NewBudgetHandler(svc, &mockRolloverService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "GET", "/budgets/999", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "BUDGET_NOT_FOUND")
	})

	t.Run("returns 400 on invalid ID", func(t *testing.T) {
		handler := NewBudgetHandler(&mockBudgetService{}, &mockRolloverService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "GET", "/budgets/abc", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestBudgetHandler_UpdateBudget(t *testing.T) {
	t.Run("returns 200 on success", func(t *testing.T) {
		svc := &mockBudgetService{
			updateBudgetFn: func(_, budgetID uint, update services.BudgetUpdate) (*models.Budget, error) {
				b := &models.Budget{Base: models.Base{ID: budgetID}, Category: "Groceries"}
				if update.Amount != nil {
					b.Amount = *update.Amount
				}
				return b, nil
			},
		}
		handler := NewBudgetHandler(svc, &mockRolloverService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "PUT", "/budgets/1", `{"amount":750}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("returns 404 when not found", func(t *testing.T) {
		svc := &mockBudgetService{
			updateBudgetFn: func(_, _ uint, _ services.BudgetUpdate) (*models.Budget, error) {
				return nil, apperrors.ErrBudgetNotFound
			},
		}
		handler := NewBudgetHandler(svc, &mockRolloverService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "PUT", "/budgets/999", `{"amount":750}`)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestBudgetHandler_DeleteBudget(t *testing.T) {
	t.Run("returns 200 on success", func(t *testing.T) {
		handler := NewBudgetHandler(&mockBudgetService{}, &mockRolloverService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "DELETE", "/budgets/1", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("returns 404 when not found", func(t *testing.T) {
		svc := &mockBudgetService{
			deleteBudgetFn: func(_, _ uint) error { return apperrors.ErrBudgetNotFound },
		}
		handler := NewBudgetHandler(svc, &mockRolloverService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "DELETE", "/budgets/999", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestBudgetHandler_LinkTransaction(t *testing.T) {
	t.Run("returns 200 on success", func(t *testing.T) {
		var linkedBudget, linkedTxn uint
		svc := &mockBudgetService{
			linkTransactionFn: func(_, budgetID, transactionID uint) error {
				linkedBudget = budgetID
				linkedTxn = transactionID
				return nil
			},
		}
		handler := NewBudgetHandler(svc, &mockRolloverService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "POST", "/budgets/1/transactions/7", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if linkedBudget != 1 || linkedTxn != 7 {
			t.Errorf("expected link(1, 7), got link(%d, %d)", linkedBudget, linkedTxn)
		}
	})

	t.Run("returns 404 when transaction missing", func(t *testing.T) {
		svc := &mockBudgetService{
			linkTransactionFn: func(_, _, _ uint) error { return apperrors.ErrTransactionNotFound },
		}
		handler := NewBudgetHandler(svc, &mockRolloverService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "POST", "/budgets/1/transactions/999", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "TRANSACTION_NOT_FOUND")
	})
}

func TestBudgetHandler_GetSummary(t *testing.T) {
	svc := &mockBudgetService{
		getSummaryFn: func(_ uint) (*services.BudgetSummary, error) {
			return &services.BudgetSummary{
				Budgets: []services.CategorySummary{{
					BudgetID:       1,
					Category:       "Groceries",
					BudgetAmount:   decimal.NewFromInt(100),
					Spent:          decimal.NewFromInt(25),
					Remaining:      decimal.NewFromInt(75),
					PercentageUsed: "25.00",
				}},
				TotalBudgeted:  decimal.NewFromInt(100),
				TotalSpent:     decimal.NewFromInt(25),
				TotalRemaining: decimal.NewFromInt(75),
			}, nil
		},
	}
	handler := NewBudgetHandler(svc, &mockRolloverService{})
	r := setupBudgetRouter(handler)

	rec := doRequest(r, "GET", "/budgets/summary", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	summary := result["summary"].(map[string]interface{})
	budgets := summary["budgets"].([]interface{})
	if len(budgets) != 1 {
		t.Fatalf("expected 1 budget row, got %d", len(budgets))
	}
	row := budgets[0].(map[string]interface{})
	if row["percentage_used"] != "25.00" {
		t.Errorf("expected percentage_used 25.00, got %v", row["percentage_used"])
	}
}

func TestBudgetHandler_Rollover(t *testing.T) {
	t.Run("returns 200 and defaults policy", func(t *testing.T) {
		var capturedPolicy config.RolloverPolicy
		rollover := &mockRolloverService{
			rolloverBudgetFn: func(_ context.Context, _, budgetID uint, policy config.RolloverPolicy) (*services.RolloverResult, error) {
				capturedPolicy = policy
				return &services.RolloverResult{
					History: &models.BudgetHistoryRecord{BudgetID: budgetID},
					Budget:  &models.Budget{Base: models.Base{ID: budgetID}},
				}, nil
			},
		}
		handler := NewBudgetHandler(&mockBudgetService{}, rollover)
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "POST", "/budgets/1/rollover", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if capturedPolicy != config.Get().RolloverPolicy {
			t.Errorf("expected configured default policy, got %s", capturedPolicy)
		}
	})

	t.Run("accepts explicit policy", func(t *testing.T) {
		var capturedPolicy config.RolloverPolicy
		rollover := &mockRolloverService{
			rolloverBudgetFn: func(_ context.Context, _, _ uint, policy config.RolloverPolicy) (*services.RolloverResult, error) {
				capturedPolicy = policy
				return &services.RolloverResult{}, nil
			},
		}
		handler := NewBudgetHandler(&mockBudgetService{}, rollover)
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "POST", "/budgets/1/rollover", `{"policy":"carry_forward"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if capturedPolicy != config.RolloverPolicyCarryForward {
			t.Errorf("expected carry_forward, got %s", capturedPolicy)
		}
	})

	t.Run("returns 400 on unknown policy", func(t *testing.T) {
		handler := NewBudgetHandler(&mockBudgetService{}, &mockRolloverService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "POST", "/budgets/1/rollover", `{"policy":"discard"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 400 when period not ended", func(t *testing.T) {
		rollover := &mockRolloverService{
			rolloverBudgetFn: func(_ context.Context, _, _ uint, _ config.RolloverPolicy) (*services.RolloverResult, error) {
				return nil, apperrors.ErrBudgetNotDue
			},
		}
		handler := NewBudgetHandler(&mockBudgetService{}, rollover)
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "POST", "/budgets/1/rollover", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "BUDGET_NOT_DUE")
	})
}
