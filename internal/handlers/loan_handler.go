package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "finledger/internal/errors"
	"finledger/internal/models"
	"finledger/internal/services"
)

// LoanHandler handles loan-related requests.
type LoanHandler struct {
	loanService services.LoanServicer
}

// NewLoanHandler creates a new LoanHandler.
func NewLoanHandler(loanService services.LoanServicer) *LoanHandler {
	return &LoanHandler{loanService: loanService}
}

// CreateLoanRequest represents the request payload for creating a loan.
// Exactly three instalments: dates and amounts are positional pairs.
type CreateLoanRequest struct {
	InstalmentDates   []time.Time         `json:"instalment_dates" binding:"required,len=3"`
	InstalmentAmounts []decimal.Decimal   `json:"instalment_amounts" binding:"required,len=3"`
	LivingOption      models.LivingOption `json:"living_option" binding:"required,living_option"`
	TotalAmount       decimal.Decimal     `json:"total_amount" binding:"required"`
}

// LinkAllRequest represents the optional bulk-link request payload.
type LinkAllRequest struct {
	Strategy *services.LinkStrategy `json:"strategy" binding:"omitempty,link_strategy"`
}

// CreateLoan handles registering the user's loan.
// @Summary     Create a loan
// @Description Register the user's loan with its three-instalment schedule
// @Tags        loans
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateLoanRequest true "Loan details"
// @Success     201 {object} models.Loan "Loan created"
// @Failure     400 {object} ErrorResponse "Invalid input or instalment mismatch"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     409 {object} ErrorResponse "An open loan already exists"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans [post]
func (h *LoanHandler) CreateLoan(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	loan, err := h.loanService.CreateLoan(userID, req.InstalmentDates, req.InstalmentAmounts, req.LivingOption, req.TotalAmount)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"loan": loan})
}

// GetLoan handles retrieving the user's loan.
// @Summary     Get loan
// @Description Get the user's loan with its instalment schedule and tracked transactions
// @Tags        loans
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} models.Loan "Loan details"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Loan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans [get]
func (h *LoanHandler) GetLoan(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	loan, err := h.loanService.GetUserLoan(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"loan": loan})
}

// DeleteLoan handles deleting a loan.
// @Summary     Delete loan
// @Description Delete a loan, its instalments, and its transaction links
// @Tags        loans
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Loan ID"
// @Success     200 {object} MessageResponse "Loan deleted"
// @Failure     400 {object} ErrorResponse "Invalid loan ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Loan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans/{id} [delete]
func (h *LoanHandler) DeleteLoan(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	loanID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.loanService.DeleteLoan(userID, loanID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Loan deleted successfully"})
}

// LinkTransaction handles linking a transaction to the loan.
// @Summary     Link transaction to loan
// @Description Attribute a transaction to loan spending, reducing the remaining amount
// @Tags        loans
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id             path int true "Loan ID"
// @Param       transaction_id path int true "Transaction ID"
// @Success     200 {object} models.Loan "Updated loan"
// @Failure     400 {object} ErrorResponse "Already linked or amount exceeds remainder"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Loan or transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans/{id}/transactions/{transaction_id} [post]
func (h *LoanHandler) LinkTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	loanID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "transaction_id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	loan, err := h.loanService.LinkTransaction(userID, loanID, transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"loan": loan})
}

// UnlinkTransaction handles unlinking a transaction from the loan.
// @Summary     Unlink transaction from loan
// @Description Remove a transaction from loan spending, restoring the remaining amount
// @Tags        loans
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id             path int true "Loan ID"
// @Param       transaction_id path int true "Transaction ID"
// @Success     200 {object} models.Loan "Updated loan"
// @Failure     400 {object} ErrorResponse "Transaction not linked"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Loan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans/{id}/transactions/{transaction_id} [delete]
func (h *LoanHandler) UnlinkTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	loanID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "transaction_id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	loan, err := h.loanService.UnlinkTransaction(userID, loanID, transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"loan": loan})
}

// LinkAllTransactions handles bulk-linking unlinked transactions to the loan.
// @Summary     Bulk-link transactions to loan
// @Description Greedily link the user's unlinked transactions while they fit the remaining amount
// @Tags        loans
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path int            true  "Loan ID"
// @Param       request body LinkAllRequest false "Bulk link options"
// @Success     200 {object} services.LinkAllResult "Bulk link result"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Loan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans/{id}/transactions/link-all [post]
func (h *LoanHandler) LinkAllTransactions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	loanID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	strategy := services.LinkStrategyFirstFit
	if c.Request.ContentLength > 0 {
		var req LinkAllRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
		if req.Strategy != nil {
			strategy = *req.Strategy
		}
	}

	result, err := h.loanService.LinkAllTransactions(userID, loanID, strategy)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

// UnlinkAllTransactions handles clearing the loan's tracked set.
// @Summary     Bulk-unlink transactions from loan
// @Description Clear the loan's tracked transaction set and restore the full remaining amount
// @Tags        loans
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Loan ID"
// @Success     200 {object} models.Loan "Updated loan"
// @Failure     400 {object} ErrorResponse "Invalid loan ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Loan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans/{id}/transactions [delete]
func (h *LoanHandler) UnlinkAllTransactions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	loanID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	loan, err := h.loanService.UnlinkAllTransactions(userID, loanID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"loan": loan})
}

// GetAvailableAmount handles computing the disbursed-to-date amount.
// @Summary     Get available loan amount
// @Description Sum of instalment amounts whose due date is on or before the given time (default now)
// @Tags        loans
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       as_of query string false "Point in time (RFC 3339, default now)"
// @Success     200 {object} map[string]string "Available amount"
// @Failure     400 {object} ErrorResponse "Invalid as_of"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Loan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans/available [get]
func (h *LoanHandler) GetAvailableAmount(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	asOf := time.Now()
	if v := c.Query("as_of"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "as_of must be RFC 3339"))
			return
		}
		asOf = t
	}

	loan, err := h.loanService.GetUserLoan(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	available := h.loanService.AvailableAmount(loan, asOf)
	c.JSON(http.StatusOK, gin.H{
		"available_amount": available,
		"as_of":            asOf,
	})
}
