package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "finledger/internal/errors"
	"finledger/internal/pagination"
	"finledger/internal/services"
)

// NotificationHandler handles notification history and preference requests.
type NotificationHandler struct {
	notificationService services.NotificationServicer
	userService         services.UserServicer
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notificationService services.NotificationServicer, userService services.UserServicer) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService, userService: userService}
}

// NotificationPreferenceRequest represents the preference toggle payload.
type NotificationPreferenceRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// GetHistory handles listing the user's emitted notifications.
// @Summary     Get notification history
// @Description Get a paginated list of notifications emitted for the user, newest first
// @Tags        notifications
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.NotificationHistory] "Paginated notifications"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /notifications [get]
func (h *NotificationHandler) GetHistory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.notificationService.GetHistory(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// UpdatePreference handles toggling the user's notification opt-in.
// @Summary     Update notification preference
// @Description Enable or disable notification emission for the user
// @Tags        notifications
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body NotificationPreferenceRequest true "Preference"
// @Success     200 {object} MessageResponse "Preference updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /notifications/preference [put]
func (h *NotificationHandler) UpdatePreference(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req NotificationPreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, err := h.userService.SetNotificationsEnabled(userID, *req.Enabled)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":               "Notification preference updated",
		"notifications_enabled": user.NotificationsEnabled,
	})
}
