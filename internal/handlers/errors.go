package handlers

import (
	"errors"
	"net/http"

	"github.com/farellandr/canteen/internal/helpers"
	"github.com/farellandr/canteen/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var serviceErrorStatus = []struct {
	err    error
	status int
}{
	{services.ErrNotFound, http.StatusNotFound},
	{services.ErrInvalidState, http.StatusConflict},
	{services.ErrInsufficientFunds, http.StatusPaymentRequired},
	{services.ErrPaymentInitiationFailed, http.StatusBadGateway},
	{services.ErrRefundFailed, http.StatusBadGateway},
	{services.ErrPaymentVerificationFailed, http.StatusBadRequest},
	{services.ErrInvalidAmount, http.StatusBadRequest},
	{services.ErrInvalidQuantity, http.StatusBadRequest},
	{services.ErrInvalidPaymentMethod, http.StatusBadRequest},
	{services.ErrTopUpBelowMinimum, http.StatusBadRequest},
	{services.ErrInvalidQRCode, http.StatusBadRequest},
	{services.ErrMealUnavailable, http.StatusConflict},
	{services.ErrDailyLimitReached, http.StatusConflict},
	{services.ErrDuplicateEntry, http.StatusConflict},
	{services.ErrRequestInProgress, http.StatusTooManyRequests},
}

// RespondWithServiceError maps a service error onto the standard error
// envelope. Unknown errors become a 500 and are attached to the context for
// the request logger.
func RespondWithServiceError(c *gin.Context, err error) {
	for _, m := range serviceErrorStatus {
		if errors.Is(err, m.err) {
			helpers.RespondWithError(c, m.status, err.Error())
			return
		}
	}
	_ = c.Error(err)
	helpers.RespondWithError(c, http.StatusInternalServerError, "Internal server error.")
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid "+name+".")
		return uuid.Nil, false
	}
	return id, true
}

func currentUser(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		helpers.RespondWithError(c, http.StatusUnauthorized, "User ID not found in token.")
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Invalid user ID type.")
		return uuid.Nil, false
	}
	return id, true
}
