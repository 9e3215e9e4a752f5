package handlers

import (
	"net/http"

	"github.com/farellandr/canteen/internal/helpers"
	"github.com/farellandr/canteen/internal/models"
	"github.com/farellandr/canteen/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type BookingHandler struct {
	bookings *services.BookingService
}

func NewBookingHandler(bookings *services.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

type CreateBookingRequest struct {
	MealID        uuid.UUID `json:"meal_id" binding:"required"`
	Quantity      int       `json:"quantity" binding:"required,min=1"`
	PaymentMethod string    `json:"payment_method" binding:"required"`
}

type VerifyPaymentRequest struct {
	OrderID   string `json:"order_id" binding:"required"`
	PaymentID string `json:"payment_id" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

type RedeemRequest struct {
	QRData string `json:"qr_data" binding:"required"`
}

func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	userID, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := h.bookings.CreateBooking(c.Request.Context(), services.CreateBookingInput{
		UserID:         userID,
		MealID:         req.MealID,
		Quantity:       req.Quantity,
		Method:         models.PaymentMethod(req.PaymentMethod),
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *BookingHandler) VerifyPayment(c *gin.Context) {
	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	booking, err := h.bookings.VerifyGatewayPayment(c.Request.Context(), req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment verified successfully.",
		"booking": booking,
	})
}

func (h *BookingHandler) ListBookings(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	bookings, err := h.bookings.ListUserBookings(c.Request.Context(), userID)
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

func (h *BookingHandler) GetBooking(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	bookingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookings.GetBooking(c.Request.Context(), userID, bookingID)
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

func (h *BookingHandler) CancelBooking(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	bookingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookings.CancelBooking(c.Request.Context(), userID, bookingID)
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Booking cancelled successfully.",
		"booking": booking,
	})
}

func (h *BookingHandler) BookingQR(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	bookingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	png, err := h.bookings.PickupQR(c.Request.Context(), userID, bookingID)
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

func (h *BookingHandler) RedeemBooking(c *gin.Context) {
	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	booking, err := h.bookings.RedeemBooking(c.Request.Context(), req.QRData)
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Booking redeemed successfully.",
		"booking": booking,
	})
}

func (h *BookingHandler) ListPendingRefunds(c *gin.Context) {
	bookings, err := h.bookings.ListPendingRefunds(c.Request.Context())
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"refunds": bookings})
}

func (h *BookingHandler) RetryRefund(c *gin.Context) {
	bookingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookings.RetryRefund(c.Request.Context(), bookingID)
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Refund processed successfully.",
		"booking": booking,
	})
}
