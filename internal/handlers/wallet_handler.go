package handlers

import (
	"net/http"

	"github.com/farellandr/canteen/internal/helpers"
	"github.com/farellandr/canteen/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type WalletHandler struct {
	wallet *services.WalletService
}

func NewWalletHandler(wallet *services.WalletService) *WalletHandler {
	return &WalletHandler{wallet: wallet}
}

type TopUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type VerifyTopUpRequest struct {
	OrderID   string          `json:"order_id" binding:"required"`
	PaymentID string          `json:"payment_id" binding:"required"`
	Signature string          `json:"signature" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	balance, err := h.wallet.GetBalance(c.Request.Context(), userID)
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	txns, err := h.wallet.ListTransactions(c.Request.Context(), userID)
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": txns})
}

func (h *WalletHandler) AddMoney(c *gin.Context) {
	var req TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	userID, ok := currentUser(c)
	if !ok {
		return
	}

	order, err := h.wallet.TopUp(c.Request.Context(), userID, req.Amount)
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (h *WalletHandler) VerifyTopUp(c *gin.Context) {
	var req VerifyTopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	userID, ok := currentUser(c)
	if !ok {
		return
	}

	balance, err := h.wallet.VerifyTopUp(c.Request.Context(), userID, req.OrderID, req.PaymentID, req.Signature, req.Amount)
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Wallet topped up successfully.",
		"balance": balance,
	})
}
