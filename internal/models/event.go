package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventBookingCreated   = "booking.created"
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
	EventBookingCompleted = "booking.completed"
	EventWalletTopUp      = "wallet.topup"
	EventRefundFailed     = "refund.failed"
	EventRefundSucceeded  = "refund.succeeded"
)

type DomainEvent struct {
	Type      string          `json:"type"`
	BookingID *uuid.UUID      `json:"booking_id,omitempty"`
	UserID    uuid.UUID       `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
