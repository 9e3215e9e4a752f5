package services

import "errors"

var (
	ErrNotFound                  = errors.New("not found")
	ErrInvalidState              = errors.New("invalid state for this operation")
	ErrInsufficientFunds         = errors.New("insufficient wallet balance")
	ErrPaymentInitiationFailed   = errors.New("payment initiation failed")
	ErrPaymentVerificationFailed = errors.New("payment verification failed")
	ErrRefundFailed              = errors.New("refund failed")

	ErrInvalidAmount        = errors.New("amount must be greater than zero")
	ErrInvalidQuantity      = errors.New("quantity must be at least 1")
	ErrInvalidPaymentMethod = errors.New("unsupported payment method")
	ErrMealUnavailable      = errors.New("meal not available for booking")
	ErrDailyLimitReached    = errors.New("daily limit reached for this meal")
	ErrTopUpBelowMinimum    = errors.New("top-up amount below minimum")
	ErrDuplicateEntry       = errors.New("ledger entry already applied")
	ErrRequestInProgress    = errors.New("another request for this resource is in progress")
)

var ErrInvalidQRCode = errors.New("invalid pickup QR code")

// errBookingChanged aborts a transaction whose conditional update found the
// booking in a different state than when it was read.
var errBookingChanged = errors.New("booking changed concurrently")
