package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// Cancellable reports whether a booking in this status may still be cancelled.
func (s BookingStatus) Cancellable() bool {
	return s == BookingPending || s == BookingConfirmed
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	MethodWallet  PaymentMethod = "wallet"
	MethodGateway PaymentMethod = "gateway"
	MethodCash    PaymentMethod = "cash"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodWallet, MethodGateway, MethodCash:
		return true
	}
	return false
}

// Booking snapshots TotalPrice at creation; later meal price edits never
// touch existing bookings.
type Booking struct {
	ID               uuid.UUID       `gorm:"type:char(36);primary_key" json:"id"`
	UserID           uuid.UUID       `gorm:"type:char(36);not null;index" json:"user_id"`
	User             *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	MealID           uuid.UUID       `gorm:"type:char(36);not null;index" json:"meal_id"`
	Meal             *Meal           `gorm:"foreignKey:MealID" json:"meal,omitempty"`
	Quantity         int             `gorm:"not null" json:"quantity"`
	TotalPrice       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`
	Status           BookingStatus   `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentStatus    PaymentStatus   `gorm:"type:varchar(20);not null" json:"payment_status"`
	PaymentMethod    PaymentMethod   `gorm:"type:varchar(20);not null" json:"payment_method"`
	GatewayOrderID   *string         `gorm:"size:64;uniqueIndex" json:"gateway_order_id,omitempty"`
	GatewayPaymentID string          `json:"gateway_payment_id,omitempty"`
	GatewaySignature string          `json:"-"`
	RefundPending    bool            `gorm:"not null;default:false;index" json:"refund_pending"`
	RefundError      string          `gorm:"type:text" json:"refund_error,omitempty"`
	CreatedAt        time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (booking *Booking) BeforeCreate(tx *gorm.DB) (err error) {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	return
}
