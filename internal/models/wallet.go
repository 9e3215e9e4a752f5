package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	TransactionCredit = "credit"
	TransactionDebit  = "debit"
)

// WalletTransaction is one applied balance mutation. Reference is unique so
// the same logical event can never be applied twice.
type WalletTransaction struct {
	ID          uuid.UUID       `gorm:"type:char(36);primary_key" json:"id"`
	UserID      uuid.UUID       `gorm:"type:char(36);not null;index" json:"user_id"`
	Type        string          `gorm:"type:varchar(10);not null" json:"type"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Reference   string          `gorm:"size:191;not null;uniqueIndex" json:"reference"`
	Description string          `gorm:"type:text" json:"description"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
}

func (txn *WalletTransaction) BeforeCreate(tx *gorm.DB) (err error) {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	return
}

type TopUpStatus string

const (
	TopUpPending TopUpStatus = "pending"
	TopUpPaid    TopUpStatus = "paid"
)

// TopUpOrder remembers the amount requested when the gateway order was
// created, so verification credits that amount rather than a client claim.
type TopUpOrder struct {
	GatewayOrderID string          `gorm:"size:64;primaryKey" json:"gateway_order_id"`
	UserID         uuid.UUID       `gorm:"type:char(36);not null;index" json:"user_id"`
	Amount         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Status         TopUpStatus     `gorm:"type:varchar(20);not null" json:"status"`
	PaymentID      string          `json:"payment_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
