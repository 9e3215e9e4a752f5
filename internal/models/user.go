package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type User struct {
	ID            uuid.UUID       `gorm:"type:char(36);primary_key" json:"id"`
	Name          string          `gorm:"not null" json:"name"`
	Email         string          `gorm:"unique;not null" json:"email"`
	Password      string          `gorm:"not null" json:"-"`
	WalletBalance decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"wallet_balance"`
	RoleID        uuid.UUID       `gorm:"type:char(36);index" json:"-"`
	Role          Role            `json:"role"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (user *User) BeforeCreate(tx *gorm.DB) (err error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return
}
