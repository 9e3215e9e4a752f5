package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Meal is a catalog entry. SoldToday counts units confirmed since the last
// daily reset; a DailyLimit of zero means the meal is not capped.
type Meal struct {
	ID          uuid.UUID       `gorm:"type:char(36);primary_key" json:"id"`
	Name        string          `gorm:"not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price"`
	Category    string          `gorm:"not null;index" json:"category"`
	Available   bool            `gorm:"not null" json:"available"`
	SoldToday   int             `gorm:"not null;default:0" json:"sold_today"`
	DailyLimit  int             `gorm:"not null;default:0" json:"daily_limit"`
	TotalOrders int             `gorm:"not null;default:0" json:"total_orders"`
	ImagePath   string          `json:"image_path,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (meal *Meal) BeforeCreate(tx *gorm.DB) (err error) {
	if meal.ID == uuid.Nil {
		meal.ID = uuid.New()
	}
	return
}

func (meal *Meal) HasCapacity(quantity int) bool {
	return meal.DailyLimit <= 0 || meal.SoldToday+quantity <= meal.DailyLimit
}
