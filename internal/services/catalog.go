package services

import (
	"context"
	"fmt"

	"github.com/farellandr/canteen/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CatalogService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewCatalogService(db *gorm.DB, log *zap.Logger) *CatalogService {
	return &CatalogService{db: db, log: log}
}

func (s *CatalogService) GetMeal(ctx context.Context, mealID uuid.UUID) (*models.Meal, error) {
	var meal models.Meal
	if err := s.db.WithContext(ctx).First(&meal, "id = ?", mealID).Error; err != nil {
		return nil, notFound(err, "meal")
	}
	return &meal, nil
}

// RecordSale adds a confirmed booking to the meal's counters. With
// enforceLimit the update only applies while the daily limit still has room.
func (s *CatalogService) RecordSale(tx *gorm.DB, mealID uuid.UUID, quantity int, enforceLimit bool) error {
	q := tx.Model(&models.Meal{}).Where("id = ?", mealID)
	if enforceLimit {
		q = q.Where("(daily_limit = 0 OR sold_today + ? <= daily_limit)", quantity)
	}

	res := q.Updates(map[string]interface{}{
		"sold_today":   gorm.Expr("sold_today + ?", quantity),
		"total_orders": gorm.Expr("total_orders + ?", 1),
	})
	if res.Error != nil {
		return fmt.Errorf("record sale: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if enforceLimit {
			return ErrDailyLimitReached
		}
		return fmt.Errorf("meal %s: %w", mealID, ErrNotFound)
	}
	return nil
}

func (s *CatalogService) ResetDailyCounts(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Meal{}).
		Where("sold_today <> ?", 0).
		Update("sold_today", 0)
	if res.Error != nil {
		return 0, fmt.Errorf("reset daily counts: %w", res.Error)
	}

	s.log.Info("daily meal counts reset", zap.Int64("meals", res.RowsAffected))
	return res.RowsAffected, nil
}
