package services

import (
	"context"
	"time"

	"github.com/farellandr/canteen/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	recentBookingsLimit = 5
	popularMealsLimit   = 5
)

type Stats struct {
	TotalBookings int64           `json:"total_bookings"`
	TodayBookings int64           `json:"today_bookings"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TodayRevenue  decimal.Decimal `json:"today_revenue"`
}

type DashboardService struct {
	db  *gorm.DB
	loc *time.Location
	now func() time.Time
}

func NewDashboardService(db *gorm.DB, loc *time.Location) *DashboardService {
	if loc == nil {
		loc = time.Local
	}
	return &DashboardService{db: db, loc: loc, now: time.Now}
}

func (s *DashboardService) startOfToday() time.Time {
	now := s.now().In(s.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc).UTC()
}

// Stats sums bookings in every status, matching how the canteen has always
// reported revenue.
func (s *DashboardService) Stats(ctx context.Context) (*Stats, error) {
	db := s.db.WithContext(ctx)
	today := s.startOfToday()

	var stats Stats
	if err := db.Model(&models.Booking{}).Count(&stats.TotalBookings).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Booking{}).Where("created_at >= ?", today).Count(&stats.TodayBookings).Error; err != nil {
		return nil, err
	}

	var err error
	if stats.TotalRevenue, err = s.sumRevenue(db.Model(&models.Booking{})); err != nil {
		return nil, err
	}
	if stats.TodayRevenue, err = s.sumRevenue(db.Model(&models.Booking{}).Where("created_at >= ?", today)); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *DashboardService) sumRevenue(q *gorm.DB) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	if err := q.Select("SUM(total_price)").Row().Scan(&total); err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func (s *DashboardService) RecentBookings(ctx context.Context) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Meal").
		Order("created_at DESC").
		Limit(recentBookingsLimit).
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// PopularMeals ranks by confirmed orders; equal counts keep catalog order.
func (s *DashboardService) PopularMeals(ctx context.Context) ([]models.Meal, error) {
	var meals []models.Meal
	err := s.db.WithContext(ctx).
		Order("total_orders DESC").
		Order("created_at ASC").
		Limit(popularMealsLimit).
		Find(&meals).Error
	if err != nil {
		return nil, err
	}
	return meals, nil
}
