package testutil

import (
	"fmt"
	"testing"

	"github.com/farellandr/canteen/config"
	"github.com/farellandr/canteen/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDB opens a private in-memory SQLite database with the full schema and
// seeded roles. A single connection keeps every statement on the same
// in-memory database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), config.GormConfig("test"))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, config.Migrate(db))
	require.NoError(t, config.SeedRoles(db))
	return db
}

func CreateUser(t *testing.T, db *gorm.DB, role string, balance string) *models.User {
	t.Helper()

	var r models.Role
	require.NoError(t, db.Where("name = ?", role).First(&r).Error)

	id := uuid.New()
	user := &models.User{
		ID:            id,
		Name:          "user " + id.String()[:8],
		Email:         id.String()[:8] + "@campus.test",
		Password:      "not-a-hash",
		WalletBalance: decimal.RequireFromString(balance),
		RoleID:        r.ID,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func CreateMeal(t *testing.T, db *gorm.DB, name, price string, dailyLimit int) *models.Meal {
	t.Helper()

	meal := &models.Meal{
		Name:       name,
		Price:      decimal.RequireFromString(price),
		Category:   "lunch",
		Available:  true,
		DailyLimit: dailyLimit,
	}
	require.NoError(t, db.Create(meal).Error)
	return meal
}

func Balance(t *testing.T, db *gorm.DB, userID uuid.UUID) decimal.Decimal {
	t.Helper()

	var user models.User
	require.NoError(t, db.First(&user, "id = ?", userID).Error)
	return user.WalletBalance
}

func ReloadMeal(t *testing.T, db *gorm.DB, mealID uuid.UUID) *models.Meal {
	t.Helper()

	var meal models.Meal
	require.NoError(t, db.First(&meal, "id = ?", mealID).Error)
	return &meal
}
