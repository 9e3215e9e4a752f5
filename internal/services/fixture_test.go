package services

import (
	"testing"
	"time"

	"github.com/farellandr/canteen/internal/redis"
	"github.com/farellandr/canteen/internal/testutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const qrSecret = "qr-secret"

type fixture struct {
	db        *gorm.DB
	gw        *testutil.MockGateway
	events    *testutil.RecordingPublisher
	catalog   *CatalogService
	wallet    *WalletService
	bookings  *BookingService
	dashboard *DashboardService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	log := zap.NewNop()
	gw := &testutil.MockGateway{}
	events := &testutil.RecordingPublisher{}
	locks := redis.NewMemoryLocker()

	catalog := NewCatalogService(db, log)
	wallet := NewWalletService(db, gw, events, locks, decimal.NewFromInt(10), log)
	return &fixture{
		db:        db,
		gw:        gw,
		events:    events,
		catalog:   catalog,
		wallet:    wallet,
		bookings:  NewBookingService(db, catalog, wallet, gw, events, locks, redis.NewMemoryIdempotencyStore(), qrSecret, log),
		dashboard: NewDashboardService(db, time.UTC),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
