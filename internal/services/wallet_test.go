package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/farellandr/canteen/internal/gateway"
	"github.com/farellandr/canteen/internal/models"
	"github.com/farellandr/canteen/internal/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func walletReceipt() interface{} {
	return mock.MatchedBy(func(r string) bool { return strings.HasPrefix(r, "wallet_") && len(r) <= 40 })
}

func TestWallet_DebitAndCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, models.RoleStudent, "100")

	require.NoError(t, f.wallet.Debit(ctx, nil, user.ID, dec("40"), "test:1:debit", "snack"))
	assert.True(t, dec("60").Equal(testutil.Balance(t, f.db, user.ID)))

	err := f.wallet.Debit(ctx, nil, user.ID, dec("60.01"), "test:2:debit", "too much")
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, dec("60").Equal(testutil.Balance(t, f.db, user.ID)))

	require.NoError(t, f.wallet.Debit(ctx, nil, user.ID, dec("60"), "test:3:debit", "exact"))
	assert.True(t, testutil.Balance(t, f.db, user.ID).IsZero())

	require.NoError(t, f.wallet.Credit(ctx, nil, user.ID, dec("25"), "test:4:credit", "refund"))
	balance, err := f.wallet.GetBalance(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, dec("25").Equal(balance))

	txns, err := f.wallet.ListTransactions(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, txns, 3)
}

func TestWallet_DuplicateReferenceAppliesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, models.RoleStudent, "0")

	require.NoError(t, f.wallet.Credit(ctx, nil, user.ID, dec("50"), "topup:order_dup", "Wallet top-up"))
	err := f.wallet.Credit(ctx, nil, user.ID, dec("50"), "topup:order_dup", "Wallet top-up")
	require.ErrorIs(t, err, ErrDuplicateEntry)

	assert.True(t, dec("50").Equal(testutil.Balance(t, f.db, user.ID)))
}

func TestWallet_RejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, models.RoleStudent, "10")

	assert.ErrorIs(t, f.wallet.Debit(ctx, nil, user.ID, decimal.Zero, "x:1", ""), ErrInvalidAmount)
	assert.ErrorIs(t, f.wallet.Credit(ctx, nil, user.ID, dec("-5"), "x:2", ""), ErrInvalidAmount)
	assert.ErrorIs(t, f.wallet.Debit(ctx, nil, uuid.New(), dec("1"), "x:3", ""), ErrNotFound)
	assert.ErrorIs(t, f.wallet.Credit(ctx, nil, uuid.New(), dec("1"), "x:4", ""), ErrNotFound)

	_, err := f.wallet.GetBalance(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTopUp_BelowMinimumNeverCallsGateway(t *testing.T) {
	f := newFixture(t)
	user := testutil.CreateUser(t, f.db, models.RoleStudent, "0")

	_, err := f.wallet.TopUp(context.Background(), user.ID, dec("5"))
	require.ErrorIs(t, err, ErrTopUpBelowMinimum)
	f.gw.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestTopUp_RejectsFractionalPaise(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, models.RoleStudent, "0")

	_, err := f.wallet.TopUp(ctx, user.ID, dec("50.005"))
	require.ErrorIs(t, err, ErrInvalidAmount)
	f.gw.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)

	var count int64
	f.db.Model(&models.TopUpOrder{}).Count(&count)
	assert.Zero(t, count)

	f.gw.On("CreateOrder", mock.Anything, int64(5050), mock.Anything).
		Return(&gateway.Order{ID: "order_trailing"}, nil).Once()
	_, err = f.wallet.TopUp(ctx, user.ID, dec("50.500"))
	require.NoError(t, err)
	f.gw.AssertExpectations(t)
}

func TestTopUp_GatewayFailure(t *testing.T) {
	f := newFixture(t)
	user := testutil.CreateUser(t, f.db, models.RoleStudent, "0")

	f.gw.On("CreateOrder", mock.Anything, int64(10000), walletReceipt()).
		Return(nil, errors.New("connection refused")).Once()

	_, err := f.wallet.TopUp(context.Background(), user.ID, dec("100"))
	require.ErrorIs(t, err, ErrPaymentInitiationFailed)

	var count int64
	f.db.Model(&models.TopUpOrder{}).Count(&count)
	assert.Zero(t, count)
}

func topUp(t *testing.T, f *fixture, userID uuid.UUID, amount, orderID string) {
	t.Helper()

	f.gw.On("CreateOrder", mock.Anything, gateway.ToMinorUnits(dec(amount)), walletReceipt()).
		Return(&gateway.Order{ID: orderID, Amount: gateway.ToMinorUnits(dec(amount))}, nil).Once()
	order, err := f.wallet.TopUp(context.Background(), userID, dec(amount))
	require.NoError(t, err)
	require.Equal(t, orderID, order.ID)
}

func TestVerifyTopUp_CreditsStoredAmountOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, models.RoleStudent, "20")
	topUp(t, f, user.ID, "100", "order_topup")

	assert.True(t, dec("20").Equal(testutil.Balance(t, f.db, user.ID)))

	sig := testutil.Sign("order_topup", "pay_topup")
	balance, err := f.wallet.VerifyTopUp(ctx, user.ID, "order_topup", "pay_topup", sig, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, dec("120").Equal(balance))

	balance, err = f.wallet.VerifyTopUp(ctx, user.ID, "order_topup", "pay_topup", sig, dec("100"))
	require.NoError(t, err)
	assert.True(t, dec("120").Equal(balance))

	var order models.TopUpOrder
	require.NoError(t, f.db.First(&order, "gateway_order_id = ?", "order_topup").Error)
	assert.Equal(t, models.TopUpPaid, order.Status)
	assert.Equal(t, "pay_topup", order.PaymentID)
	assert.Equal(t, []string{models.EventWalletTopUp}, f.events.Types())
}

func TestVerifyTopUp_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, models.RoleStudent, "0")
	stranger := testutil.CreateUser(t, f.db, models.RoleStudent, "0")
	topUp(t, f, user.ID, "50", "order_guarded")

	sig := testutil.Sign("order_guarded", "pay_1")

	_, err := f.wallet.VerifyTopUp(ctx, user.ID, "order_guarded", "pay_1", "deadbeef", decimal.Zero)
	assert.ErrorIs(t, err, ErrPaymentVerificationFailed)

	_, err = f.wallet.VerifyTopUp(ctx, user.ID, "order_guarded", "pay_1", sig, dec("5000"))
	assert.ErrorIs(t, err, ErrPaymentVerificationFailed)

	_, err = f.wallet.VerifyTopUp(ctx, stranger.ID, "order_guarded", "pay_1", sig, decimal.Zero)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.wallet.VerifyTopUp(ctx, user.ID, "order_unknown", "pay_1", testutil.Sign("order_unknown", "pay_1"), decimal.Zero)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.True(t, testutil.Balance(t, f.db, user.ID).IsZero())
	assert.True(t, testutil.Balance(t, f.db, stranger.ID).IsZero())
}
