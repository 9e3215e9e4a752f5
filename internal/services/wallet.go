package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/farellandr/canteen/internal/gateway"
	"github.com/farellandr/canteen/internal/helpers"
	"github.com/farellandr/canteen/internal/metrics"
	"github.com/farellandr/canteen/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type WalletService struct {
	db       *gorm.DB
	gateway  PaymentGateway
	events   EventPublisher
	locks    Locker
	minTopUp decimal.Decimal
	log      *zap.Logger
}

func NewWalletService(db *gorm.DB, gw PaymentGateway, events EventPublisher, locks Locker, minTopUp decimal.Decimal, log *zap.Logger) *WalletService {
	return &WalletService{
		db:       db,
		gateway:  gw,
		events:   events,
		locks:    locks,
		minTopUp: minTopUp,
		log:      log,
	}
}

// inTx runs fn inside tx when the caller already owns a transaction,
// otherwise inside a fresh one.
func (s *WalletService) inTx(ctx context.Context, tx *gorm.DB, fn func(tx *gorm.DB) error) error {
	if tx != nil {
		return fn(tx)
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

func (s *WalletService) Credit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal, reference, description string) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	return s.inTx(ctx, tx, func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("wallet_balance", gorm.Expr("wallet_balance + ?", amount))
		if res.Error != nil {
			return fmt.Errorf("credit wallet: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		return s.appendEntry(tx, userID, models.TransactionCredit, amount, reference, description)
	})
}

// Debit is a single conditional decrement, so two concurrent debits can
// never both pass the balance check.
func (s *WalletService) Debit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal, reference, description string) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	return s.inTx(ctx, tx, func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ? AND wallet_balance >= ?", userID, amount).
			Update("wallet_balance", gorm.Expr("wallet_balance - ?", amount))
		if res.Error != nil {
			return fmt.Errorf("debit wallet: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return fmt.Errorf("user %s: %w", userID, ErrNotFound)
			}
			return ErrInsufficientFunds
		}
		return s.appendEntry(tx, userID, models.TransactionDebit, amount, reference, description)
	})
}

func (s *WalletService) appendEntry(tx *gorm.DB, userID uuid.UUID, kind string, amount decimal.Decimal, reference, description string) error {
	var applied int64
	if err := tx.Model(&models.WalletTransaction{}).Where("reference = ?", reference).Count(&applied).Error; err != nil {
		return fmt.Errorf("check ledger reference: %w", err)
	}
	if applied > 0 {
		return fmt.Errorf("%s: %w", reference, ErrDuplicateEntry)
	}

	// the unique index still catches a concurrent insert of the same reference
	entry := models.WalletTransaction{
		UserID:      userID,
		Type:        kind,
		Amount:      amount,
		Reference:   reference,
		Description: description,
	}
	if err := tx.Create(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%s: %w", reference, ErrDuplicateEntry)
		}
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

func (s *WalletService) GetBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Select("id", "wallet_balance").First(&user, "id = ?", userID).Error; err != nil {
		return decimal.Zero, notFound(err, "user")
	}
	return user.WalletBalance, nil
}

func (s *WalletService) ListTransactions(ctx context.Context, userID uuid.UUID) ([]models.WalletTransaction, error) {
	var txns []models.WalletTransaction
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

// TopUp opens a gateway order for amount. The balance only changes once the
// payment is verified.
func (s *WalletService) TopUp(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*gateway.Order, error) {
	if !amount.Equal(amount.Round(2)) {
		return nil, fmt.Errorf("%w: at most two decimal places", ErrInvalidAmount)
	}
	if amount.LessThan(s.minTopUp) {
		return nil, fmt.Errorf("%w of %s", ErrTopUpBelowMinimum, s.minTopUp.String())
	}
	if _, err := s.GetBalance(ctx, userID); err != nil {
		return nil, err
	}

	order, err := s.gateway.CreateOrder(ctx, gateway.ToMinorUnits(amount), helpers.WalletReceipt(userID, time.Now()))
	if err != nil {
		s.log.Error("top-up order creation failed",
			zap.String("user_id", userID.String()),
			zap.String("amount", amount.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrPaymentInitiationFailed, err)
	}

	topUp := models.TopUpOrder{
		GatewayOrderID: order.ID,
		UserID:         userID,
		Amount:         amount,
		Status:         models.TopUpPending,
	}
	if err := s.db.WithContext(ctx).Create(&topUp).Error; err != nil {
		return nil, fmt.Errorf("save top-up order: %w", err)
	}

	s.log.Info("top-up order created",
		zap.String("user_id", userID.String()),
		zap.String("order_id", order.ID),
		zap.String("amount", amount.String()),
	)
	return order, nil
}

// VerifyTopUp credits the amount recorded when the order was opened. A
// non-zero claimed amount must match it; a replayed callback credits nothing.
func (s *WalletService) VerifyTopUp(ctx context.Context, userID uuid.UUID, orderID, paymentID, signature string, claimed decimal.Decimal) (decimal.Decimal, error) {
	if !s.gateway.VerifySignature(orderID, paymentID, signature) {
		metrics.PaymentVerifications.WithLabelValues("topup", "invalid_signature").Inc()
		s.log.Warn("top-up signature mismatch",
			zap.String("user_id", userID.String()),
			zap.String("order_id", orderID),
		)
		return decimal.Zero, ErrPaymentVerificationFailed
	}

	release, err := acquire(ctx, s.locks, "topup:"+orderID)
	if err != nil {
		return decimal.Zero, err
	}
	defer release()

	var order models.TopUpOrder
	if err := s.db.WithContext(ctx).First(&order, "gateway_order_id = ?", orderID).Error; err != nil {
		return decimal.Zero, notFound(err, "top-up order")
	}
	if order.UserID != userID {
		return decimal.Zero, fmt.Errorf("top-up order: %w", ErrNotFound)
	}
	if !claimed.IsZero() && !claimed.Equal(order.Amount) {
		metrics.PaymentVerifications.WithLabelValues("topup", "amount_mismatch").Inc()
		return decimal.Zero, fmt.Errorf("%w: amount does not match order", ErrPaymentVerificationFailed)
	}

	credited := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.TopUpOrder{}).
			Where("gateway_order_id = ? AND status = ?", orderID, models.TopUpPending).
			Updates(map[string]interface{}{
				"status":     models.TopUpPaid,
				"payment_id": paymentID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		credited = true
		return s.Credit(ctx, tx, userID, order.Amount, helpers.LedgerReference("topup", orderID, ""), "Wallet top-up")
	})
	if err != nil {
		return decimal.Zero, err
	}

	if credited {
		metrics.PaymentVerifications.WithLabelValues("topup", "ok").Inc()
		metrics.WalletTopUps.Inc()
		publish(s.events, s.log, &models.DomainEvent{
			Type:      models.EventWalletTopUp,
			UserID:    userID,
			Amount:    order.Amount,
			Reference: orderID,
		})
		s.log.Info("wallet topped up",
			zap.String("user_id", userID.String()),
			zap.String("order_id", orderID),
			zap.String("amount", order.Amount.String()),
		)
	} else {
		metrics.PaymentVerifications.WithLabelValues("topup", "replay").Inc()
		s.log.Info("top-up already applied", zap.String("order_id", orderID))
	}

	return s.GetBalance(ctx, userID)
}
