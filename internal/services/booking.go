package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/farellandr/canteen/internal/gateway"
	"github.com/farellandr/canteen/internal/helpers"
	"github.com/farellandr/canteen/internal/metrics"
	"github.com/farellandr/canteen/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type BookingService struct {
	db       *gorm.DB
	catalog  *CatalogService
	wallet   *WalletService
	gateway  PaymentGateway
	events   EventPublisher
	locks    Locker
	idem     IdempotencyStore
	qrSecret string
	log      *zap.Logger
}

func NewBookingService(
	db *gorm.DB,
	catalog *CatalogService,
	wallet *WalletService,
	gw PaymentGateway,
	events EventPublisher,
	locks Locker,
	idem IdempotencyStore,
	qrSecret string,
	log *zap.Logger,
) *BookingService {
	return &BookingService{
		db:       db,
		catalog:  catalog,
		wallet:   wallet,
		gateway:  gw,
		events:   events,
		locks:    locks,
		idem:     idem,
		qrSecret: qrSecret,
		log:      log,
	}
}

type CreateBookingInput struct {
	UserID         uuid.UUID
	MealID         uuid.UUID
	Quantity       int
	Method         models.PaymentMethod
	IdempotencyKey string
}

// BookingResult carries the gateway order a client must pay for gateway
// bookings. PaymentOrder is nil for wallet and cash bookings.
type BookingResult struct {
	Booking      *models.Booking `json:"booking"`
	PaymentOrder *gateway.Order  `json:"payment_order,omitempty"`
}

func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (*BookingResult, error) {
	if in.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	if !in.Method.Valid() {
		return nil, ErrInvalidPaymentMethod
	}

	release, err := acquire(ctx, s.locks, "user:"+in.UserID.String()+":booking")
	if err != nil {
		return nil, err
	}
	defer release()

	idemKey := ""
	if in.IdempotencyKey != "" {
		idemKey = "booking:" + in.UserID.String() + ":" + in.IdempotencyKey
		if result, ok, err := s.replay(ctx, in.UserID, idemKey); err != nil || ok {
			return result, err
		}
	}

	meal, err := s.catalog.GetMeal(ctx, in.MealID)
	if err != nil {
		return nil, err
	}
	if !meal.Available {
		return nil, ErrMealUnavailable
	}
	if !meal.HasCapacity(in.Quantity) {
		return nil, ErrDailyLimitReached
	}

	booking := &models.Booking{
		UserID:        in.UserID,
		MealID:        meal.ID,
		Quantity:      in.Quantity,
		TotalPrice:    meal.Price.Mul(decimal.NewFromInt(int64(in.Quantity))),
		Status:        models.BookingPending,
		PaymentStatus: models.PaymentPending,
		PaymentMethod: in.Method,
	}

	result := &BookingResult{Booking: booking}
	switch in.Method {
	case models.MethodWallet:
		err = s.createWalletBooking(ctx, booking)
	case models.MethodGateway:
		result.PaymentOrder, err = s.createGatewayBooking(ctx, booking)
	case models.MethodCash:
		err = s.db.WithContext(ctx).Create(booking).Error
	}
	if err != nil {
		return nil, err
	}
	booking.Meal = meal

	metrics.BookingsCreated.WithLabelValues(string(in.Method)).Inc()
	eventType := models.EventBookingCreated
	if booking.Status == models.BookingConfirmed {
		eventType = models.EventBookingConfirmed
	}
	publish(s.events, s.log, &models.DomainEvent{
		Type:      eventType,
		BookingID: &booking.ID,
		UserID:    booking.UserID,
		Amount:    booking.TotalPrice,
	})

	if idemKey != "" {
		if err := s.idem.Put(ctx, idemKey, booking.ID.String(), idempotencyTTL); err != nil {
			s.log.Warn("failed to store idempotency key", zap.String("key", idemKey), zap.Error(err))
		}
	}

	s.log.Info("booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("user_id", booking.UserID.String()),
		zap.String("method", string(booking.PaymentMethod)),
		zap.String("total", booking.TotalPrice.String()),
	)
	return result, nil
}

func (s *BookingService) replay(ctx context.Context, userID uuid.UUID, key string) (*BookingResult, bool, error) {
	stored, ok, err := s.idem.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}

	bookingID, err := uuid.Parse(stored)
	if err != nil {
		return nil, false, fmt.Errorf("corrupt idempotency entry %s: %w", key, err)
	}
	booking, err := s.GetBooking(ctx, userID, bookingID)
	if errors.Is(err, ErrNotFound) {
		// the booking was rolled back or deleted; treat the key as unused
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	result := &BookingResult{Booking: booking}
	if booking.GatewayOrderID != nil && booking.Status == models.BookingPending {
		result.PaymentOrder = &gateway.Order{
			ID:      *booking.GatewayOrderID,
			Amount:  gateway.ToMinorUnits(booking.TotalPrice),
			Receipt: helpers.BookingReceipt(booking.ID),
		}
	}
	s.log.Info("booking replayed", zap.String("booking_id", booking.ID.String()))
	return result, true, nil
}

func (s *BookingService) createWalletBooking(ctx context.Context, booking *models.Booking) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(booking).Error; err != nil {
			return fmt.Errorf("create booking: %w", err)
		}

		ref := helpers.LedgerReference("booking", booking.ID.String(), "debit")
		if err := s.wallet.Debit(ctx, tx, booking.UserID, booking.TotalPrice, ref, "Meal booking"); err != nil {
			return err
		}
		if err := s.catalog.RecordSale(tx, booking.MealID, booking.Quantity, true); err != nil {
			return err
		}

		err := tx.Model(&models.Booking{}).
			Where("id = ?", booking.ID).
			Updates(map[string]interface{}{
				"status":         models.BookingConfirmed,
				"payment_status": models.PaymentPaid,
			}).Error
		if err != nil {
			return fmt.Errorf("confirm booking: %w", err)
		}
		booking.Status = models.BookingConfirmed
		booking.PaymentStatus = models.PaymentPaid
		return nil
	})
}

// createGatewayBooking persists the booking before asking the gateway for an
// order, and deletes it again if the gateway call fails.
func (s *BookingService) createGatewayBooking(ctx context.Context, booking *models.Booking) (*gateway.Order, error) {
	if err := s.db.WithContext(ctx).Create(booking).Error; err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	order, err := s.gateway.CreateOrder(ctx, gateway.ToMinorUnits(booking.TotalPrice), helpers.BookingReceipt(booking.ID))
	if err != nil {
		s.log.Error("gateway order creation failed",
			zap.String("booking_id", booking.ID.String()),
			zap.Error(err),
		)
		s.discard(ctx, booking)
		return nil, fmt.Errorf("%w: %v", ErrPaymentInitiationFailed, err)
	}

	err = s.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ?", booking.ID).
		Update("gateway_order_id", order.ID).Error
	if err != nil {
		s.discard(ctx, booking)
		return nil, fmt.Errorf("store gateway order: %w", err)
	}
	booking.GatewayOrderID = &order.ID
	return order, nil
}

func (s *BookingService) discard(ctx context.Context, booking *models.Booking) {
	if err := s.db.WithContext(context.WithoutCancel(ctx)).Delete(&models.Booking{}, "id = ?", booking.ID).Error; err != nil {
		s.log.Error("failed to delete orphaned booking",
			zap.String("booking_id", booking.ID.String()),
			zap.Error(err),
		)
	}
}

// VerifyGatewayPayment confirms the booking that owns orderID once the
// callback signature checks out. Replaying the same payment is a no-op.
func (s *BookingService) VerifyGatewayPayment(ctx context.Context, orderID, paymentID, signature string) (*models.Booking, error) {
	if !s.gateway.VerifySignature(orderID, paymentID, signature) {
		metrics.PaymentVerifications.WithLabelValues("booking", "invalid_signature").Inc()
		s.log.Warn("booking payment signature mismatch", zap.String("order_id", orderID))
		return nil, ErrPaymentVerificationFailed
	}

	release, err := acquire(ctx, s.locks, "order:"+orderID)
	if err != nil {
		return nil, err
	}
	defer release()

	var booking models.Booking
	if err := s.db.WithContext(ctx).First(&booking, "gateway_order_id = ?", orderID).Error; err != nil {
		return nil, notFound(err, "booking")
	}

	switch {
	case booking.PaymentStatus == models.PaymentPaid && booking.GatewayPaymentID == paymentID:
		metrics.PaymentVerifications.WithLabelValues("booking", "replay").Inc()
		return s.loadBooking(ctx, booking.ID)

	case booking.Status == models.BookingCancelled && booking.PaymentStatus == models.PaymentPending:
		s.flagLatePayment(ctx, &booking, paymentID, signature)
		return nil, fmt.Errorf("booking already cancelled: %w", ErrInvalidState)

	case booking.Status != models.BookingPending || booking.PaymentStatus != models.PaymentPending:
		return nil, fmt.Errorf("booking is %s/%s: %w", booking.Status, booking.PaymentStatus, ErrInvalidState)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Booking{}).
			Where("id = ? AND status = ? AND payment_status = ?", booking.ID, models.BookingPending, models.PaymentPending).
			Updates(map[string]interface{}{
				"status":             models.BookingConfirmed,
				"payment_status":     models.PaymentPaid,
				"gateway_payment_id": paymentID,
				"gateway_signature":  signature,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errBookingChanged
		}
		return s.catalog.RecordSale(tx, booking.MealID, booking.Quantity, false)
	})
	if errors.Is(err, errBookingChanged) {
		return nil, s.settleChangedBooking(ctx, booking.ID, paymentID, signature)
	}
	if err != nil {
		return nil, err
	}

	metrics.PaymentVerifications.WithLabelValues("booking", "ok").Inc()
	publish(s.events, s.log, &models.DomainEvent{
		Type:      models.EventBookingConfirmed,
		BookingID: &booking.ID,
		UserID:    booking.UserID,
		Amount:    booking.TotalPrice,
		Reference: paymentID,
	})
	s.log.Info("booking payment verified",
		zap.String("booking_id", booking.ID.String()),
		zap.String("order_id", orderID),
		zap.String("payment_id", paymentID),
	)
	return s.loadBooking(ctx, booking.ID)
}

// settleChangedBooking handles a booking that moved after it was read for
// verification. A cancel that won the race still leaves a captured payment to
// refund.
func (s *BookingService) settleChangedBooking(ctx context.Context, bookingID uuid.UUID, paymentID, signature string) error {
	var current models.Booking
	if err := s.db.WithContext(ctx).First(&current, "id = ?", bookingID).Error; err != nil {
		return notFound(err, "booking")
	}
	if current.Status == models.BookingCancelled && current.PaymentStatus == models.PaymentPending {
		s.flagLatePayment(ctx, &current, paymentID, signature)
		return fmt.Errorf("booking cancelled during verification: %w", ErrInvalidState)
	}
	return fmt.Errorf("booking is %s/%s: %w", current.Status, current.PaymentStatus, ErrInvalidState)
}

// flagLatePayment records a payment captured for a booking the user had
// already cancelled, and queues it for refund.
func (s *BookingService) flagLatePayment(ctx context.Context, booking *models.Booking, paymentID, signature string) {
	err := s.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ?", booking.ID).
		Updates(map[string]interface{}{
			"gateway_payment_id": paymentID,
			"gateway_signature":  signature,
			"refund_pending":     true,
			"refund_error":       "payment captured after cancellation",
		}).Error
	if err != nil {
		s.log.Error("failed to flag late payment", zap.String("booking_id", booking.ID.String()), zap.Error(err))
		return
	}
	s.log.Warn("payment received for cancelled booking, queued for refund",
		zap.String("booking_id", booking.ID.String()),
		zap.String("payment_id", paymentID),
	)
}

func (s *BookingService) CancelBooking(ctx context.Context, userID, bookingID uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	if err := s.db.WithContext(ctx).First(&booking, "id = ? AND user_id = ?", bookingID, userID).Error; err != nil {
		return nil, notFound(err, "booking")
	}
	if !booking.Status.Cancellable() {
		return nil, fmt.Errorf("booking is %s: %w", booking.Status, ErrInvalidState)
	}

	paid := booking.PaymentStatus == models.PaymentPaid
	updates := map[string]interface{}{"status": models.BookingCancelled}
	if paid {
		updates["payment_status"] = models.PaymentRefunded
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Booking{}).
			Where("id = ? AND status IN ? AND payment_status = ?",
				booking.ID, []models.BookingStatus{models.BookingPending, models.BookingConfirmed}, booking.PaymentStatus).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidState
		}

		if paid && booking.PaymentMethod == models.MethodWallet {
			ref := helpers.LedgerReference("booking", booking.ID.String(), "refund")
			return s.wallet.Credit(ctx, tx, booking.UserID, booking.TotalPrice, ref, "Refund for cancelled booking")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if paid && booking.PaymentMethod == models.MethodGateway {
		if err := s.refundGatewayBooking(ctx, &booking); err != nil {
			s.log.Warn("refund failed, booking cancelled anyway",
				zap.String("booking_id", booking.ID.String()),
				zap.Error(err),
			)
		}
	}

	metrics.BookingsCancelled.WithLabelValues(string(booking.PaymentMethod)).Inc()
	publish(s.events, s.log, &models.DomainEvent{
		Type:      models.EventBookingCancelled,
		BookingID: &booking.ID,
		UserID:    booking.UserID,
		Amount:    booking.TotalPrice,
	})
	s.log.Info("booking cancelled",
		zap.String("booking_id", booking.ID.String()),
		zap.Bool("refunded", paid),
	)
	return s.loadBooking(ctx, booking.ID)
}

// refundGatewayBooking asks the gateway to return the payment. A failure
// leaves the booking flagged for reconciliation and is returned wrapped in
// ErrRefundFailed.
func (s *BookingService) refundGatewayBooking(ctx context.Context, booking *models.Booking) error {
	_, err := s.gateway.Refund(ctx, booking.GatewayPaymentID, gateway.ToMinorUnits(booking.TotalPrice))
	if err != nil {
		metrics.RefundFailures.Inc()
		dbErr := s.db.WithContext(context.WithoutCancel(ctx)).
			Model(&models.Booking{}).
			Where("id = ?", booking.ID).
			Updates(map[string]interface{}{
				"refund_pending": true,
				"refund_error":   err.Error(),
			}).Error
		if dbErr != nil {
			s.log.Error("failed to flag pending refund", zap.String("booking_id", booking.ID.String()), zap.Error(dbErr))
		}
		publish(s.events, s.log, &models.DomainEvent{
			Type:      models.EventRefundFailed,
			BookingID: &booking.ID,
			UserID:    booking.UserID,
			Amount:    booking.TotalPrice,
			Reference: booking.GatewayPaymentID,
			Message:   err.Error(),
		})
		return fmt.Errorf("%w: %v", ErrRefundFailed, err)
	}

	publish(s.events, s.log, &models.DomainEvent{
		Type:      models.EventRefundSucceeded,
		BookingID: &booking.ID,
		UserID:    booking.UserID,
		Amount:    booking.TotalPrice,
		Reference: booking.GatewayPaymentID,
	})
	return nil
}

func (s *BookingService) ListPendingRefunds(ctx context.Context) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Meal").
		Where("refund_pending = ?", true).
		Order("created_at ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (s *BookingService) RetryRefund(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	release, err := acquire(ctx, s.locks, "refund:"+bookingID.String())
	if err != nil {
		return nil, err
	}
	defer release()

	var booking models.Booking
	if err := s.db.WithContext(ctx).First(&booking, "id = ? AND refund_pending = ?", bookingID, true).Error; err != nil {
		return nil, notFound(err, "pending refund")
	}
	if booking.GatewayPaymentID == "" {
		return nil, fmt.Errorf("booking has no gateway payment: %w", ErrInvalidState)
	}

	if err := s.refundGatewayBooking(ctx, &booking); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ?", booking.ID).
		Updates(map[string]interface{}{
			"refund_pending": false,
			"refund_error":   "",
			"payment_status": models.PaymentRefunded,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("clear pending refund: %w", err)
	}

	s.log.Info("pending refund settled", zap.String("booking_id", booking.ID.String()))
	return s.loadBooking(ctx, booking.ID)
}

func (s *BookingService) ListUserBookings(ctx context.Context, userID uuid.UUID) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.db.WithContext(ctx).
		Preload("Meal").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (s *BookingService) GetBooking(ctx context.Context, userID, bookingID uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := s.db.WithContext(ctx).
		Preload("Meal").
		First(&booking, "id = ? AND user_id = ?", bookingID, userID).Error
	if err != nil {
		return nil, notFound(err, "booking")
	}
	return &booking, nil
}

func (s *BookingService) loadBooking(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	if err := s.db.WithContext(ctx).Preload("Meal").First(&booking, "id = ?", bookingID).Error; err != nil {
		return nil, notFound(err, "booking")
	}
	return &booking, nil
}

// PickupQR renders the signed QR code shown at the counter. Only bookings
// that can still be redeemed get one.
func (s *BookingService) PickupQR(ctx context.Context, userID, bookingID uuid.UUID) ([]byte, error) {
	booking, err := s.GetBooking(ctx, userID, bookingID)
	if err != nil {
		return nil, err
	}
	if !redeemable(booking) {
		return nil, fmt.Errorf("booking is %s/%s: %w", booking.Status, booking.PaymentStatus, ErrInvalidState)
	}

	png, err := qrcode.Encode(helpers.PickupPayload(booking.ID, booking.UserID, s.qrSecret), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("generate QR code: %w", err)
	}
	return png, nil
}

func redeemable(booking *models.Booking) bool {
	if booking.Status == models.BookingConfirmed {
		return true
	}
	return booking.Status == models.BookingPending &&
		booking.PaymentMethod == models.MethodCash &&
		booking.PaymentStatus == models.PaymentPending
}

// RedeemBooking hands the meal over at the counter. Cash bookings are paid
// at this point and count towards the meal's sales.
func (s *BookingService) RedeemBooking(ctx context.Context, qrData string) (*models.Booking, error) {
	bookingID, userID, err := helpers.ParsePickupPayload(qrData, s.qrSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQRCode, err)
	}

	release, err := acquire(ctx, s.locks, "booking:"+bookingID.String())
	if err != nil {
		return nil, err
	}
	defer release()

	var booking models.Booking
	if err := s.db.WithContext(ctx).First(&booking, "id = ? AND user_id = ?", bookingID, userID).Error; err != nil {
		return nil, notFound(err, "booking")
	}
	if !redeemable(&booking) {
		return nil, fmt.Errorf("booking is %s/%s: %w", booking.Status, booking.PaymentStatus, ErrInvalidState)
	}

	cash := booking.Status == models.BookingPending
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": models.BookingCompleted}
		if cash {
			updates["payment_status"] = models.PaymentPaid
		}
		res := tx.Model(&models.Booking{}).
			Where("id = ? AND status = ?", booking.ID, booking.Status).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidState
		}
		if cash {
			return s.catalog.RecordSale(tx, booking.MealID, booking.Quantity, false)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(s.events, s.log, &models.DomainEvent{
		Type:      models.EventBookingCompleted,
		BookingID: &booking.ID,
		UserID:    booking.UserID,
		Amount:    booking.TotalPrice,
	})
	s.log.Info("booking redeemed",
		zap.String("booking_id", booking.ID.String()),
		zap.Bool("cash", cash),
	)
	return s.loadBooking(ctx, booking.ID)
}
