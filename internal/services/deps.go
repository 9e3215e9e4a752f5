package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/farellandr/canteen/internal/gateway"
	"github.com/farellandr/canteen/internal/models"
	"github.com/farellandr/canteen/internal/redis"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount int64, receipt string) (*gateway.Order, error)
	Refund(ctx context.Context, paymentID string, amount int64) (*gateway.Refund, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

type EventPublisher interface {
	Publish(event *models.DomainEvent) error
}

// Locker grants exclusive access to a named resource until the returned
// release func is called or ttl elapses.
type Locker interface {
	Acquire(ctx context.Context, resource string, ttl time.Duration) (func(), error)
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
}

const (
	lockTTL        = 30 * time.Second
	idempotencyTTL = 24 * time.Hour
)

func acquire(ctx context.Context, locks Locker, resource string) (func(), error) {
	release, err := locks.Acquire(ctx, resource, lockTTL)
	if errors.Is(err, redis.ErrLockHeld) {
		return nil, ErrRequestInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", resource, err)
	}
	return release, nil
}

// publish never fails the caller; events are best effort.
func publish(events EventPublisher, log *zap.Logger, event *models.DomainEvent) {
	event.Timestamp = time.Now().UTC()
	if err := events.Publish(event); err != nil {
		log.Error("failed to publish event",
			zap.String("type", event.Type),
			zap.String("user_id", event.UserID.String()),
			zap.Error(err),
		)
	}
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}
