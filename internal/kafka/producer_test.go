package kafka

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/farellandr/canteen/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPublish_SendsJSONEvent(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	bookingID := uuid.New()

	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var event models.DomainEvent
		if err := json.Unmarshal(val, &event); err != nil {
			return err
		}
		if event.Type != models.EventBookingConfirmed || event.BookingID == nil || *event.BookingID != bookingID {
			return errors.New("unexpected event payload")
		}
		return nil
	})

	p := newWithSyncProducer(sp, zap.NewNop())
	err := p.Publish(&models.DomainEvent{
		Type:      models.EventBookingConfirmed,
		BookingID: &bookingID,
		UserID:    uuid.New(),
		Amount:    decimal.NewFromInt(150),
	})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestPublish_ReturnsSendError(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := newWithSyncProducer(sp, zap.NewNop())
	err := p.Publish(&models.DomainEvent{Type: models.EventWalletTopUp, UserID: uuid.New()})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestNewProducer_MockModeWithoutBrokers(t *testing.T) {
	p, err := NewProducer(nil, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, p.Publish(&models.DomainEvent{Type: models.EventRefundFailed, UserID: uuid.New()}))
	assert.NoError(t, p.Close())
}

func TestTopicForEvent(t *testing.T) {
	assert.Equal(t, TopicBookingEvents, TopicForEvent(models.EventBookingCreated))
	assert.Equal(t, TopicBookingEvents, TopicForEvent(models.EventBookingCancelled))
	assert.Equal(t, TopicWalletEvents, TopicForEvent(models.EventWalletTopUp))
	assert.Equal(t, TopicRefundEvents, TopicForEvent(models.EventRefundFailed))
	assert.Equal(t, TopicRefundEvents, TopicForEvent(models.EventRefundSucceeded))
}
