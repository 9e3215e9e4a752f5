package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/farellandr/canteen/internal/models"
	"go.uber.org/zap"
)

const (
	TopicBookingEvents = "canteen.booking-events"
	TopicWalletEvents  = "canteen.wallet-events"
	TopicRefundEvents  = "canteen.refund-events"
)

type Producer struct {
	producer sarama.SyncProducer
	mockMode bool
	log      *zap.Logger
}

// NewProducer connects to the given brokers. With no brokers configured the
// producer runs in mock mode and only logs what it would publish.
func NewProducer(brokers []string, log *zap.Logger) (*Producer, error) {
	if len(brokers) == 0 {
		log.Info("kafka producer running in mock mode")
		return &Producer{mockMode: true, log: log}, nil
	}

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	log.Info("kafka producer connected", zap.Strings("brokers", brokers))
	return newWithSyncProducer(producer, log), nil
}

func newWithSyncProducer(producer sarama.SyncProducer, log *zap.Logger) *Producer {
	return &Producer{producer: producer, log: log}
}

func (p *Producer) Publish(event *models.DomainEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	topic := TopicForEvent(event.Type)

	if p.mockMode {
		p.log.Debug("mock publish",
			zap.String("topic", topic),
			zap.String("type", event.Type),
			zap.ByteString("data", data),
		)
		return nil
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.UserID.String()),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", topic, err)
	}

	p.log.Debug("event published",
		zap.String("topic", topic),
		zap.String("type", event.Type),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

func TopicForEvent(eventType string) string {
	switch eventType {
	case models.EventWalletTopUp:
		return TopicWalletEvents
	case models.EventRefundFailed, models.EventRefundSucceeded:
		return TopicRefundEvents
	default:
		return TopicBookingEvents
	}
}

func (p *Producer) Close() error {
	if p.mockMode || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
