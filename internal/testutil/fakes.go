package testutil

import (
	"context"
	"sync"

	"github.com/farellandr/canteen/internal/gateway"
	"github.com/farellandr/canteen/internal/helpers"
	"github.com/farellandr/canteen/internal/models"
	"github.com/stretchr/testify/mock"
)

const GatewaySecret = "test_key_secret"

// MockGateway stubs order creation and refunds with testify expectations
// and checks signatures against GatewaySecret like the real client.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateOrder(ctx context.Context, amount int64, receipt string) (*gateway.Order, error) {
	args := m.Called(ctx, amount, receipt)
	order, _ := args.Get(0).(*gateway.Order)
	return order, args.Error(1)
}

func (m *MockGateway) Refund(ctx context.Context, paymentID string, amount int64) (*gateway.Refund, error) {
	args := m.Called(ctx, paymentID, amount)
	refund, _ := args.Get(0).(*gateway.Refund)
	return refund, args.Error(1)
}

func (m *MockGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return helpers.VerifyGatewaySignature(GatewaySecret, orderID, paymentID, signature)
}

func Sign(orderID, paymentID string) string {
	return helpers.GatewaySignature(GatewaySecret, orderID, paymentID)
}

type RecordingPublisher struct {
	mu     sync.Mutex
	events []models.DomainEvent
}

func (p *RecordingPublisher) Publish(event *models.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *event)
	return nil
}

func (p *RecordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}
