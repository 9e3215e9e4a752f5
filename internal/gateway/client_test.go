package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/farellandr/canteen/config"
	"github.com/farellandr/canteen/internal/helpers"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(&config.GatewayConfig{
		BaseURL:   srv.URL + "/",
		KeyID:     "rzp_test_key",
		KeySecret: "secret",
		Currency:  "INR",
		Timeout:   2 * time.Second,
	})
}

func TestCreateOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "secret", pass)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 15000, body["amount"])
		assert.Equal(t, "INR", body["currency"])
		assert.Equal(t, "booking_abc", body["receipt"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_9A33XWu170gUtm","amount":15000,"currency":"INR","receipt":"booking_abc","status":"created"}`))
	})

	order, err := client.CreateOrder(context.Background(), 15000, "booking_abc")
	require.NoError(t, err)
	assert.Equal(t, "order_9A33XWu170gUtm", order.ID)
	assert.Equal(t, "created", order.Status)
}

func TestCreateOrder_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount must be atleast INR 1.00"}}`))
	})

	_, err := client.CreateOrder(context.Background(), 50, "booking_abc")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "BAD_REQUEST_ERROR", apiErr.Code)
}

func TestCreateOrder_RejectsNonPositiveAmount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("gateway must not be called")
	})

	_, err := client.CreateOrder(context.Background(), 0, "booking_abc")
	assert.Error(t, err)
}

func TestRefund(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/pay_29QQoUBi66xm2f/refund", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"rfnd_1","payment_id":"pay_29QQoUBi66xm2f","amount":9000,"status":"processed"}`))
	})

	refund, err := client.Refund(context.Background(), "pay_29QQoUBi66xm2f", 9000)
	require.NoError(t, err)
	assert.Equal(t, "rfnd_1", refund.ID)
	assert.EqualValues(t, 9000, refund.Amount)

	_, err = client.Refund(context.Background(), "", 9000)
	assert.Error(t, err)
}

func TestVerifySignature(t *testing.T) {
	client := NewClient(&config.GatewayConfig{KeySecret: "secret"})
	sig := helpers.GatewaySignature("secret", "order_1", "pay_1")

	assert.True(t, client.VerifySignature("order_1", "pay_1", sig))
	assert.False(t, client.VerifySignature("order_1", "pay_2", sig))
	assert.False(t, client.VerifySignature("order_1", "pay_1", ""))
}

func TestMinorUnits(t *testing.T) {
	assert.EqualValues(t, 15000, ToMinorUnits(decimal.RequireFromString("150")))
	assert.EqualValues(t, 4551, ToMinorUnits(decimal.RequireFromString("45.505")))
	assert.True(t, decimal.RequireFromString("91").Equal(FromMinorUnits(9100)))
}
