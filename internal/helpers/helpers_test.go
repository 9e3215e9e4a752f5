package helpers

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewaySignature(t *testing.T) {
	sig := GatewaySignature("secret", "order_1", "pay_1")
	assert.Equal(t, "52115a0d3400de9e86aade1f1b6eba9e8974604f4e267a9e9a16633a4c8dd2cb", sig)
	assert.Equal(t, Sign("secret", "|", "order_1", "pay_1"), sig)

	assert.True(t, VerifyGatewaySignature("secret", "order_1", "pay_1", sig))
	assert.False(t, VerifyGatewaySignature("other", "order_1", "pay_1", sig))
	assert.False(t, VerifyGatewaySignature("secret", "order_1", "pay_1", strings.ToUpper(sig)))
	assert.False(t, VerifyGatewaySignature("", "order_1", "pay_1", sig))
	assert.False(t, VerifyGatewaySignature("secret", "", "pay_1", sig))
}

func TestReceipts(t *testing.T) {
	id := uuid.MustParse("6f1c2a7e-3b4d-4e5f-8a9b-0c1d2e3f4a5b")

	assert.Equal(t, "booking_6f1c2a7e3b4d4e5f8a9b0c1d2e3f4a5b", BookingReceipt(id))
	assert.LessOrEqual(t, len(BookingReceipt(id)), 40)

	at := time.Unix(1767225600, 0)
	receipt := WalletReceipt(id, at)
	assert.Equal(t, "wallet_6f1c2a7e3b4d4e5f_1767225600", receipt)
	assert.LessOrEqual(t, len(receipt), 40)
}

func TestLedgerReference(t *testing.T) {
	assert.Equal(t, "booking:abc:debit", LedgerReference("booking", "abc", "debit"))
	assert.Equal(t, "topup:order_1", LedgerReference("topup", "order_1", ""))
}

func TestPickupPayloadRoundTrip(t *testing.T) {
	bookingID, userID := uuid.New(), uuid.New()
	payload := PickupPayload(bookingID, userID, "qr-secret")

	gotBooking, gotUser, err := ParsePickupPayload(payload, "qr-secret")
	require.NoError(t, err)
	assert.Equal(t, bookingID, gotBooking)
	assert.Equal(t, userID, gotUser)
}

func TestParsePickupPayload_Rejects(t *testing.T) {
	bookingID, userID := uuid.New(), uuid.New()
	valid := PickupPayload(bookingID, userID, "qr-secret")
	swapped := strings.Replace(valid, userID.String(), uuid.NewString(), 1)

	for name, data := range map[string]string{
		"empty":          "",
		"wrong secret":   PickupPayload(bookingID, userID, "other"),
		"swapped user":   swapped,
		"missing parts":  "booking:" + bookingID.String(),
		"bad booking id": "booking:nope;user:" + userID.String() + ";signature:00",
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParsePickupPayload(data, "qr-secret")
			assert.Error(t, err)
		})
	}
}
