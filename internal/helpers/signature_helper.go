package helpers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the hex HMAC-SHA256 of the parts joined with sep.
func Sign(secret, sep string, parts ...string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	for i, part := range parts {
		if i > 0 {
			mac.Write([]byte(sep))
		}
		mac.Write([]byte(part))
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// GatewaySignature is the callback signature the payment gateway computes
// over "orderID|paymentID" with the merchant key secret.
func GatewaySignature(secret, orderID, paymentID string) string {
	return Sign(secret, "|", orderID, paymentID)
}

func VerifyGatewaySignature(secret, orderID, paymentID, signature string) bool {
	if secret == "" || orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	expected := GatewaySignature(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
