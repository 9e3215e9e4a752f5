package helpers

import (
	"crypto/hmac"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

func pickupSignature(bookingID, userID uuid.UUID, secret string) string {
	return Sign(secret, ":", bookingID.String(), userID.String())
}

// PickupPayload is the text encoded in a booking's pickup QR code.
func PickupPayload(bookingID, userID uuid.UUID, secret string) string {
	return fmt.Sprintf("booking:%s;user:%s;signature:%s",
		bookingID.String(),
		userID.String(),
		pickupSignature(bookingID, userID, secret),
	)
}

func ParsePickupPayload(data, secret string) (bookingID, userID uuid.UUID, err error) {
	parts := strings.Split(data, ";")
	if len(parts) != 3 ||
		!strings.HasPrefix(parts[0], "booking:") ||
		!strings.HasPrefix(parts[1], "user:") ||
		!strings.HasPrefix(parts[2], "signature:") {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid QR data format")
	}

	if bookingID, err = uuid.Parse(strings.TrimPrefix(parts[0], "booking:")); err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid booking ID format")
	}
	if userID, err = uuid.Parse(strings.TrimPrefix(parts[1], "user:")); err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid user ID format")
	}

	signature := strings.TrimPrefix(parts[2], "signature:")
	expected := pickupSignature(bookingID, userID, secret)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid QR code signature")
	}
	return bookingID, userID, nil
}
