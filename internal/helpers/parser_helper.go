package helpers

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Gateway receipts are capped at 40 characters, so ids are written without
// dashes.
func compactID(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")
}

func BookingReceipt(bookingID uuid.UUID) string {
	return "booking_" + compactID(bookingID)
}

func WalletReceipt(userID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("wallet_%s_%d", compactID(userID)[:16], at.Unix())
}

func LedgerReference(kind, id, action string) string {
	if action == "" {
		return kind + ":" + id
	}
	return kind + ":" + id + ":" + action
}
