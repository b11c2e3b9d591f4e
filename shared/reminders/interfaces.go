package reminders

import (
	"context"
	"time"

	"leihlokal/internal/database"
)

// PickupSource lists the reservations picked up on a given day.
type PickupSource interface {
	ListPickups(ctx context.Context, day time.Time) ([]database.JournalEntry, error)
}

// Notifier delivers the digest to staff.
type Notifier interface {
	SendText(ctx context.Context, text string) error
}
