package repositories

import (
	"context"

	"github.com/visionwell/vision-screening/backend/internal/domain/entities"
)

// InventoryRepository manages the glasses frame stock and the reservations
// screening sessions hold against it.
type InventoryRepository interface {
	// GetFrame returns a frame by its code.
	GetFrame(ctx context.Context, code string) (*entities.GlassesFrame, error)

	// ListFrames returns frames with stock remaining.
	ListFrames(ctx context.Context) ([]*entities.GlassesFrame, error)

	// Reserve decrements stock for the frame and records a reservation for
	// the session. Returns a validation error when no stock remains. A
	// session re-reserving the same frame returns its existing reservation.
	Reserve(ctx context.Context, sessionID, frameCode string) (*entities.FrameReservation, error)

	// Release returns a reservation's unit to stock (backward navigation or
	// frame change).
	Release(ctx context.Context, reservationID string) error

	// MarkDelivered closes a reservation at the delivery step.
	MarkDelivered(ctx context.Context, reservationID string) error
}
