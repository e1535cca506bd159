package entities

import (
	"time"
)

// GlassesFrame is a stocked frame model in the program inventory.
type GlassesFrame struct {
	Code      string    `json:"code" db:"code"`
	Model     string    `json:"model" db:"model"`
	Color     string    `json:"color" db:"color"`
	Size      string    `json:"size" db:"size"`
	Stock     int       `json:"stock" db:"stock"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ReservationStatus tracks a frame reservation through delivery.
type ReservationStatus string

const (
	ReservationStatusReserved  ReservationStatus = "reserved"
	ReservationStatusDelivered ReservationStatus = "delivered"
	ReservationStatusReleased  ReservationStatus = "released"
)

// FrameReservation pins one unit of stock to a screening session between the
// inventory check and the school delivery steps.
type FrameReservation struct {
	ID        string            `json:"id" db:"id"`
	SessionID string            `json:"session_id" db:"session_id"`
	FrameCode string            `json:"frame_code" db:"frame_code"`
	Status    ReservationStatus `json:"status" db:"status"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" db:"updated_at"`
}
