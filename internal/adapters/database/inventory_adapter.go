package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/visionwell/vision-screening/backend/internal/domain/entities"
	"github.com/visionwell/vision-screening/backend/internal/domain/repositories"
	"github.com/visionwell/vision-screening/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/visionwell/vision-screening/backend/pkg/errors"
)

// InventoryAdapter implements the InventoryRepository interface on Postgres.
// Stock movements and reservations happen in one transaction so a crash
// between the two cannot leak stock.
type InventoryAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewInventoryAdapter creates a new inventory adapter
func NewInventoryAdapter(client *postgres.Client) repositories.InventoryRepository {
	return &InventoryAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetFrame returns a frame by its code.
func (a *InventoryAdapter) GetFrame(ctx context.Context, code string) (*entities.GlassesFrame, error) {
	query, args, err := a.db.Select(
		"code", "model", "color", "size", "stock", "created_at", "updated_at",
	).From("glasses_frames").
		Where(goqu.Ex{"code": code}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	frame := &entities.GlassesFrame{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&frame.Code,
		&frame.Model,
		&frame.Color,
		&frame.Size,
		&frame.Stock,
		&frame.CreatedAt,
		&frame.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("frame with code %s not found", code))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get frame", err)
	}

	return frame, nil
}

// ListFrames returns frames with stock remaining.
func (a *InventoryAdapter) ListFrames(ctx context.Context) ([]*entities.GlassesFrame, error) {
	query, args, err := a.db.Select(
		"code", "model", "color", "size", "stock", "created_at", "updated_at",
	).From("glasses_frames").
		Where(goqu.C("stock").Gt(0)).
		Order(goqu.I("code").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list frames", err)
	}
	defer rows.Close()

	var frames []*entities.GlassesFrame
	for rows.Next() {
		frame := &entities.GlassesFrame{}
		err := rows.Scan(
			&frame.Code,
			&frame.Model,
			&frame.Color,
			&frame.Size,
			&frame.Stock,
			&frame.CreatedAt,
			&frame.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan frame", err)
		}
		frames = append(frames, frame)
	}

	return frames, nil
}

// Reserve decrements stock for the frame and records a reservation for the
// session. A session re-reserving the same frame gets its existing
// reservation back without touching stock again.
func (a *InventoryAdapter) Reserve(ctx context.Context, sessionID, frameCode string) (*entities.FrameReservation, error) {
	if existing, err := a.findReservation(ctx, sessionID, frameCode); err == nil {
		return existing, nil
	} else if !apperrors.IsNotFound(err) {
		return nil, err
	}

	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	now := time.Now()

	decrement, args, err := a.db.Update("glasses_frames").
		Set(goqu.Record{
			"stock":      goqu.L("stock - 1"),
			"updated_at": now,
		}).
		Where(goqu.Ex{"code": frameCode}, goqu.C("stock").Gt(0)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build stock update", err)
	}

	result, err := tx.ExecContext(ctx, decrement, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to decrement stock", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return nil, apperrors.NewValidationError(fmt.Sprintf("frame %s is out of stock", frameCode))
	}

	reservation := &entities.FrameReservation{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		FrameCode: frameCode,
		Status:    entities.ReservationStatusReserved,
		CreatedAt: now,
		UpdatedAt: now,
	}

	insert, args, err := a.db.Insert("frame_reservations").Rows(goqu.Record{
		"id":         reservation.ID,
		"session_id": reservation.SessionID,
		"frame_code": reservation.FrameCode,
		"status":     reservation.Status,
		"created_at": reservation.CreatedAt,
		"updated_at": reservation.UpdatedAt,
	}).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build reservation insert", err)
	}

	if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to create reservation", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewInternalError("failed to commit reservation", err)
	}

	return reservation, nil
}

// Release returns a reservation's unit to stock.
func (a *InventoryAdapter) Release(ctx context.Context, reservationID string) error {
	return a.closeReservation(ctx, reservationID, entities.ReservationStatusReleased, true)
}

// MarkDelivered closes a reservation at the delivery step. Stock stays
// consumed.
func (a *InventoryAdapter) MarkDelivered(ctx context.Context, reservationID string) error {
	return a.closeReservation(ctx, reservationID, entities.ReservationStatusDelivered, false)
}

func (a *InventoryAdapter) closeReservation(ctx context.Context, reservationID string, status entities.ReservationStatus, restock bool) error {
	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	now := time.Now()

	update, args, err := a.db.Update("frame_reservations").
		Set(goqu.Record{
			"status":     status,
			"updated_at": now,
		}).
		Where(goqu.Ex{
			"id":     reservationID,
			"status": entities.ReservationStatusReserved,
		}).
		Returning("frame_code").
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build reservation update", err)
	}

	var frameCode string
	err = tx.QueryRowContext(ctx, update, args...).Scan(&frameCode)
	if err == sql.ErrNoRows {
		return apperrors.NewNotFoundError(fmt.Sprintf("open reservation with id %s not found", reservationID))
	}
	if err != nil {
		return apperrors.NewInternalError("failed to close reservation", err)
	}

	if restock {
		increment, args, err := a.db.Update("glasses_frames").
			Set(goqu.Record{
				"stock":      goqu.L("stock + 1"),
				"updated_at": now,
			}).
			Where(goqu.Ex{"code": frameCode}).
			ToSQL()
		if err != nil {
			return apperrors.NewInternalError("failed to build stock update", err)
		}
		if _, err := tx.ExecContext(ctx, increment, args...); err != nil {
			return apperrors.NewInternalError("failed to restock frame", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit reservation update", err)
	}

	return nil
}

func (a *InventoryAdapter) findReservation(ctx context.Context, sessionID, frameCode string) (*entities.FrameReservation, error) {
	query, args, err := a.db.Select(
		"id", "session_id", "frame_code", "status", "created_at", "updated_at",
	).From("frame_reservations").
		Where(goqu.Ex{
			"session_id": sessionID,
			"frame_code": frameCode,
			"status":     entities.ReservationStatusReserved,
		}).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	reservation := &entities.FrameReservation{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&reservation.ID,
		&reservation.SessionID,
		&reservation.FrameCode,
		&reservation.Status,
		&reservation.CreatedAt,
		&reservation.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("no open reservation for session")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to find reservation", err)
	}

	return reservation, nil
}
