package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"coworking/backend/internal/domain"
	"coworking/backend/internal/store"
)

const (
	pgExclusionViolation  = "23P01"
	pgInvalidTextSyntax   = "22P02"
	bookingsOverlapConstr = "bookings_no_overlap"
)

type BookingRepo struct {
	db *bun.DB
}

func NewBookingRepo(db *bun.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

type roomTx struct {
	tx bun.Tx
}

func (r *BookingRepo) ListRoomBookings(ctx context.Context, roomID string, rangeStart, rangeEnd time.Time) ([]domain.Booking, error) {
	return listRoomBookings(ctx, r.db, roomID, rangeStart, rangeEnd)
}

func (r *BookingRepo) ListUserBookings(ctx context.Context, userID string, from time.Time) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := r.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Where("cancelled_at IS NULL").
		Where("end_time > ?", from).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return rows, nil
}

func (r *BookingRepo) GetBooking(ctx context.Context, bookingID string) (domain.Booking, error) {
	var b domain.Booking
	err := r.db.NewSelect().
		Model(&b).
		Where("id = ?", bookingID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Booking{}, mapLookupError(err)
	}
	return b, nil
}

func (r *BookingRepo) CreateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	var out domain.Booking
	err := r.InRoomTransaction(ctx, b.RoomID, func(ctx context.Context, tx store.RoomTx) error {
		if err := ensureNoOverlap(ctx, tx, b); err != nil {
			return err
		}
		created, err := tx.InsertBooking(ctx, b)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return domain.Booking{}, mapStoreError(err)
	}
	return out, nil
}

func (r *BookingRepo) CancelBooking(ctx context.Context, bookingID string) error {
	res, err := r.db.NewUpdate().
		Model((*domain.Booking)(nil)).
		Set("cancelled_at = ?", time.Now().UTC()).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", bookingID).
		Where("cancelled_at IS NULL").
		Exec(ctx)
	if err != nil {
		return mapLookupError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return mapStoreError(err)
	}
	if affected > 0 {
		return nil
	}

	exists, err := r.db.NewSelect().
		Model((*domain.Booking)(nil)).
		Where("id = ?", bookingID).
		Exists(ctx)
	if err != nil {
		return mapLookupError(err)
	}
	if !exists {
		return store.ErrNotFound
	}
	return nil
}

// InRoomTransaction runs fn inside a transaction holding the room's advisory
// lock, so concurrent writers for the same room are serialized.
func (r *BookingRepo) InRoomTransaction(ctx context.Context, roomID string, fn func(ctx context.Context, tx store.RoomTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockRoom(ctx, tx, roomID); err != nil {
			return err
		}
		return fn(ctx, roomTx{tx: tx})
	})
}

func lockRoom(ctx context.Context, tx bun.Tx, roomID string) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", "room:"+roomID).Exec(ctx)
	return err
}

func (r roomTx) ListRoomBookings(ctx context.Context, roomID string, windowStart, windowEnd time.Time) ([]domain.Booking, error) {
	return listRoomBookings(ctx, r.tx, roomID, windowStart, windowEnd)
}

func (r roomTx) InsertBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	m := domain.Booking{
		ID:        b.ID,
		RoomID:    b.RoomID,
		RoomName:  b.RoomName,
		UserID:    b.UserID,
		UserName:  b.UserName,
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
		Purpose:   b.Purpose,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}

	if _, err := r.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Booking{}, mapInsertError(err)
	}
	return m, nil
}

func listRoomBookings(ctx context.Context, db bun.IDB, roomID string, rangeStart, rangeEnd time.Time) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := db.NewSelect().
		Model(&rows).
		Where("room_id = ?", roomID).
		Where("cancelled_at IS NULL").
		Where("start_time <= ?", rangeEnd).
		Where("end_time >= ?", rangeStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return rows, nil
}

func ensureNoOverlap(ctx context.Context, tx store.RoomTx, b domain.Booking) error {
	existing, err := tx.ListRoomBookings(ctx, b.RoomID, b.StartTime, b.EndTime)
	if err != nil {
		return err
	}
	if len(domain.FindConflicts(existing, b.RoomID, b.Interval())) > 0 {
		return store.ErrConflict
	}
	return nil
}

func mapInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation && pgErr.ConstraintName == bookingsOverlapConstr {
		return store.ErrConflict
	}
	return mapStoreError(err)
}

func mapLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgInvalidTextSyntax {
		return store.ErrNotFound
	}
	return mapStoreError(err)
}
