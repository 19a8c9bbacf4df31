// Package bookings validates, creates and cancels room bookings. Writes for
// one room are serialized by a per-room lock and the overlap check runs only
// after the lock is held.
package bookings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"coworking/backend/internal/catalog"
	"coworking/backend/internal/domain"
	"coworking/backend/internal/lock"
	"coworking/backend/internal/notify"
	"coworking/backend/internal/store"
)

type roomCatalog interface {
	ListBookableRooms(ctx context.Context) ([]domain.Room, error)
	GetRoom(ctx context.Context, roomID string) (domain.Room, error)
}

type Deps struct {
	Rooms     roomCatalog
	Bookings  store.BookingRepository
	Directory store.PersonDirectory
	Locker    lock.Locker
	// LockHold bounds the work done while the room lock is held. It must
	// stay below the lease of a shared locker. Zero means no extra bound.
	LockHold time.Duration

	// Notifier and NotifyChannelID are optional. Without them bookings are
	// not announced.
	Notifier        notify.Channel
	NotifyChannelID string

	Location *time.Location
	Now      func() time.Time
	Log      *slog.Logger
}

type Service struct {
	rooms     roomCatalog
	repo      store.BookingRepository
	directory store.PersonDirectory
	locker    lock.Locker
	lockHold  time.Duration
	notifier  notify.Channel
	channelID string
	loc       *time.Location
	now       func() time.Time
	log       *slog.Logger
}

func NewService(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	locker := d.Locker
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	return &Service{
		rooms:     d.Rooms,
		repo:      d.Bookings,
		directory: d.Directory,
		locker:    locker,
		lockHold:  d.LockHold,
		notifier:  d.Notifier,
		channelID: strings.TrimSpace(d.NotifyChannelID),
		loc:       loc,
		now:       now,
		log:       log.With(slog.String("component", "service.bookings")),
	}
}

type RequestInput struct {
	RoomID string
	UserID string
	// UserName is the caller-supplied display name. When empty the directory
	// is consulted.
	UserName string
	Start    time.Time
	End      time.Time
	Purpose  string
}

func (s *Service) RequestBooking(ctx context.Context, in RequestInput) (domain.Booking, error) {
	roomID := strings.TrimSpace(in.RoomID)
	if roomID == "" {
		return domain.Booking{}, validationError("room_id is required")
	}
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return domain.Booking{}, validationError("user_id is required")
	}

	start := in.Start.UTC()
	end := in.End.UTC()
	if !end.After(start) {
		return domain.Booking{}, ErrInvalidRange
	}
	if start.Before(s.now()) {
		return domain.Booking{}, ErrPastBooking
	}

	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, catalog.ErrRoomNotFound) {
			return domain.Booking{}, ErrRoomNotFound
		}
		return domain.Booking{}, upstream("load room", err)
	}
	if !room.Bookable {
		return domain.Booking{}, ErrRoomNotBookable
	}

	unlock, err := s.locker.Lock(ctx, "room:"+room.ID)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("%w: acquire room lock: %v", ErrUpstreamUnavailable, err)
	}
	defer unlock()
	if s.lockHold > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.lockHold)
		defer cancel()
	}

	requested := domain.Interval{Start: start, End: end}
	if err := s.ensureFree(ctx, room.ID, requested); err != nil {
		return domain.Booking{}, err
	}

	userName := strings.TrimSpace(in.UserName)
	if userName == "" {
		userName, err = s.directory.PersonName(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Booking{}, validationError("unknown user")
			}
			return domain.Booking{}, upstream("resolve user name", err)
		}
	}

	created, err := s.repo.CreateBooking(ctx, domain.Booking{
		RoomID:    room.ID,
		RoomName:  room.Name,
		UserID:    userID,
		UserName:  userName,
		StartTime: start,
		EndTime:   end,
		Purpose:   strings.TrimSpace(in.Purpose),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Another writer got past our lock, e.g. a replica without the
			// shared locker. Report what now occupies the slot.
			slotErr := &SlotTakenError{}
			if existing, listErr := s.repo.ListRoomBookings(ctx, room.ID, start, end); listErr == nil {
				slotErr.Conflicts = domain.Intervals(domain.FindConflicts(existing, room.ID, requested))
			}
			s.logSlotTaken(room.ID, userID, requested, slotErr)
			return domain.Booking{}, slotErr
		}
		return domain.Booking{}, upstream("create booking", err)
	}

	s.log.Info(
		"booking created",
		slog.String("booking_id", created.ID),
		slog.String("room_id", created.RoomID),
		slog.String("user_id", created.UserID),
		slog.Time("start_time", created.StartTime),
		slog.Time("end_time", created.EndTime),
	)
	s.announce(ctx, bookedText(created, s.loc))

	return created, nil
}

func (s *Service) ensureFree(ctx context.Context, roomID string, requested domain.Interval) error {
	existing, err := s.repo.ListRoomBookings(ctx, roomID, requested.Start, requested.End)
	if err != nil {
		return upstream("list room bookings", err)
	}
	conflicts := domain.FindConflicts(existing, roomID, requested)
	if len(conflicts) == 0 {
		return nil
	}
	slotErr := &SlotTakenError{Conflicts: domain.Intervals(conflicts)}
	s.logSlotTaken(roomID, "", requested, slotErr)
	return slotErr
}

func (s *Service) logSlotTaken(roomID, userID string, requested domain.Interval, err *SlotTakenError) {
	args := []any{
		slog.String("room_id", roomID),
		slog.Time("start_time", requested.Start),
		slog.Time("end_time", requested.End),
		slog.Int("conflicts", len(err.Conflicts)),
	}
	if userID != "" {
		args = append(args, slog.String("user_id", userID))
	}
	s.log.Info("booking slot taken", args...)
}

type CancelInput struct {
	BookingID     string
	ActingUserID  string
	ActingIsStaff bool
}

// CancelBooking cancels a booking owned by the acting user, or any booking
// when the actor is staff. Cancelling an already cancelled booking succeeds
// and changes nothing.
func (s *Service) CancelBooking(ctx context.Context, in CancelInput) (domain.Booking, error) {
	bookingID := strings.TrimSpace(in.BookingID)
	if bookingID == "" {
		return domain.Booking{}, validationError("booking_id is required")
	}
	if strings.TrimSpace(in.ActingUserID) == "" && !in.ActingIsStaff {
		return domain.Booking{}, validationError("user_id is required")
	}

	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Booking{}, ErrNotFound
		}
		return domain.Booking{}, upstream("load booking", err)
	}
	if b.UserID != in.ActingUserID && !in.ActingIsStaff {
		return domain.Booking{}, ErrForbidden
	}
	if !b.Active() {
		return b, nil
	}

	if err := s.repo.CancelBooking(ctx, bookingID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Booking{}, ErrNotFound
		}
		return domain.Booking{}, upstream("cancel booking", err)
	}
	at := s.now().UTC()
	b.CancelledAt = &at

	s.log.Info(
		"booking cancelled",
		slog.String("booking_id", b.ID),
		slog.String("room_id", b.RoomID),
		slog.String("user_id", b.UserID),
		slog.String("acting_user_id", in.ActingUserID),
		slog.Bool("staff", in.ActingIsStaff),
	)
	s.announce(ctx, cancelledText(b, s.loc))

	return b, nil
}

func (s *Service) ListBookableRooms(ctx context.Context) ([]domain.Room, error) {
	rooms, err := s.rooms.ListBookableRooms(ctx)
	if err != nil {
		return nil, upstream("list rooms", err)
	}
	return rooms, nil
}

// ListRoomBookings returns the active bookings of a room that overlap the
// half-open window [from, to). A booking starting exactly at to, or ending
// exactly at from, is left out.
func (s *Service) ListRoomBookings(ctx context.Context, roomID string, from, to time.Time) ([]domain.Booking, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, validationError("room_id is required")
	}
	start := from.UTC()
	end := to.UTC()
	if !end.After(start) {
		return nil, ErrInvalidRange
	}

	rows, err := s.repo.ListRoomBookings(ctx, roomID, start, end)
	if err != nil {
		return nil, upstream("list room bookings", err)
	}
	window := domain.Interval{Start: start, End: end}
	return domain.FindConflicts(rows, roomID, window), nil
}

// ListUserBookings returns the user's active bookings that have not ended.
func (s *Service) ListUserBookings(ctx context.Context, userID string) ([]domain.Booking, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, validationError("user_id is required")
	}
	rows, err := s.repo.ListUserBookings(ctx, userID, s.now().UTC())
	if err != nil {
		return nil, upstream("list user bookings", err)
	}
	return rows, nil
}

func (s *Service) announce(ctx context.Context, text string) {
	if s.notifier == nil || s.channelID == "" {
		return
	}
	if _, err := s.notifier.SendMessage(ctx, s.channelID, text); err != nil {
		s.log.Warn("booking notification failed", slog.Any("err", err), slog.String("channel_id", s.channelID))
	}
}
