package grpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	"coworking/backend/internal/domain"
	"coworking/backend/internal/service/availability"
	"coworking/backend/internal/service/bookings"
	"coworking/backend/internal/service/recurrence"
	"coworking/backend/internal/store"
)

type BookingServer struct {
	bookings     bookingsService
	availability availabilityReporter
	recurrence   recurrenceService
	loc          *time.Location
	log          *slog.Logger
}

type bookingsService interface {
	ListBookableRooms(ctx context.Context) ([]domain.Room, error)
	ListRoomBookings(ctx context.Context, roomID string, from, to time.Time) ([]domain.Booking, error)
	ListUserBookings(ctx context.Context, userID string) ([]domain.Booking, error)
	RequestBooking(ctx context.Context, in bookings.RequestInput) (domain.Booking, error)
	CancelBooking(ctx context.Context, in bookings.CancelInput) (domain.Booking, error)
}

type availabilityReporter interface {
	Compute(ctx context.Context) ([]availability.RoomStatus, time.Time, error)
}

type recurrenceService interface {
	Expand(ctx context.Context, in recurrence.ExpandInput) (recurrence.ExpandResult, error)
}

func NewBookingServer(b bookingsService, a availabilityReporter, r recurrenceService, loc *time.Location, log *slog.Logger) *BookingServer {
	if log == nil {
		log = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &BookingServer{
		bookings:     b,
		availability: a,
		recurrence:   r,
		loc:          loc,
		log:          log.With(slog.String("component", "grpc.bookings")),
	}
}

func (s *BookingServer) ListBookableRooms(ctx context.Context, req *ListBookableRoomsRequest) (*ListBookableRoomsResponse, error) {
	log := s.log.With(slog.String("rpc", "ListBookableRooms"))

	rooms, err := s.bookings.ListBookableRooms(ctx)
	if err != nil {
		return nil, s.statusError(log, "rooms list failed", err)
	}

	out := make([]*Room, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, toRoom(r))
	}
	log.Debug("rooms listed", slog.Int("count", len(out)))
	return &ListBookableRoomsResponse{Rooms: out}, nil
}

func (s *BookingServer) ListRoomBookings(ctx context.Context, req *ListRoomBookingsRequest) (*ListRoomBookingsResponse, error) {
	log := s.log.With(slog.String("rpc", "ListRoomBookings"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if req.WindowStart == nil || req.WindowEnd == nil {
		log.Warn("invalid request", slog.String("reason", "missing_window"), slog.String("room_id", req.RoomID))
		return nil, status.Error(codes.InvalidArgument, "window_start and window_end are required")
	}

	rows, err := s.bookings.ListRoomBookings(ctx, req.RoomID, req.WindowStart.AsTime(), req.WindowEnd.AsTime())
	if err != nil {
		return nil, s.statusError(log, "room bookings list failed", err, slog.String("room_id", req.RoomID))
	}

	log.Debug(
		"room bookings listed",
		slog.String("room_id", req.RoomID),
		slog.Int("count", len(rows)),
		slog.Time("window_start", req.WindowStart.AsTime()),
		slog.Time("window_end", req.WindowEnd.AsTime()),
	)
	// other members' bookings are shown without who holds them
	return &ListRoomBookingsResponse{Bookings: toBookings(rows, callerFromContext(ctx), true)}, nil
}

func (s *BookingServer) ListUserBookings(ctx context.Context, req *ListUserBookingsRequest) (*ListUserBookingsResponse, error) {
	log := s.log.With(slog.String("rpc", "ListUserBookings"))

	who := callerFromContext(ctx)
	userID := who.UserID
	if req != nil && req.UserID != "" && req.UserID != who.UserID {
		if !who.Staff {
			log.Warn("permission denied", slog.String("user_id", who.UserID), slog.String("target_user_id", req.UserID))
			return nil, status.Error(codes.PermissionDenied, "only staff can list another member's bookings")
		}
		userID = req.UserID
	}

	rows, err := s.bookings.ListUserBookings(ctx, userID)
	if err != nil {
		return nil, s.statusError(log, "user bookings list failed", err, slog.String("user_id", userID))
	}

	log.Debug("user bookings listed", slog.String("user_id", userID), slog.Int("count", len(rows)))
	return &ListUserBookingsResponse{Bookings: toBookings(rows, who, false)}, nil
}

func (s *BookingServer) CreateBooking(ctx context.Context, req *CreateBookingRequest) (*CreateBookingResponse, error) {
	log := s.log.With(slog.String("rpc", "CreateBooking"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	who := callerFromContext(ctx)
	if req.StartTime == nil || req.EndTime == nil {
		log.Warn("invalid request", slog.String("reason", "missing_times"), slog.String("user_id", who.UserID))
		return nil, status.Error(codes.InvalidArgument, "start_time and end_time are required")
	}
	if who.UserID == "" {
		log.Warn("unauthenticated request", slog.String("reason", "missing_user"))
		return nil, status.Error(codes.Unauthenticated, "x-user-id metadata is required")
	}

	b, err := s.bookings.RequestBooking(ctx, bookings.RequestInput{
		RoomID:   req.RoomID,
		UserID:   who.UserID,
		UserName: who.UserName,
		Start:    req.StartTime.AsTime(),
		End:      req.EndTime.AsTime(),
		Purpose:  req.Purpose,
	})
	if err != nil {
		return nil, s.statusError(log, "booking create failed", err,
			slog.String("room_id", req.RoomID),
			slog.String("user_id", who.UserID),
			slog.Time("start_time", req.StartTime.AsTime()),
			slog.Time("end_time", req.EndTime.AsTime()),
		)
	}

	log.Info(
		"booking created",
		slog.String("booking_id", b.ID),
		slog.String("room_id", b.RoomID),
		slog.String("user_id", b.UserID),
	)
	return &CreateBookingResponse{Booking: toBooking(b)}, nil
}

func (s *BookingServer) CancelBooking(ctx context.Context, req *CancelBookingRequest) (*CancelBookingResponse, error) {
	log := s.log.With(slog.String("rpc", "CancelBooking"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	who := callerFromContext(ctx)
	if who.UserID == "" && !who.Staff {
		log.Warn("unauthenticated request", slog.String("reason", "missing_user"))
		return nil, status.Error(codes.Unauthenticated, "x-user-id metadata is required")
	}

	b, err := s.bookings.CancelBooking(ctx, bookings.CancelInput{
		BookingID:     req.BookingID,
		ActingUserID:  who.UserID,
		ActingIsStaff: who.Staff,
	})
	if err != nil {
		return nil, s.statusError(log, "booking cancel failed", err,
			slog.String("booking_id", req.BookingID),
			slog.String("user_id", who.UserID),
		)
	}

	log.Info("booking cancelled", slog.String("booking_id", b.ID), slog.String("user_id", who.UserID), slog.Bool("staff", who.Staff))
	return &CancelBookingResponse{Booking: toBooking(b)}, nil
}

func (s *BookingServer) GetAvailability(ctx context.Context, req *GetAvailabilityRequest) (*GetAvailabilityResponse, error) {
	log := s.log.With(slog.String("rpc", "GetAvailability"))

	statuses, now, err := s.availability.Compute(ctx)
	if err != nil {
		return nil, s.statusError(log, "availability compute failed", err)
	}

	out := make([]*RoomAvailability, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, &RoomAvailability{Room: toRoom(st.Room), Busy: st.Busy, Status: st.Text})
	}
	return &GetAvailabilityResponse{
		Rooms:       out,
		Feed:        availability.FormatFeed(statuses),
		GeneratedAt: timestamppb.New(now),
	}, nil
}

func (s *BookingServer) ExpandRecurringEvent(ctx context.Context, req *ExpandRecurringEventRequest) (*ExpandRecurringEventResponse, error) {
	log := s.log.With(slog.String("rpc", "ExpandRecurringEvent"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if !callerFromContext(ctx).Staff {
		log.Warn("permission denied", slog.String("event_id", req.EventID))
		return nil, status.Error(codes.PermissionDenied, "only staff can create recurring series")
	}

	in := recurrence.ExpandInput{
		EventID:   req.EventID,
		Frequency: domain.RecurrenceFrequency(req.Frequency),
	}
	if req.Count > 0 {
		c := int(req.Count)
		in.Count = &c
	}
	if req.Until != nil {
		u := req.Until.AsTime()
		in.Until = &u
	}

	res, err := s.recurrence.Expand(ctx, in)
	resp := &ExpandRecurringEventResponse{
		SeriesID:        res.SeriesID,
		SeedEventID:     res.Seed.ID,
		CreatedEventIDs: res.CreatedIDs,
		Planned:         int32(res.Planned),
	}
	if err != nil {
		var partial *recurrence.PartialSeriesError
		if errors.As(err, &partial) {
			log.Warn(
				"recurring series partially created",
				slog.Any("err", err),
				slog.String("event_id", req.EventID),
				slog.String("series_id", partial.SeriesID),
				slog.Int("created", len(partial.CreatedIDs)),
				slog.Int("planned", partial.Planned),
			)
			resp.Partial = true
			resp.Failure = partial.Err.Error()
			return resp, nil
		}
		return nil, s.statusError(log, "recurring series create failed", err, slog.String("event_id", req.EventID))
	}

	log.Info(
		"recurring series created",
		slog.String("event_id", req.EventID),
		slog.String("series_id", res.SeriesID),
		slog.Int("created", len(res.CreatedIDs)),
	)
	return resp, nil
}

// statusError logs err at the level its kind deserves and converts it to a
// gRPC status. A taken slot is an expected outcome and is logged at info.
func (s *BookingServer) statusError(log *slog.Logger, msg string, err error, attrs ...any) error {
	args := append([]any{slog.Any("err", err)}, attrs...)

	var (
		vErr    *bookings.ValidationError
		rvErr   *recurrence.ValidationError
		slotErr *bookings.SlotTakenError
	)
	switch {
	case errors.As(err, &slotErr):
		log.Info("booking slot taken", attrs...)
		text := "That room is already booked for that time. Pick a different slot."
		if len(slotErr.Conflicts) > 0 {
			text = "That room is already booked " + slotErr.Describe(s.loc) + ". Pick a different slot."
		}
		return status.Error(codes.FailedPrecondition, text)
	case errors.As(err, &vErr):
		log.Warn("invalid request", args...)
		return status.Error(codes.InvalidArgument, vErr.Error())
	case errors.As(err, &rvErr):
		log.Warn("invalid request", args...)
		return status.Error(codes.InvalidArgument, rvErr.Error())
	case errors.Is(err, bookings.ErrInvalidRange):
		log.Warn("invalid request", args...)
		return status.Error(codes.InvalidArgument, "The end time must be after the start time.")
	case errors.Is(err, bookings.ErrPastBooking):
		log.Warn("invalid request", args...)
		return status.Error(codes.InvalidArgument, "Bookings cannot start in the past.")
	case errors.Is(err, bookings.ErrRoomNotFound):
		log.Info("room not found", attrs...)
		return status.Error(codes.NotFound, "room not found")
	case errors.Is(err, bookings.ErrNotFound):
		log.Info("booking not found", attrs...)
		return status.Error(codes.NotFound, "booking not found")
	case errors.Is(err, recurrence.ErrNotFound):
		log.Info("event not found", attrs...)
		return status.Error(codes.NotFound, "event not found")
	case errors.Is(err, bookings.ErrRoomNotBookable):
		log.Info("room not bookable", attrs...)
		return status.Error(codes.FailedPrecondition, "That room cannot be booked.")
	case errors.Is(err, bookings.ErrForbidden):
		log.Warn("permission denied", args...)
		return status.Error(codes.PermissionDenied, "You can only cancel your own bookings.")
	case errors.Is(err, bookings.ErrUpstreamUnavailable), errors.Is(err, store.ErrUnavailable):
		log.Error(msg, args...)
		return status.Error(codes.Unavailable, "A backing service is unavailable. Try again shortly.")
	case errors.Is(err, context.DeadlineExceeded):
		log.Error(msg, args...)
		return status.Error(codes.DeadlineExceeded, "request timed out")
	}
	log.Error(msg, args...)
	return status.Error(codes.Internal, "internal error")
}

func toRoom(r domain.Room) *Room {
	return &Room{
		ID:       r.ID,
		Name:     r.Name,
		Floor:    r.FloorLabel(),
		Size:     int32(r.Size),
		Bookable: r.Bookable,
	}
}

func toBooking(b domain.Booking) *Booking {
	out := &Booking{
		ID:        b.ID,
		RoomID:    b.RoomID,
		RoomName:  b.RoomName,
		UserID:    b.UserID,
		UserName:  b.UserName,
		StartTime: timestamppb.New(b.StartTime),
		EndTime:   timestamppb.New(b.EndTime),
		Purpose:   b.Purpose,
		Cancelled: !b.Active(),
	}
	if !b.CreatedAt.IsZero() {
		out.CreatedAt = timestamppb.New(b.CreatedAt)
	}
	return out
}

// toBookings converts rows for who. With redact set, bookings that belong to
// someone else lose their owner and purpose unless who is staff.
func toBookings(rows []domain.Booking, who caller, redact bool) []*Booking {
	out := make([]*Booking, 0, len(rows))
	for _, b := range rows {
		pb := toBooking(b)
		if redact && !who.Staff && b.UserID != who.UserID {
			pb.UserID = ""
			pb.UserName = ""
			pb.Purpose = ""
		}
		out = append(out, pb)
	}
	return out
}
