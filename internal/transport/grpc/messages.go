package grpc

import "google.golang.org/protobuf/types/known/timestamppb"

type Room struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Floor    string `json:"floor"`
	Size     int32  `json:"size,omitempty"`
	Bookable bool   `json:"bookable"`
}

type Booking struct {
	ID        string                 `json:"id"`
	RoomID    string                 `json:"room_id"`
	RoomName  string                 `json:"room_name"`
	UserID    string                 `json:"user_id"`
	UserName  string                 `json:"user_name"`
	StartTime *timestamppb.Timestamp `json:"start_time"`
	EndTime   *timestamppb.Timestamp `json:"end_time"`
	Purpose   string                 `json:"purpose,omitempty"`
	Cancelled bool                   `json:"cancelled"`
	CreatedAt *timestamppb.Timestamp `json:"created_at,omitempty"`
}

type ListBookableRoomsRequest struct{}

type ListBookableRoomsResponse struct {
	Rooms []*Room `json:"rooms"`
}

type ListRoomBookingsRequest struct {
	RoomID      string                 `json:"room_id"`
	WindowStart *timestamppb.Timestamp `json:"window_start"`
	WindowEnd   *timestamppb.Timestamp `json:"window_end"`
}

type ListRoomBookingsResponse struct {
	Bookings []*Booking `json:"bookings"`
}

// ListUserBookingsRequest lists the caller's bookings unless a staff caller
// names another user.
type ListUserBookingsRequest struct {
	UserID string `json:"user_id,omitempty"`
}

type ListUserBookingsResponse struct {
	Bookings []*Booking `json:"bookings"`
}

type CreateBookingRequest struct {
	RoomID    string                 `json:"room_id"`
	StartTime *timestamppb.Timestamp `json:"start_time"`
	EndTime   *timestamppb.Timestamp `json:"end_time"`
	Purpose   string                 `json:"purpose,omitempty"`
}

type CreateBookingResponse struct {
	Booking *Booking `json:"booking"`
}

type CancelBookingRequest struct {
	BookingID string `json:"booking_id"`
}

type CancelBookingResponse struct {
	Booking *Booking `json:"booking"`
}

type GetAvailabilityRequest struct{}

type RoomAvailability struct {
	Room   *Room  `json:"room"`
	Busy   bool   `json:"busy"`
	Status string `json:"status"`
}

type GetAvailabilityResponse struct {
	Rooms       []*RoomAvailability    `json:"rooms"`
	Feed        string                 `json:"feed"`
	GeneratedAt *timestamppb.Timestamp `json:"generated_at"`
}

type ExpandRecurringEventRequest struct {
	EventID   string                 `json:"event_id"`
	Frequency string                 `json:"frequency"`
	Count     int32                  `json:"count,omitempty"`
	Until     *timestamppb.Timestamp `json:"until,omitempty"`
}

// ExpandRecurringEventResponse is returned for partial series too; Partial
// and Failure describe where expansion stopped.
type ExpandRecurringEventResponse struct {
	SeriesID        string   `json:"series_id"`
	SeedEventID     string   `json:"seed_event_id"`
	CreatedEventIDs []string `json:"created_event_ids"`
	Planned         int32    `json:"planned"`
	Partial         bool     `json:"partial"`
	Failure         string   `json:"failure,omitempty"`
}
