// Package records implements the store interfaces on top of the spreadsheet
// record store. Raw records are mapped into domain types as soon as they are
// read.
package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coworking/backend/internal/domain"
	"coworking/backend/internal/recordstore"
	"coworking/backend/internal/store"
)

const (
	tableRooms    = "Rooms"
	tableBookings = "Room Bookings"
	tableEvents   = "Events"
	tablePeople   = "People"
)

const (
	fieldName     = "Name"
	fieldFloor    = "Floor"
	fieldSize     = "Size"
	fieldBookable = "Bookable"

	fieldRoom     = "Room"
	fieldRoomName = "Room Name"
	fieldUser     = "User"
	// Formulas see linked records by their primary field, not their id.
	// These lookups expose RECORD_ID() of the linked room and person so
	// bookings can be filtered by id on the server.
	fieldRoomID    = "Room ID"
	fieldUserID    = "User ID"
	fieldUserName  = "User Name"
	fieldStart     = "Start Date"
	fieldEnd       = "End Date"
	fieldPurpose   = "Purpose"
	fieldCancelled = "Cancelled"
	fieldCancelAt  = "Cancelled At"

	fieldDescription = "Description"
	fieldNotes       = "Notes"
	fieldType        = "Type"
	fieldStatus      = "Status"
	fieldURL         = "URL"
	fieldHostedBy    = "Hosted By"
	fieldSeriesID    = "Recurring Series ID"
)

type Repo struct {
	rs recordstore.Store
}

func New(rs recordstore.Store) *Repo {
	return &Repo{rs: rs}
}

func (r *Repo) ListRooms(ctx context.Context) ([]domain.Room, error) {
	recs, err := r.rs.Find(ctx, tableRooms, recordstore.FindOptions{
		Sort: []recordstore.SortField{{Field: fieldName}},
	})
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]domain.Room, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toRoom(rec))
	}
	return out, nil
}

func (r *Repo) GetRoom(ctx context.Context, roomID string) (domain.Room, error) {
	rec, err := r.rs.Get(ctx, tableRooms, roomID)
	if err != nil {
		return domain.Room{}, mapError(err)
	}
	return toRoom(rec), nil
}

func (r *Repo) ListRoomBookings(ctx context.Context, roomID string, rangeStart, rangeEnd time.Time) ([]domain.Booking, error) {
	return r.findBookings(ctx, recordstore.And(
		recordstore.Not(recordstore.Truthy(fieldCancelled)),
		recordstore.Contains(fieldRoomID, roomID),
		recordstore.OnOrBefore(fieldStart, rangeEnd),
		recordstore.OnOrAfter(fieldEnd, rangeStart),
	), func(b domain.Booking) bool {
		return b.RoomID == roomID
	})
}

func (r *Repo) ListUserBookings(ctx context.Context, userID string, from time.Time) ([]domain.Booking, error) {
	return r.findBookings(ctx, recordstore.And(
		recordstore.Not(recordstore.Truthy(fieldCancelled)),
		recordstore.Contains(fieldUserID, userID),
		recordstore.After(fieldEnd, from),
	), func(b domain.Booking) bool {
		return b.UserID == userID
	})
}

// findBookings runs the formula and re-applies keep locally, since SEARCH
// matches substrings of the looked-up ids.
func (r *Repo) findBookings(ctx context.Context, formula recordstore.Formula, keep func(domain.Booking) bool) ([]domain.Booking, error) {
	recs, err := r.rs.Find(ctx, tableBookings, recordstore.FindOptions{
		Formula: formula,
		Sort:    []recordstore.SortField{{Field: fieldStart}},
	})
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]domain.Booking, 0, len(recs))
	for _, rec := range recs {
		b, ok := toBooking(rec)
		if !ok || !keep(b) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *Repo) GetBooking(ctx context.Context, bookingID string) (domain.Booking, error) {
	rec, err := r.rs.Get(ctx, tableBookings, bookingID)
	if err != nil {
		return domain.Booking{}, mapError(err)
	}
	b, ok := toBooking(rec)
	if !ok {
		return domain.Booking{}, fmt.Errorf("booking %s has no valid time range", bookingID)
	}
	return b, nil
}

// CreateBooking writes the record as-is. The record store has no exclusion
// constraint, so callers hold the room lock around check and create.
func (r *Repo) CreateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	fields := recordstore.Fields{
		fieldRoom:     []string{b.RoomID},
		fieldRoomName: b.RoomName,
		fieldUser:     []string{b.UserID},
		fieldUserName: b.UserName,
		fieldStart:    b.StartTime.UTC().Format(time.RFC3339),
		fieldEnd:      b.EndTime.UTC().Format(time.RFC3339),
	}
	if b.Purpose != "" {
		fields[fieldPurpose] = b.Purpose
	}

	rec, err := r.rs.Create(ctx, tableBookings, fields)
	if err != nil {
		return domain.Booking{}, mapError(err)
	}
	created, ok := toBooking(rec)
	if !ok {
		b.ID = rec.ID
		b.CreatedAt = rec.CreatedTime
		return b, nil
	}
	return created, nil
}

func (r *Repo) CancelBooking(ctx context.Context, bookingID string) error {
	rec, err := r.rs.Get(ctx, tableBookings, bookingID)
	if err != nil {
		return mapError(err)
	}
	if rec.Fields.Bool(fieldCancelled) {
		return nil
	}
	fields := recordstore.Fields{
		fieldCancelled: true,
		fieldCancelAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if _, err := r.rs.Update(ctx, tableBookings, bookingID, fields); err != nil {
		return mapError(err)
	}
	return nil
}

func (r *Repo) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	rec, err := r.rs.Get(ctx, tableEvents, eventID)
	if err != nil {
		return domain.Event{}, mapError(err)
	}
	return toEvent(rec), nil
}

func (r *Repo) CreateEvent(ctx context.Context, e domain.Event) (domain.Event, error) {
	rec, err := r.rs.Create(ctx, tableEvents, eventFields(e))
	if err != nil {
		return domain.Event{}, mapError(err)
	}
	return toEvent(rec), nil
}

func (r *Repo) UpdateEvent(ctx context.Context, e domain.Event) (domain.Event, error) {
	rec, err := r.rs.Update(ctx, tableEvents, e.ID, eventFields(e))
	if err != nil {
		return domain.Event{}, mapError(err)
	}
	return toEvent(rec), nil
}

func (r *Repo) PersonName(ctx context.Context, userID string) (string, error) {
	rec, err := r.rs.Get(ctx, tablePeople, userID)
	if err != nil {
		return "", mapError(err)
	}
	return rec.Fields.String(fieldName), nil
}

func toRoom(rec recordstore.Record) domain.Room {
	return domain.Room{
		ID:       rec.ID,
		Name:     rec.Fields.String(fieldName),
		Floor:    rec.Fields.String(fieldFloor),
		Size:     rec.Fields.Int(fieldSize),
		Bookable: rec.Fields.Bool(fieldBookable),
	}
}

func toBooking(rec recordstore.Record) (domain.Booking, bool) {
	start, okStart := rec.Fields.Time(fieldStart)
	end, okEnd := rec.Fields.Time(fieldEnd)
	if !okStart || !okEnd {
		return domain.Booking{}, false
	}

	b := domain.Booking{
		ID:        rec.ID,
		RoomName:  rec.Fields.String(fieldRoomName),
		UserName:  rec.Fields.String(fieldUserName),
		StartTime: start,
		EndTime:   end,
		Purpose:   rec.Fields.String(fieldPurpose),
		CreatedAt: rec.CreatedTime,
		UpdatedAt: rec.CreatedTime,
	}
	if rooms := rec.Fields.Strings(fieldRoom); len(rooms) > 0 {
		b.RoomID = rooms[0]
	}
	if users := rec.Fields.Strings(fieldUser); len(users) > 0 {
		b.UserID = users[0]
	}
	if rec.Fields.Bool(fieldCancelled) {
		at, _ := rec.Fields.Time(fieldCancelAt)
		b.CancelledAt = &at
	}
	return b, true
}

func toEvent(rec recordstore.Record) domain.Event {
	e := domain.Event{
		ID:                rec.ID,
		Name:              rec.Fields.String(fieldName),
		Description:       rec.Fields.String(fieldDescription),
		Notes:             rec.Fields.String(fieldNotes),
		Type:              rec.Fields.String(fieldType),
		Status:            rec.Fields.String(fieldStatus),
		URL:               rec.Fields.String(fieldURL),
		HostedBy:          rec.Fields.Strings(fieldHostedBy),
		RecurringSeriesID: rec.Fields.String(fieldSeriesID),
		CreatedAt:         rec.CreatedTime,
		UpdatedAt:         rec.CreatedTime,
	}
	if start, ok := rec.Fields.Time(fieldStart); ok {
		e.StartTime = start
	}
	if end, ok := rec.Fields.Time(fieldEnd); ok {
		e.EndTime = &end
	}
	return e
}

func eventFields(e domain.Event) recordstore.Fields {
	f := recordstore.Fields{
		fieldName:        e.Name,
		fieldStart:       e.StartTime.UTC().Format(time.RFC3339),
		fieldDescription: e.Description,
		fieldNotes:       e.Notes,
		fieldType:        e.Type,
		fieldStatus:      e.Status,
		fieldURL:         e.URL,
		fieldHostedBy:    e.HostedBy,
	}
	if e.EndTime != nil {
		f[fieldEnd] = e.EndTime.UTC().Format(time.RFC3339)
	}
	if e.RecurringSeriesID != "" {
		f[fieldSeriesID] = e.RecurringSeriesID
	}
	return f
}

func mapError(err error) error {
	switch {
	case errors.Is(err, recordstore.ErrNotFound):
		return store.ErrNotFound
	case errors.Is(err, recordstore.ErrUnavailable):
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return err
}
