package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	OtherFloor = "Other"

	// ClockLayout is how times of day are shown to members.
	ClockLayout = "3:04 PM"
)

type Room struct {
	bun.BaseModel `bun:"table:rooms"`

	ID       string `bun:"id,pk"`
	Name     string `bun:"name,notnull"`
	Floor    string `bun:"floor,notnull"`
	Size     int    `bun:"size,notnull"`
	Bookable bool   `bun:"bookable,notnull"`
}

// FloorLabel returns the floor the room is grouped under.
func (r Room) FloorLabel() string {
	if r.Floor == "" {
		return OtherFloor
	}
	return r.Floor
}

// ShowsCapacity reports whether the capacity is worth displaying.
func (r Room) ShowsCapacity() bool {
	return r.Size > 2
}

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID          string     `bun:"id,pk,type:uuid"`
	RoomID      string     `bun:"room_id,notnull"`
	RoomName    string     `bun:"room_name,notnull"`
	UserID      string     `bun:"user_id,notnull"`
	UserName    string     `bun:"user_name,notnull"`
	StartTime   time.Time  `bun:"start_time,notnull"`
	EndTime     time.Time  `bun:"end_time,notnull"`
	Purpose     string     `bun:"purpose"`
	CancelledAt *time.Time `bun:"cancelled_at"`
	CreatedAt   time.Time  `bun:"created_at,notnull"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull"`
}

func (b Booking) Active() bool {
	return b.CancelledAt == nil
}

func (b Booking) Interval() Interval {
	return Interval{Start: b.StartTime, End: b.EndTime}
}

func (b *Booking) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if b.ID == "" {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			b.ID = id.String()
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		if b.UpdatedAt.IsZero() {
			b.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		b.UpdatedAt = now
	}
	return nil
}

type Person struct {
	bun.BaseModel `bun:"table:people"`

	ID   string `bun:"id,pk"`
	Name string `bun:"name,notnull"`
}
