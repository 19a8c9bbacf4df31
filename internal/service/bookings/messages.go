package bookings

import (
	"fmt"
	"time"

	"coworking/backend/internal/domain"
	"coworking/backend/internal/notify"
)

const dayLayout = "Mon Jan 2"

func bookedText(b domain.Booking, loc *time.Location) string {
	text := fmt.Sprintf("*Room booked*\n%s, %s\nby %s",
		notify.Escape(b.RoomName),
		span(b, loc),
		notify.Escape(b.UserName),
	)
	if b.Purpose != "" {
		text += "\n" + notify.Escape(b.Purpose)
	}
	return text
}

func cancelledText(b domain.Booking, loc *time.Location) string {
	return fmt.Sprintf("*Booking cancelled*\n%s, %s\nnow free",
		notify.Escape(b.RoomName),
		span(b, loc),
	)
}

func span(b domain.Booking, loc *time.Location) string {
	start := b.StartTime.In(loc)
	end := b.EndTime.In(loc)
	return start.Format(dayLayout) + " " + start.Format(domain.ClockLayout) + "–" + end.Format(domain.ClockLayout)
}
