// Package availability derives today's free/busy status for each room and
// renders the shared status feed.
package availability

import (
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"coworking/backend/internal/domain"
	"coworking/backend/internal/notify"
)

const (
	FreeAllDay = "Free all day"

	glyphFree = "🟢"
	glyphBusy = "🔴"
)

type RoomStatus struct {
	Room domain.Room
	Busy bool
	Text string
}

// EndOfDay is the first instant of the next civil day at the venue.
func EndOfDay(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
}

// Status derives a room's status at now from its bookings. Bookings that
// already ended or start after the venue's end of day are ignored.
func Status(bookings []domain.Booking, now time.Time, loc *time.Location) (busy bool, text string) {
	eod := EndOfDay(now, loc)

	today := make([]domain.Booking, 0, len(bookings))
	for _, b := range bookings {
		if !b.Active() {
			continue
		}
		if b.EndTime.After(now) && b.StartTime.Before(eod) {
			today = append(today, b)
		}
	}
	if len(today) == 0 {
		return false, FreeAllDay
	}
	sort.Slice(today, func(i, j int) bool {
		return today[i].StartTime.Before(today[j].StartTime)
	})

	for _, b := range today {
		if !b.StartTime.After(now) && now.Before(b.EndTime) {
			return true, "Busy until " + b.EndTime.In(loc).Format(domain.ClockLayout)
		}
	}
	for _, b := range today {
		if b.StartTime.After(now) {
			return false, "Free until " + b.StartTime.In(loc).Format(domain.ClockLayout)
		}
	}
	return false, FreeAllDay
}

// FormatFeed renders one code block per floor. Floors run from the highest
// number down with non-numeric labels last, rooms are alphabetical, and
// labels are padded to the widest one across every floor.
func FormatFeed(statuses []RoomStatus) string {
	if len(statuses) == 0 {
		return "No bookable rooms."
	}

	byFloor := make(map[string][]RoomStatus)
	width := 0
	for _, s := range statuses {
		floor := s.Room.FloorLabel()
		byFloor[floor] = append(byFloor[floor], s)
		if n := utf8.RuneCountInString(roomLabel(s.Room)); n > width {
			width = n
		}
	}

	floors := make([]string, 0, len(byFloor))
	for f := range byFloor {
		floors = append(floors, f)
	}
	sort.Slice(floors, func(i, j int) bool {
		return floorLess(floors[i], floors[j])
	})

	var b strings.Builder
	for i, floor := range floors {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("*" + notify.Escape(floorHeading(floor)) + "*\n```\n")

		rooms := byFloor[floor]
		sort.SliceStable(rooms, func(i, j int) bool {
			return strings.ToLower(rooms[i].Room.Name) < strings.ToLower(rooms[j].Room.Name)
		})
		for _, s := range rooms {
			glyph := glyphFree
			if s.Busy {
				glyph = glyphBusy
			}
			label := roomLabel(s.Room)
			pad := width - utf8.RuneCountInString(label)
			b.WriteString(glyph + " " + label + strings.Repeat(" ", pad) + "  " + s.Text + "\n")
		}
		b.WriteString("```\n")
	}
	return b.String()
}

func roomLabel(r domain.Room) string {
	if r.ShowsCapacity() {
		return r.Name + " (capacity " + strconv.Itoa(r.Size) + ")"
	}
	return r.Name
}

func floorHeading(floor string) string {
	if _, ok := floorNumber(floor); ok {
		return "Floor " + floor
	}
	return floor
}

func floorNumber(floor string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(floor), 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func floorLess(a, b string) bool {
	na, aNum := floorNumber(a)
	nb, bNum := floorNumber(b)
	switch {
	case aNum && bNum:
		return na > nb
	case aNum != bNum:
		return aNum
	}
	// the "Other" bucket goes after any named floor
	if (a == domain.OtherFloor) != (b == domain.OtherFloor) {
		return b == domain.OtherFloor
	}
	return a < b
}
