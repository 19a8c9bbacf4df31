package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type RecurrenceFrequency string

const (
	RecurrenceFrequencyWeekly   RecurrenceFrequency = "weekly"
	RecurrenceFrequencyBiweekly RecurrenceFrequency = "biweekly"
	RecurrenceFrequencyMonthly  RecurrenceFrequency = "monthly"
)

// MaxSeriesOccurrences bounds how many siblings a single expansion may write.
const MaxSeriesOccurrences = 52

const EventStatusRecurring = "Recurring"

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID                string     `bun:"id,pk,type:uuid"`
	Name              string     `bun:"name,notnull"`
	StartTime         time.Time  `bun:"start_time,notnull"`
	EndTime           *time.Time `bun:"end_time"`
	Description       string     `bun:"description"`
	Notes             string     `bun:"notes"`
	Type              string     `bun:"type"`
	Status            string     `bun:"status"`
	URL               string     `bun:"url"`
	HostedBy          []string   `bun:"hosted_by,array"`
	RecurringSeriesID string     `bun:"recurring_series_id,nullzero"`
	CreatedAt         time.Time  `bun:"created_at,notnull"`
	UpdatedAt         time.Time  `bun:"updated_at,notnull"`
}

func (e *Event) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if e.ID == "" {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			e.ID = id.String()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		e.UpdatedAt = now
	}
	return nil
}

// Sibling copies the descriptive fields of e onto a new event starting at
// start. The duration of e is preserved.
func (e Event) Sibling(start time.Time, seriesID string) Event {
	var end *time.Time
	if e.EndTime != nil {
		t := start.Add(e.EndTime.Sub(e.StartTime))
		end = &t
	}
	hosts := make([]string, len(e.HostedBy))
	copy(hosts, e.HostedBy)

	return Event{
		Name:              e.Name,
		StartTime:         start,
		EndTime:           end,
		Description:       e.Description,
		Notes:             e.Notes,
		Type:              e.Type,
		Status:            e.Status,
		URL:               e.URL,
		HostedBy:          hosts,
		RecurringSeriesID: seriesID,
	}
}

type RecurrenceRule struct {
	Frequency RecurrenceFrequency
	Count     *int
	Until     *time.Time
}

// GenerateOccurrenceStarts returns the start instants of the occurrences that
// follow seed, excluding seed itself. Calendar arithmetic happens in loc so
// the local time of day survives DST transitions. Monthly rules keep the
// "Nth weekday" position of seed rather than its day of month.
func GenerateOccurrenceStarts(seed time.Time, rule RecurrenceRule, loc *time.Location) ([]time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	switch rule.Frequency {
	case RecurrenceFrequencyWeekly, RecurrenceFrequencyBiweekly, RecurrenceFrequencyMonthly:
	default:
		return nil, errors.New("unsupported recurrence frequency")
	}
	if rule.Count == nil && rule.Until == nil {
		return nil, errors.New("count or until is required")
	}

	limit := MaxSeriesOccurrences
	if rule.Count != nil {
		if *rule.Count < 1 {
			return nil, errors.New("count must be at least 1")
		}
		if *rule.Count < limit {
			limit = *rule.Count
		}
	}

	seedLocal := seed.In(loc)
	ordinal := WeekdayOrdinal(seedLocal)

	out := make([]time.Time, 0, limit)
	prev := seedLocal
	for step := 1; len(out) < limit; step++ {
		var next time.Time
		switch rule.Frequency {
		case RecurrenceFrequencyWeekly:
			next = prev.AddDate(0, 0, 7)
		case RecurrenceFrequencyBiweekly:
			next = prev.AddDate(0, 0, 14)
		case RecurrenceFrequencyMonthly:
			next = NthWeekdayOfMonth(seedLocal.Year(), seedLocal.Month()+time.Month(step), seedLocal.Weekday(), ordinal, seedLocal)
		}
		if rule.Until != nil && next.After(*rule.Until) {
			break
		}
		out = append(out, next.UTC())
		prev = next
	}

	return out, nil
}

// WeekdayOrdinal reports which occurrence of its weekday t falls on within
// its month (1 for the first Tuesday, 2 for the second, ...).
func WeekdayOrdinal(t time.Time) int {
	return (t.Day()-1)/7 + 1
}

// NthWeekdayOfMonth returns the nth occurrence of weekday in the given month
// at the wall-clock time of clock, in clock's location. When the month has
// fewer than n such weekdays the last one is used. Month values outside
// 1..12 are normalized the same way time.Date does.
func NthWeekdayOfMonth(year int, month time.Month, weekday time.Weekday, n int, clock time.Time) time.Time {
	loc := clock.Location()
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	daysInMonth := time.Date(first.Year(), first.Month()+1, 0, 0, 0, 0, 0, loc).Day()

	if n < 1 {
		n = 1
	}
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	day := 1 + offset + (n-1)*7
	for day > daysInMonth {
		day -= 7
	}

	return time.Date(
		first.Year(),
		first.Month(),
		day,
		clock.Hour(),
		clock.Minute(),
		clock.Second(),
		clock.Nanosecond(),
		loc,
	)
}
