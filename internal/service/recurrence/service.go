// Package recurrence turns a seed event into a series of follow-on events.
package recurrence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"coworking/backend/internal/domain"
	"coworking/backend/internal/store"
)

var ErrNotFound = errors.New("event not found")

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// PartialSeriesError reports an expansion that stopped after some siblings
// were written. Nothing is rolled back; the series can be inspected or
// completed by hand.
type PartialSeriesError struct {
	SeriesID   string
	CreatedIDs []string
	Planned    int
	Err        error
}

func (e *PartialSeriesError) Error() string {
	return fmt.Sprintf("series %s stopped after %d of %d events: %v", e.SeriesID, len(e.CreatedIDs), e.Planned, e.Err)
}

func (e *PartialSeriesError) Unwrap() error {
	return e.Err
}

type Service struct {
	events store.EventRepository
	loc    *time.Location
	newID  func() string
	log    *slog.Logger
}

func NewService(events store.EventRepository, loc *time.Location, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		events: events,
		loc:    loc,
		newID:  uuid.NewString,
		log:    log.With(slog.String("component", "service.recurrence")),
	}
}

type ExpandInput struct {
	EventID   string
	Frequency domain.RecurrenceFrequency
	Count     *int
	Until     *time.Time
}

type ExpandResult struct {
	SeriesID   string
	Seed       domain.Event
	CreatedIDs []string
	Planned    int
}

// Expand marks the seed as recurring and creates one sibling per generated
// occurrence, in order. When a create fails the siblings already written are
// kept and a *PartialSeriesError is returned alongside the partial result.
func (s *Service) Expand(ctx context.Context, in ExpandInput) (ExpandResult, error) {
	eventID := strings.TrimSpace(in.EventID)
	if eventID == "" {
		return ExpandResult{}, validationError("event_id is required")
	}
	frequency := domain.RecurrenceFrequency(strings.ToLower(strings.TrimSpace(string(in.Frequency))))
	switch frequency {
	case domain.RecurrenceFrequencyWeekly, domain.RecurrenceFrequencyBiweekly, domain.RecurrenceFrequencyMonthly:
	default:
		return ExpandResult{}, validationError("frequency must be weekly, biweekly or monthly")
	}
	if in.Count == nil && in.Until == nil {
		return ExpandResult{}, validationError("count or until is required")
	}
	if in.Count != nil && *in.Count < 1 {
		return ExpandResult{}, validationError("count must be at least 1")
	}

	seed, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ExpandResult{}, ErrNotFound
		}
		return ExpandResult{}, fmt.Errorf("load seed event: %w", err)
	}
	if seed.RecurringSeriesID != "" {
		return ExpandResult{}, validationError("event already belongs to a recurring series")
	}

	starts, err := domain.GenerateOccurrenceStarts(seed.StartTime, domain.RecurrenceRule{
		Frequency: frequency,
		Count:     in.Count,
		Until:     in.Until,
	}, s.loc)
	if err != nil {
		return ExpandResult{}, validationError(err.Error())
	}
	if len(starts) == 0 {
		return ExpandResult{}, validationError("recurrence rule produces no occurrences")
	}

	seriesID := s.newID()
	template := seed

	seed.Status = domain.EventStatusRecurring
	seed.RecurringSeriesID = seriesID
	updated, err := s.events.UpdateEvent(ctx, seed)
	if err != nil {
		return ExpandResult{}, fmt.Errorf("mark seed event recurring: %w", err)
	}

	log := s.log.With(slog.String("series_id", seriesID), slog.String("seed_id", seed.ID))
	res := ExpandResult{
		SeriesID:   seriesID,
		Seed:       updated,
		CreatedIDs: make([]string, 0, len(starts)),
		Planned:    len(starts),
	}
	for _, start := range starts {
		created, err := s.events.CreateEvent(ctx, template.Sibling(start, seriesID))
		if err != nil {
			log.Warn(
				"recurring series stopped early",
				slog.Any("err", err),
				slog.Int("created", len(res.CreatedIDs)),
				slog.Int("planned", res.Planned),
				slog.Time("failed_start", start),
			)
			return res, &PartialSeriesError{
				SeriesID:   seriesID,
				CreatedIDs: res.CreatedIDs,
				Planned:    res.Planned,
				Err:        err,
			}
		}
		res.CreatedIDs = append(res.CreatedIDs, created.ID)
	}

	log.Info(
		"recurring series created",
		slog.String("frequency", string(frequency)),
		slog.Int("created", len(res.CreatedIDs)),
	)
	return res, nil
}
