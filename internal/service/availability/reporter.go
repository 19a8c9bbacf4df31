package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"coworking/backend/internal/cache"
	"coworking/backend/internal/domain"
	"coworking/backend/internal/notify"
)

const (
	defaultConcurrency = 4
	feedKeyPrefix      = "availability-feed:"
	feedDateLayout     = "Monday, January 2"
)

type roomLister interface {
	ListBookableRooms(ctx context.Context) ([]domain.Room, error)
}

type bookingLister interface {
	ListRoomBookings(ctx context.Context, roomID string, rangeStart, rangeEnd time.Time) ([]domain.Booking, error)
}

type Reporter struct {
	rooms       roomLister
	bookings    bookingLister
	loc         *time.Location
	now         func() time.Time
	concurrency int
}

func NewReporter(rooms roomLister, bookings bookingLister, loc *time.Location, now func() time.Time) *Reporter {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Reporter{
		rooms:       rooms,
		bookings:    bookings,
		loc:         loc,
		now:         now,
		concurrency: defaultConcurrency,
	}
}

// Compute returns the status of every bookable room, in catalog order.
func (r *Reporter) Compute(ctx context.Context) ([]RoomStatus, time.Time, error) {
	now := r.now()
	rooms, err := r.rooms.ListBookableRooms(ctx)
	if err != nil {
		return nil, now, fmt.Errorf("list rooms: %w", err)
	}
	eod := EndOfDay(now, r.loc)

	out := make([]RoomStatus, len(rooms))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, room := range rooms {
		i, room := i, room
		g.Go(func() error {
			bookings, err := r.bookings.ListRoomBookings(gctx, room.ID, now, eod)
			if err != nil {
				return fmt.Errorf("list bookings for room %s: %w", room.ID, err)
			}
			busy, text := Status(bookings, now, r.loc)
			out[i] = RoomStatus{Room: room, Busy: busy, Text: text}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, now, err
	}
	return out, now, nil
}

type RefreshResult struct {
	Rooms     []RoomStatus
	Message   string
	MessageID string
	// DeliveryErr is set when the statuses were computed but could not be
	// posted. It does not make the refresh fail.
	DeliveryErr error
}

// Refresher keeps one message in a channel up to date with the feed. The id
// of the posted message lives in the cache so replicas edit the same one.
type Refresher struct {
	reporter  *Reporter
	notifier  notify.Channel
	cache     cache.Cache
	channelID string
	log       *slog.Logger
}

func NewRefresher(reporter *Reporter, notifier notify.Channel, c cache.Cache, channelID string, log *slog.Logger) *Refresher {
	if log == nil {
		log = slog.Default()
	}
	return &Refresher{
		reporter:  reporter,
		notifier:  notifier,
		cache:     c,
		channelID: channelID,
		log:       log.With(slog.String("component", "service.availability")),
	}
}

func (f *Refresher) Refresh(ctx context.Context) (RefreshResult, error) {
	statuses, now, err := f.reporter.Compute(ctx)
	if err != nil {
		return RefreshResult{}, err
	}

	local := now.In(f.reporter.loc)
	msg := "*Rooms today, " + local.Format(feedDateLayout) + "*\n\n" +
		FormatFeed(statuses) +
		"\n_Updated " + local.Format(domain.ClockLayout) + "_"

	res := RefreshResult{Rooms: statuses, Message: msg}
	if f.notifier == nil || f.channelID == "" {
		return res, nil
	}

	res.MessageID, res.DeliveryErr = f.publish(ctx, msg)
	if res.DeliveryErr != nil {
		f.log.Warn("availability feed delivery failed", slog.Any("err", res.DeliveryErr), slog.String("channel_id", f.channelID))
	} else {
		f.log.Debug("availability feed published", slog.String("message_id", res.MessageID), slog.Int("rooms", len(statuses)))
	}
	return res, nil
}

// Run adapts Refresh to the scheduler. Only a failed computation is an error.
func (f *Refresher) Run(ctx context.Context) error {
	_, err := f.Refresh(ctx)
	return err
}

func (f *Refresher) publish(ctx context.Context, msg string) (string, error) {
	key := feedKeyPrefix + f.channelID

	id, ok, err := f.cache.Get(ctx, key)
	if err != nil {
		f.log.Warn("feed message id read failed", slog.Any("err", err))
	}
	var editErr error
	if ok && id != "" {
		if editErr = f.notifier.EditMessage(ctx, f.channelID, id, msg); editErr == nil {
			return id, nil
		}
		f.log.Info("feed edit failed, posting a new message", slog.Any("err", editErr), slog.String("message_id", id))
	}

	newID, err := f.notifier.SendMessage(ctx, f.channelID, msg)
	if err != nil {
		return "", errors.Join(editErr, err)
	}
	if newID != "" {
		if err := f.cache.Set(ctx, key, newID, 0); err != nil {
			f.log.Warn("feed message id write failed", slog.Any("err", err))
		}
	}
	return newID, nil
}
