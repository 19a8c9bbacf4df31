package bookings

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"coworking/backend/internal/catalog"
	"coworking/backend/internal/domain"
	"coworking/backend/internal/lock"
	"coworking/backend/internal/store"
)

var (
	testNow = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	day     = time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type fakeCatalog struct {
	rooms map[string]domain.Room
	err   error
}

func (f *fakeCatalog) ListBookableRooms(ctx context.Context) ([]domain.Room, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Room
	for _, r := range f.rooms {
		if r.Bookable {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeCatalog) GetRoom(ctx context.Context, roomID string) (domain.Room, error) {
	if f.err != nil {
		return domain.Room{}, f.err
	}
	r, ok := f.rooms[roomID]
	if !ok {
		return domain.Room{}, catalog.ErrRoomNotFound
	}
	return r, nil
}

// memRepo is an in-memory BookingRepository with no overlap check of its
// own, so only the service's locking keeps it consistent.
type memRepo struct {
	mu        sync.Mutex
	seq       int
	bookings  map[string]domain.Booking
	listDelay time.Duration
	createErr error
	// createWaits makes CreateBooking block until its context is done.
	createWaits bool
	cancels     int
}

func newMemRepo(existing ...domain.Booking) *memRepo {
	r := &memRepo{bookings: make(map[string]domain.Booking)}
	for _, b := range existing {
		r.bookings[b.ID] = b
	}
	return r
}

func (r *memRepo) ListRoomBookings(ctx context.Context, roomID string, rangeStart, rangeEnd time.Time) ([]domain.Booking, error) {
	if r.listDelay > 0 {
		time.Sleep(r.listDelay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Booking
	for _, b := range r.bookings {
		if b.RoomID == roomID && b.Active() && !b.StartTime.After(rangeEnd) && !b.EndTime.Before(rangeStart) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *memRepo) ListUserBookings(ctx context.Context, userID string, from time.Time) ([]domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Booking
	for _, b := range r.bookings {
		if b.UserID == userID && b.Active() && b.EndTime.After(from) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *memRepo) GetBooking(ctx context.Context, bookingID string) (domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[bookingID]
	if !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	return b, nil
}

func (r *memRepo) CreateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	if r.createErr != nil {
		return domain.Booking{}, r.createErr
	}
	if r.createWaits {
		<-ctx.Done()
		return domain.Booking{}, ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	b.ID = "b" + strconv.Itoa(r.seq)
	r.bookings[b.ID] = b
	return b, nil
}

func (r *memRepo) CancelBooking(ctx context.Context, bookingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[bookingID]
	if !ok {
		return store.ErrNotFound
	}
	if b.CancelledAt != nil {
		return nil
	}
	r.cancels++
	now := testNow
	b.CancelledAt = &now
	r.bookings[bookingID] = b
	return nil
}

type fakeDirectory struct {
	personNameFn func(ctx context.Context, userID string) (string, error)
}

func (f *fakeDirectory) PersonName(ctx context.Context, userID string) (string, error) {
	if f.personNameFn == nil {
		panic("PersonName not configured")
	}
	return f.personNameFn(ctx, userID)
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeNotifier) SendMessage(ctx context.Context, channelID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return "1", f.err
}

func (f *fakeNotifier) EditMessage(ctx context.Context, channelID, messageID, text string) error {
	return nil
}

func newTestService(repo *memRepo, n *fakeNotifier) *Service {
	d := Deps{
		Rooms: &fakeCatalog{rooms: map[string]domain.Room{
			"r1": {ID: "r1", Name: "Boardroom", Floor: "4", Size: 8, Bookable: true},
			"r2": {ID: "r2", Name: "Studio", Floor: "3", Bookable: true},
			"r9": {ID: "r9", Name: "Server closet", Bookable: false},
		}},
		Bookings: repo,
		Directory: &fakeDirectory{personNameFn: func(ctx context.Context, userID string) (string, error) {
			if userID == "ghost" {
				return "", store.ErrNotFound
			}
			return "Member " + userID, nil
		}},
		Locker:          lock.NewKeyedMutex(),
		NotifyChannelID: "@rooms",
		Now:             func() time.Time { return testNow },
	}
	if n != nil {
		d.Notifier = n
	}
	return NewService(d)
}

func existing(id, roomID, userID string, start, end time.Time) domain.Booking {
	return domain.Booking{ID: id, RoomID: roomID, RoomName: "Boardroom", UserID: userID, UserName: "Someone", StartTime: start, EndTime: end}
}

func TestRequestBooking_Validation(t *testing.T) {
	svc := newTestService(newMemRepo(), nil)

	tests := []struct {
		name string
		in   RequestInput
		want error
	}{
		{"end equals start", RequestInput{RoomID: "r1", UserID: "u1", Start: at(10, 0), End: at(10, 0)}, ErrInvalidRange},
		{"end before start", RequestInput{RoomID: "r1", UserID: "u1", Start: at(11, 0), End: at(10, 0)}, ErrInvalidRange},
		{"past by one minute", RequestInput{RoomID: "r1", UserID: "u1", Start: testNow.Add(-time.Minute), End: at(9, 0)}, ErrPastBooking},
		{"unknown room", RequestInput{RoomID: "nope", UserID: "u1", Start: at(10, 0), End: at(11, 0)}, ErrRoomNotFound},
		{"not bookable", RequestInput{RoomID: "r9", UserID: "u1", Start: at(10, 0), End: at(11, 0)}, ErrRoomNotBookable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RequestBooking(context.Background(), tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRequestBooking_RequiresUser(t *testing.T) {
	svc := newTestService(newMemRepo(), nil)

	_, err := svc.RequestBooking(context.Background(), RequestInput{RoomID: "r1", Start: at(10, 0), End: at(11, 0)})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if vErr.Error() != "user_id is required" {
		t.Fatalf("error = %q, want %q", vErr.Error(), "user_id is required")
	}
}

func TestRequestBooking_StartingNowIsAllowed(t *testing.T) {
	svc := newTestService(newMemRepo(), nil)

	if _, err := svc.RequestBooking(context.Background(), RequestInput{RoomID: "r1", UserID: "u1", Start: testNow, End: testNow.Add(time.Hour)}); err != nil {
		t.Fatalf("RequestBooking error: %v", err)
	}
}

func TestRequestBooking_ExactOverlapReportsInterval(t *testing.T) {
	repo := newMemRepo(existing("b0", "r1", "u2", at(10, 30), at(10, 45)))
	svc := newTestService(repo, nil)

	_, err := svc.RequestBooking(context.Background(), RequestInput{
		RoomID: "r1", UserID: "u1", Start: at(10, 30), End: at(10, 45),
	})
	var slotErr *SlotTakenError
	if !errors.As(err, &slotErr) {
		t.Fatalf("error type = %T, want *SlotTakenError", err)
	}
	if len(slotErr.Conflicts) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(slotErr.Conflicts))
	}
	if got := slotErr.Describe(time.UTC); got != "10:30 AM–10:45 AM" {
		t.Fatalf("Describe = %q, want %q", got, "10:30 AM–10:45 AM")
	}
}

func TestRequestBooking_HalfOpenBoundaries(t *testing.T) {
	repo := newMemRepo(existing("b0", "r1", "u2", at(10, 0), at(11, 0)))
	svc := newTestService(repo, nil)
	ctx := context.Background()

	if _, err := svc.RequestBooking(ctx, RequestInput{RoomID: "r1", UserID: "u1", Start: at(11, 0), End: at(12, 0)}); err != nil {
		t.Fatalf("booking starting at existing end: %v", err)
	}
	if _, err := svc.RequestBooking(ctx, RequestInput{RoomID: "r1", UserID: "u1", Start: at(9, 0), End: at(10, 0)}); err != nil {
		t.Fatalf("booking ending at existing start: %v", err)
	}

	_, err := svc.RequestBooking(ctx, RequestInput{RoomID: "r1", UserID: "u1", Start: at(10, 59), End: at(11, 30)})
	var slotErr *SlotTakenError
	if !errors.As(err, &slotErr) {
		t.Fatalf("one minute overlap: err = %v, want SlotTakenError", err)
	}
}

func TestRequestBooking_OtherRoomDoesNotConflict(t *testing.T) {
	repo := newMemRepo(existing("b0", "r2", "u2", at(10, 0), at(11, 0)))
	svc := newTestService(repo, nil)

	if _, err := svc.RequestBooking(context.Background(), RequestInput{RoomID: "r1", UserID: "u1", Start: at(10, 0), End: at(11, 0)}); err != nil {
		t.Fatalf("RequestBooking error: %v", err)
	}
}

func TestRequestBooking_ResolvesNameAndNotifies(t *testing.T) {
	n := &fakeNotifier{}
	svc := newTestService(newMemRepo(), n)

	b, err := svc.RequestBooking(context.Background(), RequestInput{
		RoomID: "r1", UserID: "u1", Start: at(10, 0), End: at(11, 0), Purpose: " standup ",
	})
	if err != nil {
		t.Fatalf("RequestBooking error: %v", err)
	}
	if b.UserName != "Member u1" {
		t.Fatalf("user name = %q, want %q", b.UserName, "Member u1")
	}
	if b.RoomName != "Boardroom" {
		t.Fatalf("room name = %q, want %q", b.RoomName, "Boardroom")
	}
	if b.Purpose != "standup" {
		t.Fatalf("purpose = %q, want %q", b.Purpose, "standup")
	}
	if len(n.sent) != 1 {
		t.Fatalf("notifications = %d, want 1", len(n.sent))
	}
}

func TestRequestBooking_PrefersCallerName(t *testing.T) {
	svc := newTestService(newMemRepo(), nil)
	svc.directory = &fakeDirectory{}

	b, err := svc.RequestBooking(context.Background(), RequestInput{
		RoomID: "r1", UserID: "u1", UserName: "Ada", Start: at(10, 0), End: at(11, 0),
	})
	if err != nil {
		t.Fatalf("RequestBooking error: %v", err)
	}
	if b.UserName != "Ada" {
		t.Fatalf("user name = %q, want %q", b.UserName, "Ada")
	}
}

func TestRequestBooking_NotificationFailureDoesNotFail(t *testing.T) {
	n := &fakeNotifier{err: errors.New("telegram down")}
	svc := newTestService(newMemRepo(), n)

	if _, err := svc.RequestBooking(context.Background(), RequestInput{RoomID: "r1", UserID: "u1", Start: at(10, 0), End: at(11, 0)}); err != nil {
		t.Fatalf("RequestBooking error: %v", err)
	}
}

func TestRequestBooking_StoreConflictMapsToSlotTaken(t *testing.T) {
	repo := newMemRepo()
	repo.createErr = store.ErrConflict
	svc := newTestService(repo, nil)

	_, err := svc.RequestBooking(context.Background(), RequestInput{RoomID: "r1", UserID: "u1", Start: at(10, 0), End: at(11, 0)})
	var slotErr *SlotTakenError
	if !errors.As(err, &slotErr) {
		t.Fatalf("error type = %T, want *SlotTakenError", err)
	}
}

func TestRequestBooking_StoreOutageIsUpstream(t *testing.T) {
	repo := newMemRepo()
	repo.createErr = store.ErrUnavailable
	svc := newTestService(repo, nil)

	_, err := svc.RequestBooking(context.Background(), RequestInput{RoomID: "r1", UserID: "u1", Start: at(10, 0), End: at(11, 0)})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestRequestBooking_LockHoldBoundsCriticalSection(t *testing.T) {
	repo := newMemRepo()
	repo.createWaits = true
	svc := newTestService(repo, nil)
	svc.lockHold = 20 * time.Millisecond

	begin := time.Now()
	_, err := svc.RequestBooking(context.Background(), RequestInput{RoomID: "r1", UserID: "u1", Start: at(10, 0), End: at(11, 0)})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(begin); elapsed > 2*time.Second {
		t.Fatalf("lock held for %s", elapsed)
	}

	// the room lock was released
	repo.createWaits = false
	if _, err := svc.RequestBooking(context.Background(), RequestInput{RoomID: "r1", UserID: "u1", Start: at(10, 0), End: at(11, 0)}); err != nil {
		t.Fatalf("second RequestBooking error: %v", err)
	}
}

func TestRequestBooking_ConcurrentSameSlotOnlyOneWins(t *testing.T) {
	repo := newMemRepo()
	repo.listDelay = 5 * time.Millisecond
	svc := newTestService(repo, nil)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		taken     int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.RequestBooking(context.Background(), RequestInput{
				RoomID: "r1",
				UserID: "u" + strconv.Itoa(i),
				Start:  at(14, 0),
				End:    at(15, 0),
			})
			mu.Lock()
			defer mu.Unlock()
			var slotErr *SlotTakenError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &slotErr):
				taken++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("succeeded = %d, want 1", succeeded)
	}
	if taken != workers-1 {
		t.Fatalf("slot taken = %d, want %d", taken, workers-1)
	}
}

func TestCancelBooking_OwnerAndIdempotent(t *testing.T) {
	n := &fakeNotifier{}
	repo := newMemRepo(existing("b1", "r1", "u1", at(10, 0), at(11, 0)))
	svc := newTestService(repo, n)
	ctx := context.Background()

	b, err := svc.CancelBooking(ctx, CancelInput{BookingID: "b1", ActingUserID: "u1"})
	if err != nil {
		t.Fatalf("CancelBooking error: %v", err)
	}
	if b.Active() {
		t.Fatalf("booking still active after cancel")
	}

	if _, err := svc.CancelBooking(ctx, CancelInput{BookingID: "b1", ActingUserID: "u1"}); err != nil {
		t.Fatalf("second CancelBooking error: %v", err)
	}
	if repo.cancels != 1 {
		t.Fatalf("repository cancels = %d, want 1", repo.cancels)
	}
	if len(n.sent) != 1 {
		t.Fatalf("notifications = %d, want 1", len(n.sent))
	}

	// the freed slot can be booked again
	if _, err := svc.RequestBooking(ctx, RequestInput{RoomID: "r1", UserID: "u2", Start: at(10, 0), End: at(11, 0)}); err != nil {
		t.Fatalf("rebooking freed slot: %v", err)
	}
}

func TestCancelBooking_Permissions(t *testing.T) {
	repo := newMemRepo(existing("b1", "r1", "u1", at(10, 0), at(11, 0)))
	svc := newTestService(repo, nil)
	ctx := context.Background()

	if _, err := svc.CancelBooking(ctx, CancelInput{BookingID: "b1", ActingUserID: "u2"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	if _, err := svc.CancelBooking(ctx, CancelInput{BookingID: "missing", ActingUserID: "u1"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := svc.CancelBooking(ctx, CancelInput{BookingID: "b1", ActingUserID: "staff1", ActingIsStaff: true}); err != nil {
		t.Fatalf("staff cancel error: %v", err)
	}
}

func TestListRoomBookings_HalfOpenWindow(t *testing.T) {
	repo := newMemRepo(
		existing("b1", "r1", "u1", at(9, 0), at(10, 0)),
		existing("b2", "r1", "u1", at(10, 0), at(11, 0)),
		existing("b3", "r1", "u1", at(12, 0), at(13, 0)),
	)
	svc := newTestService(repo, nil)

	// the repository range is closed, so b1 and b3 touch it
	rows, err := repo.ListRoomBookings(context.Background(), "r1", at(10, 0), at(12, 0))
	if err != nil || len(rows) != 3 {
		t.Fatalf("repository rows = %d (err %v), want 3", len(rows), err)
	}

	got, err := svc.ListRoomBookings(context.Background(), "r1", at(10, 0), at(12, 0))
	if err != nil {
		t.Fatalf("ListRoomBookings error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b2" {
		t.Fatalf("bookings = %+v, want only b2", got)
	}
}

func TestListUserBookings_UsesNow(t *testing.T) {
	repo := newMemRepo(
		existing("old", "r1", "u1", testNow.Add(-3*time.Hour), testNow.Add(-2*time.Hour)),
		existing("next", "r1", "u1", at(10, 0), at(11, 0)),
	)
	svc := newTestService(repo, nil)

	got, err := svc.ListUserBookings(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListUserBookings error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "next" {
		t.Fatalf("bookings = %+v, want only next", got)
	}
}
