package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rental-service/internal/apperr"
	"rental-service/internal/booking"
	"rental-service/internal/models"
)

// fakeStore is an in-memory Datastore mirroring the conditional-insert
// semantics of the SQL layer: blocking ranges gate new bookings, and the
// booking plus its range are written together.
type fakeStore struct {
	mu         sync.Mutex
	properties map[int64]*models.Property
	bookings   map[int64]*models.Booking
	ranges     map[int64]*models.BookedDateRange // keyed by booking id
	payments   map[string]*models.Payment        // keyed by provider ref
	processed  map[string]bool
	nextID     int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		properties: make(map[int64]*models.Property),
		bookings:   make(map[int64]*models.Booking),
		ranges:     make(map[int64]*models.BookedDateRange),
		payments:   make(map[string]*models.Payment),
		processed:  make(map[string]bool),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) CreateProperty(ctx context.Context, p *models.Property) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = f.id()
	cp := *p
	f.properties[p.ID] = &cp
	return nil
}

func (f *fakeStore) GetPropertyByID(ctx context.Context, id int64) (*models.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.properties[id]
	if !ok {
		return nil, apperr.NotFound("property %d not found", id)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) UpdateProperty(ctx context.Context, p *models.Property) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.properties[p.ID]; !ok {
		return apperr.NotFound("property %d not found", p.ID)
	}
	cp := *p
	f.properties[p.ID] = &cp
	return nil
}

func (f *fakeStore) ListProperties(ctx context.Context) ([]models.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Property
	for _, p := range f.properties {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeStore) ListPropertiesByHost(ctx context.Context, hostID int64) ([]models.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Property
	for _, p := range f.properties {
		if p.HostID == hostID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) PropertyHasBlockingRanges(ctx context.Context, propertyID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.ranges {
		if r.PropertyID == propertyID && booking.IsBlocking(r.Status) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateBookingWithRange(ctx context.Context, b *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.ranges {
		if r.PropertyID == b.PropertyID && booking.IsBlocking(r.Status) &&
			booking.Overlaps(r.StartDate, r.EndDate, b.StartDate, b.EndDate) {
			return apperr.Conflict("dates overlap an existing booking")
		}
	}
	b.ID = f.id()
	cb := *b
	f.bookings[b.ID] = &cb
	f.ranges[b.ID] = &models.BookedDateRange{
		ID:         f.id(),
		PropertyID: b.PropertyID,
		BookingID:  b.ID,
		StartDate:  b.StartDate,
		EndDate:    b.EndDate,
		Status:     b.Status,
	}
	return nil
}

func (f *fakeStore) HasBookingConflict(ctx context.Context, propertyID int64, start, end time.Time, excludeBookingID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.ranges {
		if r.BookingID == excludeBookingID {
			continue
		}
		if r.PropertyID == propertyID && booking.IsBlocking(r.Status) &&
			booking.Overlaps(r.StartDate, r.EndDate, start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) GetBookingByID(ctx context.Context, id int64) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, apperr.NotFound("booking %d not found", id)
	}
	cb := *b
	return &cb, nil
}

func (f *fakeStore) ListBookingsByGuest(ctx context.Context, guestID int64) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Booking
	for _, b := range f.bookings {
		if b.GuestID == guestID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeStore) ListBookingsByProperty(ctx context.Context, propertyID int64) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Booking
	for _, b := range f.bookings {
		if b.PropertyID == propertyID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateBookingStatus(ctx context.Context, bookingID int64, status models.BookingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[bookingID]
	if !ok {
		return apperr.NotFound("booking %d not found", bookingID)
	}
	b.Status = status
	return nil
}

func (f *fakeStore) SetBookingCancelled(ctx context.Context, bookingID int64, status models.BookingStatus, payment models.PaymentState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[bookingID]
	if !ok {
		return apperr.NotFound("booking %d not found", bookingID)
	}
	b.Status = status
	b.PaymentStatus = payment
	return nil
}

func (f *fakeStore) SetBookingPaid(ctx context.Context, bookingID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[bookingID]
	if !ok {
		return apperr.NotFound("booking %d not found", bookingID)
	}
	b.PaymentStatus = models.PaymentPaid
	b.Status = models.StatusConfirmedByHost
	return nil
}

func (f *fakeStore) SetBookingPaymentFailed(ctx context.Context, bookingID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[bookingID]
	if !ok {
		return apperr.NotFound("booking %d not found", bookingID)
	}
	b.PaymentStatus = models.PaymentFailed
	return nil
}

func (f *fakeStore) SetBookingCheckoutRef(ctx context.Context, bookingID int64, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[bookingID]
	if !ok {
		return apperr.NotFound("booking %d not found", bookingID)
	}
	b.CheckoutRef = ref
	return nil
}

func (f *fakeStore) DeleteBookingWithRange(ctx context.Context, bookingID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bookings[bookingID]; !ok {
		return apperr.NotFound("booking %d not found", bookingID)
	}
	delete(f.bookings, bookingID)
	delete(f.ranges, bookingID)
	return nil
}

func (f *fakeStore) UpdateBookingDatesWithRange(ctx context.Context, bookingID int64, start, end time.Time, totalPrice int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[bookingID]
	if !ok {
		return false, apperr.NotFound("booking %d not found", bookingID)
	}
	b.StartDate, b.EndDate, b.TotalPrice = start, end, totalPrice
	r, ok := f.ranges[bookingID]
	if !ok {
		return false, nil
	}
	r.StartDate, r.EndDate = start, end
	return true, nil
}

func (f *fakeStore) GetRangeByBookingID(ctx context.Context, bookingID int64) (*models.BookedDateRange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.ranges[bookingID]
	if !ok {
		return nil, apperr.NotFound("range for booking %d not found", bookingID)
	}
	cr := *r
	return &cr, nil
}

func (f *fakeStore) CreateRange(ctx context.Context, r *models.BookedDateRange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ranges[r.BookingID]; ok {
		return apperr.Conflict("range for booking %d already exists", r.BookingID)
	}
	r.ID = f.id()
	cr := *r
	f.ranges[r.BookingID] = &cr
	return nil
}

func (f *fakeStore) UpdateRangeStatus(ctx context.Context, bookingID int64, status models.BookingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.ranges[bookingID]
	if !ok {
		return apperr.NotFound("range for booking %d not found", bookingID)
	}
	r.Status = status
	return nil
}

func (f *fakeStore) DeleteRangeByBookingID(ctx context.Context, bookingID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ranges[bookingID]; !ok {
		return apperr.NotFound("range for booking %d not found", bookingID)
	}
	delete(f.ranges, bookingID)
	return nil
}

func (f *fakeStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.payments[p.ProviderRef]; ok {
		return apperr.Conflict("duplicate payment reference %s", p.ProviderRef)
	}
	p.ID = f.id()
	cp := *p
	f.payments[p.ProviderRef] = &cp
	return nil
}

func (f *fakeStore) GetPaymentByProviderRef(ctx context.Context, ref string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[ref]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.processed[eventID], nil
}

func (f *fakeStore) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed[eventID] = true
	return nil
}

// fakePublisher records published events by type.
type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (f *fakePublisher) record(t string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, t)
}

func (f *fakePublisher) published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func (f *fakePublisher) PublishBookingRequested(ctx context.Context, e *models.BookingRequestedEvent) error {
	f.record(e.EventType)
	return nil
}

func (f *fakePublisher) PublishBookingConfirmed(ctx context.Context, e *models.BookingConfirmedEvent) error {
	f.record(e.EventType)
	return nil
}

func (f *fakePublisher) PublishBookingCancelled(ctx context.Context, e *models.BookingCancelledEvent) error {
	f.record(e.EventType)
	return nil
}

func (f *fakePublisher) PublishPaymentConfirmed(ctx context.Context, e *models.PaymentConfirmedEvent) error {
	f.record(e.EventType)
	return nil
}

func (f *fakePublisher) PublishPaymentFailed(ctx context.Context, e *models.PaymentFailedEvent) error {
	f.record(e.EventType)
	return nil
}

// fakeLocker always grants locks unless denied is set.
type fakeLocker struct {
	denied bool
}

func (f *fakeLocker) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return !f.denied, nil
}

func (f *fakeLocker) ReleaseLock(ctx context.Context, lockKey string) error {
	return nil
}

// fakeCache is an in-memory EventCache.
type fakeCache struct {
	mu       sync.Mutex
	seen     map[string]bool
	sessions map[int64]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{seen: make(map[string]bool), sessions: make(map[int64]string)}
}

func (f *fakeCache) WasEventSeen(ctx context.Context, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[eventID], nil
}

func (f *fakeCache) MarkEventSeen(ctx context.Context, eventID string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[eventID] = true
	return nil
}

func (f *fakeCache) CacheCheckoutSession(ctx context.Context, bookingID int64, sessionRef string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[bookingID] = sessionRef
	return nil
}

func (f *fakeCache) GetCheckoutSession(ctx context.Context, bookingID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[bookingID], nil
}

// fakeCheckout returns canned sessions or a canned error.
type fakeCheckout struct {
	fail  bool
	calls int
}

func (f *fakeCheckout) CreateSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSession, error) {
	f.calls++
	if f.fail {
		return nil, fmt.Errorf("provider unavailable")
	}
	id := fmt.Sprintf("cs_%d", req.BookingID)
	return &CheckoutSession{ID: id, URL: "https://pay.example.com/" + id}, nil
}
