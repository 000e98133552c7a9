package service

import (
	"context"
	"time"

	"rental-service/internal/models"
)

// Caller identifies the authenticated user behind a request, as supplied by
// the upstream identity provider. The core trusts it as already authenticated.
type Caller struct {
	UserID int64
	Role   string
}

// IsAdmin reports whether the caller has the admin role.
func (c Caller) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}

// Datastore is the persistence surface the services depend on. *store.Store
// satisfies it; tests substitute an in-memory fake.
type Datastore interface {
	CreateProperty(ctx context.Context, p *models.Property) error
	GetPropertyByID(ctx context.Context, id int64) (*models.Property, error)
	UpdateProperty(ctx context.Context, p *models.Property) error
	ListProperties(ctx context.Context) ([]models.Property, error)
	ListPropertiesByHost(ctx context.Context, hostID int64) ([]models.Property, error)
	PropertyHasBlockingRanges(ctx context.Context, propertyID int64) (bool, error)

	CreateBookingWithRange(ctx context.Context, b *models.Booking) error
	HasBookingConflict(ctx context.Context, propertyID int64, start, end time.Time, excludeBookingID int64) (bool, error)
	GetBookingByID(ctx context.Context, id int64) (*models.Booking, error)
	ListBookingsByGuest(ctx context.Context, guestID int64) ([]models.Booking, error)
	ListBookingsByProperty(ctx context.Context, propertyID int64) ([]models.Booking, error)
	UpdateBookingStatus(ctx context.Context, bookingID int64, status models.BookingStatus) error
	SetBookingCancelled(ctx context.Context, bookingID int64, status models.BookingStatus, payment models.PaymentState) error
	SetBookingPaid(ctx context.Context, bookingID int64) error
	SetBookingPaymentFailed(ctx context.Context, bookingID int64) error
	SetBookingCheckoutRef(ctx context.Context, bookingID int64, ref string) error
	DeleteBookingWithRange(ctx context.Context, bookingID int64) error
	UpdateBookingDatesWithRange(ctx context.Context, bookingID int64, start, end time.Time, totalPrice int64) (rangeUpdated bool, err error)

	GetRangeByBookingID(ctx context.Context, bookingID int64) (*models.BookedDateRange, error)
	CreateRange(ctx context.Context, r *models.BookedDateRange) error
	UpdateRangeStatus(ctx context.Context, bookingID int64, status models.BookingStatus) error
	DeleteRangeByBookingID(ctx context.Context, bookingID int64) error

	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPaymentByProviderRef(ctx context.Context, ref string) (*models.Payment, error)
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// Publisher emits booking domain events. *broker.EventPublisher satisfies it.
type Publisher interface {
	PublishBookingRequested(ctx context.Context, event *models.BookingRequestedEvent) error
	PublishBookingConfirmed(ctx context.Context, event *models.BookingConfirmedEvent) error
	PublishBookingCancelled(ctx context.Context, event *models.BookingCancelledEvent) error
	PublishPaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error
	PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
}

// Locker provides short advisory locks keyed by property, narrowing the gap
// between a conflict check and its write. *redisclient.Client satisfies it.
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// EventCache is the fast-path dedup cache for webhook event ids. A miss is not
// authoritative; the processed_events table is. *redisclient.Client satisfies it.
type EventCache interface {
	WasEventSeen(ctx context.Context, eventID string) (bool, error)
	MarkEventSeen(ctx context.Context, eventID string, ttl time.Duration) error
	CacheCheckoutSession(ctx context.Context, bookingID int64, sessionRef string, ttl time.Duration) error
	GetCheckoutSession(ctx context.Context, bookingID int64) (string, error)
}

// CheckoutProvider creates hosted checkout sessions with the payment provider.
type CheckoutProvider interface {
	CreateSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSession, error)
}
