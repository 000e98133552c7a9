package models

import "time"

// PricingPeriod determines how a property's unit price maps to a stay length.
type PricingPeriod string

const (
	PeriodNightly PricingPeriod = "nightly"
	PeriodWeekly  PricingPeriod = "weekly"
	PeriodMonthly PricingPeriod = "monthly"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPendingConfirmation BookingStatus = "pending_confirmation"
	StatusPendingPayment      BookingStatus = "pending_payment"
	StatusConfirmedByHost     BookingStatus = "confirmed_by_host"
	StatusRejectedByHost      BookingStatus = "rejected_by_host"
	StatusCancelledByGuest    BookingStatus = "cancelled_by_guest"
	StatusCancelledByAdmin    BookingStatus = "cancelled_by_admin"
	StatusCompleted           BookingStatus = "completed"
	StatusNoShow              BookingStatus = "no_show"
)

// PaymentState is the payment side of a booking, tracked separately from the
// lifecycle status because a payment webhook can race a guest action. It is the
// source of truth checked immediately before any mutating transition.
type PaymentState string

const (
	PaymentPending  PaymentState = "pending"
	PaymentPaid     PaymentState = "paid"
	PaymentFailed   PaymentState = "failed"
	PaymentRefunded PaymentState = "refunded"
)

// Caller roles supplied by the upstream identity provider.
const (
	RoleGuest = "guest"
	RoleHost  = "host"
	RoleAdmin = "admin"
)

// Property represents a listed rental property. Price is in minor currency
// units per pricing period.
type Property struct {
	ID             int64         `db:"id" json:"id"`
	HostID         int64         `db:"host_id" json:"host_id"`
	Title          string        `db:"title" json:"title"`
	Description    string        `db:"description" json:"description,omitempty"`
	Price          int64         `db:"price" json:"price"`
	PricingPeriod  PricingPeriod `db:"pricing_period" json:"pricing_period"`
	AvailableFrom  *time.Time    `db:"available_from" json:"available_from,omitempty"`
	AvailableUntil *time.Time    `db:"available_until" json:"available_until,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// Booking represents a guest's reservation of a property for the half-open
// interval [StartDate, EndDate).
type Booking struct {
	ID            int64         `db:"id" json:"id"`
	PropertyID    int64         `db:"property_id" json:"property_id"`
	GuestID       int64         `db:"guest_id" json:"guest_id"`
	GuestEmail    string        `db:"guest_email" json:"guest_email,omitempty"`
	StartDate     time.Time     `db:"start_date" json:"start_date"`
	EndDate       time.Time     `db:"end_date" json:"end_date"`
	TotalPrice    int64         `db:"total_price" json:"total_price"`
	PaymentStatus PaymentState  `db:"payment_status" json:"payment_status"`
	Status        BookingStatus `db:"status" json:"status"`
	CheckoutRef   string        `db:"checkout_ref" json:"checkout_ref,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// BookedDateRange is the denormalized projection of a booking's dates, kept so
// conflict queries hit a small indexed table instead of scanning bookings.
// Exactly one row exists per booking (unique booking_id) and its status and
// dates must mirror the owning booking's.
type BookedDateRange struct {
	ID         int64         `db:"id" json:"id"`
	PropertyID int64         `db:"property_id" json:"property_id"`
	BookingID  int64         `db:"booking_id" json:"booking_id"`
	StartDate  time.Time     `db:"start_date" json:"start_date"`
	EndDate    time.Time     `db:"end_date" json:"end_date"`
	Status     BookingStatus `db:"status" json:"status"`
}

// Payment records a confirmed charge from the checkout provider. ProviderRef is
// unique and doubles as the idempotency key for duplicate webhook deliveries.
type Payment struct {
	ID          int64     `db:"id" json:"id"`
	BookingID   int64     `db:"booking_id" json:"booking_id"`
	ProviderRef string    `db:"provider_ref" json:"provider_ref"`
	Amount      int64     `db:"amount" json:"amount"`
	Currency    string    `db:"currency" json:"currency"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Payment record statuses
const (
	PaymentRecordSucceeded = "SUCCEEDED"
)

// ProcessedEvent for webhook idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
