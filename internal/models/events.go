package models

import "time"

// Event types
const (
	EventTypeBookingRequested = "BOOKING_REQUESTED"
	EventTypeBookingConfirmed = "BOOKING_CONFIRMED"
	EventTypeBookingRejected  = "BOOKING_REJECTED"
	EventTypeBookingCancelled = "BOOKING_CANCELLED"
	EventTypePaymentConfirmed = "PAYMENT_CONFIRMED"
	EventTypePaymentFailed    = "PAYMENT_FAILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// BookingRequestedEvent published when a booking enters the system through
// either entry path (direct request or payment-first checkout).
type BookingRequestedEvent struct {
	BaseEvent
	BookingID  int64     `json:"booking_id"`
	PropertyID int64     `json:"property_id"`
	GuestID    int64     `json:"guest_id"`
	GuestEmail string    `json:"guest_email,omitempty"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	TotalPrice int64     `json:"total_price"`
	Status     string    `json:"status"`
}

// BookingConfirmedEvent published when the host confirms a booking request.
type BookingConfirmedEvent struct {
	BaseEvent
	BookingID  int64  `json:"booking_id"`
	PropertyID int64  `json:"property_id"`
	GuestID    int64  `json:"guest_id"`
	GuestEmail string `json:"guest_email,omitempty"`
}

// BookingCancelledEvent published when a booking is cancelled or rejected.
type BookingCancelledEvent struct {
	BaseEvent
	BookingID  int64  `json:"booking_id"`
	PropertyID int64  `json:"property_id"`
	GuestID    int64  `json:"guest_id"`
	GuestEmail string `json:"guest_email,omitempty"`
	Reason     string `json:"reason"`
}

// PaymentConfirmedEvent published after a checkout-completed webhook is applied.
type PaymentConfirmedEvent struct {
	BaseEvent
	BookingID   int64  `json:"booking_id"`
	PaymentID   int64  `json:"payment_id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	ProviderRef string `json:"provider_ref"`
	GuestEmail  string `json:"guest_email,omitempty"`
}

// PaymentFailedEvent published after an async-payment-failed webhook is applied.
type PaymentFailedEvent struct {
	BaseEvent
	BookingID  int64  `json:"booking_id"`
	GuestEmail string `json:"guest_email,omitempty"`
	Reason     string `json:"reason"`
}
