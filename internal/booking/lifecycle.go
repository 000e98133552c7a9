package booking

import (
	"rental-service/internal/apperr"
	"rental-service/internal/models"
)

// blockingStatuses are the lifecycle states whose date ranges reserve the
// property. Only these participate in conflict checks.
var blockingStatuses = map[models.BookingStatus]bool{
	models.StatusPendingPayment:      true,
	models.StatusPendingConfirmation: true,
	models.StatusConfirmedByHost:     true,
}

// BlockingStatuses returns the blocking set in a stable order, for SQL IN
// clauses.
func BlockingStatuses() []models.BookingStatus {
	return []models.BookingStatus{
		models.StatusPendingPayment,
		models.StatusPendingConfirmation,
		models.StatusConfirmedByHost,
	}
}

// IsBlocking reports whether a booking in the given status reserves its dates.
func IsBlocking(s models.BookingStatus) bool {
	return blockingStatuses[s]
}

// IsTerminal reports whether the status accepts no further transitions.
func IsTerminal(s models.BookingStatus) bool {
	switch s {
	case models.StatusRejectedByHost,
		models.StatusCancelledByGuest,
		models.StatusCancelledByAdmin,
		models.StatusCompleted,
		models.StatusNoShow:
		return true
	}
	return false
}

// transitions is the legal state-machine table. Hard deletion of a
// not-yet-committed booking is not a transition and is handled separately.
var transitions = map[models.BookingStatus][]models.BookingStatus{
	models.StatusPendingConfirmation: {
		models.StatusConfirmedByHost,
		models.StatusRejectedByHost,
	},
	models.StatusPendingPayment: {
		models.StatusConfirmedByHost, // payment-success webhook
	},
	models.StatusConfirmedByHost: {
		models.StatusCancelledByGuest,
		models.StatusCancelledByAdmin,
		models.StatusCompleted,
		models.StatusNoShow,
	},
}

// CanTransition reports whether from -> to is a legal lifecycle transition.
func CanTransition(from, to models.BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates from -> to and returns a conflict error naming the
// current state when the move is illegal. It never mutates anything itself;
// callers persist the new status only after a nil return.
func Transition(from, to models.BookingStatus) error {
	if !CanTransition(from, to) {
		return apperr.Conflict("cannot transition booking from %q to %q", from, to)
	}
	return nil
}
