package service

import (
	"context"
	"fmt"
	"time"

	"rental-service/internal/apperr"
	"rental-service/internal/booking"
	"rental-service/internal/models"
	"rental-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	propertyLockTTL    = 10 * time.Second
	checkoutSessionTTL = 30 * time.Minute
	dateLayout         = "2006-01-02"
)

// BookingService handles the booking lifecycle: creation through both entry
// paths, host confirmation, cancellation and admin date edits.
type BookingService struct {
	store     Datastore
	locker    Locker
	publisher Publisher
	checkout  CheckoutProvider
	sessions  EventCache
	ranges    RangeSynchronizer
	currency  string
	logger    *zap.Logger
}

// NewBookingService creates a new booking service
func NewBookingService(
	store Datastore,
	locker Locker,
	publisher Publisher,
	checkout CheckoutProvider,
	sessions EventCache,
	ranges RangeSynchronizer,
	currency string,
) *BookingService {
	return &BookingService{
		store:     store,
		locker:    locker,
		publisher: publisher,
		checkout:  checkout,
		sessions:  sessions,
		ranges:    ranges,
		currency:  currency,
		logger:    util.GetLogger(),
	}
}

// CreateBookingRequest is the payload for both booking entry paths.
type CreateBookingRequest struct {
	PropertyID int64  `json:"property_id" binding:"required"`
	StartDate  string `json:"start_date" binding:"required"`
	EndDate    string `json:"end_date" binding:"required"`
	GuestEmail string `json:"guest_email" binding:"omitempty,email"`
}

// EditDatesRequest is the admin payload for moving a booking's dates.
type EditDatesRequest struct {
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
}

// CancelResult tells the caller whether the booking was removed outright
// (nothing had been committed yet) or retained in a cancelled state.
type CancelResult struct {
	Deleted bool            `json:"deleted"`
	Booking *models.Booking `json:"booking,omitempty"`
}

// RequestBooking creates a direct booking request, entering the lifecycle at
// pending_confirmation.
func (s *BookingService) RequestBooking(ctx context.Context, caller Caller, req *CreateBookingRequest) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.RequestBooking")
	defer span.End()

	return s.createBooking(ctx, caller, req, models.StatusPendingConfirmation)
}

// InitiateCheckout creates a booking through the payment-first path
// (pending_payment) and opens a hosted checkout session for it. A provider
// failure rolls back the just-created booking and its range so no orphan
// blocks the dates.
func (s *BookingService) InitiateCheckout(ctx context.Context, caller Caller, req *CreateBookingRequest) (*models.Booking, *CheckoutSession, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.InitiateCheckout")
	defer span.End()

	b, err := s.createBooking(ctx, caller, req, models.StatusPendingPayment)
	if err != nil {
		return nil, nil, err
	}

	session, err := s.checkout.CreateSession(ctx, &CheckoutSessionRequest{
		BookingID:   b.ID,
		Description: fmt.Sprintf("Stay %s to %s", b.StartDate.Format(dateLayout), b.EndDate.Format(dateLayout)),
		Amount:      b.TotalPrice,
		Currency:    s.currency,
	})
	if err != nil {
		if delErr := s.store.DeleteBookingWithRange(ctx, b.ID); delErr != nil {
			s.logger.Error("Failed to roll back booking after checkout failure",
				zap.Int64("booking_id", b.ID),
				zap.Error(delErr))
		}
		util.BookingsFailedTotal.WithLabelValues("checkout_session").Inc()
		return nil, nil, apperr.Upstream(err, "failed to create checkout session")
	}

	if err := s.store.SetBookingCheckoutRef(ctx, b.ID, session.ID); err != nil {
		s.logger.Error("Failed to record checkout session ref",
			zap.Int64("booking_id", b.ID),
			zap.Error(err))
	}
	b.CheckoutRef = session.ID

	if err := s.sessions.CacheCheckoutSession(ctx, b.ID, session.ID, checkoutSessionTTL); err != nil {
		s.logger.Warn("Failed to cache checkout session", zap.Error(err))
	}

	util.CheckoutSessionsTotal.Inc()
	return b, session, nil
}

// createBooking validates the request and inserts the booking together with
// its projection row as one atomic conditional write.
func (s *BookingService) createBooking(ctx context.Context, caller Caller, req *CreateBookingRequest, initial models.BookingStatus) (*models.Booking, error) {
	start, end, err := parseStay(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	prop, err := s.store.GetPropertyByID(ctx, req.PropertyID)
	if err != nil {
		return nil, err
	}
	if prop.HostID == caller.UserID {
		return nil, apperr.Validation("property_id", "cannot book your own property")
	}
	if err := checkAvailabilityWindow(prop, start, end); err != nil {
		return nil, err
	}

	total, err := booking.ComputePrice(prop.Price, prop.PricingPeriod, start, end)
	if err != nil {
		return nil, err
	}

	lockKey := fmt.Sprintf("property:%d", prop.ID)
	acquired, err := s.locker.AcquireLock(ctx, lockKey, propertyLockTTL)
	if err != nil {
		s.logger.Warn("Property lock unavailable, relying on conditional insert", zap.Error(err))
	} else if !acquired {
		return nil, apperr.Conflict("property %d is being booked, retry shortly", prop.ID)
	} else {
		defer func() {
			if err := s.locker.ReleaseLock(ctx, lockKey); err != nil {
				s.logger.Warn("Failed to release property lock", zap.Error(err))
			}
		}()
	}

	b := &models.Booking{
		PropertyID:    prop.ID,
		GuestID:       caller.UserID,
		GuestEmail:    req.GuestEmail,
		StartDate:     start,
		EndDate:       end,
		TotalPrice:    total,
		PaymentStatus: models.PaymentPending,
		Status:        initial,
	}

	if err := s.store.CreateBookingWithRange(ctx, b); err != nil {
		if apperr.IsKind(err, apperr.KindConflict) {
			util.BookingConflictsTotal.Inc()
			return nil, err
		}
		util.BookingsFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	util.BookingsCreatedTotal.WithLabelValues(string(initial)).Inc()
	s.logger.Info("Booking created",
		zap.Int64("booking_id", b.ID),
		zap.Int64("property_id", prop.ID),
		zap.String("status", string(initial)))

	event := &models.BookingRequestedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeBookingRequested),
		BookingID:  b.ID,
		PropertyID: b.PropertyID,
		GuestID:    b.GuestID,
		GuestEmail: b.GuestEmail,
		StartDate:  b.StartDate,
		EndDate:    b.EndDate,
		TotalPrice: b.TotalPrice,
		Status:     string(b.Status),
	}
	if err := s.publisher.PublishBookingRequested(ctx, event); err != nil {
		s.logger.Error("Failed to publish BookingRequested event", zap.Error(err))
	}

	return b, nil
}

// Confirm moves a pending_confirmation booking to confirmed_by_host. Host or
// admin only; any other current state is a conflict and changes nothing.
func (s *BookingService) Confirm(ctx context.Context, caller Caller, bookingID int64) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.Confirm")
	defer span.End()

	b, err := s.hostActionBooking(ctx, caller, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != models.StatusPendingConfirmation {
		return nil, apperr.Conflict("cannot confirm booking in state %q", b.Status)
	}

	if err := s.store.UpdateBookingStatus(ctx, b.ID, models.StatusConfirmedByHost); err != nil {
		return nil, err
	}
	if err := s.ranges.SyncStatus(ctx, b.ID, models.StatusConfirmedByHost); err != nil {
		return nil, err
	}
	b.Status = models.StatusConfirmedByHost

	util.BookingsConfirmedTotal.Inc()

	event := &models.BookingConfirmedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeBookingConfirmed),
		BookingID:  b.ID,
		PropertyID: b.PropertyID,
		GuestID:    b.GuestID,
		GuestEmail: b.GuestEmail,
	}
	if err := s.publisher.PublishBookingConfirmed(ctx, event); err != nil {
		s.logger.Error("Failed to publish BookingConfirmed event", zap.Error(err))
	}

	return b, nil
}

// Reject moves a pending_confirmation booking to rejected_by_host. The range
// row is kept with the mirrored status; rejected ranges never block dates.
func (s *BookingService) Reject(ctx context.Context, caller Caller, bookingID int64) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.Reject")
	defer span.End()

	b, err := s.hostActionBooking(ctx, caller, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != models.StatusPendingConfirmation {
		return nil, apperr.Conflict("cannot reject booking in state %q", b.Status)
	}

	if err := s.store.UpdateBookingStatus(ctx, b.ID, models.StatusRejectedByHost); err != nil {
		return nil, err
	}
	if err := s.ranges.SyncStatus(ctx, b.ID, models.StatusRejectedByHost); err != nil {
		return nil, err
	}
	b.Status = models.StatusRejectedByHost

	util.BookingsRejectedTotal.Inc()
	s.publishCancelled(ctx, b, models.EventTypeBookingRejected, "rejected by host")

	return b, nil
}

// Cancel cancels a booking on behalf of its guest or an admin. A booking with
// no payment commitment yet is removed outright together with its range; a
// confirmed booking is retained with a refunded marker and only its range is
// removed, freeing the dates. The payment status re-read here is the guard
// against a cancellation racing a just-completed payment webhook.
func (s *BookingService) Cancel(ctx context.Context, caller Caller, bookingID int64) (*CancelResult, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.Cancel")
	defer span.End()

	b, err := s.store.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.GuestID != caller.UserID && !caller.IsAdmin() {
		return nil, apperr.Forbidden("only the booking guest or an admin may cancel")
	}

	switch {
	case (b.Status == models.StatusPendingConfirmation || b.Status == models.StatusPendingPayment) &&
		b.PaymentStatus != models.PaymentPaid:
		// No payment or commitment yet: hard delete booking and projection.
		if err := s.store.DeleteBookingWithRange(ctx, b.ID); err != nil {
			return nil, err
		}
		util.BookingsCancelledTotal.WithLabelValues("deleted").Inc()
		s.publishCancelled(ctx, b, models.EventTypeBookingCancelled, "cancelled before commitment")
		return &CancelResult{Deleted: true}, nil

	case b.Status == models.StatusConfirmedByHost || b.PaymentStatus == models.PaymentPaid:
		status := models.StatusCancelledByGuest
		if caller.IsAdmin() && b.GuestID != caller.UserID {
			status = models.StatusCancelledByAdmin
		}
		if err := booking.Transition(b.Status, status); err != nil {
			return nil, err
		}
		if err := s.store.SetBookingCancelled(ctx, b.ID, status, models.PaymentRefunded); err != nil {
			return nil, err
		}
		if err := s.ranges.Remove(ctx, b.ID); err != nil {
			return nil, err
		}
		b.Status = status
		b.PaymentStatus = models.PaymentRefunded
		util.BookingsCancelledTotal.WithLabelValues("soft").Inc()
		s.publishCancelled(ctx, b, models.EventTypeBookingCancelled, string(status))
		return &CancelResult{Booking: b}, nil

	default:
		return nil, apperr.Conflict("cannot cancel booking in state %q", b.Status)
	}
}

// Complete marks a confirmed stay as completed after checkout. Host or admin
// only.
func (s *BookingService) Complete(ctx context.Context, caller Caller, bookingID int64) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.Complete")
	defer span.End()

	return s.closeOut(ctx, caller, bookingID, models.StatusCompleted)
}

// MarkNoShow records that the guest never arrived for a confirmed stay. Host
// or admin only.
func (s *BookingService) MarkNoShow(ctx context.Context, caller Caller, bookingID int64) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.MarkNoShow")
	defer span.End()

	return s.closeOut(ctx, caller, bookingID, models.StatusNoShow)
}

// closeOut moves a confirmed booking into a terminal post-stay state. The
// range row is kept with the mirrored status; terminal ranges never block
// dates.
func (s *BookingService) closeOut(ctx context.Context, caller Caller, bookingID int64, to models.BookingStatus) (*models.Booking, error) {
	b, err := s.hostActionBooking(ctx, caller, bookingID)
	if err != nil {
		return nil, err
	}
	if err := booking.Transition(b.Status, to); err != nil {
		return nil, err
	}

	if err := s.store.UpdateBookingStatus(ctx, b.ID, to); err != nil {
		return nil, err
	}
	if err := s.ranges.SyncStatus(ctx, b.ID, to); err != nil {
		return nil, err
	}
	b.Status = to

	util.BookingsClosedTotal.WithLabelValues(string(to)).Inc()
	s.logger.Info("Booking closed out",
		zap.Int64("booking_id", b.ID),
		zap.String("status", string(to)))
	return b, nil
}

// EditDates moves a booking's dates (admin only), re-running the conflict
// check against the new dates while ignoring the booking's own range, and
// recomputing the price. Booking and projection are updated together; a
// missing projection row is logged and tolerated.
func (s *BookingService) EditDates(ctx context.Context, caller Caller, bookingID int64, req *EditDatesRequest) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.EditDates")
	defer span.End()

	if !caller.IsAdmin() {
		return nil, apperr.Forbidden("only admins may edit booking dates")
	}

	b, err := s.store.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsBlocking(b.Status) {
		return nil, apperr.Conflict("cannot edit dates of booking in state %q", b.Status)
	}

	start, end, err := parseStay(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	prop, err := s.store.GetPropertyByID(ctx, b.PropertyID)
	if err != nil {
		return nil, err
	}
	if err := checkAvailabilityWindow(prop, start, end); err != nil {
		return nil, err
	}

	total, err := booking.ComputePrice(prop.Price, prop.PricingPeriod, start, end)
	if err != nil {
		return nil, err
	}

	lockKey := fmt.Sprintf("property:%d", prop.ID)
	if acquired, err := s.locker.AcquireLock(ctx, lockKey, propertyLockTTL); err == nil && acquired {
		defer func() {
			if err := s.locker.ReleaseLock(ctx, lockKey); err != nil {
				s.logger.Warn("Failed to release property lock", zap.Error(err))
			}
		}()
	}

	conflict, err := s.store.HasBookingConflict(ctx, b.PropertyID, start, end, b.ID)
	if err != nil {
		return nil, err
	}
	if conflict {
		util.BookingConflictsTotal.Inc()
		return nil, apperr.Conflict("edited dates overlap an existing booking")
	}

	rangeUpdated, err := s.store.UpdateBookingDatesWithRange(ctx, b.ID, start, end, total)
	if err != nil {
		return nil, err
	}
	if !rangeUpdated {
		util.ProjectionAnomaliesTotal.WithLabelValues("edit_dates").Inc()
		s.logger.Warn("Booked range projection row missing during date edit",
			zap.Int64("booking_id", b.ID))
	}

	b.StartDate, b.EndDate, b.TotalPrice = start, end, total
	return b, nil
}

// CheckoutSessionRef returns the provider session reference for a booking's
// in-flight checkout, so a guest can resume payment on reload. Prefers the
// cached value and falls back to the persisted reference.
func (s *BookingService) CheckoutSessionRef(ctx context.Context, caller Caller, bookingID int64) (string, error) {
	b, err := s.GetBooking(ctx, caller, bookingID)
	if err != nil {
		return "", err
	}
	if b.Status != models.StatusPendingPayment {
		return "", apperr.Conflict("booking %d has no checkout in progress", bookingID)
	}

	if ref, err := s.sessions.GetCheckoutSession(ctx, b.ID); err == nil && ref != "" {
		return ref, nil
	}
	if b.CheckoutRef == "" {
		return "", apperr.NotFound("no checkout session recorded for booking %d", bookingID)
	}
	return b.CheckoutRef, nil
}

// GetBooking retrieves a booking, visible to its guest, the property host and
// admins.
func (s *BookingService) GetBooking(ctx context.Context, caller Caller, bookingID int64) (*models.Booking, error) {
	b, err := s.store.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.GuestID == caller.UserID || caller.IsAdmin() {
		return b, nil
	}
	prop, err := s.store.GetPropertyByID(ctx, b.PropertyID)
	if err != nil {
		return nil, err
	}
	if prop.HostID != caller.UserID {
		return nil, apperr.Forbidden("not authorized to view this booking")
	}
	return b, nil
}

// ListGuestBookings lists the caller's own bookings.
func (s *BookingService) ListGuestBookings(ctx context.Context, caller Caller) ([]models.Booking, error) {
	return s.store.ListBookingsByGuest(ctx, caller.UserID)
}

// ListPropertyBookings lists bookings on a property for its host or an admin.
func (s *BookingService) ListPropertyBookings(ctx context.Context, caller Caller, propertyID int64) ([]models.Booking, error) {
	prop, err := s.store.GetPropertyByID(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if prop.HostID != caller.UserID && !caller.IsAdmin() {
		return nil, apperr.Forbidden("not authorized to list bookings for this property")
	}
	return s.store.ListBookingsByProperty(ctx, propertyID)
}

func (s *BookingService) hostActionBooking(ctx context.Context, caller Caller, bookingID int64) (*models.Booking, error) {
	b, err := s.store.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	prop, err := s.store.GetPropertyByID(ctx, b.PropertyID)
	if err != nil {
		return nil, err
	}
	if prop.HostID != caller.UserID && !caller.IsAdmin() {
		return nil, apperr.Forbidden("only the property host or an admin may do this")
	}
	return b, nil
}

func (s *BookingService) publishCancelled(ctx context.Context, b *models.Booking, eventType, reason string) {
	event := &models.BookingCancelledEvent{
		BaseEvent:  newBaseEvent(eventType),
		BookingID:  b.ID,
		PropertyID: b.PropertyID,
		GuestID:    b.GuestID,
		GuestEmail: b.GuestEmail,
		Reason:     reason,
	}
	if err := s.publisher.PublishBookingCancelled(ctx, event); err != nil {
		s.logger.Error("Failed to publish cancellation event", zap.Error(err))
	}
}

// parseStay parses and normalizes a [start,end) stay. end may equal start
// (same-day nightly booking); end before start is a validation error.
func parseStay(startStr, endStr string) (start, end time.Time, err error) {
	start, err = time.Parse(dateLayout, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Validation("start_date", "must be a YYYY-MM-DD date")
	}
	end, err = time.Parse(dateLayout, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Validation("end_date", "must be a YYYY-MM-DD date")
	}
	start, end = booking.NormalizeDay(start), booking.NormalizeDay(end)
	if end.Before(start) {
		return time.Time{}, time.Time{}, apperr.Validation("end_date", "end date precedes start date")
	}
	return start, end, nil
}

// checkAvailabilityWindow validates the stay against the property's optional
// availability window.
func checkAvailabilityWindow(prop *models.Property, start, end time.Time) error {
	if prop.AvailableFrom != nil && start.Before(booking.NormalizeDay(*prop.AvailableFrom)) {
		return apperr.Validation("start_date", "property is not yet available on this date")
	}
	if prop.AvailableUntil != nil && end.After(booking.NormalizeDay(*prop.AvailableUntil)) {
		return apperr.Validation("end_date", "property is no longer available on this date")
	}
	return nil
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}
