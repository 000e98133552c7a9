package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"rental-service/internal/apperr"
	"rental-service/internal/booking"
	"rental-service/internal/models"
)

// blockingSet is the SQL literal for the statuses whose ranges reserve dates,
// derived from the lifecycle table so the two can't drift.
var blockingSet = func() string {
	statuses := booking.BlockingStatuses()
	quoted := make([]string, len(statuses))
	for i, s := range statuses {
		quoted[i] = "'" + string(s) + "'"
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}()

// CreateBookingWithRange inserts a booking and its projection row in one
// transaction. The range insert is conditional on no overlapping blocking
// range existing for the property, so the conflict check and the write are a
// single atomic step; the schema's exclusion constraint backstops the rare
// race between two concurrent transactions.
func (s *Store) CreateBookingWithRange(ctx context.Context, b *models.Booking) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO bookings (property_id, guest_id, guest_email, start_date, end_date, total_price, payment_status, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	if err := tx.GetContext(ctx, b, query,
		b.PropertyID, b.GuestID, b.GuestEmail, b.StartDate, b.EndDate,
		b.TotalPrice, b.PaymentStatus, b.Status); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO booked_date_ranges (property_id, booking_id, start_date, end_date, status)
		SELECT $1, $2, $3, $4, $5
		WHERE NOT EXISTS (
			SELECT 1 FROM booked_date_ranges
			WHERE property_id = $1 AND status IN `+blockingSet+`
			  AND start_date < $4 AND $3 < end_date)`,
		b.PropertyID, b.ID, b.StartDate, b.EndDate, b.Status)
	if err != nil {
		return asConflict(err, "requested dates overlap an existing booking")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.Conflict("requested dates overlap an existing booking")
	}

	return tx.Commit()
}

// HasBookingConflict reports whether any blocking range on the property
// overlaps [start, end), ignoring excludeBookingID's own range (pass 0 to
// exclude nothing).
func (s *Store) HasBookingConflict(ctx context.Context, propertyID int64, start, end time.Time, excludeBookingID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM booked_date_ranges
			WHERE property_id = $1 AND booking_id <> $2
			  AND status IN `+blockingSet+`
			  AND start_date < $4 AND $3 < end_date)`,
		propertyID, excludeBookingID, start, end)
	return exists, err
}

// GetBookingByID retrieves a booking by ID
func (s *Store) GetBookingByID(ctx context.Context, id int64) (*models.Booking, error) {
	var b models.Booking
	err := s.db.GetContext(ctx, &b, "SELECT * FROM bookings WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("booking not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBookingsByGuest retrieves bookings made by a guest
func (s *Store) ListBookingsByGuest(ctx context.Context, guestID int64) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.db.SelectContext(ctx, &bookings,
		"SELECT * FROM bookings WHERE guest_id = $1 ORDER BY created_at DESC", guestID)
	return bookings, err
}

// ListBookingsByProperty retrieves bookings for a property
func (s *Store) ListBookingsByProperty(ctx context.Context, propertyID int64) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.db.SelectContext(ctx, &bookings,
		"SELECT * FROM bookings WHERE property_id = $1 ORDER BY start_date", propertyID)
	return bookings, err
}

// UpdateBookingStatus updates a booking's lifecycle status
func (s *Store) UpdateBookingStatus(ctx context.Context, bookingID int64, status models.BookingStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE bookings SET status = $1, updated_at = NOW() WHERE id = $2",
		status, bookingID)
	if err != nil {
		return err
	}
	return requireRow(res, "booking", bookingID)
}

// SetBookingCancelled marks a booking cancelled with the given payment state,
// retaining the row (soft cancel of a committed booking).
func (s *Store) SetBookingCancelled(ctx context.Context, bookingID int64, status models.BookingStatus, payment models.PaymentState) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE bookings SET status = $1, payment_status = $2, updated_at = NOW() WHERE id = $3",
		status, payment, bookingID)
	if err != nil {
		return err
	}
	return requireRow(res, "booking", bookingID)
}

// SetBookingPaid marks a booking paid and host-confirmed in one statement, the
// terminal step of a successful checkout.
func (s *Store) SetBookingPaid(ctx context.Context, bookingID int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE bookings SET payment_status = $1, status = $2, updated_at = NOW() WHERE id = $3",
		models.PaymentPaid, models.StatusConfirmedByHost, bookingID)
	if err != nil {
		return err
	}
	return requireRow(res, "booking", bookingID)
}

// SetBookingPaymentFailed marks a booking's payment as failed
func (s *Store) SetBookingPaymentFailed(ctx context.Context, bookingID int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE bookings SET payment_status = $1, updated_at = NOW() WHERE id = $2",
		models.PaymentFailed, bookingID)
	if err != nil {
		return err
	}
	return requireRow(res, "booking", bookingID)
}

// SetBookingCheckoutRef records the provider's checkout session reference
func (s *Store) SetBookingCheckoutRef(ctx context.Context, bookingID int64, ref string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE bookings SET checkout_ref = $1, updated_at = NOW() WHERE id = $2",
		ref, bookingID)
	if err != nil {
		return err
	}
	return requireRow(res, "booking", bookingID)
}

// DeleteBookingWithRange hard-deletes a booking and its projection row in one
// transaction. Used when a not-yet-committed booking is cancelled.
func (s *Store) DeleteBookingWithRange(ctx context.Context, bookingID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM booked_date_ranges WHERE booking_id = $1", bookingID); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM bookings WHERE id = $1", bookingID)
	if err != nil {
		return err
	}
	if err := requireRow(res, "booking", bookingID); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateBookingDatesWithRange updates a booking's dates and price together
// with its projection row. Returns rangeUpdated=false (with a nil error) when
// the projection row is missing, so callers can log the inconsistency without
// failing the edit.
func (s *Store) UpdateBookingDatesWithRange(ctx context.Context, bookingID int64, start, end time.Time, totalPrice int64) (rangeUpdated bool, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE bookings SET start_date = $1, end_date = $2, total_price = $3, updated_at = NOW() WHERE id = $4",
		start, end, totalPrice, bookingID)
	if err != nil {
		return false, err
	}
	if err := requireRow(res, "booking", bookingID); err != nil {
		return false, err
	}

	res, err = tx.ExecContext(ctx,
		"UPDATE booked_date_ranges SET start_date = $1, end_date = $2 WHERE booking_id = $3",
		start, end, bookingID)
	if err != nil {
		return false, asConflict(err, "edited dates overlap an existing booking")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, tx.Commit()
}

// GetRangeByBookingID retrieves the projection row for a booking
func (s *Store) GetRangeByBookingID(ctx context.Context, bookingID int64) (*models.BookedDateRange, error) {
	var r models.BookedDateRange
	err := s.db.GetContext(ctx, &r,
		"SELECT * FROM booked_date_ranges WHERE booking_id = $1", bookingID)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("booked range not found for booking: %d", bookingID)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRange inserts a projection row. Used on the defensive recreate path;
// normal creation happens inside CreateBookingWithRange.
func (s *Store) CreateRange(ctx context.Context, r *models.BookedDateRange) error {
	err := s.db.GetContext(ctx, &r.ID, `
		INSERT INTO booked_date_ranges (property_id, booking_id, start_date, end_date, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		r.PropertyID, r.BookingID, r.StartDate, r.EndDate, r.Status)
	if err != nil {
		return asConflict(err, "range already exists or overlaps an existing booking")
	}
	return nil
}

// UpdateRangeStatus updates a projection row's status to mirror its booking
func (s *Store) UpdateRangeStatus(ctx context.Context, bookingID int64, status models.BookingStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE booked_date_ranges SET status = $1 WHERE booking_id = $2",
		status, bookingID)
	if err != nil {
		return err
	}
	return requireRow(res, "booked range", bookingID)
}

// DeleteRangeByBookingID removes a booking's projection row, freeing its dates
func (s *Store) DeleteRangeByBookingID(ctx context.Context, bookingID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM booked_date_ranges WHERE booking_id = $1", bookingID)
	if err != nil {
		return err
	}
	return requireRow(res, "booked range", bookingID)
}

// CreatePayment records a confirmed charge. The unique provider_ref makes a
// duplicate webhook delivery surface as a conflict instead of a second row.
func (s *Store) CreatePayment(ctx context.Context, p *models.Payment) error {
	query := `
		INSERT INTO payments (booking_id, provider_ref, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := s.db.GetContext(ctx, p, query,
		p.BookingID, p.ProviderRef, p.Amount, p.Currency, p.Status)
	if err != nil {
		return asConflict(err, "payment already recorded for provider reference "+p.ProviderRef)
	}
	return nil
}

// GetPaymentByProviderRef retrieves a payment by provider reference, returning
// (nil, nil) when absent.
func (s *Store) GetPaymentByProviderRef(ctx context.Context, ref string) (*models.Payment, error) {
	var p models.Payment
	err := s.db.GetContext(ctx, &p, "SELECT * FROM payments WHERE provider_ref = $1", ref)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// IsEventProcessed checks if a webhook event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks a webhook event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}

// requireRow converts a zero-rows-affected result into a not-found error.
func requireRow(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("%s not found: %d", what, id)
	}
	return nil
}
