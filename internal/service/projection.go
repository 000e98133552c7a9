package service

import (
	"context"

	"rental-service/internal/apperr"
	"rental-service/internal/models"
	"rental-service/internal/util"

	"go.uber.org/zap"
)

// RangeSynchronizer is the single mutator of the booked_date_ranges projection
// after booking creation. Every code path that changes booking state goes
// through it, so overlap queries never see stale rows.
//
// A missing projection row is a consistency anomaly: it is logged and counted,
// and the operation proceeds best-effort rather than failing. The booking
// record itself is never corrupted on that path.
type RangeSynchronizer interface {
	// SyncStatus mirrors a booking's new lifecycle status onto its range.
	SyncStatus(ctx context.Context, bookingID int64, status models.BookingStatus) error
	// Remove deletes a booking's range, freeing its dates.
	Remove(ctx context.Context, bookingID int64) error
	// EnsureConfirmed marks the range confirmed, recreating it from the
	// booking if it is unexpectedly absent (webhook recovery fallback).
	EnsureConfirmed(ctx context.Context, b *models.Booking) error
}

type rangeSync struct {
	store  Datastore
	logger *zap.Logger
}

// NewRangeSynchronizer creates the projection synchronizer
func NewRangeSynchronizer(store Datastore) RangeSynchronizer {
	return &rangeSync{store: store, logger: util.GetLogger()}
}

func (rs *rangeSync) SyncStatus(ctx context.Context, bookingID int64, status models.BookingStatus) error {
	err := rs.store.UpdateRangeStatus(ctx, bookingID, status)
	if apperr.IsKind(err, apperr.KindNotFound) {
		rs.anomaly("sync_status", bookingID)
		return nil
	}
	return err
}

func (rs *rangeSync) Remove(ctx context.Context, bookingID int64) error {
	err := rs.store.DeleteRangeByBookingID(ctx, bookingID)
	if apperr.IsKind(err, apperr.KindNotFound) {
		rs.anomaly("remove", bookingID)
		return nil
	}
	return err
}

func (rs *rangeSync) EnsureConfirmed(ctx context.Context, b *models.Booking) error {
	err := rs.store.UpdateRangeStatus(ctx, b.ID, models.StatusConfirmedByHost)
	if err == nil {
		return nil
	}
	if !apperr.IsKind(err, apperr.KindNotFound) {
		return err
	}

	// Recovery fallback, not the common case: some earlier path mutated the
	// booking without its projection. Rebuild the row from the booking.
	rs.anomaly("ensure_confirmed", b.ID)
	util.ProjectionRepairsTotal.Inc()

	return rs.store.CreateRange(ctx, &models.BookedDateRange{
		PropertyID: b.PropertyID,
		BookingID:  b.ID,
		StartDate:  b.StartDate,
		EndDate:    b.EndDate,
		Status:     models.StatusConfirmedByHost,
	})
}

func (rs *rangeSync) anomaly(op string, bookingID int64) {
	util.ProjectionAnomaliesTotal.WithLabelValues(op).Inc()
	rs.logger.Warn("Booked range projection row missing",
		zap.String("op", op),
		zap.Int64("booking_id", bookingID))
}
