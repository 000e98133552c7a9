package service

import (
	"context"
	"testing"

	"rental-service/internal/apperr"
	"rental-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func i64Ptr(n int64) *int64   { return &n }

func TestCreatePropertyValidatesPeriodAndWindow(t *testing.T) {
	store := newFakeStore()
	svc := NewPropertyService(store)
	ctx := context.Background()

	_, err := svc.Create(ctx, host(), &CreatePropertyRequest{
		Title: "Cabin", Price: 100, PricingPeriod: "hourly",
	})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = svc.Create(ctx, host(), &CreatePropertyRequest{
		Title: "Cabin", Price: 100, PricingPeriod: "nightly",
		AvailableFrom: "2026-10-10", AvailableUntil: "2026-10-01",
	})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	p, err := svc.Create(ctx, host(), &CreatePropertyRequest{
		Title: "Cabin", Price: 100, PricingPeriod: "nightly",
	})
	require.NoError(t, err)
	assert.Equal(t, hostID, p.HostID)
	assert.Equal(t, models.PeriodNightly, p.PricingPeriod)
}

func TestUpdatePropertyOwnerOnly(t *testing.T) {
	f := newBookingFixture(t)
	svc := NewPropertyService(f.store)
	ctx := context.Background()

	_, err := svc.Update(ctx, guest(), f.property.ID,
		&UpdatePropertyRequest{Title: strPtr("New title")})
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	p, err := svc.Update(ctx, host(), f.property.ID,
		&UpdatePropertyRequest{Title: strPtr("New title")})
	require.NoError(t, err)
	assert.Equal(t, "New title", p.Title)
}

func TestUpdatePropertyPricingFrozenWhileBooked(t *testing.T) {
	f := newBookingFixture(t)
	svc := NewPropertyService(f.store)
	ctx := context.Background()

	_, err := f.svc.RequestBooking(ctx, guest(), stayRequest(f, "2026-10-01", "2026-10-04"))
	require.NoError(t, err)

	_, err = svc.Update(ctx, host(), f.property.ID,
		&UpdatePropertyRequest{Price: i64Ptr(200)})
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	// Title edits stay possible while booked.
	_, err = svc.Update(ctx, host(), f.property.ID,
		&UpdatePropertyRequest{Title: strPtr("Still editable")})
	assert.NoError(t, err)
}

func TestUpdatePropertyPricingAllowedAfterCancellation(t *testing.T) {
	f := newBookingFixture(t)
	svc := NewPropertyService(f.store)
	ctx := context.Background()

	b, err := f.svc.RequestBooking(ctx, guest(), stayRequest(f, "2026-10-01", "2026-10-04"))
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, guest(), b.ID)
	require.NoError(t, err)

	p, err := svc.Update(ctx, host(), f.property.ID,
		&UpdatePropertyRequest{Price: i64Ptr(200)})
	require.NoError(t, err)
	assert.Equal(t, int64(200), p.Price)
}
