package service

import (
	"context"
	"fmt"
	"testing"

	"rental-service/internal/apperr"
	"rental-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type webhookFixture struct {
	*bookingFixture
	webhooks *WebhookService
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	bf := newBookingFixture(t)
	return &webhookFixture{
		bookingFixture: bf,
		webhooks:       NewWebhookService(bf.store, NewRangeSynchronizer(bf.store), bf.publisher, bf.cache),
	}
}

func (f *webhookFixture) pendingPaymentBooking(t *testing.T) *models.Booking {
	t.Helper()
	b, _, err := f.svc.InitiateCheckout(context.Background(), guest(),
		stayRequest(f.bookingFixture, "2026-10-01", "2026-10-04"))
	require.NoError(t, err)
	return b
}

func completedEvent(id string, bookingID int64) *CheckoutEvent {
	return &CheckoutEvent{
		ID:   id,
		Type: EventCheckoutCompleted,
		Data: CheckoutEventData{
			BookingID:  bookingID,
			PaymentRef: "pay_" + id,
			Amount:     300,
			Currency:   "USD",
		},
	}
}

func TestCheckoutCompletedConfirmsBooking(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	b := f.pendingPaymentBooking(t)

	require.NoError(t, f.webhooks.HandleEvent(ctx, completedEvent("evt_1", b.ID)))

	stored, err := f.store.GetBookingByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, stored.PaymentStatus)
	assert.Equal(t, models.StatusConfirmedByHost, stored.Status)

	r, err := f.store.GetRangeByBookingID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmedByHost, r.Status)

	assert.Len(t, f.store.payments, 1)
	assert.Contains(t, f.publisher.published(), models.EventTypePaymentConfirmed)
}

func TestCheckoutCompletedIsIdempotent(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	b := f.pendingPaymentBooking(t)

	evt := completedEvent("evt_1", b.ID)
	require.NoError(t, f.webhooks.HandleEvent(ctx, evt))
	require.NoError(t, f.webhooks.HandleEvent(ctx, evt))
	require.NoError(t, f.webhooks.HandleEvent(ctx, evt))

	assert.Len(t, f.store.payments, 1)

	stored, err := f.store.GetBookingByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, stored.PaymentStatus)
	assert.Equal(t, models.StatusConfirmedByHost, stored.Status)

	// Exactly one PaymentConfirmed left the building.
	confirmed := 0
	for _, e := range f.publisher.published() {
		if e == models.EventTypePaymentConfirmed {
			confirmed++
		}
	}
	assert.Equal(t, 1, confirmed)
}

func TestCheckoutCompletedDedupsByPaymentRefWithoutCache(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	b := f.pendingPaymentBooking(t)

	require.NoError(t, f.webhooks.HandleEvent(ctx, completedEvent("evt_1", b.ID)))

	// Same charge redelivered under a fresh event id, with both the cache and
	// the processed-events table missing the original: the unique payment
	// reference is the last line of defense.
	f.cache.seen = map[string]bool{}
	f.store.processed = map[string]bool{}
	f.store.bookings[b.ID].PaymentStatus = models.PaymentPending

	dup := completedEvent("evt_2", b.ID)
	dup.Data.PaymentRef = "pay_evt_1"
	require.NoError(t, f.webhooks.HandleEvent(ctx, dup))

	assert.Len(t, f.store.payments, 1)
}

// flakyStore fails SetBookingPaid a set number of times, simulating a crash
// between the payment insert and the booking update.
type flakyStore struct {
	*fakeStore
	paidFailures int
}

func (f *flakyStore) SetBookingPaid(ctx context.Context, bookingID int64) error {
	if f.paidFailures > 0 {
		f.paidFailures--
		return fmt.Errorf("connection reset")
	}
	return f.fakeStore.SetBookingPaid(ctx, bookingID)
}

func TestCheckoutCompletedRetryFinishesAfterPartialFailure(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	b := f.pendingPaymentBooking(t)

	flaky := &flakyStore{fakeStore: f.store, paidFailures: 1}
	webhooks := NewWebhookService(flaky, NewRangeSynchronizer(flaky), f.publisher, f.cache)

	evt := completedEvent("evt_1", b.ID)

	// First delivery records the payment but dies before the booking update.
	require.Error(t, webhooks.HandleEvent(ctx, evt))
	assert.Len(t, f.store.payments, 1)
	stored, err := f.store.GetBookingByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, stored.PaymentStatus)

	// The provider's retry must finish the job, not acknowledge a stranded
	// booking on the strength of the existing payment row.
	require.NoError(t, webhooks.HandleEvent(ctx, evt))

	stored, err = f.store.GetBookingByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, stored.PaymentStatus)
	assert.Equal(t, models.StatusConfirmedByHost, stored.Status)

	r, err := f.store.GetRangeByBookingID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmedByHost, r.Status)

	assert.Len(t, f.store.payments, 1)
	assert.Contains(t, f.publisher.published(), models.EventTypePaymentConfirmed)
}

func TestCheckoutCompletedRangeSyncFailureIsRetried(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	b := f.pendingPaymentBooking(t)

	// First delivery wrote payment and booking but the projection sync died:
	// simulate by applying the booking side manually, leaving the range stale.
	require.NoError(t, f.store.CreatePayment(ctx, &models.Payment{
		BookingID: b.ID, ProviderRef: "pay_evt_1", Amount: 300, Currency: "USD",
		Status: models.PaymentRecordSucceeded,
	}))

	require.NoError(t, f.webhooks.HandleEvent(ctx, completedEvent("evt_1", b.ID)))

	r, err := f.store.GetRangeByBookingID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmedByHost, r.Status)
	assert.Len(t, f.store.payments, 1)
}

func TestCheckoutCompletedUnknownBookingErrors(t *testing.T) {
	f := newWebhookFixture(t)

	err := f.webhooks.HandleEvent(context.Background(), completedEvent("evt_1", 999))
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestPaymentFailedReleasesDates(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	b := f.pendingPaymentBooking(t)

	evt := &CheckoutEvent{
		ID:   "evt_fail",
		Type: EventCheckoutPaymentFailed,
		Data: CheckoutEventData{BookingID: b.ID, Reason: "card_declined"},
	}
	require.NoError(t, f.webhooks.HandleEvent(ctx, evt))

	stored, err := f.store.GetBookingByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, stored.PaymentStatus)

	_, err = f.store.GetRangeByBookingID(ctx, b.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	// The dates are free again.
	_, err = f.svc.RequestBooking(ctx, Caller{UserID: 99, Role: models.RoleGuest},
		stayRequest(f.bookingFixture, "2026-10-01", "2026-10-04"))
	assert.NoError(t, err)

	assert.Contains(t, f.publisher.published(), models.EventTypePaymentFailed)
}

func TestPaymentFailedAfterSuccessIsStale(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	b := f.pendingPaymentBooking(t)

	require.NoError(t, f.webhooks.HandleEvent(ctx, completedEvent("evt_ok", b.ID)))

	stale := &CheckoutEvent{
		ID:   "evt_late_fail",
		Type: EventCheckoutPaymentFailed,
		Data: CheckoutEventData{BookingID: b.ID, Reason: "timeout"},
	}
	require.NoError(t, f.webhooks.HandleEvent(ctx, stale))

	stored, err := f.store.GetBookingByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, stored.PaymentStatus)
	assert.Equal(t, models.StatusConfirmedByHost, stored.Status)

	// Range stays in place.
	_, err = f.store.GetRangeByBookingID(ctx, b.ID)
	assert.NoError(t, err)
}

func TestCompletedRecreatesMissingRange(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	b := f.pendingPaymentBooking(t)

	// Simulate a lost projection row.
	require.NoError(t, f.store.DeleteRangeByBookingID(ctx, b.ID))

	require.NoError(t, f.webhooks.HandleEvent(ctx, completedEvent("evt_1", b.ID)))

	r, err := f.store.GetRangeByBookingID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmedByHost, r.Status)
	assert.True(t, r.StartDate.Equal(b.StartDate))
}

func TestUnknownEventTypeAcknowledged(t *testing.T) {
	f := newWebhookFixture(t)

	evt := &CheckoutEvent{
		ID:   "evt_x",
		Type: "checkout.session_expired",
		Data: CheckoutEventData{BookingID: 1},
	}
	assert.NoError(t, f.webhooks.HandleEvent(context.Background(), evt))
	assert.Empty(t, f.store.payments)
}

func TestEventMissingIdentifiersRejected(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	err := f.webhooks.HandleEvent(ctx, &CheckoutEvent{Type: EventCheckoutCompleted,
		Data: CheckoutEventData{BookingID: 1}})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	err = f.webhooks.HandleEvent(ctx, &CheckoutEvent{ID: "evt_1", Type: EventCheckoutCompleted})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}
