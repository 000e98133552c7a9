package service

import (
	"context"
	"time"

	"rental-service/internal/apperr"
	"rental-service/internal/models"
	"rental-service/internal/util"

	"go.uber.org/zap"
)

// Checkout webhook event kinds.
const (
	EventCheckoutCompleted     = "checkout.completed"
	EventCheckoutPaymentFailed = "checkout.payment_failed"
)

const eventSeenTTL = 24 * time.Hour

// CheckoutEvent is the provider's webhook payload, already
// signature-verified at the HTTP boundary.
type CheckoutEvent struct {
	ID   string            `json:"id"`
	Type string            `json:"type"`
	Data CheckoutEventData `json:"data"`
}

// CheckoutEventData carries the booking correlation id and the payment
// reference used as the idempotency key.
type CheckoutEventData struct {
	BookingID  int64  `json:"booking_id"`
	PaymentRef string `json:"payment_ref"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	Reason     string `json:"reason,omitempty"`
}

// WebhookService reconciles asynchronous payment notifications into booking
// state. All handlers are idempotent: a duplicate delivery detects the
// already-applied outcome and exits without side effects.
type WebhookService struct {
	store     Datastore
	ranges    RangeSynchronizer
	publisher Publisher
	cache     EventCache
	logger    *zap.Logger
}

// NewWebhookService creates a new webhook reconciliation service
func NewWebhookService(store Datastore, ranges RangeSynchronizer, publisher Publisher, cache EventCache) *WebhookService {
	return &WebhookService{
		store:     store,
		ranges:    ranges,
		publisher: publisher,
		cache:     cache,
		logger:    util.GetLogger(),
	}
}

// HandleEvent applies a verified checkout event. Unknown kinds are
// acknowledged and ignored. A non-nil return means the provider should retry
// the delivery.
func (ws *WebhookService) HandleEvent(ctx context.Context, evt *CheckoutEvent) error {
	ctx, span := util.StartSpan(ctx, "WebhookService.HandleEvent")
	defer span.End()

	if evt.ID == "" || evt.Data.BookingID == 0 {
		return apperr.Validation("event", "missing event id or booking reference")
	}

	switch evt.Type {
	case EventCheckoutCompleted:
		return ws.handleCompleted(ctx, evt)
	case EventCheckoutPaymentFailed:
		return ws.handleFailed(ctx, evt)
	default:
		util.WebhookEventsTotal.WithLabelValues(evt.Type, "ignored").Inc()
		ws.logger.Info("Ignoring unhandled webhook event type",
			zap.String("event_type", evt.Type),
			zap.String("event_id", evt.ID))
		return nil
	}
}

func (ws *WebhookService) handleCompleted(ctx context.Context, evt *CheckoutEvent) error {
	if done, err := ws.alreadyProcessed(ctx, evt); err != nil {
		return err
	} else if done {
		util.WebhookEventsTotal.WithLabelValues(evt.Type, "duplicate").Inc()
		return nil
	}

	b, err := ws.store.GetBookingByID(ctx, evt.Data.BookingID)
	if err != nil {
		return err
	}

	// Already-paid guard: a redelivered success event must not create a
	// second payment record or re-apply transitions.
	if b.PaymentStatus == models.PaymentPaid {
		ws.logger.Info("Booking already paid, skipping duplicate completion",
			zap.Int64("booking_id", b.ID),
			zap.String("event_id", evt.ID))
		util.WebhookEventsTotal.WithLabelValues(evt.Type, "duplicate").Inc()
		ws.markProcessed(ctx, evt)
		return nil
	}

	payment, err := ws.store.GetPaymentByProviderRef(ctx, evt.Data.PaymentRef)
	if err != nil {
		return err
	}
	if payment == nil {
		payment = &models.Payment{
			BookingID:   b.ID,
			ProviderRef: evt.Data.PaymentRef,
			Amount:      evt.Data.Amount,
			Currency:    evt.Data.Currency,
			Status:      models.PaymentRecordSucceeded,
		}
		if err := ws.store.CreatePayment(ctx, payment); err != nil {
			if !apperr.IsKind(err, apperr.KindConflict) {
				return err
			}
			// Lost a race against a concurrent delivery of the same charge.
			// Reload the winning row and fall through: the booking update
			// below still has to happen on this delivery.
			payment, err = ws.store.GetPaymentByProviderRef(ctx, evt.Data.PaymentRef)
			if err != nil {
				return err
			}
			if payment == nil {
				return apperr.Conflict("payment %s vanished after conflicting insert", evt.Data.PaymentRef)
			}
		}
	} else {
		ws.logger.Info("Payment reference already recorded, resuming reconciliation",
			zap.String("provider_ref", evt.Data.PaymentRef))
	}

	// An existing payment row alone does not finish reconciliation: an earlier
	// delivery may have crashed between the payment insert and the booking
	// update. The booking is marked paid on whichever delivery gets this far,
	// and a failure here keeps the event unacknowledged so the provider
	// retries.
	if err := ws.store.SetBookingPaid(ctx, b.ID); err != nil {
		return err
	}
	if err := ws.ranges.EnsureConfirmed(ctx, b); err != nil {
		return err
	}

	ws.markProcessed(ctx, evt)
	util.WebhookEventsTotal.WithLabelValues(evt.Type, "applied").Inc()
	util.PaymentsConfirmedTotal.Inc()
	ws.logger.Info("Payment confirmed",
		zap.Int64("booking_id", b.ID),
		zap.String("provider_ref", evt.Data.PaymentRef))

	event := &models.PaymentConfirmedEvent{
		BaseEvent:   newBaseEvent(models.EventTypePaymentConfirmed),
		BookingID:   b.ID,
		PaymentID:   payment.ID,
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		ProviderRef: payment.ProviderRef,
		GuestEmail:  b.GuestEmail,
	}
	if err := ws.publisher.PublishPaymentConfirmed(ctx, event); err != nil {
		ws.logger.Error("Failed to publish PaymentConfirmed event", zap.Error(err))
	}

	return nil
}

func (ws *WebhookService) handleFailed(ctx context.Context, evt *CheckoutEvent) error {
	if done, err := ws.alreadyProcessed(ctx, evt); err != nil {
		return err
	} else if done {
		util.WebhookEventsTotal.WithLabelValues(evt.Type, "duplicate").Inc()
		return nil
	}

	b, err := ws.store.GetBookingByID(ctx, evt.Data.BookingID)
	if err != nil {
		return err
	}

	// A failure notification that lands after a success is stale.
	if b.PaymentStatus == models.PaymentPaid {
		ws.logger.Warn("Ignoring payment failure for already-paid booking",
			zap.Int64("booking_id", b.ID),
			zap.String("event_id", evt.ID))
		util.WebhookEventsTotal.WithLabelValues(evt.Type, "stale").Inc()
		ws.markProcessed(ctx, evt)
		return nil
	}

	if err := ws.store.SetBookingPaymentFailed(ctx, b.ID); err != nil {
		return err
	}
	// Free the dates immediately.
	if err := ws.ranges.Remove(ctx, b.ID); err != nil {
		return err
	}

	ws.markProcessed(ctx, evt)
	util.WebhookEventsTotal.WithLabelValues(evt.Type, "applied").Inc()
	util.PaymentsFailedTotal.Inc()
	ws.logger.Warn("Payment failed",
		zap.Int64("booking_id", b.ID),
		zap.String("reason", evt.Data.Reason))

	event := &models.PaymentFailedEvent{
		BaseEvent:  newBaseEvent(models.EventTypePaymentFailed),
		BookingID:  b.ID,
		GuestEmail: b.GuestEmail,
		Reason:     evt.Data.Reason,
	}
	if err := ws.publisher.PublishPaymentFailed(ctx, event); err != nil {
		ws.logger.Error("Failed to publish PaymentFailed event", zap.Error(err))
	}

	return nil
}

// alreadyProcessed consults the Redis fast path first and falls back to the
// authoritative processed_events table.
func (ws *WebhookService) alreadyProcessed(ctx context.Context, evt *CheckoutEvent) (bool, error) {
	if seen, err := ws.cache.WasEventSeen(ctx, evt.ID); err == nil && seen {
		return true, nil
	}
	return ws.store.IsEventProcessed(ctx, evt.ID)
}

// markProcessed records the event id durably and in the cache. Failures here
// are logged only: the worst case is a redundant idempotent replay.
func (ws *WebhookService) markProcessed(ctx context.Context, evt *CheckoutEvent) {
	if err := ws.store.MarkEventProcessed(ctx, evt.ID, evt.Type); err != nil {
		ws.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	if err := ws.cache.MarkEventSeen(ctx, evt.ID, eventSeenTTL); err != nil {
		ws.logger.Warn("Failed to cache processed event", zap.Error(err))
	}
}
