package worker

import (
	"context"
	"fmt"
	"log"

	"rental-service/internal/broker"
	"rental-service/internal/models"
	"rental-service/internal/service"
	"rental-service/internal/util"

	"go.uber.org/zap"
)

// NotificationWorker consumes booking domain events and dispatches guest
// email. Sends are fire-and-forget: failures are logged and counted, never
// retried through the event stream and never surfaced to the booking flow.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	notifier     service.Notifier
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, notifier service.Notifier) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		notifier: notifier,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnBookingRequested(w.handleBookingRequested)
	eventHandler.OnBookingConfirmed(w.handleBookingConfirmed)
	eventHandler.OnBookingCancelled(w.handleBookingCancelled)
	eventHandler.OnPaymentConfirmed(w.handlePaymentConfirmed)
	eventHandler.OnPaymentFailed(w.handlePaymentFailed)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	log.Println("Starting notification worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	log.Println("Stopping notification worker...")
	return w.consumer.Close()
}

func (w *NotificationWorker) handleBookingRequested(ctx context.Context, event *models.BookingRequestedEvent) error {
	subject := "Booking request received"
	body := fmt.Sprintf(
		"Your booking #%d from %s to %s has been received and is awaiting processing.",
		event.BookingID,
		event.StartDate.Format("2006-01-02"),
		event.EndDate.Format("2006-01-02"))
	w.send(ctx, event.GuestEmail, subject, body)
	return nil
}

func (w *NotificationWorker) handleBookingConfirmed(ctx context.Context, event *models.BookingConfirmedEvent) error {
	subject := "Booking confirmed"
	body := fmt.Sprintf("The host has confirmed your booking #%d. Enjoy your stay!", event.BookingID)
	w.send(ctx, event.GuestEmail, subject, body)
	return nil
}

func (w *NotificationWorker) handleBookingCancelled(ctx context.Context, event *models.BookingCancelledEvent) error {
	subject := "Booking cancelled"
	body := fmt.Sprintf("Booking #%d is no longer active: %s.", event.BookingID, event.Reason)
	w.send(ctx, event.GuestEmail, subject, body)
	return nil
}

func (w *NotificationWorker) handlePaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error {
	subject := "Payment confirmed"
	body := fmt.Sprintf(
		"We received your payment of %d %s for booking #%d. Your reservation is confirmed.",
		event.Amount, event.Currency, event.BookingID)
	w.send(ctx, event.GuestEmail, subject, body)
	return nil
}

func (w *NotificationWorker) handlePaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	subject := "Payment failed"
	body := fmt.Sprintf(
		"Payment for booking #%d did not go through (%s). The dates have been released.",
		event.BookingID, event.Reason)
	w.send(ctx, event.GuestEmail, subject, body)
	return nil
}

func (w *NotificationWorker) send(ctx context.Context, to, subject, body string) {
	if to == "" {
		return
	}
	if err := w.notifier.Send(ctx, to, subject, body); err != nil {
		util.NotificationFailuresTotal.Inc()
		w.logger.Error("Failed to send notification email",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Error(err))
	}
}
