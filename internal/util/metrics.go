package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookings_created_total",
		Help: "Total number of bookings created, by initial status",
	}, []string{"status"})

	BookingsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookings_failed_total",
		Help: "Total number of failed booking creations",
	}, []string{"reason"})

	BookingConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_conflicts_total",
		Help: "Total number of booking attempts rejected for overlapping dates",
	})

	BookingsConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_confirmed_total",
		Help: "Total number of bookings confirmed by hosts",
	})

	BookingsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_rejected_total",
		Help: "Total number of bookings rejected by hosts",
	})

	BookingsCancelledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookings_cancelled_total",
		Help: "Total number of cancelled bookings, by mode (deleted or soft)",
	}, []string{"mode"})

	BookingsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookings_closed_total",
		Help: "Total number of bookings closed out after the stay, by outcome (completed or no_show)",
	}, []string{"outcome"})

	CheckoutSessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_sessions_total",
		Help: "Total number of hosted checkout sessions created",
	})

	PaymentsConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_confirmed_total",
		Help: "Total number of payments confirmed via webhook",
	})

	PaymentsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_failed_total",
		Help: "Total number of payment failures applied via webhook",
	})

	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Total number of webhook events received, by type and outcome",
	}, []string{"type", "outcome"})

	ProjectionAnomaliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booked_range_anomalies_total",
		Help: "Times the booked range projection row was unexpectedly missing",
	}, []string{"op"})

	ProjectionRepairsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booked_range_repairs_total",
		Help: "Times a missing booked range projection row was rebuilt from its booking",
	})

	NotificationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notification_failures_total",
		Help: "Total number of notification emails that failed to send",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
