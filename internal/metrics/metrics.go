package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canteen_bookings_created_total",
			Help: "Bookings created, by payment method",
		},
		[]string{"method"},
	)

	BookingsCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canteen_bookings_cancelled_total",
			Help: "Bookings cancelled, by payment method",
		},
		[]string{"method"},
	)

	PaymentVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canteen_payment_verifications_total",
			Help: "Gateway callback verifications, by kind and result",
		},
		[]string{"kind", "result"},
	)

	RefundFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "canteen_refund_failures_total",
			Help: "Gateway refunds that failed and were queued for reconciliation",
		},
	)

	WalletTopUps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "canteen_wallet_topups_total",
			Help: "Wallet top-ups credited",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "canteen_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"method", "route", "status"},
	)
)
