package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the payment metrics.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeReplay  = "replay"
	OutcomeIgnored = "ignored"
)

// PaymentMetrics records checkout, intent and webhook activity.
type PaymentMetrics struct {
	checkouts        *prometheus.CounterVec
	checkoutDuration *prometheus.HistogramVec
	intents          *prometheus.CounterVec
	webhooks         *prometheus.CounterVec
	reconciled       prometheus.Counter
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
// A nil registerer yields a recorder whose methods are no-ops.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_attempts_total",
		Help: "Checkout attempts by payment method and outcome.",
	}, []string{"method", "outcome", "code"})
	checkoutDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Checkout latency including gateway verification.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
	intents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_intents_created_total",
		Help: "Payment intents requested from the gateway.",
	}, []string{"outcome"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhooks_total",
		Help: "Gateway webhook deliveries by event type and outcome.",
	}, []string{"event_type", "outcome"})
	reconciled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_orders_reconciled_total",
		Help: "Orders whose payment status was written by a webhook.",
	})
	reg.MustRegister(checkouts, checkoutDuration, intents, webhooks, reconciled)
	return &PaymentMetrics{
		checkouts:        checkouts,
		checkoutDuration: checkoutDuration,
		intents:          intents,
		webhooks:         webhooks,
		reconciled:       reconciled,
	}
}

// ObserveCheckout records one checkout attempt. code is the error code, empty on success.
func (m *PaymentMetrics) ObserveCheckout(method, outcome, code string, took time.Duration) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(method), normalizeLabel(outcome), code).Inc()
	m.checkoutDuration.WithLabelValues(normalizeLabel(method)).Observe(took.Seconds())
}

// IncIntent counts a create-intent call.
func (m *PaymentMetrics) IncIntent(outcome string) {
	if m == nil || m.intents == nil {
		return
	}
	m.intents.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncWebhook counts a webhook delivery.
func (m *PaymentMetrics) IncWebhook(eventType, outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// AddReconciled adds the number of orders updated by a webhook.
func (m *PaymentMetrics) AddReconciled(n int64) {
	if m == nil || m.reconciled == nil || n <= 0 {
		return
	}
	m.reconciled.Add(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
