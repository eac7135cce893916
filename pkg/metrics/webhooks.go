package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics counts inbound carrier webhook deliveries by outcome.
type WebhookMetrics struct {
	received *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook counters on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Inbound carrier webhook events by outcome.",
	}, []string{"carrier", "outcome"})
	reg.MustRegister(received)
	return &WebhookMetrics{received: received}
}

// Inc increments the counter for the given carrier and outcome
// (applied, duplicate, unmatched, invalid, error).
func (w *WebhookMetrics) Inc(carrier, outcome string) {
	if w == nil || w.received == nil {
		return
	}
	w.received.WithLabelValues(normalizeLabel(carrier), normalizeLabel(outcome)).Inc()
}
