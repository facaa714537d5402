package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics counts payment-provider webhook outcomes by event type.
type WebhookMetrics struct {
	processed *prometheus.CounterVec
	skipped   *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook counters on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stripe_webhook_events_processed_total",
		Help: "Webhook events that produced a state change.",
	}, []string{"event_type"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stripe_webhook_events_skipped_total",
		Help: "Webhook events acknowledged without a state change.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stripe_webhook_events_failed_total",
		Help: "Webhook events that errored during processing.",
	}, []string{"event_type"})
	reg.MustRegister(processed, skipped, failed)
	return &WebhookMetrics{
		processed: processed,
		skipped:   skipped,
		failed:    failed,
	}
}

// IncProcessed increments the processed counter for the event type.
func (m *WebhookMetrics) IncProcessed(eventType string) {
	if m == nil || m.processed == nil {
		return
	}
	m.processed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncSkipped increments the skipped counter for the event type.
func (m *WebhookMetrics) IncSkipped(eventType string) {
	if m == nil || m.skipped == nil {
		return
	}
	m.skipped.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncFailed increments the failure counter for the event type.
func (m *WebhookMetrics) IncFailed(eventType string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}
