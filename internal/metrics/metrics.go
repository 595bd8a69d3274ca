// Package metrics exposes the bridge's Prometheus instrumentation. All
// collectors are registered eagerly at init; when no scrape endpoint is
// mounted the registration is harmless.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fragmentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_fragments_total",
		Help: "Total MQTT fragments received, by telemetry field",
	}, []string{"field"})
	fragmentsMalformedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_fragments_malformed_total",
		Help: "Total fragments dropped because the payload could not be decoded",
	})
	flushesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_flushes_total",
		Help: "Total buffer flushes, by trigger (ready, timeout)",
	}, []string{"reason"})
	sessionsDiscardedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_sessions_discarded_total",
		Help: "Total stale sessions discarded instead of flushed (partial flush disabled)",
	})
	readingsPersistedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_readings_persisted_total",
		Help: "Total readings written to the store",
	})
	readingsDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_readings_dropped_total",
		Help: "Total readings rejected before or during persistence, by reason (invalid, storage)",
	}, []string{"reason"})
	eventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_events_total",
		Help: "Total events recorded, by category",
	}, []string{"category"})
	brokerReconnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_broker_reconnects_total",
		Help: "Total broker reconnects after the initial connection",
	})
	queueDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_queue_dropped_total",
		Help: "Total persistence jobs dropped because the flush queue was full",
	})
	bufferFields = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_buffer_fields",
		Help: "Number of fields currently held in the correlation buffer",
	})
)

func init() {
	prometheus.MustRegister(
		fragmentsTotal,
		fragmentsMalformedTotal,
		flushesTotal,
		sessionsDiscardedTotal,
		readingsPersistedTotal,
		readingsDroppedTotal,
		eventsTotal,
		brokerReconnectsTotal,
		queueDroppedTotal,
		bufferFields,
	)
}

// Handler serves the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

func FragmentReceived(field string) {
	fragmentsTotal.WithLabelValues(field).Inc()
}

func FragmentMalformed() {
	fragmentsMalformedTotal.Inc()
}

func FlushTriggered(reason string) {
	flushesTotal.WithLabelValues(reason).Inc()
}

func SessionDiscarded() {
	sessionsDiscardedTotal.Inc()
}

func ReadingPersisted() {
	readingsPersistedTotal.Inc()
}

func ReadingDropped(reason string) {
	readingsDroppedTotal.WithLabelValues(reason).Inc()
}

func EventRecorded(category string) {
	eventsTotal.WithLabelValues(category).Inc()
}

func BrokerReconnected() {
	brokerReconnectsTotal.Inc()
}

func QueueDropped() {
	queueDroppedTotal.Inc()
}

func SetBufferFields(n int) {
	bufferFields.Set(float64(n))
}
