package transport

import "github.com/prometheus/client_golang/prometheus"

// metrics counts the failure-silent drops of the receive path and other
// transport events. Counters are always live; they are only exported when a
// registerer is configured, so multiple transports can coexist in one
// process (and in tests) without registration collisions.
type metrics struct {
	droppedFrames      prometheus.Counter
	cryptoFailures     prometheus.Counter
	reassemblyTimeouts prometheus.Counter
	unroutableFrames   prometheus.Counter
	interfaceErrors    prometheus.Counter
	receiptsDelivered  prometheus.Counter
	duplicateReceipts  prometheus.Counter
}

func newMetrics(name string, reg prometheus.Registerer) *metrics {
	labels := prometheus.Labels{"transport": name}

	counter := func(metricName, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "veilmesh",
			Subsystem:   "transport",
			Name:        metricName,
			Help:        help,
			ConstLabels: labels,
		})
		if reg != nil {
			reg.MustRegister(c)
		}
		return c
	}

	return &metrics{
		droppedFrames:      counter("dropped_frames_total", "Frames discarded for malformed headers, fragments or receipts."),
		cryptoFailures:     counter("crypto_failures_total", "Frames discarded after signature or decryption failure."),
		reassemblyTimeouts: counter("reassembly_timeouts_total", "Incomplete messages evicted from the reassembly table."),
		unroutableFrames:   counter("unroutable_frames_total", "Data frames for hashes with no registered destination."),
		interfaceErrors:    counter("interface_errors_total", "Send failures reported by attached interfaces."),
		receiptsDelivered:  counter("receipts_delivered_total", "Delivery receipts raised to the registered handler."),
		duplicateReceipts:  counter("duplicate_receipts_total", "Receipt packets suppressed by message-ID deduplication."),
	}
}
