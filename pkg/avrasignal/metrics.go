package avrasignal

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	encryptDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "avrasignal_encrypt_seconds",
		Help: "Time spent encrypting outgoing messages, including session establishment",
	})
	decryptDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "avrasignal_decrypt_seconds",
		Help: "Time spent decrypting incoming messages",
	})
	sessionsEstablished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "avrasignal_sessions_established",
		Help: "Number of sessions established from fetched prekey bundles",
	})
	storeCallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "avrasignal_store_callbacks",
		Help: "Number of engine store callbacks served from the cache",
	}, []string{"callback"})
	duplicateMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "avrasignal_duplicate_messages",
		Help: "Number of byte-identical redeliveries dropped before decryption",
	})
	writeQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "avrasignal_write_queue_depth",
		Help: "Number of durable writes waiting for the background flusher",
	})
	writeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "avrasignal_write_failures",
		Help: "Number of background durable writes that failed",
	})
)

func trackDuration(histogram prometheus.Histogram) func() {
	start := time.Now()
	return func() {
		histogram.Observe(time.Since(start).Seconds())
	}
}
