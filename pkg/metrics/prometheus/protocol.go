package prometheus

import (
	"time"

	"github.com/marmos91/distfs/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// protocolMetrics is the Prometheus implementation of metrics.ProtocolMetrics.
type protocolMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	packetsTotal    *prometheus.CounterVec
	packetBytes     *prometheus.HistogramVec
	checksumErrors  prometheus.Counter
	activeSessions  *prometheus.GaugeVec
}

// NewProtocolMetrics creates a Prometheus-backed ProtocolMetrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewProtocolMetrics() metrics.ProtocolMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &protocolMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "distfs_protocol_requests_total",
				Help: "Total number of protocol requests by command and outcome",
			},
			[]string{"command", "outcome"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "distfs_protocol_request_duration_milliseconds",
				Help: "Duration of protocol requests in milliseconds",
				Buckets: []float64{
					1,     // 1ms - LIST on a small table
					10,    // 10ms
					100,   // 100ms
					1000,  // 1s - multi-packet transfers
					10000, // 10s - serial links
					60000, // 1m
				},
			},
			[]string{"command"},
		),
		packetsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "distfs_protocol_packets_total",
				Help: "Total framed packets by direction",
			},
			[]string{"direction"}, // "rx", "tx"
		),
		packetBytes: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "distfs_protocol_packet_bytes",
				Help: "Distribution of framed packet sizes",
				Buckets: []float64{
					6,     // empty payload
					64,    // 64B
					512,   // 512B
					4102,  // one 4KiB chunk
					16384, // 16KB
					65542, // maximum frame
				},
			},
			[]string{"direction"},
		),
		checksumErrors: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "distfs_protocol_checksum_errors_total",
				Help: "Total frames rejected for a checksum mismatch",
			},
		),
		activeSessions: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "distfs_protocol_active_sessions",
				Help: "Sessions currently being served by transport type",
			},
			[]string{"transport"},
		),
	}
}

func (m *protocolMetrics) RecordRequest(command string, duration time.Duration, outcome string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(command, outcome).Inc()
	m.requestDuration.WithLabelValues(command).Observe(duration.Seconds() * 1000)
}

func (m *protocolMetrics) RecordPacket(direction string, bytes int) {
	if m == nil {
		return
	}
	m.packetsTotal.WithLabelValues(direction).Inc()
	m.packetBytes.WithLabelValues(direction).Observe(float64(bytes))
}

func (m *protocolMetrics) RecordChecksumError() {
	if m == nil {
		return
	}
	m.checksumErrors.Inc()
}

func (m *protocolMetrics) SessionStarted(transport string) {
	if m == nil {
		return
	}
	m.activeSessions.WithLabelValues(transport).Inc()
}

func (m *protocolMetrics) SessionEnded(transport string) {
	if m == nil {
		return
	}
	m.activeSessions.WithLabelValues(transport).Dec()
}
