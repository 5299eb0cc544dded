package metrics

import "time"

// ProtocolMetrics observes the packet protocol server. Pass nil to disable.
type ProtocolMetrics interface {
	// RecordRequest records a completed request.
	//
	// Parameters:
	//   - command: "LIST", "UPLOAD", "DOWNLOAD", "DELETE"
	//   - duration: time from the request packet to the final reply
	//   - outcome: OutcomeOK or an error code name
	RecordRequest(command string, duration time.Duration, outcome string)

	// RecordPacket counts one framed packet in direction "rx" or "tx".
	RecordPacket(direction string, bytes int)

	// RecordChecksumError counts a frame rejected for a checksum mismatch.
	RecordChecksumError()

	// SessionStarted and SessionEnded track live sessions per transport type.
	SessionStarted(transport string)
	SessionEnded(transport string)
}

// RecordRequest records a request if m is non-nil.
func RecordRequest(m ProtocolMetrics, command string, duration time.Duration, outcome string) {
	if m != nil {
		m.RecordRequest(command, duration, outcome)
	}
}

// RecordPacket records a packet if m is non-nil.
func RecordPacket(m ProtocolMetrics, direction string, bytes int) {
	if m != nil {
		m.RecordPacket(direction, bytes)
	}
}

// RecordChecksumError records a rejected frame if m is non-nil.
func RecordChecksumError(m ProtocolMetrics) {
	if m != nil {
		m.RecordChecksumError()
	}
}

// SessionStarted records a new session if m is non-nil.
func SessionStarted(m ProtocolMetrics, transport string) {
	if m != nil {
		m.SessionStarted(transport)
	}
}

// SessionEnded records a finished session if m is non-nil.
func SessionEnded(m ProtocolMetrics, transport string) {
	if m != nil {
		m.SessionEnded(transport)
	}
}
