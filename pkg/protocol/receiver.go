package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/distfs/internal/logger"
	"github.com/marmos91/distfs/pkg/bufpool"
	"github.com/marmos91/distfs/pkg/metrics"
	"github.com/marmos91/distfs/pkg/transport"
)

// state is a step of the receive loop.
type state int

const (
	stateAwaitHeader state = iota
	stateValidateMarker
	stateReadPayload
	stateValidateChecksum
	stateDispatch
)

func (s state) String() string {
	switch s {
	case stateAwaitHeader:
		return "AwaitHeader"
	case stateValidateMarker:
		return "ValidateMarker"
	case stateReadPayload:
		return "ReadPayload"
	case stateValidateChecksum:
		return "ValidateChecksum"
	case stateDispatch:
		return "Dispatch"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ReceiverConfig configures a Receiver.
type ReceiverConfig struct {
	// Timeout bounds each transport read. Zero blocks.
	Timeout time.Duration

	// OnDiscard is called for every frame dropped by validation.
	OnDiscard func(err error)

	Metrics metrics.ProtocolMetrics
}

// Receiver reads packets from a transport. Malformed frames are logged and
// skipped; they never end the stream.
//
// Bytes received but not yet consumed are kept between calls, so a timeout
// in the middle of a frame does not lose it.
type Receiver struct {
	t   transport.Transport
	cfg ReceiverConfig

	frame   []byte // pooled backing store
	pending []byte // unconsumed bytes, aliases frame
	state   state
}

// NewReceiver returns a Receiver reading from t. Call Release when done.
func NewReceiver(t transport.Transport, cfg ReceiverConfig) *Receiver {
	frame := bufpool.Get(bufpool.DefaultFrameSize)
	return &Receiver{t: t, cfg: cfg, frame: frame, pending: frame[:0]}
}

// Release returns the receive buffer to the pool.
func (r *Receiver) Release() {
	if r.frame != nil {
		bufpool.Put(r.frame)
		r.frame, r.pending = nil, nil
	}
}

// Next returns the next valid packet. Transport errors, including
// transport.ErrTimeout, are returned as is. The payload is copied out of the
// receive buffer.
func (r *Receiver) Next() (Packet, error) {
	r.state = stateAwaitHeader
	var size int

	for {
		switch r.state {
		case stateAwaitHeader:
			if err := r.fill(HeaderSize); err != nil {
				return Packet{}, err
			}
			r.state = stateValidateMarker

		case stateValidateMarker:
			if r.pending[0] != MarkerHi || r.pending[1] != MarkerLo {
				r.resync(fmt.Errorf("%w: 0x%02X 0x%02X", ErrBadMarker, r.pending[0], r.pending[1]))
				r.state = stateAwaitHeader
				continue
			}
			size = PayloadSize(r.pending)
			r.state = stateReadPayload

		case stateReadPayload:
			if err := r.fill(HeaderSize + size + 1); err != nil {
				return Packet{}, err
			}
			r.state = stateValidateChecksum

		case stateValidateChecksum:
			n := HeaderSize + size + 1
			p, err := Decode(r.pending[:n])
			if err != nil {
				// A frame that fails its checksum may have a corrupted size
				// field, so the bytes after its header can hold real frames.
				if errors.Is(err, ErrUnknownCommand) {
					r.drop(n, err)
				} else {
					r.resync(err)
				}
				r.state = stateAwaitHeader
				continue
			}
			p.Payload = bytes.Clone(p.Payload)
			if p.Payload == nil {
				p.Payload = []byte{}
			}
			r.consume(n)
			metrics.RecordPacket(r.cfg.Metrics, "rx", n)
			r.state = stateDispatch
			return p, nil

		default:
			r.state = stateAwaitHeader
		}
	}
}

// fill reads until at least n bytes are pending.
func (r *Receiver) fill(n int) error {
	for len(r.pending) < n {
		m, err := r.t.Read(r.frame[len(r.pending):n], r.cfg.Timeout)
		r.pending = r.frame[:len(r.pending)+m]
		if err != nil {
			return err
		}
	}
	return nil
}

// resync drops bytes up to the next possible start marker.
func (r *Receiver) resync(err error) {
	skip := bytes.IndexByte(r.pending[1:], MarkerHi)
	if skip < 0 {
		skip = len(r.pending)
	} else {
		skip++
	}
	r.drop(skip, err)
}

func (r *Receiver) drop(n int, err error) {
	logger.Warn("Discarding malformed packet",
		logger.KeyPacketLen, n, logger.KeyTransport, string(r.t.Type()), logger.Err(err))
	if errors.Is(err, ErrChecksumMismatch) {
		metrics.RecordChecksumError(r.cfg.Metrics)
	}
	if r.cfg.OnDiscard != nil {
		r.cfg.OnDiscard(err)
	}
	r.consume(n)
}

func (r *Receiver) consume(n int) {
	rest := copy(r.frame, r.pending[n:])
	r.pending = r.frame[:rest]
}

// WritePacket frames p and writes it to t.
func WritePacket(t transport.Transport, p Packet, timeout time.Duration, m metrics.ProtocolMetrics) error {
	buf := bufpool.Get(bufpool.DefaultFrameSize)
	defer bufpool.Put(buf)

	frame, err := AppendEncode(buf[:0], p.Command, p.Payload)
	if err != nil {
		return err
	}
	n, err := t.Write(frame, timeout)
	if err != nil {
		return err
	}
	if n != len(frame) {
		return fmt.Errorf("short packet write: %d of %d bytes", n, len(frame))
	}
	metrics.RecordPacket(m, "tx", len(frame))
	return nil
}
