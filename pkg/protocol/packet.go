// Package protocol implements the framed packet format spoken over a
// transport:
//
//	+------+------+---------+---------+---------+-----------+----------+
//	| 0xDA | 0xFF | command | size_hi | size_lo | payload.. | checksum |
//	+------+------+---------+---------+---------+-----------+----------+
//
// The checksum is the XOR of every header and payload byte. Payloads are at
// most 65535 bytes.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	MarkerHi byte = 0xDA
	MarkerLo byte = 0xFF

	// HeaderSize is the fixed header length preceding the payload.
	HeaderSize = 5

	// MaxPayload is the largest payload a size field can describe.
	MaxPayload = 0xFFFF

	// MaxPacketSize is the length of a packet carrying MaxPayload bytes.
	MaxPacketSize = HeaderSize + MaxPayload + 1
)

var (
	// ErrBadMarker means the two start bytes are not 0xDA 0xFF.
	ErrBadMarker = errors.New("bad start marker")

	// ErrLengthMismatch means the buffer length disagrees with the size field.
	ErrLengthMismatch = errors.New("packet length mismatch")

	// ErrChecksumMismatch means the trailing checksum does not match.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrUnknownCommand means the command byte maps to no command.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrPayloadTooLarge means a payload exceeds MaxPayload.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrMalformed means a payload does not parse for its command.
	ErrMalformed = errors.New("malformed payload")
)

// Command is the packet command byte.
type Command uint8

// Request commands.
const (
	CmdList     Command = 0x00
	CmdUpload   Command = 0x01
	CmdDownload Command = 0x02
	CmdDelete   Command = 0x03
)

// Reply commands.
const (
	CmdOK    Command = 0x10
	CmdError Command = 0x11
	CmdData  Command = 0x12
)

func (c Command) String() string {
	switch c {
	case CmdList:
		return "LIST"
	case CmdUpload:
		return "UPLOAD"
	case CmdDownload:
		return "DOWNLOAD"
	case CmdDelete:
		return "DELETE"
	case CmdOK:
		return "OK"
	case CmdError:
		return "ERROR"
	case CmdData:
		return "DATA"
	default:
		return fmt.Sprintf("0x%02X", uint8(c))
	}
}

// Valid reports whether c is a known command.
func (c Command) Valid() bool {
	return c.IsRequest() || c.IsReply()
}

// IsRequest reports whether c is sent by clients.
func (c Command) IsRequest() bool {
	return c <= CmdDelete
}

// IsReply reports whether c is sent by servers.
func (c Command) IsReply() bool {
	return c >= CmdOK && c <= CmdData
}

// Packet is one decoded frame.
type Packet struct {
	Command Command
	Payload []byte
}

// Checksum XORs every byte of b.
func Checksum(b []byte) byte {
	var sum byte
	for _, c := range b {
		sum ^= c
	}
	return sum
}

// Encode frames payload under cmd.
func Encode(cmd Command, payload []byte) ([]byte, error) {
	return AppendEncode(make([]byte, 0, HeaderSize+len(payload)+1), cmd, payload)
}

// AppendEncode appends the framed packet to dst.
func AppendEncode(dst []byte, cmd Command, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return dst, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	start := len(dst)
	dst = append(dst, MarkerHi, MarkerLo, byte(cmd))
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(payload)))
	dst = append(dst, payload...)
	return append(dst, Checksum(dst[start:])), nil
}

// Encode frames p.
func (p Packet) Encode() ([]byte, error) {
	return Encode(p.Command, p.Payload)
}

// Decode parses exactly one packet from buf. The returned payload aliases
// buf.
func Decode(buf []byte) (Packet, error) {
	if len(buf) < HeaderSize+1 {
		return Packet{}, fmt.Errorf("%w: %d bytes is shorter than an empty packet", ErrLengthMismatch, len(buf))
	}
	if buf[0] != MarkerHi || buf[1] != MarkerLo {
		return Packet{}, fmt.Errorf("%w: 0x%02X 0x%02X", ErrBadMarker, buf[0], buf[1])
	}

	size := int(binary.BigEndian.Uint16(buf[3:HeaderSize]))
	if want := HeaderSize + size + 1; len(buf) != want {
		return Packet{}, fmt.Errorf("%w: size field says %d bytes, got %d", ErrLengthMismatch, want, len(buf))
	}

	body := buf[:len(buf)-1]
	if got, want := buf[len(buf)-1], Checksum(body); got != want {
		return Packet{}, fmt.Errorf("%w: got 0x%02X, want 0x%02X", ErrChecksumMismatch, got, want)
	}

	cmd := Command(buf[2])
	if !cmd.Valid() {
		return Packet{}, fmt.Errorf("%w: 0x%02X", ErrUnknownCommand, buf[2])
	}
	return Packet{Command: cmd, Payload: buf[HeaderSize : HeaderSize+size]}, nil
}

// PayloadSize reads the size field of a complete header.
func PayloadSize(header []byte) int {
	return int(binary.BigEndian.Uint16(header[3:HeaderSize]))
}
