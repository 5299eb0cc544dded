package protocol

import "fmt"

// ErrorCode is the first payload byte of an ERROR reply.
type ErrorCode uint8

const (
	CodeNotFound          ErrorCode = 0x01
	CodeSourceUnavailable ErrorCode = 0x02
	CodeWriteFailed       ErrorCode = 0x03
	CodeReadFailed        ErrorCode = 0x04
	CodeTableFull         ErrorCode = 0x05
	CodeInvalidName       ErrorCode = 0x06
	CodeDevice            ErrorCode = 0x07
	CodeNoSpace           ErrorCode = 0x08
	CodeBadRequest        ErrorCode = 0x20
	CodeInternal          ErrorCode = 0xFF
)

func (c ErrorCode) String() string {
	switch c {
	case CodeNotFound:
		return "NotFound"
	case CodeSourceUnavailable:
		return "SourceUnavailable"
	case CodeWriteFailed:
		return "WriteFailed"
	case CodeReadFailed:
		return "ReadFailed"
	case CodeTableFull:
		return "TableFull"
	case CodeInvalidName:
		return "InvalidName"
	case CodeDevice:
		return "DeviceError"
	case CodeNoSpace:
		return "NoSpace"
	case CodeBadRequest:
		return "BadRequest"
	case CodeInternal:
		return "Internal"
	default:
		return fmt.Sprintf("Code(0x%02X)", uint8(c))
	}
}

// RemoteError is an ERROR reply surfaced to the client.
type RemoteError struct {
	Code    ErrorCode
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %s", e.Code, e.Message)
}

// OKPacket ends a successful exchange.
func OKPacket() Packet {
	return Packet{Command: CmdOK}
}

// DataPacket carries part of a reply body.
func DataPacket(b []byte) Packet {
	return Packet{Command: CmdData, Payload: b}
}

// ErrorPacket reports a failure. Messages that do not fit are truncated.
func ErrorPacket(code ErrorCode, msg string) Packet {
	if len(msg) > MaxPayload-1 {
		msg = msg[:MaxPayload-1]
	}
	payload := make([]byte, 0, 1+len(msg))
	payload = append(payload, byte(code))
	payload = append(payload, msg...)
	return Packet{Command: CmdError, Payload: payload}
}

// ParseError decodes an ERROR reply payload.
func ParseError(payload []byte) *RemoteError {
	if len(payload) == 0 {
		return &RemoteError{Code: CodeInternal, Message: "empty error reply"}
	}
	return &RemoteError{Code: ErrorCode(payload[0]), Message: string(payload[1:])}
}
