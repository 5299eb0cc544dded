package server

import (
	"errors"

	"github.com/marmos91/distfs/pkg/protocol"
	"github.com/marmos91/distfs/pkg/store"
)

// codeFor maps a request failure to the code sent in its ERROR reply.
func codeFor(err error) protocol.ErrorCode {
	switch store.CodeOf(err) {
	case store.CodeNotFound:
		return protocol.CodeNotFound
	case store.CodeSourceUnavailable:
		return protocol.CodeSourceUnavailable
	case store.CodeWriteFailed:
		return protocol.CodeWriteFailed
	case store.CodeReadFailed:
		return protocol.CodeReadFailed
	case store.CodeTableFull:
		return protocol.CodeTableFull
	case store.CodeInvalidName:
		return protocol.CodeInvalidName
	case store.CodeDevice:
		return protocol.CodeDevice
	case store.CodeNoSpace:
		return protocol.CodeNoSpace
	}

	if errors.Is(err, protocol.ErrMalformed) || errors.Is(err, protocol.ErrUnknownCommand) {
		return protocol.CodeBadRequest
	}
	return protocol.CodeInternal
}
