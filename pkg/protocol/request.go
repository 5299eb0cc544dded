package protocol

import (
	"fmt"
)

// Request is one of ListRequest, UploadRequest, DownloadRequest or
// DeleteRequest.
type Request interface {
	Command() Command
	Packet() (Packet, error)
	isRequest()
}

// ListRequest asks for every table entry.
type ListRequest struct{}

// UploadRequest carries one chunk of a file. The server appends chunks for
// the same name until one arrives with Last set.
type UploadRequest struct {
	Name  string
	Last  bool
	Chunk []byte
}

// DownloadRequest asks for a file's payload.
type DownloadRequest struct {
	Name string
}

// DeleteRequest removes a file.
type DeleteRequest struct {
	Name string
}

func (ListRequest) Command() Command     { return CmdList }
func (UploadRequest) Command() Command   { return CmdUpload }
func (DownloadRequest) Command() Command { return CmdDownload }
func (DeleteRequest) Command() Command   { return CmdDelete }

func (ListRequest) isRequest()     {}
func (UploadRequest) isRequest()   {}
func (DownloadRequest) isRequest() {}
func (DeleteRequest) isRequest()   {}

// Upload chunk flags.
const (
	uploadFlagLast byte = 0x01
)

// MaxNameLen is the longest name a request can carry.
const MaxNameLen = 255

// UploadOverhead is the payload space an upload spends before its chunk for
// a name of length n.
func UploadOverhead(n int) int {
	return 2 + n
}

// MaxUploadChunk is the largest chunk that fits one packet alongside name.
func MaxUploadChunk(name string) int {
	return MaxPayload - UploadOverhead(len(name))
}

func (ListRequest) Packet() (Packet, error) {
	return Packet{Command: CmdList}, nil
}

func (r UploadRequest) Packet() (Packet, error) {
	if err := checkName(r.Name); err != nil {
		return Packet{}, err
	}
	payload := make([]byte, 0, UploadOverhead(len(r.Name))+len(r.Chunk))
	var flags byte
	if r.Last {
		flags |= uploadFlagLast
	}
	payload = append(payload, flags, byte(len(r.Name)))
	payload = append(payload, r.Name...)
	payload = append(payload, r.Chunk...)
	if len(payload) > MaxPayload {
		return Packet{}, fmt.Errorf("%w: upload chunk of %d bytes", ErrPayloadTooLarge, len(r.Chunk))
	}
	return Packet{Command: CmdUpload, Payload: payload}, nil
}

func (r DownloadRequest) Packet() (Packet, error) {
	if err := checkName(r.Name); err != nil {
		return Packet{}, err
	}
	return Packet{Command: CmdDownload, Payload: []byte(r.Name)}, nil
}

func (r DeleteRequest) Packet() (Packet, error) {
	if err := checkName(r.Name); err != nil {
		return Packet{}, err
	}
	return Packet{Command: CmdDelete, Payload: []byte(r.Name)}, nil
}

func checkName(name string) error {
	if name == "" || len(name) > MaxNameLen {
		return fmt.Errorf("%w: name must be 1 to %d bytes", ErrMalformed, MaxNameLen)
	}
	return nil
}

// ParseRequest maps a request packet to its typed form. Every request
// command is handled; reply commands and bad payloads are errors.
func ParseRequest(p Packet) (Request, error) {
	switch p.Command {
	case CmdList:
		return ListRequest{}, nil

	case CmdUpload:
		if len(p.Payload) < 2 {
			return nil, fmt.Errorf("%w: upload payload of %d bytes", ErrMalformed, len(p.Payload))
		}
		flags, n := p.Payload[0], int(p.Payload[1])
		if n == 0 || len(p.Payload) < 2+n {
			return nil, fmt.Errorf("%w: upload name length %d", ErrMalformed, n)
		}
		return UploadRequest{
			Name:  string(p.Payload[2 : 2+n]),
			Last:  flags&uploadFlagLast != 0,
			Chunk: p.Payload[2+n:],
		}, nil

	case CmdDownload:
		name := string(p.Payload)
		if err := checkName(name); err != nil {
			return nil, err
		}
		return DownloadRequest{Name: name}, nil

	case CmdDelete:
		name := string(p.Payload)
		if err := checkName(name); err != nil {
			return nil, err
		}
		return DeleteRequest{Name: name}, nil

	default:
		return nil, fmt.Errorf("%w: %s is not a request", ErrUnknownCommand, p.Command)
	}
}
