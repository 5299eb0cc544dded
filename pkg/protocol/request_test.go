package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	tests := []Request{
		ListRequest{},
		UploadRequest{Name: "CantinaBand3.wav", Chunk: []byte{1, 2, 3}},
		UploadRequest{Name: "a", Last: true, Chunk: []byte{}},
		DownloadRequest{Name: "music/x.flac"},
		DeleteRequest{Name: "x"},
	}

	for _, req := range tests {
		t.Run(req.Command().String(), func(t *testing.T) {
			p, err := req.Packet()
			require.NoError(t, err)
			assert.Equal(t, req.Command(), p.Command)

			buf, err := p.Encode()
			require.NoError(t, err)
			decoded, err := Decode(buf)
			require.NoError(t, err)

			got, err := ParseRequest(decoded)
			require.NoError(t, err)
			assert.Equal(t, req, got)
		})
	}
}

func TestParseRequestMalformed(t *testing.T) {
	tests := []struct {
		name string
		p    Packet
	}{
		{"UploadEmpty", Packet{Command: CmdUpload}},
		{"UploadZeroName", Packet{Command: CmdUpload, Payload: []byte{0, 0, 'x'}}},
		{"UploadNameOverrun", Packet{Command: CmdUpload, Payload: []byte{0, 10, 'x'}}},
		{"DownloadNoName", Packet{Command: CmdDownload}},
		{"DeleteNoName", Packet{Command: CmdDelete}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest(tt.p)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}

	_, err := ParseRequest(OKPacket())
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestUploadChunkLimit(t *testing.T) {
	name := "song.wav"
	_, err := UploadRequest{Name: name, Chunk: make([]byte, MaxUploadChunk(name))}.Packet()
	assert.NoError(t, err)

	_, err = UploadRequest{Name: name, Chunk: make([]byte, MaxUploadChunk(name)+1)}.Packet()
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	_, err = DownloadRequest{Name: strings.Repeat("n", MaxNameLen+1)}.Packet()
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestErrorReply(t *testing.T) {
	p := ErrorPacket(CodeNotFound, "file not found")
	assert.Equal(t, CmdError, p.Command)

	re := ParseError(p.Payload)
	assert.Equal(t, CodeNotFound, re.Code)
	assert.Equal(t, "file not found", re.Message)
	assert.Equal(t, "remote NotFound: file not found", re.Error())

	assert.Equal(t, CodeInternal, ParseError(nil).Code)

	long := ErrorPacket(CodeInternal, strings.Repeat("e", MaxPayload+10))
	assert.Len(t, long.Payload, MaxPayload)
}
