package protocol

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeLayout(t *testing.T) {
	buf, err := Encode(CmdDelete, []byte("ab"))
	require.NoError(t, err)

	want := []byte{0xDA, 0xFF, 0x03, 0x00, 0x02, 'a', 'b'}
	want = append(want, Checksum(want))
	assert.Equal(t, want, buf)
	assert.Equal(t, byte(0xDA^0xFF^0x03^0x00^0x02^'a'^'b'), buf[len(buf)-1])
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	sizes := []int{0, 1, 2, 255, 256, 4096, 4097, 32768, MaxPayload - 1, MaxPayload}

	for _, cmd := range []Command{CmdList, CmdUpload, CmdDownload, CmdDelete, CmdOK, CmdError, CmdData} {
		for _, n := range sizes {
			payload := make([]byte, n)
			rng.Read(payload)

			buf, err := Encode(cmd, payload)
			require.NoError(t, err)
			require.Len(t, buf, HeaderSize+n+1)

			p, err := Decode(buf)
			require.NoError(t, err, "%s/%d", cmd, n)
			assert.Equal(t, cmd, p.Command)
			assert.True(t, bytes.Equal(payload, p.Payload))
		}
	}
}

func TestEncodePayloadTooLarge(t *testing.T) {
	_, err := Encode(CmdUpload, make([]byte, MaxPayload+1))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestDecodeBitFlip(t *testing.T) {
	payload := []byte("CantinaBand3.wav")
	buf, err := Encode(CmdDownload, payload)
	require.NoError(t, err)

	// Flip every bit of the command byte, the payload and the checksum.
	// Marker and size flips are caught earlier as marker or length errors.
	for i := 2; i < len(buf); i++ {
		if i == 3 || i == 4 {
			continue
		}
		for bit := 0; bit < 8; bit++ {
			mut := bytes.Clone(buf)
			mut[i] ^= 1 << bit
			_, err := Decode(mut)
			assert.ErrorIs(t, err, ErrChecksumMismatch, "byte %d bit %d", i, bit)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	good, err := Encode(CmdList, nil)
	require.NoError(t, err)

	t.Run("ZeroMarker", func(t *testing.T) {
		bad := bytes.Clone(good)
		bad[0], bad[1] = 0x00, 0x00
		_, err := Decode(bad)
		assert.ErrorIs(t, err, ErrBadMarker)
	})

	t.Run("Truncated", func(t *testing.T) {
		_, err := Decode(good[:len(good)-1])
		assert.ErrorIs(t, err, ErrLengthMismatch)
	})

	t.Run("TrailingBytes", func(t *testing.T) {
		_, err := Decode(append(bytes.Clone(good), 0))
		assert.ErrorIs(t, err, ErrLengthMismatch)
	})

	t.Run("SizeFieldLies", func(t *testing.T) {
		bad, err := Encode(CmdDelete, []byte("x"))
		require.NoError(t, err)
		bad[4] = 5
		_, err = Decode(bad)
		assert.ErrorIs(t, err, ErrLengthMismatch)
	})

	t.Run("UnknownCommand", func(t *testing.T) {
		bad, err := Encode(Command(0x7F), nil)
		require.NoError(t, err)
		_, err = Decode(bad)
		assert.ErrorIs(t, err, ErrUnknownCommand)
	})
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "LIST", CmdList.String())
	assert.Equal(t, "DATA", CmdData.String())
	assert.Equal(t, "0x7F", Command(0x7F).String())
	assert.True(t, CmdDelete.IsRequest())
	assert.False(t, CmdOK.IsRequest())
	assert.True(t, CmdError.IsReply())
}
