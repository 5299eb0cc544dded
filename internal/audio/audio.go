// Package audio classifies source files before they are stored. The storage
// engine only records the resulting type tag; the decoded WAV parameters are
// informational.
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// Type is the container type tag persisted in a blob header.
type Type uint8

const (
	TypeUnknown Type = iota
	TypeWAV
	TypeFLAC
	TypeAIFF
	TypeM4A
	TypeMP3
)

func (t Type) String() string {
	switch t {
	case TypeWAV:
		return "wav"
	case TypeFLAC:
		return "flac"
	case TypeAIFF:
		return "aiff"
	case TypeM4A:
		return "m4a"
	case TypeMP3:
		return "mp3"
	default:
		return "unknown"
	}
}

// MIME returns the media type served for t.
func (t Type) MIME() string {
	switch t {
	case TypeWAV:
		return "audio/wav"
	case TypeFLAC:
		return "audio/flac"
	case TypeAIFF:
		return "audio/aiff"
	case TypeM4A:
		return "audio/mp4"
	case TypeMP3:
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}

// HeaderLen is how much of a file the magic checks look at.
const HeaderLen = 16

// Info describes a classified file.
type Info struct {
	Name    string     `json:"name"`
	Type    Type       `json:"-"`
	TypeTag string     `json:"type"`
	MIME    string     `json:"mime,omitempty"`
	Size    int64      `json:"size"`
	ModTime time.Time  `json:"mod_time"`
	WAV     *WAVFormat `json:"wav,omitempty"`
}

// Classify stats and sniffs the file at path. WAV files additionally get
// their fmt and data chunks decoded; a malformed WAV still classifies as
// TypeWAV with a nil WAV field.
func Classify(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return Info{}, err
	}

	info := Info{
		Name:    filepath.Base(path),
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
	}

	head := make([]byte, HeaderLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return info, fmt.Errorf("read header of %s: %w", path, err)
	}
	info.Type = Sniff(head[:n])

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return info, err
	}
	if m, err := mimetype.DetectReader(f); err == nil {
		info.MIME = m.String()
		if info.Type == TypeUnknown {
			info.Type = fromMIME(m)
		}
	}

	if info.Type == TypeWAV {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return info, err
		}
		if wav, err := ParseWAV(f); err == nil {
			info.WAV = wav
		}
	}

	info.TypeTag = info.Type.String()
	return info, nil
}

// Sniff identifies a container from the first bytes of a file.
func Sniff(head []byte) Type {
	if len(head) < 4 {
		return TypeUnknown
	}

	switch {
	case bytes.HasPrefix(head, []byte("RIFF")) && len(head) >= 12 && string(head[8:12]) == "WAVE":
		return TypeWAV
	case bytes.HasPrefix(head, []byte("fLaC")):
		return TypeFLAC
	case bytes.HasPrefix(head, []byte("FORM")) && len(head) >= 12 &&
		(string(head[8:12]) == "AIFF" || string(head[8:12]) == "AIFC"):
		return TypeAIFF
	case bytes.HasPrefix(head, []byte("ID3")):
		return TypeMP3
	case head[0] == 0xFF && head[1]&0xE0 == 0xE0:
		// MPEG audio frame sync without an ID3 tag
		return TypeMP3
	case len(head) >= 12 && string(head[4:8]) == "ftyp" && strings.HasPrefix(string(head[8:12]), "M4A"):
		return TypeM4A
	}
	return TypeUnknown
}

func fromMIME(m *mimetype.MIME) Type {
	for ; m != nil; m = m.Parent() {
		switch {
		case m.Is("audio/wav"):
			return TypeWAV
		case m.Is("audio/flac"):
			return TypeFLAC
		case m.Is("audio/aiff"):
			return TypeAIFF
		case m.Is("audio/mpeg"):
			return TypeMP3
		case m.Is("audio/x-m4a"), m.Is("audio/mp4"):
			return TypeM4A
		}
	}
	return TypeUnknown
}

// WAVFormat holds the fields of a WAV file's fmt and data chunks.
type WAVFormat struct {
	AudioFormat   uint16 `json:"audio_format"`
	Channels      uint16 `json:"channels"`
	SampleRate    uint32 `json:"sample_rate"`
	ByteRate      uint32 `json:"byte_rate"`
	BlockAlign    uint16 `json:"block_align"`
	BitsPerSample uint16 `json:"bits_per_sample"`
	DataSize      uint32 `json:"data_size"`
}

// Duration is the playing time implied by the data chunk.
func (w *WAVFormat) Duration() time.Duration {
	if w.ByteRate == 0 {
		return 0
	}
	return time.Duration(float64(w.DataSize) / float64(w.ByteRate) * float64(time.Second))
}

// ParseWAV walks the RIFF chunks of r. Unknown chunks (LIST, JUNK, ...) are
// skipped. Both the fmt and data chunks must be present.
func ParseWAV(r io.Reader) (*WAVFormat, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" {
		return nil, fmt.Errorf("missing RIFF header")
	}
	if string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("missing WAVE format identifier")
	}

	var (
		wav     WAVFormat
		gotFmt  bool
		gotData bool
		hdr     [8]byte
	)

	for !(gotFmt && gotData) {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			break
		}
		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])
		pad := int64(size % 2)

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("fmt chunk too small: %d", size)
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, fmt.Errorf("read fmt chunk: %w", err)
			}
			wav.AudioFormat = binary.LittleEndian.Uint16(body[0:2])
			wav.Channels = binary.LittleEndian.Uint16(body[2:4])
			wav.SampleRate = binary.LittleEndian.Uint32(body[4:8])
			wav.ByteRate = binary.LittleEndian.Uint32(body[8:12])
			wav.BlockAlign = binary.LittleEndian.Uint16(body[12:14])
			wav.BitsPerSample = binary.LittleEndian.Uint16(body[14:16])
			gotFmt = true
			if err := skip(r, pad); err != nil {
				return nil, err
			}
		case "data":
			wav.DataSize = size
			gotData = true
			if !gotFmt {
				if err := skip(r, int64(size)+pad); err != nil {
					return nil, err
				}
			}
		default:
			if err := skip(r, int64(size)+pad); err != nil {
				return nil, err
			}
		}
	}

	if !gotFmt {
		return nil, fmt.Errorf("missing fmt chunk")
	}
	if !gotData {
		return nil, fmt.Errorf("missing data chunk")
	}
	return &wav, nil
}

func skip(r io.Reader, n int64) error {
	if s, ok := r.(io.Seeker); ok {
		_, err := s.Seek(n, io.SeekCurrent)
		return err
	}
	_, err := io.CopyN(io.Discard, r, n)
	return err
}
