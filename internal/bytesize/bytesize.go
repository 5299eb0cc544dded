// Package bytesize parses and formats byte quantities used by configuration
// (device regions, log rotation size, chunk sizes) and by transfer reports.
package bytesize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ByteSize is a size in bytes that can be unmarshaled from strings like
// "4Ki", "512MiB", "100MB", or plain numbers.
//
// Binary units (Ki/KiB, Mi/MiB, Gi/GiB, Ti/TiB) multiply by 1024, decimal
// units (K/KB, M/MB, G/GB, T/TB) by 1000.
type ByteSize uint64

const (
	B  ByteSize = 1
	KB ByteSize = 1000
	MB ByteSize = 1000 * KB
	GB ByteSize = 1000 * MB
	TB ByteSize = 1000 * GB

	KiB ByteSize = 1024
	MiB ByteSize = 1024 * KiB
	GiB ByteSize = 1024 * MiB
	TiB ByteSize = 1024 * GiB
)

var byteSizePattern = regexp.MustCompile(`(?i)^\s*(\d+(?:\.\d+)?)\s*([a-z]*)\s*$`)

var unitMultipliers = map[string]ByteSize{
	"":    B,
	"b":   B,
	"k":   KB,
	"kb":  KB,
	"m":   MB,
	"mb":  MB,
	"g":   GB,
	"gb":  GB,
	"t":   TB,
	"tb":  TB,
	"ki":  KiB,
	"kib": KiB,
	"mi":  MiB,
	"mib": MiB,
	"gi":  GiB,
	"gib": GiB,
	"ti":  TiB,
	"tib": TiB,
}

// ParseByteSize parses a human-readable byte size string.
func ParseByteSize(s string) (ByteSize, error) {
	if strings.TrimSpace(s) == "" {
		return 0, fmt.Errorf("empty byte size string")
	}

	m := byteSizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid byte size format: %q", s)
	}

	multiplier, ok := unitMultipliers[strings.ToLower(m[2])]
	if !ok {
		return 0, fmt.Errorf("unknown byte size unit: %q", m[2])
	}

	if strings.Contains(m[1], ".") {
		f, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number in byte size: %q", m[1])
		}
		return ByteSize(f * float64(multiplier)), nil
	}

	n, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number in byte size: %q", m[1])
	}
	return ByteSize(n) * multiplier, nil
}

// UnmarshalText implements encoding.TextUnmarshaler so ByteSize decodes
// directly from YAML, env vars and the legacy key=value config.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// MarshalText implements encoding.TextMarshaler. Exact multiples of a binary
// unit are written with that unit so a saved config stays readable.
func (b ByteSize) MarshalText() ([]byte, error) {
	for _, u := range []struct {
		size ByteSize
		name string
	}{{TiB, "Ti"}, {GiB, "Gi"}, {MiB, "Mi"}, {KiB, "Ki"}} {
		if b >= u.size && b%u.size == 0 {
			return []byte(strconv.FormatUint(uint64(b/u.size), 10) + u.name), nil
		}
	}
	return []byte(strconv.FormatUint(uint64(b), 10)), nil
}

// String returns a human-readable representation of the byte size.
func (b ByteSize) String() string {
	switch {
	case b >= TiB:
		return fmt.Sprintf("%.2fTiB", float64(b)/float64(TiB))
	case b >= GiB:
		return fmt.Sprintf("%.2fGiB", float64(b)/float64(GiB))
	case b >= MiB:
		return fmt.Sprintf("%.2fMiB", float64(b)/float64(MiB))
	case b >= KiB:
		return fmt.Sprintf("%.2fKiB", float64(b)/float64(KiB))
	default:
		return fmt.Sprintf("%dB", b)
	}
}

// Uint64 returns the ByteSize as a uint64.
func (b ByteSize) Uint64() uint64 {
	return uint64(b)
}

// Int64 returns the ByteSize as an int64.
func (b ByteSize) Int64() int64 {
	return int64(b)
}

// KiBf and MiBf return the size as fractional kibibytes and mebibytes, the
// units used by the table listing.
func (b ByteSize) KiBf() float64 { return float64(b) / float64(KiB) }
func (b ByteSize) MiBf() float64 { return float64(b) / float64(MiB) }

// Rate is a transfer rate in bytes per second.
type Rate float64

// RateOf returns the rate for n bytes moved in d. A non-positive duration
// yields zero.
func RateOf(n uint64, d time.Duration) Rate {
	if d <= 0 {
		return 0
	}
	return Rate(float64(n) / d.Seconds())
}

// BytesPerSecond truncates the rate to whole bytes per second.
func (r Rate) BytesPerSecond() uint64 {
	if r < 0 {
		return 0
	}
	return uint64(r)
}

// MBPS returns the rate in mebibytes per second.
func (r Rate) MBPS() float64 {
	return float64(r) / float64(MiB)
}

// String formats the rate as "<size>/s".
func (r Rate) String() string {
	return ByteSize(r.BytesPerSecond()).String() + "/s"
}
