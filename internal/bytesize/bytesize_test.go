package bytesize

import (
	"testing"
	"time"
)

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ByteSize
		wantErr bool
	}{
		{"plain zero", "0", 0, false},
		{"plain bytes", "6180", 6180, false},
		{"bytes suffix", "512B", 512, false},
		{"chunk Ki", "4Ki", 4096, false},
		{"table KiB", "512KiB", 512 * 1024, false},
		{"mebibytes", "100Mi", 100 * 1024 * 1024, false},
		{"gibibytes lower", "1gib", 1024 * 1024 * 1024, false},
		{"decimal MB", "10MB", 10 * 1000 * 1000, false},
		{"space between", "1 Gi", GiB, false},
		{"float", "1.5Mi", ByteSize(1.5 * 1024 * 1024), false},

		{"empty", "", 0, true},
		{"whitespace", "   ", 0, true},
		{"invalid unit", "1Xi", 0, true},
		{"negative", "-1Gi", 0, true},
		{"no number", "Gi", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseByteSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseByteSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseByteSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestByteSize_TextRoundTrip(t *testing.T) {
	tests := []struct {
		in   ByteSize
		text string
	}{
		{4 * KiB, "4Ki"},
		{10 * MiB, "10Mi"},
		{3 * GiB, "3Gi"},
		{6180, "6180"},
		{0, "0"},
	}

	for _, tt := range tests {
		got, err := tt.in.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d): %v", tt.in, err)
		}
		if string(got) != tt.text {
			t.Errorf("MarshalText(%d) = %q, want %q", tt.in, got, tt.text)
		}

		var back ByteSize
		if err := back.UnmarshalText(got); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", got, err)
		}
		if back != tt.in {
			t.Errorf("round trip %d -> %q -> %d", tt.in, got, back)
		}
	}
}

func TestByteSize_String(t *testing.T) {
	tests := []struct {
		input ByteSize
		want  string
	}{
		{512, "512B"},
		{2 * KiB, "2.00KiB"},
		{6180, "6.04KiB"},
		{100 * MiB, "100.00MiB"},
		{2 * TiB, "2.00TiB"},
	}

	for _, tt := range tests {
		if got := tt.input.String(); got != tt.want {
			t.Errorf("ByteSize(%d).String() = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestByteSize_FractionalUnits(t *testing.T) {
	b := ByteSize(3 * MiB / 2)
	if got := b.MiBf(); got != 1.5 {
		t.Errorf("MiBf() = %v, want 1.5", got)
	}
	if got := b.KiBf(); got != 1536 {
		t.Errorf("KiBf() = %v, want 1536", got)
	}
}

func TestRate(t *testing.T) {
	r := RateOf(uint64(4*MiB), 2*time.Second)
	if got := r.BytesPerSecond(); got != uint64(2*MiB) {
		t.Errorf("BytesPerSecond() = %d, want %d", got, 2*MiB)
	}
	if got := r.MBPS(); got != 2 {
		t.Errorf("MBPS() = %v, want 2", got)
	}
	if got := r.String(); got != "2.00MiB/s" {
		t.Errorf("String() = %q", got)
	}

	if got := RateOf(100, 0); got != 0 {
		t.Errorf("RateOf with zero duration = %v, want 0", got)
	}
}
