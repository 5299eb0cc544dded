package store

import (
	"fmt"
	"io"
	"time"

	"github.com/marmos91/distfs/internal/bytesize"
)

// Progress reports a download after each chunk.
type Progress struct {
	Name    string
	Done    uint64
	Total   uint64
	Elapsed time.Duration

	// Rate is the speed of the last chunk.
	Rate bytesize.Rate
}

// Left returns the bytes still to be transferred.
func (p Progress) Left() uint64 {
	return p.Total - p.Done
}

// ProgressFunc receives download progress. It runs on the downloading
// goroutine and must not block.
type ProgressFunc func(Progress)

// ConsoleProgress returns a ProgressFunc that redraws a single status line
// on w and finishes it with a newline when the transfer completes.
func ConsoleProgress(w io.Writer) ProgressFunc {
	return func(p Progress) {
		fmt.Fprintf(w, "\r%d/%d bytes downloaded, %d bytes left | bps: %d, mbps: %.4f",
			p.Done, p.Total, p.Left(), p.Rate.BytesPerSecond(), p.Rate.MBPS())
		if p.Done == p.Total {
			fmt.Fprintln(w)
		}
	}
}
