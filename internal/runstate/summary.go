package runstate

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Summary is a point-in-time view of a Run.
type Summary struct {
	RunID string

	Seen      int64
	Succeeded int64
	Failed    int64

	ShardsTotal   int64
	ShardsDone    int64
	ShardsSkipped int64

	ImagesWritten      int64
	ImagesDeduplicated int64

	RowsWritten int
	Output      string
	OutputBytes int64
	Elapsed     time.Duration
}

// String renders the human-readable run report.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run:              %s\n", s.RunID)
	fmt.Fprintf(&b, "records seen:     %d\n", s.Seen)
	fmt.Fprintf(&b, "records ok:       %d\n", s.Succeeded)
	fmt.Fprintf(&b, "records failed:   %d\n", s.Failed)
	fmt.Fprintf(&b, "shards skipped:   %d of %d\n", s.ShardsSkipped, s.ShardsTotal)
	fmt.Fprintf(&b, "images written:   %d (%d deduplicated)\n", s.ImagesWritten, s.ImagesDeduplicated)
	fmt.Fprintf(&b, "rows written:     %d\n", s.RowsWritten)
	fmt.Fprintf(&b, "elapsed:          %s\n", s.Elapsed.Round(time.Millisecond))
	if s.Output != "" {
		fmt.Fprintf(&b, "output:           %s (%s)\n", s.Output, humanize.Bytes(uint64(max(s.OutputBytes, 0))))
	}
	return b.String()
}

// Rate returns records seen per second, or 0 before any time has elapsed.
func (s Summary) Rate() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Seen) / s.Elapsed.Seconds()
}
