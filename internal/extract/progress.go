package extract

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"

	"dsextract/internal/logging"
	"dsextract/internal/runstate"
)

// Progress is a snapshot handed to a Reporter.
type Progress struct {
	// Shard is the shard being processed and Position its index in the
	// located sequence.
	Shard       string
	Position    int
	ShardsTotal int
	// ShardDone is set on the report emitted after a shard's last record.
	ShardDone bool
	// Final is set once, after the last shard.
	Final bool

	Summary runstate.Summary
}

// Reporter observes progress. Implementations must not modify the run.
type Reporter interface {
	Report(p Progress)
}

// LogReporter writes progress as INFO log lines.
type LogReporter struct {
	Log logging.Logger
}

func (r LogReporter) Report(p Progress) {
	s := p.Summary
	switch {
	case p.Final:
		return
	case p.ShardDone:
		r.Log.Info("shard done",
			"shard", p.Shard,
			"shard_num", p.Position+1,
			"shards_total", p.ShardsTotal,
			"seen", s.Seen,
			"succeeded", s.Succeeded,
			"failed", s.Failed)
	default:
		r.Log.Info("progress",
			"shard", p.Shard,
			"seen", s.Seen,
			"succeeded", s.Succeeded,
			"failed", s.Failed,
			"rate", fmt.Sprintf("%.0f rec/s", s.Rate()))
	}
}

// TerminalReporter redraws a single status line.
type TerminalReporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminalReporter returns a reporter drawing on w.
func NewTerminalReporter(w io.Writer) *TerminalReporter {
	return &TerminalReporter{w: w}
}

func (r *TerminalReporter) Report(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := p.Summary
	fmt.Fprintf(r.w, "\rshard %d/%d  records %d  ok %d  failed %d  %.0f rec/s\x1b[K",
		min(p.Position+1, p.ShardsTotal), p.ShardsTotal, s.Seen, s.Succeeded, s.Failed, s.Rate())
	if p.Final {
		fmt.Fprintln(r.w)
	}
}

// MultiReporter fans a snapshot out to several reporters.
type MultiReporter []Reporter

func (m MultiReporter) Report(p Progress) {
	for _, r := range m {
		r.Report(p)
	}
}

// NewReporter logs progress and, when out is a terminal, also draws a
// status line on it.
func NewReporter(log logging.Logger, out *os.File) Reporter {
	lr := LogReporter{Log: log}
	if out == nil {
		return lr
	}
	if isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()) {
		return MultiReporter{lr, NewTerminalReporter(out)}
	}
	return lr
}
