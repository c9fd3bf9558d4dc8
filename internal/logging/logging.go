// Package logging builds the logger used across the extractor.
//
// Components depend on the small Logger interface rather than a concrete
// type; hclog.Logger satisfies it, and tests pass an hclog logger writing to
// a buffer so emitted diagnostics can be asserted on directly.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Logger is the logging capability injected into pipeline components.
// Arguments after msg are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

var _ Logger = hclog.Logger(nil)

// Options configures New.
type Options struct {
	// Name is the logger name printed with every line.
	Name string
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// Format is "text" (default) or "json".
	Format string
	// File, when set, receives a copy of every line. Parent directories are
	// created as needed; the file is appended to.
	File string
	// Console receives log lines; nil means os.Stderr. Use io.Discard to
	// silence the console while still writing File.
	Console io.Writer
}

// New returns an hclog logger writing to the console and, optionally, to a
// log file. The returned closer releases the log file and is never nil.
func New(opts Options) (hclog.Logger, io.Closer, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	var (
		out    io.Writer = console
		closer io.Closer = nopCloser{}
	)
	if p := strings.TrimSpace(opts.File); p != "" {
		if dir := filepath.Dir(p); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create log dir %s: %w", dir, err)
			}
		}
		f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", p, err)
		}
		out = io.MultiWriter(console, f)
		closer = f
	}

	name := opts.Name
	if name == "" {
		name = "dsextract"
	}

	l := hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      ParseLevel(opts.Level),
		Output:     out,
		JSONFormat: strings.EqualFold(opts.Format, "json"),
	})
	return l, closer, nil
}

// ParseLevel maps a level name onto an hclog level. Unknown names map to
// Info.
func ParseLevel(level string) hclog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return hclog.Debug
	case "warn", "warning":
		return hclog.Warn
	case "error":
		return hclog.Error
	default:
		return hclog.Info
	}
}

// Nop returns a logger that discards everything.
func Nop() Logger { return hclog.NewNullLogger() }

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
