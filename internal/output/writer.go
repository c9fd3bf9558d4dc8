// Package output writes normalized rows to a flat CSV file.
//
// The header is the fixed schema column list, written exactly once. Fields
// are quoted per RFC 4180 by encoding/csv, so delimiters, quotes and line
// breaks inside captions and citations survive a round trip. Output is
// UTF-8, optionally prefixed with a byte order mark for spreadsheet tools.
package output

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"dsextract/internal/schema"
)

const utf8BOM = "\uFEFF"

// WriteError reports that the destination could not be created or written.
// It is fatal for a run: no output can be produced.
type WriteError struct {
	Path string
	Op   string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("output %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Options configures Create.
type Options struct {
	// BOM prefixes the file with a UTF-8 byte order mark.
	BOM bool
}

// Writer streams rows to one CSV file. It is not safe for concurrent use.
type Writer struct {
	path   string
	f      *os.File
	bw     *bufio.Writer
	cw     *csv.Writer
	rows   int
	closed bool
}

// Create opens path for writing (truncating it) and writes the header.
// Missing parent directories are created.
func Create(path string, opts Options) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &WriteError{Path: path, Op: "create dir", Err: err}
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, &WriteError{Path: path, Op: "create", Err: err}
	}
	bw := bufio.NewWriterSize(f, 256*1024)
	w := &Writer{path: path, f: f, bw: bw, cw: csv.NewWriter(bw)}

	if opts.BOM {
		if _, err := bw.WriteString(utf8BOM); err != nil {
			_ = f.Close()
			return nil, &WriteError{Path: path, Op: "write bom", Err: err}
		}
	}
	if err := w.cw.Write(schema.Columns()); err != nil {
		_ = f.Close()
		return nil, &WriteError{Path: path, Op: "write header", Err: err}
	}
	return w, nil
}

// Path returns the destination path.
func (w *Writer) Path() string { return w.path }

// Rows returns the number of data rows written so far.
func (w *Writer) Rows() int { return w.rows }

// WriteRow appends one row.
func (w *Writer) WriteRow(row schema.Row) error {
	if w.closed {
		return &WriteError{Path: w.path, Op: "write", Err: os.ErrClosed}
	}
	if err := w.cw.Write(row[:]); err != nil {
		return &WriteError{Path: w.path, Op: "write", Err: err}
	}
	w.rows++
	return nil
}

// WriteRows appends rows in order.
func (w *Writer) WriteRows(rows []schema.Row) error {
	for _, r := range rows {
		if err := w.WriteRow(r); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes buffered rows and closes the file. Calling Close more than
// once returns nil.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	w.cw.Flush()
	err := w.cw.Error()
	if err == nil {
		err = w.bw.Flush()
	}
	if err == nil {
		err = w.f.Sync()
	}
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return &WriteError{Path: w.path, Op: "close", Err: err}
	}
	return nil
}

// Write creates dest, writes the header and rows, and closes it. It returns
// the number of data rows written.
func Write(rows []schema.Row, dest string, opts Options) (int, error) {
	w, err := Create(dest, opts)
	if err != nil {
		return 0, err
	}
	werr := w.WriteRows(rows)
	cerr := w.Close()
	if err := errors.Join(werr, cerr); err != nil {
		return w.Rows(), err
	}
	return w.Rows(), nil
}
