// Package bundle packs the head of an extraction into zip archives that are
// small enough to share: the first rows of the CSV, or the first image
// files.
package bundle

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zip"

	"dsextract/internal/output"
)

// DefaultCount is the number of rows or images bundled when none is given.
const DefaultCount = 100

// ErrNoImages reports an images directory without any image file.
var ErrNoImages = errors.New("no image files found")

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".tiff": true, ".webp": true,
}

// Result describes a written archive.
type Result struct {
	Output string
	// Items is the number of data rows or image files bundled.
	Items       int
	SourceBytes int64
	ZipBytes    int64
}

// Ratio returns the archive size as a fraction of the source size.
func (r Result) Ratio() float64 {
	if r.SourceBytes <= 0 {
		return 0
	}
	return float64(r.ZipBytes) / float64(r.SourceBytes)
}

func (r Result) String() string {
	return fmt.Sprintf("%s: %d items, source %s, zip %s (%.2f%%)",
		r.Output, r.Items,
		humanize.Bytes(uint64(max(r.SourceBytes, 0))),
		humanize.Bytes(uint64(max(r.ZipBytes, 0))),
		r.Ratio()*100)
}

// Rows writes the header and the first n data rows of the CSV at input
// into a single deflated entry of a new zip at out. SourceBytes is the size
// of the whole input file.
func Rows(input, out string, n int) (Result, error) {
	if n <= 0 {
		n = DefaultCount
	}
	in, err := os.Open(input)
	if err != nil {
		return Result{}, fmt.Errorf("open %s: %w", input, err)
	}
	defer in.Close()
	fi, err := in.Stat()
	if err != nil {
		return Result{}, fmt.Errorf("stat %s: %w", input, err)
	}

	r := csv.NewReader(in)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return Result{}, fmt.Errorf("read header %s: %w", input, err)
	}
	header = output.StripHeaderBOM(header)

	entry := fmt.Sprintf("top_%d_rows.csv", n)
	res := Result{Output: out, SourceBytes: fi.Size()}
	err = writeZip(out, func(zw *zip.Writer) error {
		ew, err := zw.CreateHeader(&zip.FileHeader{Name: entry, Method: zip.Deflate, Modified: time.Now()})
		if err != nil {
			return err
		}
		cw := csv.NewWriter(ew)
		if err := cw.Write(header); err != nil {
			return err
		}
		for res.Items < n {
			rec, err := r.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return fmt.Errorf("read %s: %w", input, err)
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
			res.Items++
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return Result{}, err
	}
	return finish(res)
}

// Images copies the first n image files of dir, in name order, into a new
// zip at out. Extensions are matched case-insensitively; sub-directories are
// ignored. SourceBytes is the total size of the bundled files.
func Images(dir, out string, n int) (Result, error) {
	if n <= 0 {
		n = DefaultCount
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Result{}, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if len(names) == n {
			break
		}
		if e.Type().IsRegular() && imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return Result{}, fmt.Errorf("%w in %s", ErrNoImages, dir)
	}

	res := Result{Output: out}
	err = writeZip(out, func(zw *zip.Writer) error {
		for _, name := range names {
			size, err := addFile(zw, filepath.Join(dir, name), name)
			if err != nil {
				return err
			}
			res.SourceBytes += size
			res.Items++
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return finish(res)
}

func addFile(zw *zip.Writer, path, name string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	hdr, err := zip.FileInfoHeader(fi)
	if err != nil {
		return 0, err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return 0, err
	}
	if _, err := io.Copy(w, f); err != nil {
		return 0, fmt.Errorf("copy %s: %w", path, err)
	}
	return fi.Size(), nil
}

// writeZip creates out, lets fill add entries and closes the archive. A
// failed archive is removed.
func writeZip(out string, fill func(*zip.Writer) error) (err error) {
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(out)
		}
	}()

	zw := zip.NewWriter(f)
	if err := fill(zw); err != nil {
		_ = zw.Close()
		_ = f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("close zip %s: %w", out, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", out, err)
	}
	return nil
}

func finish(res Result) (Result, error) {
	fi, err := os.Stat(res.Output)
	if err != nil {
		return Result{}, fmt.Errorf("stat %s: %w", res.Output, err)
	}
	res.ZipBytes = fi.Size()
	return res, nil
}
