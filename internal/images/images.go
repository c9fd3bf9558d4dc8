// Package images turns embedded image payloads into PNG files on disk.
//
// Payloads are identified by a 128-bit xxh3 fingerprint of their bytes. The
// first record carrying a payload decides the file name,
// image_<record index, 6 digits>_<first 8 hex chars of the fingerprint>.png;
// later records with identical bytes resolve to the same path through the
// run's fingerprint table and nothing is written again.
package images

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/zeebo/xxh3"

	"dsextract/internal/runstate"
)

var (
	// ErrImageDecode reports a payload that is not a supported image.
	ErrImageDecode = errors.New("image decode")
	// ErrImageWrite reports a failure to encode or store a decoded image.
	ErrImageWrite = errors.New("image write")
)

// prefixLen is the number of fingerprint hex characters used in file names.
const prefixLen = 8

// Fingerprint returns the lower-case hex xxh3-128 digest of payload.
func Fingerprint(payload []byte) string {
	sum := xxh3.Hash128(payload).Bytes()
	return hex.EncodeToString(sum[:])
}

// FileName returns the file name used for the payload first seen at
// recordIndex.
func FileName(recordIndex int64, fingerprint string) string {
	if len(fingerprint) > prefixLen {
		fingerprint = fingerprint[:prefixLen]
	}
	return fmt.Sprintf("image_%06d_%s.png", recordIndex, fingerprint)
}

// Dimensions decodes only the image header of payload.
func Dimensions(payload []byte) (width, height int, ok bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

// Materializer writes payloads under Dir. It is safe for concurrent use;
// exactly-once writes per fingerprint additionally rely on the Run table.
type Materializer struct {
	dir  string
	base string

	mu      sync.Mutex
	created bool
}

// NewMaterializer returns a Materializer writing into dir. Returned paths
// are relative to base, normally the directory of the output file.
func NewMaterializer(dir, base string) *Materializer {
	if base == "" {
		base = "."
	}
	return &Materializer{dir: dir, base: base}
}

// Dir returns the images directory.
func (m *Materializer) Dir() string { return m.dir }

// Materialize returns the row path for payload, writing the PNG when the
// payload has not been seen in run. Errors wrap ErrImageDecode or
// ErrImageWrite; no partial file is left behind.
func (m *Materializer) Materialize(payload []byte, recordIndex int64, run *runstate.Run) (string, error) {
	fp := Fingerprint(payload)
	if a, ok := run.Reference(fp); ok {
		return a.Path, nil
	}

	img, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("%w: encode png: %v", ErrImageWrite, err)
	}

	if err := m.ensureDir(); err != nil {
		return "", err
	}
	dest := filepath.Join(m.dir, FileName(recordIndex, fp))
	if err := writeAtomic(dest, buf.Bytes()); err != nil {
		return "", fmt.Errorf("%w: %v", ErrImageWrite, err)
	}

	b := img.Bounds()
	a, added := run.AddAsset(runstate.Asset{
		Fingerprint: fp,
		RecordIndex: recordIndex,
		Path:        m.rowPath(dest),
		File:        dest,
		Width:       b.Dx(),
		Height:      b.Dy(),
		Bytes:       int64(buf.Len()),
	})
	if !added && a.File != dest {
		_ = os.Remove(dest)
	}
	return a.Path, nil
}

func (m *Materializer) ensureDir() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.created {
		return nil
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrImageWrite, m.dir, err)
	}
	m.created = true
	return nil
}

// rowPath expresses dest relative to base with forward slashes, or as an
// absolute slash path when no relative form exists.
func (m *Materializer) rowPath(dest string) string {
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return filepath.ToSlash(dest)
	}
	absBase, err := filepath.Abs(m.base)
	if err != nil {
		return filepath.ToSlash(absDest)
	}
	rel, err := filepath.Rel(absBase, absDest)
	if err != nil {
		return filepath.ToSlash(absDest)
	}
	return filepath.ToSlash(rel)
}

// writeAtomic writes data to a temporary file next to dest, syncs it and
// renames it into place.
func writeAtomic(dest string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*.png")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	_ = os.Chmod(tmpPath, 0o644)
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
