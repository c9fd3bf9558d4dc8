// Package parquettest writes small parquet shards and image payloads for
// tests.
package parquettest

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow/go/v11/arrow"
	"github.com/apache/arrow/go/v11/arrow/array"
	"github.com/apache/arrow/go/v11/arrow/memory"
	"github.com/apache/arrow/go/v11/parquet"
	"github.com/apache/arrow/go/v11/parquet/pqarrow"
)

// Row is one dataset row. Empty strings and nil slices are written as
// nulls.
type Row struct {
	Image     []byte
	ImagePath string

	ImageID        string
	Question1      string
	Answer1        string
	Question2      string
	Answer2        string
	PrimaryLabel   string
	SecondaryLabel string
	Caption        string
	InlineMentions []string
	ImageSize      string
	License        string
	Title          string
	Citation       string
	Journal        string
}

var imageType = arrow.StructOf(
	arrow.Field{Name: "bytes", Type: arrow.BinaryTypes.Binary, Nullable: true},
	arrow.Field{Name: "path", Type: arrow.BinaryTypes.String, Nullable: true},
)

// Schema is the arrow schema written by WriteShard.
var Schema = arrow.NewSchema([]arrow.Field{
	{Name: "image", Type: imageType, Nullable: true},
	{Name: "image_id", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "question_1", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "answer_1", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "question_2", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "answer_2", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "image_primary_label", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "image_secondary_label", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "caption", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "inline_mentions", Type: arrow.ListOf(arrow.BinaryTypes.String), Nullable: true},
	{Name: "image_size", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "article_license", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "article_title", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "article_citation", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "article_journal", Type: arrow.BinaryTypes.String, Nullable: true},
}, nil)

// WriteShard writes rows to path as a parquet file with Schema.
func WriteShard(t testing.TB, path string, rows []Row) {
	t.Helper()

	b := array.NewRecordBuilder(memory.DefaultAllocator, Schema)
	defer b.Release()

	img := b.Field(0).(*array.StructBuilder)
	imgBytes := img.FieldBuilder(0).(*array.BinaryBuilder)
	imgPath := img.FieldBuilder(1).(*array.StringBuilder)
	mentions := b.Field(9).(*array.ListBuilder)
	mentionVals := mentions.ValueBuilder().(*array.StringBuilder)

	str := func(i int, s string) {
		sb := b.Field(i).(*array.StringBuilder)
		if s == "" {
			sb.AppendNull()
			return
		}
		sb.Append(s)
	}

	for _, r := range rows {
		img.Append(true)
		if r.Image == nil {
			imgBytes.AppendNull()
		} else {
			imgBytes.Append(r.Image)
		}
		if r.ImagePath == "" {
			imgPath.AppendNull()
		} else {
			imgPath.Append(r.ImagePath)
		}

		str(1, r.ImageID)
		str(2, r.Question1)
		str(3, r.Answer1)
		str(4, r.Question2)
		str(5, r.Answer2)
		str(6, r.PrimaryLabel)
		str(7, r.SecondaryLabel)
		str(8, r.Caption)

		if r.InlineMentions == nil {
			mentions.AppendNull()
		} else {
			mentions.Append(true)
			for _, m := range r.InlineMentions {
				mentionVals.Append(m)
			}
		}

		str(10, r.ImageSize)
		str(11, r.License)
		str(12, r.Title)
		str(13, r.Citation)
		str(14, r.Journal)
	}

	rec := b.NewRecord()
	defer rec.Release()
	WriteRecord(t, path, rec)
}

// WriteRecord writes rec to path as a single row group parquet file.
func WriteRecord(t testing.TB, path string, rec arrow.Record) {
	t.Helper()

	var buf bytes.Buffer
	w, err := pqarrow.NewFileWriter(rec.Schema(), &buf, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps())
	if err != nil {
		t.Fatalf("parquet writer: %v", err)
	}
	if err := w.Write(rec); err != nil {
		t.Fatalf("parquet write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("parquet close: %v", err)
	}
	writeFile(t, path, buf.Bytes())
}

// WriteCorrupt writes bytes to path that are not a parquet file.
func WriteCorrupt(t testing.TB, path string) {
	t.Helper()
	writeFile(t, path, []byte("PAR1 this is not a parquet footer"))
}

func writeFile(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// PNG returns a w×h PNG filled with shade. Different shades give different
// payload bytes.
func PNG(t testing.TB, w, h int, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: uint8(x), B: uint8(y), A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}
