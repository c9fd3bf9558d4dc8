// Package inspect reports what a dataset contains without extracting it:
// the shard listing and, on request, a sample of the first shard.
package inspect

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	localfile "dsextract/internal/datasource/file"
	"dsextract/internal/datasource/shard"
	"dsextract/internal/images"
	"dsextract/internal/parser/parquet"
	"dsextract/internal/schema"
	"dsextract/internal/transformer"
	"dsextract/pkg/records"
)

const (
	// listed is the number of shard names printed by WriteInfo.
	listed = 5
	// maxValueLen is the longest sample value printed, including the ellipsis.
	maxValueLen = 100
)

// Info describes the located shards.
type Info struct {
	Dir        string
	Shards     []string
	TotalBytes int64
}

// Describe locates the shards under dir.
func Describe(loc shard.Locator, dir string) (Info, error) {
	shards, err := loc.Locate(dir)
	if err != nil {
		return Info{}, err
	}
	size, err := shards.TotalSize()
	if err != nil {
		return Info{}, err
	}
	return Info{Dir: shards.Dir(), Shards: shards.Paths(), TotalBytes: size}, nil
}

// WriteInfo prints the dataset information block.
func WriteInfo(w io.Writer, info Info) {
	fmt.Fprintln(w, "Dataset Information:")
	fmt.Fprintf(w, "Data directory: %s\n", info.Dir)
	fmt.Fprintf(w, "Number of parquet files: %d\n", len(info.Shards))
	fmt.Fprintf(w, "Total size: %s\n", humanize.Bytes(uint64(max(info.TotalBytes, 0))))
	fmt.Fprintln(w, "Parquet files found:")
	for i, p := range info.Shards[:min(listed, len(info.Shards))] {
		fmt.Fprintf(w, "  %d. %s\n", i+1, filepath.Base(p))
	}
	if n := len(info.Shards) - listed; n > 0 {
		fmt.Fprintf(w, "  ... and %d more files\n", n)
	}
}

// Field is one rendered sample value.
type Field struct {
	Name  string
	Value string
}

// SampleRow is one sampled record: its non-image columns and a description
// of its image.
type SampleRow struct {
	Fields []Field
	Image  string
}

// Sample is the head of one shard. Records is the footer row count.
type Sample struct {
	Path    string
	Records int64
	Columns []string
	Rows    []SampleRow
}

// SampleShard decodes path and renders its first n records.
func SampleShard(ctx context.Context, path string, n int) (Sample, error) {
	obj, err := localfile.NewLocal(path).Open(ctx)
	if err != nil {
		return Sample{}, err
	}
	defer obj.Close()

	count, err := parquet.CountRows(obj)
	if err != nil {
		return Sample{}, fmt.Errorf("%s: %w", path, err)
	}
	tbl, err := parquet.NewParser().Parse(ctx, obj)
	if err != nil {
		return Sample{}, fmt.Errorf("%s: %w", path, err)
	}
	s := Sample{
		Path:    path,
		Records: count,
		Columns: slices.Clone(tbl.Columns),
	}
	for _, rec := range tbl.Records[:min(n, len(tbl.Records))] {
		var row SampleRow
		for _, col := range tbl.Columns {
			if col == schema.Image {
				continue
			}
			row.Fields = append(row.Fields, Field{Name: col, Value: truncate(render(rec[col]))})
		}
		row.Image = DescribeImage(rec)
		s.Rows = append(s.Rows, row)
	}
	return s, nil
}

// WriteSample prints a Sample.
func WriteSample(w io.Writer, s Sample) {
	fmt.Fprintf(w, "\nSample of %s:\n", filepath.Base(s.Path))
	fmt.Fprintf(w, "  Records: %s\n", humanize.Comma(s.Records))
	fmt.Fprintf(w, "  Columns: %d\n", len(s.Columns))
	for i, c := range s.Columns {
		fmt.Fprintf(w, "   %2d. %s\n", i+1, c)
	}
	for i, r := range s.Rows {
		fmt.Fprintf(w, "\n  Row %d:\n", i+1)
		for _, f := range r.Fields {
			fmt.Fprintf(w, "    %s: %s\n", f.Name, f.Value)
		}
		fmt.Fprintf(w, "    image: %s\n", r.Image)
	}
}

// DescribeImage summarizes the image column of rec.
func DescribeImage(rec records.Record) string {
	v, ok := rec.Get(schema.Image)
	if !ok || v.IsNull() {
		return "No image"
	}
	payload := v.Blob
	if v.Kind == records.KindStruct {
		payload = nil
		b, _ := v.Member("bytes")
		p, _ := v.Member("path")
		switch {
		case b.Kind == records.KindBlob:
			payload = b.Blob
		case p.Kind != records.KindText || p.Str == "":
			return "No image"
		}
	}
	if w, h, ok := images.Dimensions(payload); ok {
		return transformer.Placeholder(w, h, true)
	}
	return "Image data present"
}

func render(v records.Value) string {
	s, err := transformer.Text(v)
	if err == nil {
		return s
	}
	if v.Kind == records.KindBlob {
		return fmt.Sprintf("<%s binary>", humanize.Bytes(uint64(len(v.Blob))))
	}
	return fmt.Sprintf("<%s>", v.Kind)
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxValueLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxValueLen-3]) + "..."
}
