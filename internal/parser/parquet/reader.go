// Package parquet decodes parquet shards into tagged records.
//
// Shards are read through arrow's pqarrow bridge so nested columns (lists,
// structs such as the {bytes, path} image encoding) arrive as typed arrow
// arrays. Every cell is converted into a records.Value; binary payloads are
// copied out of arrow buffers so records outlive the arrow table.
package parquet

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/apache/arrow/go/v11/arrow"
	"github.com/apache/arrow/go/v11/arrow/array"
	"github.com/apache/arrow/go/v11/arrow/memory"
	"github.com/apache/arrow/go/v11/parquet/file"
	"github.com/apache/arrow/go/v11/parquet/pqarrow"

	"dsextract/internal/datasource"
	localfile "dsextract/internal/datasource/file"
	"dsextract/internal/parser"
	"dsextract/pkg/records"
)

// DefaultBatchSize is the number of rows converted per arrow record.
const DefaultBatchSize = 1024

// Parser decodes parquet shards. The zero value is ready to use.
type Parser struct {
	// BatchSize is the arrow record size used while converting rows.
	BatchSize int64
	// Mem allocates arrow buffers. Nil means memory.DefaultAllocator.
	Mem memory.Allocator
}

var _ parser.Parser = (*Parser)(nil)

// NewParser returns a Parser with default settings.
func NewParser() *Parser { return &Parser{BatchSize: DefaultBatchSize} }

// Parse reads every row group of obj. obj is not closed.
func (p *Parser) Parse(ctx context.Context, obj datasource.Object) (tbl *parser.Table, err error) {
	// Malformed pages can make the decoder panic instead of returning an
	// error; either way the shard is unreadable.
	defer func() {
		if r := recover(); r != nil {
			tbl, err = nil, fmt.Errorf("parquet: decode panic: %v", r)
		}
	}()

	mem := p.Mem
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	batch := p.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	rdr, err := file.NewParquetReader(obj)
	if err != nil {
		return nil, fmt.Errorf("parquet: open reader: %w", err)
	}

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{BatchSize: batch}, mem)
	if err != nil {
		return nil, fmt.Errorf("parquet: arrow reader: %w", err)
	}

	at, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("parquet: read table: %w", err)
	}
	defer at.Release()

	fields := at.Schema().Fields()
	out := &parser.Table{
		Columns: make([]string, len(fields)),
		Records: make([]records.Record, 0, at.NumRows()),
	}
	for i, f := range fields {
		out.Columns[i] = f.Name
	}

	tr := array.NewTableReader(at, batch)
	defer tr.Release()
	for tr.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := tr.Record()
		ncols := int(rec.NumCols())
		for row := 0; row < int(rec.NumRows()); row++ {
			r := make(records.Record, ncols)
			for c := 0; c < ncols; c++ {
				r[out.Columns[c]] = valueAt(rec.Column(c), row)
			}
			out.Records = append(out.Records, r)
		}
	}
	if int64(len(out.Records)) != at.NumRows() {
		return nil, fmt.Errorf("parquet: read %d of %d rows", len(out.Records), at.NumRows())
	}
	return out, nil
}

// ReadFile opens path from the local disk and decodes it.
func (p *Parser) ReadFile(ctx context.Context, path string) (*parser.Table, error) {
	obj, err := localfile.NewLocal(path).Open(ctx)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	tbl, err := p.Parse(ctx, obj)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tbl, nil
}

// CountRows returns the row count recorded in the footer of obj without
// decoding any page.
func CountRows(obj datasource.Object) (int64, error) {
	rdr, err := file.NewParquetReader(obj)
	if err != nil {
		return 0, fmt.Errorf("parquet: open reader: %w", err)
	}
	return rdr.NumRows(), nil
}

func valueAt(arr arrow.Array, i int) records.Value {
	if arr.IsNull(i) {
		return records.Null()
	}
	switch a := arr.(type) {
	case *array.String:
		return records.Text(a.Value(i))
	case *array.LargeString:
		return records.Text(a.Value(i))
	case *array.Binary:
		return records.Blob(bytes.Clone(a.Value(i)))
	case *array.LargeBinary:
		return records.Blob(bytes.Clone(a.Value(i)))
	case *array.FixedSizeBinary:
		return records.Blob(bytes.Clone(a.Value(i)))
	case *array.Boolean:
		return records.Bool(a.Value(i))
	case *array.Int8:
		return records.Int(int64(a.Value(i)))
	case *array.Int16:
		return records.Int(int64(a.Value(i)))
	case *array.Int32:
		return records.Int(int64(a.Value(i)))
	case *array.Int64:
		return records.Int(a.Value(i))
	case *array.Uint8:
		return records.Uint(uint64(a.Value(i)))
	case *array.Uint16:
		return records.Uint(uint64(a.Value(i)))
	case *array.Uint32:
		return records.Uint(uint64(a.Value(i)))
	case *array.Uint64:
		return records.Uint(a.Value(i))
	case *array.Float32:
		return records.Float(float64(a.Value(i)))
	case *array.Float64:
		return records.Float(a.Value(i))
	case *array.Timestamp:
		return records.Time(timestampAt(a, i))
	case *array.Date32:
		return records.Time(time.Unix(int64(a.Value(i))*86400, 0).UTC())
	case *array.Date64:
		return records.Time(time.UnixMilli(int64(a.Value(i))).UTC())
	case *array.List:
		// ValueOffsets honours the slice offset of batches after the first.
		start, end := a.ValueOffsets(i)
		return listValue(a.ListValues(), int(start), int(end))
	case *array.LargeList:
		start, end := a.ValueOffsets(i)
		return listValue(a.ListValues(), int(start), int(end))
	case *array.Struct:
		st := a.DataType().(*arrow.StructType)
		fields := make([]records.Field, a.NumField())
		for f := range fields {
			fields[f] = records.Field{Name: st.Field(f).Name, Value: valueAt(a.Field(f), i)}
		}
		return records.Struct(fields...)
	case *array.Dictionary:
		return valueAt(a.Dictionary(), a.GetValueIndex(i))
	default:
		return records.Unsupported(arr.DataType().String())
	}
}

// timestampAt converts in the column's time zone, falling back to UTC when
// the zone name does not resolve.
func timestampAt(a *array.Timestamp, i int) time.Time {
	tt := a.DataType().(*arrow.TimestampType)
	toTime, err := tt.GetToTimeFunc()
	if err != nil {
		toTime, _ = (&arrow.TimestampType{Unit: tt.Unit}).GetToTimeFunc()
	}
	return toTime(a.Value(i))
}

func listValue(vals arrow.Array, start, end int) records.Value {
	items := make([]records.Value, 0, end-start)
	for j := start; j < end; j++ {
		items = append(items, valueAt(vals, j))
	}
	return records.List(items...)
}
