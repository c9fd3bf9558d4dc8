package parquet

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow/go/v11/arrow"
	"github.com/apache/arrow/go/v11/arrow/array"
	"github.com/apache/arrow/go/v11/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	localfile "dsextract/internal/datasource/file"
	"dsextract/internal/parser/parquet/parquettest"
	"dsextract/pkg/records"
)

func TestReadFile_DatasetShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "00000.parquet")
	payload := parquettest.PNG(t, 4, 3, 10)
	parquettest.WriteShard(t, path, []parquettest.Row{
		{Image: payload, ImageID: "PMC1_fig1", Caption: "a, \"b\"\nc", InlineMentions: []string{"x", "y"}},
		{ImagePath: "figs/2.jpg", ImageID: "PMC2_fig1"},
		{ImageID: "PMC3_fig1"},
	})

	tbl, err := NewParser().ReadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, tbl.Records, 3)
	assert.Equal(t, parquettest.Schema.Field(0).Name, tbl.Columns[0])
	assert.Len(t, tbl.Columns, 15)

	r0 := tbl.Records[0]
	img, ok := r0.Get("image")
	require.True(t, ok)
	require.Equal(t, records.KindStruct, img.Kind)
	b, ok := img.Member("bytes")
	require.True(t, ok)
	assert.Equal(t, records.KindBlob, b.Kind)
	assert.Equal(t, payload, b.Blob)
	p, _ := img.Member("path")
	assert.True(t, p.IsNull())

	assert.Equal(t, records.Text("PMC1_fig1"), r0["image_id"])
	assert.Equal(t, records.Text("a, \"b\"\nc"), r0["caption"])
	assert.Equal(t, records.List(records.Text("x"), records.Text("y")), r0["inline_mentions"])
	assert.True(t, r0["question_1"].IsNull())

	img1 := tbl.Records[1]["image"]
	p1, _ := img1.Member("path")
	assert.Equal(t, records.Text("figs/2.jpg"), p1)
	assert.True(t, tbl.Records[1]["inline_mentions"].IsNull())

	assert.Equal(t, records.Text("PMC3_fig1"), tbl.Records[2]["image_id"])
}

func TestReadFile_ScalarKinds(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "i", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
		{Name: "u", Type: arrow.PrimitiveTypes.Uint16, Nullable: true},
		{Name: "f", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "b", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
	}, nil)
	bld := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer bld.Release()
	bld.Field(0).(*array.Int32Builder).AppendValues([]int32{-7, 0}, []bool{true, false})
	bld.Field(1).(*array.Uint16Builder).AppendValues([]uint16{9, 1}, nil)
	bld.Field(2).(*array.Float64Builder).AppendValues([]float64{1.5, 2}, nil)
	bld.Field(3).(*array.BooleanBuilder).AppendValues([]bool{true, false}, nil)
	rec := bld.NewRecord()
	defer rec.Release()

	path := filepath.Join(t.TempDir(), "kinds.parquet")
	parquettest.WriteRecord(t, path, rec)

	tbl, err := NewParser().ReadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, tbl.Records, 2)
	assert.Equal(t, []string{"i", "u", "f", "b"}, tbl.Columns)

	assert.Equal(t, records.Int(-7), tbl.Records[0]["i"])
	assert.Equal(t, records.Uint(9), tbl.Records[0]["u"])
	assert.Equal(t, records.Float(1.5), tbl.Records[0]["f"])
	assert.Equal(t, records.Bool(true), tbl.Records[0]["b"])
	assert.True(t, tbl.Records[1]["i"].IsNull())
	assert.Equal(t, records.Bool(false), tbl.Records[1]["b"])
}

func batchRows(n int) []parquettest.Row {
	rows := make([]parquettest.Row, n)
	for i := range rows {
		rows[i] = parquettest.Row{
			Image:          []byte(fmt.Sprintf("img-%d", i)),
			ImageID:        fmt.Sprintf("PMC%d_fig1", i),
			InlineMentions: []string{fmt.Sprintf("m%d-a", i), fmt.Sprintf("m%d-b", i)},
		}
		if i%3 == 1 {
			rows[i].InlineMentions = []string{fmt.Sprintf("m%d-a", i)}
		}
	}
	return rows
}

func assertBatchRows(t *testing.T, want []parquettest.Row, got []records.Record) {
	t.Helper()
	require.Len(t, got, len(want))
	for i, w := range want {
		r := got[i]
		assert.Equal(t, records.Text(w.ImageID), r["image_id"], "row %d", i)

		items := make([]records.Value, len(w.InlineMentions))
		for j, m := range w.InlineMentions {
			items[j] = records.Text(m)
		}
		assert.Equal(t, records.List(items...), r["inline_mentions"], "row %d", i)

		b, ok := r["image"].Member("bytes")
		require.True(t, ok, "row %d", i)
		assert.Equal(t, w.Image, b.Blob, "row %d", i)
	}
}

func TestReadFile_AcrossBatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "00000.parquet")
	rows := batchRows(5)
	parquettest.WriteShard(t, path, rows)

	tbl, err := (&Parser{BatchSize: 2}).ReadFile(context.Background(), path)
	require.NoError(t, err)
	assertBatchRows(t, rows, tbl.Records)
}

func TestReadFile_PastDefaultBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "00000.parquet")
	rows := batchRows(DefaultBatchSize+7)
	parquettest.WriteShard(t, path, rows)

	tbl, err := NewParser().ReadFile(context.Background(), path)
	require.NoError(t, err)
	assertBatchRows(t, rows, tbl.Records)
}

func TestReadFile_TimestampRange(t *testing.T) {
	far := time.Date(2500, 3, 1, 12, 30, 0, 0, time.UTC)
	near := time.Date(2021, 6, 7, 8, 9, 10, 123_000_000, time.UTC)

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "ts", Type: &arrow.TimestampType{Unit: arrow.Millisecond, TimeZone: "UTC"}, Nullable: true},
	}, nil)
	bld := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer bld.Release()
	bld.Field(0).(*array.TimestampBuilder).AppendValues([]arrow.Timestamp{
		arrow.Timestamp(far.UnixMilli()),
		arrow.Timestamp(near.UnixMilli()),
	}, nil)
	rec := bld.NewRecord()
	defer rec.Release()

	path := filepath.Join(t.TempDir(), "ts.parquet")
	parquettest.WriteRecord(t, path, rec)

	tbl, err := NewParser().ReadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, tbl.Records, 2)

	v0 := tbl.Records[0]["ts"]
	require.Equal(t, records.KindTime, v0.Kind)
	assert.True(t, far.Equal(v0.Time), "got %s", v0.Time)
	assert.True(t, near.Equal(tbl.Records[1]["ts"].Time), "got %s", tbl.Records[1]["ts"].Time)
}

func TestReadFile_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.parquet")
	parquettest.WriteCorrupt(t, path)

	_, err := NewParser().ReadFile(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestReadFile_Missing(t *testing.T) {
	_, err := NewParser().ReadFile(context.Background(), filepath.Join(t.TempDir(), "nope.parquet"))
	require.Error(t, err)
}

func TestCountRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "00000.parquet")
	parquettest.WriteShard(t, path, []parquettest.Row{{ImageID: "a"}, {ImageID: "b"}})

	obj, err := localfile.NewLocal(path).Open(context.Background())
	require.NoError(t, err)
	defer obj.Close()

	n, err := CountRows(obj)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}
