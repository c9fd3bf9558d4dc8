package inspect

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dsextract/internal/datasource/shard"
	"dsextract/internal/parser/parquet/parquettest"
	"dsextract/pkg/records"
)

func TestDescribeAndWriteInfo(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 7; i++ {
		parquettest.WriteShard(t, filepath.Join(dir, fmt.Sprintf("train-%05d.parquet", i)), []parquettest.Row{{ImageID: "x"}})
	}

	info, err := Describe(shard.Locator{}, dir)
	require.NoError(t, err)
	assert.Len(t, info.Shards, 7)
	assert.Positive(t, info.TotalBytes)

	var buf bytes.Buffer
	WriteInfo(&buf, info)
	out := buf.String()
	assert.Contains(t, out, "Number of parquet files: 7")
	assert.Contains(t, out, "  1. train-00000.parquet\n")
	assert.Contains(t, out, "  5. train-00004.parquet\n")
	assert.NotContains(t, out, "train-00005.parquet")
	assert.Contains(t, out, "  ... and 2 more files\n")
}

func TestWriteInfo_FewShards(t *testing.T) {
	var buf bytes.Buffer
	WriteInfo(&buf, Info{Dir: "d", Shards: []string{"d/a.parquet"}, TotalBytes: 2048})
	assert.NotContains(t, buf.String(), "more files")
	assert.Contains(t, buf.String(), "Total size: 2.0 kB")
}

func TestDescribe_Missing(t *testing.T) {
	_, err := Describe(shard.Locator{}, filepath.Join(t.TempDir(), "nope"))
	require.ErrorIs(t, err, shard.ErrDirectoryNotFound)
}

func TestSampleShard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "00000.parquet")
	long := strings.Repeat("é", 150)
	parquettest.WriteShard(t, path, []parquettest.Row{
		{Image: parquettest.PNG(t, 9, 4, 1), ImageID: "a", Caption: long},
		{ImagePath: "x.jpg", ImageID: "b"},
		{ImageID: "c"},
		{ImageID: "d"},
	})

	s, err := SampleShard(context.Background(), path, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 4, s.Records)
	assert.Len(t, s.Columns, 15)
	require.Len(t, s.Rows, 3)

	assert.Equal(t, "Image available (size: (9, 4))", s.Rows[0].Image)
	assert.Equal(t, "Image data present", s.Rows[1].Image)
	assert.Equal(t, "No image", s.Rows[2].Image)

	var caption string
	for _, f := range s.Rows[0].Fields {
		assert.NotEqual(t, "image", f.Name)
		if f.Name == "caption" {
			caption = f.Value
		}
	}
	assert.Equal(t, strings.Repeat("é", 97)+"...", caption)

	var buf bytes.Buffer
	WriteSample(&buf, s)
	assert.Contains(t, buf.String(), "Records: 4")
	assert.Contains(t, buf.String(), "Row 3:")
	assert.Contains(t, buf.String(), "image_id: c")
}

func TestSampleShard_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.parquet")
	parquettest.WriteCorrupt(t, path)

	_, err := SampleShard(context.Background(), path, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestDescribeImage(t *testing.T) {
	tests := []struct {
		name string
		rec  records.Record
		want string
	}{
		{"absent", records.Record{}, "No image"},
		{"null", records.Record{"image": records.Null()}, "No image"},
		{"undecodable blob", records.Record{"image": records.Blob([]byte("xx"))}, "Image data present"},
		{"path string", records.Record{"image": records.Text("a.png")}, "Image data present"},
		{"empty struct", records.Record{"image": records.Struct(
			records.Field{Name: "bytes", Value: records.Null()},
			records.Field{Name: "path", Value: records.Null()},
		)}, "No image"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DescribeImage(tt.rec))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short"))
	s := strings.Repeat("a", 100)
	assert.Equal(t, s, truncate(s))
	assert.Equal(t, strings.Repeat("a", 97)+"...", truncate(s+"b"))
}
