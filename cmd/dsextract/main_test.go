package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dsextract/internal/parser/parquet/parquettest"
)

/*
execute runs the CLI with args and returns stdout, stderr and the error.
*/
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeDataset(t *testing.T, dir string) {
	t.Helper()
	img := parquettest.PNG(t, 6, 4, 3)
	parquettest.WriteShard(t, filepath.Join(dir, "train-00000.parquet"), []parquettest.Row{
		{Image: img, ImageID: "a", Caption: "first"},
		{Image: img, ImageID: "b"},
	})
	parquettest.WriteShard(t, filepath.Join(dir, "train-00001.parquet"), []parquettest.Row{
		{ImageID: "c"},
	})
}

func TestExtract(t *testing.T) {
	root := t.TempDir()
	data := filepath.Join(root, "data")
	writeDataset(t, data)
	out := filepath.Join(root, "out.csv")

	stdout, stderr, err := execute(t,
		"--data-dir", data,
		"--output", out,
		"--save-images",
		"--images-dir", filepath.Join(root, "images"),
		"--log-file", filepath.Join(root, "extraction.log"),
		"--failures", filepath.Join(root, "failures.csv"),
	)
	require.NoError(t, err, stderr)

	assert.Contains(t, stdout, "Extraction completed successfully!")
	assert.Contains(t, stdout, "records ok:       3")
	assert.Contains(t, stdout, "images written:   1 (1 deduplicated)")
	assert.Contains(t, stderr, "run_id=")

	data2, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data2)), "\n")
	assert.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "image,image_id,question_1"))

	logData, err := os.ReadFile(filepath.Join(root, "extraction.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logData), "extraction complete")
	assert.FileExists(t, filepath.Join(root, "failures.csv"))
}

func TestExtract_MissingDir(t *testing.T) {
	root := t.TempDir()
	_, stderr, err := execute(t,
		"--data-dir", filepath.Join(root, "missing"),
		"--output", filepath.Join(root, "out.csv"),
		"--log-file", "",
	)
	require.Error(t, err)
	assert.Contains(t, stderr, "extraction failed")
}

func TestExtract_InvalidConfig(t *testing.T) {
	root := t.TempDir()
	_, stderr, err := execute(t,
		"--data-dir", root,
		"--output", filepath.Join(root, "out.csv"),
		"--workers", "0",
		"--log-file", "",
	)
	require.ErrorIs(t, err, errInvalidConfig)
	assert.Contains(t, stderr, "error: workers: workers must be >= 1")
}

func TestInfoOnly(t *testing.T) {
	root := t.TempDir()
	writeDataset(t, root)

	stdout, stderr, err := execute(t, "--data-dir", root, "--info-only", "--sample", "1", "--log-file", "")
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, "Number of parquet files: 2")
	assert.Contains(t, stdout, "1. train-00000.parquet")
	assert.Contains(t, stdout, "Records: 2")
	assert.Contains(t, stdout, "image: Image available (size: (6, 4))")
	assert.NotContains(t, stdout, "Row 2:")
}

func TestConfigFile(t *testing.T) {
	root := t.TempDir()
	data := filepath.Join(root, "data")
	writeDataset(t, data)
	out := filepath.Join(root, "from-config.csv")
	cfgPath := filepath.Join(root, "dsextract.yaml")
	cfg := "data_dir: " + data + "\noutput: " + out + "\nlog:\n  file: \"\"\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	_, stderr, err := execute(t, "--config", cfgPath)
	require.NoError(t, err, stderr)
	assert.FileExists(t, out)
	assert.Contains(t, stderr, "Using config file:")
}

func TestBundle(t *testing.T) {
	root := t.TempDir()
	data := filepath.Join(root, "data")
	writeDataset(t, data)
	out := filepath.Join(root, "out.csv")
	imgs := filepath.Join(root, "images")
	_, stderr, err := execute(t, "--data-dir", data, "--output", out, "--save-images", "--images-dir", imgs, "--log-file", "")
	require.NoError(t, err, stderr)

	stdout, _, err := execute(t, "bundle", "rows", "--input", out, "--output", filepath.Join(root, "rows.zip"), "--rows", "2")
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 items")

	stdout, _, err = execute(t, "bundle", "images", "--images-dir", imgs, "--output", filepath.Join(root, "imgs.zip"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 items")
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "dsextract dev\n", stdout)
}
