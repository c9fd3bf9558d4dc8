package extract

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"dsextract/internal/runstate"
)

var failureHeader = []string{"kind", "shard", "shard_position", "record_index", "reason"}

// WriteFailures writes one CSV line per skipped shard or failed record.
// Shard failures leave shard_position and record_index empty.
func WriteFailures(path string, failures []runstate.Failure) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	_ = w.Write(failureHeader)
	for _, fl := range failures {
		pos, idx := "", ""
		if fl.Position >= 0 {
			pos = strconv.Itoa(fl.Position)
		}
		if fl.RecordIndex >= 0 {
			idx = strconv.FormatInt(fl.RecordIndex, 10)
		}
		_ = w.Write([]string{fl.Kind, fl.Shard, pos, idx, fl.Reason})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
