// Package runstate holds the mutable state of one extraction run: the rows
// produced so far, the counters, the fingerprint table used to deduplicate
// image payloads, and the failures behind every skipped shard or record.
//
// A Run is created per invocation and passed by pointer into every
// component. Counters are atomic and the tables are mutex-guarded, so a Run
// may be shared across goroutines, although the pipeline mutates it from a
// single consumer.
package runstate

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"dsextract/internal/schema"
)

// Asset is one image payload materialized to disk.
type Asset struct {
	// Fingerprint is the hex content hash of the source payload.
	Fingerprint string
	// RecordIndex is the index of the first record carrying the payload.
	RecordIndex int64
	// Path is the row value, relative to the output file.
	Path string
	// File is where the PNG was written on disk.
	File   string
	Width  int
	Height int
	// Bytes is the size of the encoded PNG.
	Bytes int64
	// Refs counts the records that reference the asset, including the first.
	Refs int
}

// Failure kinds.
const (
	FailureShard  = "shard"
	FailureRecord = "record"
)

// Failure explains one skipped shard or excluded record. Position and
// RecordIndex are -1 for shard failures.
type Failure struct {
	Kind        string
	Shard       string
	Position    int
	RecordIndex int64
	Reason      string
}

// counters holds the run statistics. All fields are updated atomically.
type counters struct {
	seen          atomic.Int64 // records handed to the normalizer
	succeeded     atomic.Int64 // records normalized into a row
	failed        atomic.Int64 // records excluded from the output
	shardsTotal   atomic.Int64 // shards located
	shardsDone    atomic.Int64 // shards loaded and normalized
	shardsSkipped atomic.Int64 // shards that could not be loaded
	imagesWritten atomic.Int64 // distinct payloads written to disk
	imagesDeduped atomic.Int64 // references resolved from the fingerprint table
}

// Run is the accumulator of one extraction.
type Run struct {
	ID      string
	Started time.Time

	c counters

	mu          sync.Mutex
	rows        []schema.Row
	assets      map[string]*Asset
	assetOrder  []string
	failures    []Failure
	finished    time.Time
	output      string
	outputBytes int64
	rowsWritten int
}

// New returns an empty Run stamped with a fresh ID and the current time.
func New() *Run {
	return &Run{
		ID:      uuid.NewString(),
		Started: time.Now(),
		assets:  make(map[string]*Asset),
	}
}

// RecordSeen counts a record handed to the normalizer.
func (r *Run) RecordSeen() { r.c.seen.Add(1) }

// RecordSucceeded counts a record normalized into a row.
func (r *Run) RecordSucceeded() { r.c.succeeded.Add(1) }

// RecordFailed counts an excluded record and keeps f for the failure report.
func (r *Run) RecordFailed(f Failure) {
	r.c.failed.Add(1)
	f.Kind = FailureRecord
	r.addFailure(f)
}

// AddShards counts located shards.
func (r *Run) AddShards(n int) { r.c.shardsTotal.Add(int64(n)) }

// ShardDone counts a shard whose records were all handed to the normalizer.
func (r *Run) ShardDone() { r.c.shardsDone.Add(1) }

// ShardSkipped counts a shard that could not be loaded.
func (r *Run) ShardSkipped(path string, err error) {
	r.c.shardsSkipped.Add(1)
	r.addFailure(Failure{Kind: FailureShard, Shard: path, Position: -1, RecordIndex: -1, Reason: err.Error()})
}

func (r *Run) addFailure(f Failure) {
	r.mu.Lock()
	r.failures = append(r.failures, f)
	r.mu.Unlock()
}

// Append adds a normalized row at the end of the output sequence.
func (r *Run) Append(row schema.Row) {
	r.mu.Lock()
	r.rows = append(r.rows, row)
	r.mu.Unlock()
}

// Rows returns a copy of the accumulated rows in output order.
func (r *Run) Rows() []schema.Row {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.rows)
}

// Failures returns a copy of the recorded failures in the order they
// happened.
func (r *Run) Failures() []Failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.failures)
}

// Reference resolves fingerprint against the assets written so far. On a
// hit the asset's reference count and the dedup counter are incremented.
func (r *Run) Reference(fingerprint string) (Asset, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[fingerprint]
	if !ok {
		return Asset{}, false
	}
	a.Refs++
	r.c.imagesDeduped.Add(1)
	return *a, true
}

// AddAsset records a newly written asset. If another asset with the same
// fingerprint was added first, that one wins and is returned with ok=false.
func (r *Run) AddAsset(a Asset) (Asset, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, dup := r.assets[a.Fingerprint]; dup {
		prev.Refs++
		r.c.imagesDeduped.Add(1)
		return *prev, false
	}
	if a.Refs == 0 {
		a.Refs = 1
	}
	r.assets[a.Fingerprint] = &a
	r.assetOrder = append(r.assetOrder, a.Fingerprint)
	r.c.imagesWritten.Add(1)
	return a, true
}

// Assets returns the written assets in the order they were first seen.
func (r *Run) Assets() []Asset {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Asset, 0, len(r.assetOrder))
	for _, fp := range r.assetOrder {
		out = append(out, *r.assets[fp])
	}
	return out
}

// Finish stamps the end of the run and what was written.
func (r *Run) Finish(output string, rowsWritten int, outputBytes int64) {
	r.mu.Lock()
	r.finished = time.Now()
	r.output = output
	r.rowsWritten = rowsWritten
	r.outputBytes = outputBytes
	r.mu.Unlock()
}

// Summary returns a consistent snapshot of the counters. Elapsed runs up to
// Finish, or up to now for an unfinished run.
func (r *Run) Summary() Summary {
	r.mu.Lock()
	end := r.finished
	s := Summary{
		RunID:       r.ID,
		Output:      r.output,
		OutputBytes: r.outputBytes,
		RowsWritten: r.rowsWritten,
	}
	r.mu.Unlock()
	if end.IsZero() {
		end = time.Now()
	}
	s.Seen = r.c.seen.Load()
	s.Succeeded = r.c.succeeded.Load()
	s.Failed = r.c.failed.Load()
	s.ShardsTotal = r.c.shardsTotal.Load()
	s.ShardsDone = r.c.shardsDone.Load()
	s.ShardsSkipped = r.c.shardsSkipped.Load()
	s.ImagesWritten = r.c.imagesWritten.Load()
	s.ImagesDeduplicated = r.c.imagesDeduped.Load()
	s.Elapsed = end.Sub(r.Started)
	return s
}
