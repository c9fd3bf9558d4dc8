// Package extract runs a whole extraction: it locates the shards, decodes
// them (optionally several ahead of the consumer), normalizes every record
// into a row, and writes the rows to the output CSV.
//
// Failures are isolated at two levels. A shard that cannot be decoded is
// skipped and contributes no rows; a record that cannot be normalized is
// excluded. Both are logged at WARN, counted in the Run and kept for the
// failure report. Only a missing data directory, an empty shard listing,
// an unwritable destination or a cancelled context end the run early.
//
// Concurrency model:
//
//	readers (up to Workers shards decoded ahead)
//	     → consumer (index, normalize, materialize, accumulate)
//	     → writer (header + rows, once all shards are consumed)
//
// The consumer is a single goroutine, so record indices, image names and the
// fingerprint table are deterministic regardless of Workers.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dsextract/internal/config"
	"dsextract/internal/datasource/shard"
	"dsextract/internal/images"
	"dsextract/internal/logging"
	"dsextract/internal/metrics"
	"dsextract/internal/output"
	"dsextract/internal/parser"
	"dsextract/internal/parser/parquet"
	"dsextract/internal/runstate"
	"dsextract/internal/storage/sqlite"
	"dsextract/internal/transformer"
)

// loadShardFn is the shard decoder; tests swap it to inject failures.
var loadShardFn loadFunc = func(ctx context.Context, path string) (*parser.Table, error) {
	return parquet.NewParser().ReadFile(ctx, path)
}

// Pipeline is one configured extraction.
type Pipeline struct {
	cfg      config.Config
	log      logging.Logger
	reporter Reporter
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithReporter sets the progress reporter. The default logs progress.
func WithReporter(r Reporter) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.reporter = r
		}
	}
}

// New returns a Pipeline for cfg. A nil log discards diagnostics.
func New(cfg config.Config, log logging.Logger, opts ...Option) *Pipeline {
	if log == nil {
		log = logging.Nop()
	}
	p := &Pipeline{cfg: cfg, log: log}
	p.reporter = LogReporter{Log: log}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run executes the extraction with a fresh Run. The Run is returned even on
// error so callers can report partial counters.
func (p *Pipeline) Run(ctx context.Context) (*runstate.Run, error) {
	run := runstate.New()
	return run, p.Execute(ctx, run)
}

// Execute executes the extraction into run.
func (p *Pipeline) Execute(ctx context.Context, run *runstate.Run) error {
	job := p.cfg.Job

	// 1) Locate.
	start := time.Now()
	loc := shard.Locator{Pattern: p.cfg.Pattern, Split: p.cfg.Split}
	shards, err := loc.Locate(p.cfg.DataDir)
	metrics.RecordStep(job, "locate", err, time.Since(start))
	if err != nil {
		return err
	}
	run.AddShards(shards.Len())
	p.log.Info("found shards", "dir", shards.Dir(), "count", shards.Len())

	// 2) Open the destination before any work so an unwritable path fails fast.
	w, err := output.Create(p.cfg.Output, output.Options{BOM: p.cfg.WriteBOM})
	if err != nil {
		return err
	}
	defer w.Close()

	// 3) Extract.
	start = time.Now()
	err = p.extract(ctx, run, shards)
	metrics.RecordStep(job, "extract", err, time.Since(start))
	if err != nil {
		return err
	}

	// 4) Write.
	start = time.Now()
	n, size, err := p.write(w, run)
	metrics.RecordStep(job, "write", err, time.Since(start))
	if err != nil {
		return err
	}
	run.Finish(w.Path(), n, size)

	s := run.Summary()
	metrics.RecordImage(job, "written", s.ImagesWritten)
	metrics.RecordImage(job, "deduplicated", s.ImagesDeduplicated)
	p.log.Info("extraction complete",
		"rows", n,
		"failed", s.Failed,
		"shards_skipped", s.ShardsSkipped,
		"images", s.ImagesWritten,
		"elapsed", s.Elapsed.Round(time.Millisecond))

	p.writeReports(ctx, run)
	return nil
}

func (p *Pipeline) normalizer() *transformer.Normalizer {
	if !p.cfg.SaveImages {
		return transformer.NewNormalizer(nil)
	}
	return transformer.NewNormalizer(images.NewMaterializer(p.cfg.ImagesDir, filepath.Dir(p.cfg.Output)))
}

func (p *Pipeline) extract(ctx context.Context, run *runstate.Run, shards shard.Shards) error {
	job := p.cfg.Job
	every := int64(p.cfg.ProgressEvery)
	norm := p.normalizer()

	paths := shards.Paths()
	ra := startReadAhead(ctx, paths, p.cfg.Workers, loadShardFn)
	defer ra.stop()

	var index int64
	for pos := range paths {
		res, err := ra.take(ctx, pos)
		if err != nil {
			return err
		}
		if res.err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			p.log.Warn("skipping shard", "shard", res.path, "error", res.err)
			run.ShardSkipped(res.path, res.err)
			metrics.RecordShard(job, "skipped")
			continue
		}

		p.log.Debug("processing shard", "shard", res.path, "records", len(res.table.Records))
		var seen, ok, failed int64
		for i, rec := range res.table.Records {
			if err := ctx.Err(); err != nil {
				return err
			}
			idx := index
			index++
			run.RecordSeen()
			seen++

			row, err := norm.Normalize(rec, idx, run)
			if err != nil {
				p.log.Warn("skipping record",
					"shard", res.path,
					"shard_position", i,
					"record_index", idx,
					"error", err)
				run.RecordFailed(runstate.Failure{
					Shard:       res.path,
					Position:    i,
					RecordIndex: idx,
					Reason:      err.Error(),
				})
				failed++
			} else {
				run.Append(row)
				ok++
			}

			if every > 0 && index%every == 0 {
				p.reporter.Report(Progress{Shard: res.path, Position: pos, ShardsTotal: len(paths), Summary: run.Summary()})
			}
		}
		res.table = nil

		run.ShardDone()
		metrics.RecordShard(job, "processed")
		metrics.RecordRow(job, "seen", seen)
		metrics.RecordRow(job, "succeeded", ok)
		metrics.RecordRow(job, "failed", failed)
		p.reporter.Report(Progress{Shard: res.path, Position: pos, ShardsTotal: len(paths), ShardDone: true, Summary: run.Summary()})
	}
	p.reporter.Report(Progress{Position: len(paths) - 1, ShardsTotal: len(paths), Final: true, Summary: run.Summary()})
	return nil
}

func (p *Pipeline) write(w *output.Writer, run *runstate.Run) (int, int64, error) {
	if err := w.WriteRows(run.Rows()); err != nil {
		return 0, 0, err
	}
	if err := w.Close(); err != nil {
		return 0, 0, err
	}
	fi, err := os.Stat(w.Path())
	if err != nil {
		return w.Rows(), 0, &output.WriteError{Path: w.Path(), Op: "stat", Err: err}
	}
	p.log.Info("wrote output", "path", w.Path(), "rows", w.Rows())
	return w.Rows(), fi.Size(), nil
}

// writeReports emits the optional failure report and image manifest. The
// output file already exists at this point, so failures here are logged
// and do not fail the run.
func (p *Pipeline) writeReports(ctx context.Context, run *runstate.Run) {
	if path := p.cfg.FailuresFile; path != "" {
		if err := WriteFailures(path, run.Failures()); err != nil {
			p.log.Error("failure report not written", "path", path, "error", err)
		} else {
			p.log.Info("wrote failure report", "path", path, "entries", len(run.Failures()))
		}
	}

	if p.cfg.ManifestDB == "" || !p.cfg.SaveImages {
		return
	}
	if err := saveManifest(ctx, p.cfg.ManifestDB, run); err != nil {
		p.log.Error("manifest not written", "path", p.cfg.ManifestDB, "error", err)
		return
	}
	p.log.Info("wrote image manifest", "path", p.cfg.ManifestDB, "images", len(run.Assets()))
}

func saveManifest(ctx context.Context, dsn string, run *runstate.Run) error {
	if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	m, closeFn, err := sqlite.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer closeFn()
	if _, err := m.SaveAssets(ctx, run.ID, run.Assets()); err != nil {
		return err
	}
	return m.SaveRun(ctx, run.Summary())
}
