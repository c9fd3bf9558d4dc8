// Package sqlite stores a catalog of extracted images and run summaries in a
// SQLite database using database/sql and the pure-Go modernc driver.
//
// The manifest lets downstream tooling find the PNG behind a row path, see
// how many records share a payload, and compare runs, without re-reading
// the CSV. Writes are batched inside one transaction per call.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"dsextract/internal/runstate"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	run_id         TEXT PRIMARY KEY,
	finished_at    TEXT NOT NULL,
	seen           INTEGER NOT NULL,
	succeeded      INTEGER NOT NULL,
	failed         INTEGER NOT NULL,
	shards_total   INTEGER NOT NULL,
	shards_skipped INTEGER NOT NULL,
	rows_written   INTEGER NOT NULL,
	output         TEXT NOT NULL,
	elapsed_ms     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS images (
	fingerprint  TEXT PRIMARY KEY,
	path         TEXT NOT NULL,
	record_index INTEGER NOT NULL,
	width        INTEGER NOT NULL,
	height       INTEGER NOT NULL,
	bytes        INTEGER NOT NULL,
	refs         INTEGER NOT NULL,
	run_id       TEXT NOT NULL
);`

const upsertImageSQL = `
INSERT INTO images (fingerprint, path, record_index, width, height, bytes, refs, run_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(fingerprint) DO UPDATE SET
	path = excluded.path,
	record_index = excluded.record_index,
	width = excluded.width,
	height = excluded.height,
	bytes = excluded.bytes,
	refs = excluded.refs,
	run_id = excluded.run_id`

// Manifest is a SQLite-backed image catalog.
type Manifest struct {
	db *sql.DB
}

// Open opens (creating if needed) the manifest at dsn and ensures the schema
// exists. dsn is a file path or a driver DSN such as ":memory:". The returned
// function closes the database.
func Open(ctx context.Context, dsn string) (*Manifest, func(), error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One connection keeps a ":memory:" database alive across calls.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: create schema: %w", err)
	}

	closeFn := func() { db.Close() }
	return &Manifest{db: db}, closeFn, nil
}

// SaveAssets upserts assets keyed by fingerprint and returns the number of
// rows written.
func (m *Manifest) SaveAssets(ctx context.Context, runID string, assets []runstate.Asset) (int64, error) {
	if len(assets) == 0 {
		return 0, nil
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, upsertImageSQL)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("sqlite: prepare upsert: %w", err)
	}
	defer stmt.Close()

	var n int64
	for _, a := range assets {
		if _, err := stmt.ExecContext(ctx, a.Fingerprint, a.Path, a.RecordIndex, a.Width, a.Height, a.Bytes, a.Refs, runID); err != nil {
			_ = tx.Rollback()
			return n, fmt.Errorf("sqlite: upsert %s: %w", a.Fingerprint, err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return n, fmt.Errorf("sqlite: commit: %w", err)
	}
	return n, nil
}

// SaveRun records the summary of a finished run.
func (m *Manifest) SaveRun(ctx context.Context, s runstate.Summary) error {
	_, err := m.db.ExecContext(ctx, `
INSERT OR REPLACE INTO runs (run_id, finished_at, seen, succeeded, failed, shards_total, shards_skipped, rows_written, output, elapsed_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.RunID, time.Now().UTC().Format(time.RFC3339), s.Seen, s.Succeeded, s.Failed,
		s.ShardsTotal, s.ShardsSkipped, s.RowsWritten, s.Output, s.Elapsed.Milliseconds())
	if err != nil {
		return fmt.Errorf("sqlite: save run: %w", err)
	}
	return nil
}

// Assets returns every cataloged image ordered by record index.
func (m *Manifest) Assets(ctx context.Context) ([]runstate.Asset, error) {
	rows, err := m.db.QueryContext(ctx, `
SELECT fingerprint, path, record_index, width, height, bytes, refs
FROM images ORDER BY record_index, fingerprint`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query images: %w", err)
	}
	defer rows.Close()

	var out []runstate.Asset
	for rows.Next() {
		var a runstate.Asset
		if err := rows.Scan(&a.Fingerprint, &a.Path, &a.RecordIndex, &a.Width, &a.Height, &a.Bytes, &a.Refs); err != nil {
			return nil, fmt.Errorf("sqlite: scan image: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate images: %w", err)
	}
	return out, nil
}

// RunCount returns the number of recorded runs.
func (m *Manifest) RunCount(ctx context.Context) (int, error) {
	var n int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count runs: %w", err)
	}
	return n, nil
}
