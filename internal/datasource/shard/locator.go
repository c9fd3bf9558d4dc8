// Package shard discovers the input shards of a dataset.
//
// A dataset is one logical table split across many files in one directory,
// conventionally <data-dir>/<split>/<shard-file>. Shards are processed in
// lexicographic name order, which is also the output row order.
package shard

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
)

var (
	// ErrDirectoryNotFound reports a data directory that does not exist or is
	// not a directory.
	ErrDirectoryNotFound = errors.New("data directory not found")
	// ErrNoShardsFound reports a data directory with no file matching the
	// shard pattern.
	ErrNoShardsFound = errors.New("no shards found")
)

// DefaultPattern matches parquet shards.
const DefaultPattern = "*.parquet"

// Locator lists the shards of one dataset directory.
type Locator struct {
	// Pattern is a filepath.Match glob applied to file names. Empty means
	// DefaultPattern.
	Pattern string
	// Split, when set, selects the sub-directory <dir>/<Split>.
	Split string
}

// Locate lists the shards under dir. The listing happens once; the returned
// Shards can be iterated any number of times.
func (l Locator) Locate(dir string) (Shards, error) {
	pattern := l.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return Shards{}, fmt.Errorf("shard pattern %q: %w", pattern, err)
	}

	root := dir
	if l.Split != "" {
		root = filepath.Join(dir, l.Split)
	}

	fi, err := os.Stat(root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Shards{}, fmt.Errorf("%w: %s", ErrDirectoryNotFound, root)
	case err != nil:
		return Shards{}, fmt.Errorf("stat %s: %w", root, err)
	case !fi.IsDir():
		return Shards{}, fmt.Errorf("%w: %s is not a directory", ErrDirectoryNotFound, root)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return Shards{}, fmt.Errorf("read dir %s: %w", root, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ok, _ := filepath.Match(pattern, e.Name()); ok {
			paths = append(paths, filepath.Join(root, e.Name()))
		}
	}
	if len(paths) == 0 {
		return Shards{}, fmt.Errorf("%w: no %s files in %s", ErrNoShardsFound, pattern, root)
	}
	slices.Sort(paths)
	return Shards{dir: root, paths: paths}, nil
}

// Shards is an ordered, replayable list of shard paths.
type Shards struct {
	dir   string
	paths []string
}

// Dir returns the directory the shards were listed from.
func (s Shards) Dir() string { return s.dir }

// Len returns the number of shards.
func (s Shards) Len() int { return len(s.paths) }

// Paths returns a copy of the shard paths in processing order.
func (s Shards) Paths() []string { return slices.Clone(s.paths) }

// All yields (position, path) pairs in processing order.
func (s Shards) All() iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		for i, p := range s.paths {
			if !yield(i, p) {
				return
			}
		}
	}
}

// TotalSize sums the on-disk size of every shard.
func (s Shards) TotalSize() (int64, error) {
	var total int64
	for _, p := range s.paths {
		fi, err := os.Stat(p)
		if err != nil {
			return 0, fmt.Errorf("stat %s: %w", p, err)
		}
		total += fi.Size()
	}
	return total, nil
}
