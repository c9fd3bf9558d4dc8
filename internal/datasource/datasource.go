// Package datasource defines how shard bytes are obtained.
package datasource

import (
	"context"
	"io"
)

// Object is an opened shard. Columnar readers need random access because
// the footer is read before any row group.
type Object interface {
	io.Reader
	io.ReaderAt
	io.Seeker
	io.Closer
}

// Source opens one shard.
type Source interface {
	Open(ctx context.Context) (Object, error)
}
