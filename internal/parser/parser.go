// Package parser defines the contract between shard sources and decoders.
package parser

import (
	"context"

	"dsextract/internal/datasource"
	"dsextract/pkg/records"
)

// Table is a fully decoded shard.
type Table struct {
	// Columns lists the top-level column names in file order.
	Columns []string
	// Records holds every row in file order.
	Records []records.Record
}

// Parser decodes one opened shard. Parse either returns every record of the
// shard or an error; it never returns a partial table.
type Parser interface {
	Parse(ctx context.Context, obj datasource.Object) (*Table, error)
}
