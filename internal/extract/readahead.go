package extract

import (
	"context"

	"golang.org/x/sync/errgroup"

	"dsextract/internal/parser"
)

// loadFunc decodes one shard completely.
type loadFunc func(ctx context.Context, path string) (*parser.Table, error)

// shardResult is one decoded shard, or the reason it could not be decoded.
type shardResult struct {
	pos   int
	path  string
	table *parser.Table
	err   error
}

// readAhead decodes shards concurrently into one slot per shard so the
// consumer sees them in locate order. The semaphore bounds how many shards
// are in flight or decoded but not yet taken.
//
//	producer ── acquire sem ──► loader(i) ──► slots[i]
//	consumer ◄── slots[0], slots[1], ... ── release sem
type readAhead struct {
	slots  []chan shardResult
	sem    chan struct{}
	g      *errgroup.Group
	cancel context.CancelFunc
}

func startReadAhead(ctx context.Context, paths []string, workers int, load loadFunc) *readAhead {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)

	ra := &readAhead{
		slots:  make([]chan shardResult, len(paths)),
		sem:    make(chan struct{}, workers),
		g:      g,
		cancel: cancel,
	}
	for i := range ra.slots {
		// Buffered so a loader never blocks on a consumer that went away.
		ra.slots[i] = make(chan shardResult, 1)
	}

	g.Go(func() error {
		for i, path := range paths {
			select {
			case ra.sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			g.Go(func() error {
				tbl, err := load(gctx, path)
				ra.slots[i] <- shardResult{pos: i, path: path, table: tbl, err: err}
				return nil
			})
		}
		return nil
	})
	return ra
}

// take waits for shard i and frees its read-ahead slot.
func (ra *readAhead) take(ctx context.Context, i int) (shardResult, error) {
	select {
	case r := <-ra.slots[i]:
		<-ra.sem
		return r, nil
	case <-ctx.Done():
		return shardResult{}, ctx.Err()
	}
}

// stop cancels outstanding loads and waits for every goroutine to exit.
func (ra *readAhead) stop() {
	ra.cancel()
	_ = ra.g.Wait()
}
