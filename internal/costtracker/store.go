package costtracker

import (
	"context"
	"time"
)

// Store is the append-only cost ledger persistence contract. Record
// is the only path that adds entries and entries are never updated,
// mirroring this codebase's usage-ledger invariant that billing rows
// are immutable once written. Clear is the one deletion path: it
// empties the whole ledger.
type Store interface {
	Record(ctx context.Context, e Entry) error
	SumSince(ctx context.Context, since time.Time) (float64, error)
	Stats(ctx context.Context, since time.Time) (Stats, error)
	Clear(ctx context.Context) error
}
