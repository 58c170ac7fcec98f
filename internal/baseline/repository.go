package baseline

import (
	"context"
	"time"
)

// Repository is the durable metadata index: key -> Record, plus the
// listing/cleanup queries the manager needs. Payload bytes are not the
// repository's concern; that is PayloadStore's job.
type Repository interface {
	// Upsert inserts or replaces the record for (branch, url, element, device).
	Upsert(ctx context.Context, rec Record) (Record, error)
	// FindByKey looks up the unique (branch, url, element, device) row.
	FindByKey(ctx context.Context, branch, url, element, device string) (*Record, error)
	// FindByID looks up a record by its primary key, for the manual strategy.
	FindByID(ctx context.Context, id string) (*Record, error)
	// FindByCommit looks up a record pinned to an exact commit.
	FindByCommit(ctx context.Context, commit, url, element, device string) (*Record, error)
	List(ctx context.Context, filters ListFilters) ([]Record, error)
	// DeleteOlderThan removes records whose UpdatedAt precedes cutoff and
	// returns the deleted records so their payloads can be pruned.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]Record, error)
	MarkQuarantined(ctx context.Context, id string) error
}
