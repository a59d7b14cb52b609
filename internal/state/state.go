package state

import (
	"context"
	"time"

	"github.com/eastgate/supplysync/internal/domain"
)

// Store persists product and variant snapshots keyed by the upstream external
// id. All writes are idempotent upserts: re-applying the same batch converges
// to the same rows. The store does not serialize concurrent writers for one
// PID — the claim service is what keeps two workers from writing the same PID
// at the same time.
type Store interface {
	// BulkUpsertProducts inserts or updates all records in one call.
	BulkUpsertProducts(ctx context.Context, recs []domain.Product) error

	GetProduct(ctx context.Context, pid string) (domain.Product, bool, error)

	// MarkRemoved flags a delisted product: inactive, sync disabled, with the
	// upstream reason recorded.
	MarkRemoved(ctx context.Context, pid, reason string, now time.Time) error

	// ClearRemoval undoes MarkRemoved after a successful sync and stamps
	// LastSyncedAt. SyncEnabled is left as-is; re-enabling is an operator
	// decision.
	ClearRemoval(ctx context.Context, pid string, now time.Time) error

	UpsertVariant(ctx context.Context, v domain.Variant) error

	ListVariants(ctx context.Context, pid string) ([]domain.Variant, error)
}
