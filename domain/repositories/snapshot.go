package repositories

import (
	"context"

	"github.com/Airegasm/SwellDreams-sub006/domain/entities"
)

// SnapshotStore persists periodic session snapshots for crash recovery.
type SnapshotStore interface {
	Save(ctx context.Context, snap entities.Snapshot) error
	// LoadLatest returns the most recent snapshot, or ok=false when the
	// store is empty.
	LoadLatest(ctx context.Context) (entities.Snapshot, bool, error)
}
