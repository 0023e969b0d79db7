package ports

import (
	"context"
	"time"

	"github.com/aretw0/cardsort/pkg/domain"
)

// CounterStore persists the sorter counters.
// Load returns zero values for counters that were never written.
type CounterStore interface {
	Load(ctx context.Context) (domain.Counters, error)
	Save(ctx context.Context, counters domain.Counters) error
}

// CriteriaStore persists the ten-slot criteria table.
// Load returns an empty table if nothing was saved yet.
type CriteriaStore interface {
	Load(ctx context.Context) (domain.CriteriaTable, error)
	Save(ctx context.Context, table domain.CriteriaTable) error
}

// ArchivedCard is one row of the card archive.
type ArchivedCard struct {
	ID        int64       `json:"id"`
	CycleID   string      `json:"cycle_id"`
	Card      domain.Card `json:"card"`
	Bin       int         `json:"bin"`
	CreatedAt time.Time   `json:"created_at"`
}

// CardArchive is the durable sink for identified card records.
type CardArchive interface {
	Append(ctx context.Context, cycleID string, card domain.Card, bin int) error
	Recent(ctx context.Context, limit int) ([]ArchivedCard, error)
	Clear(ctx context.Context) error
}

// ArtifactStore manages capture artifacts produced by the recognizer.
type ArtifactStore interface {
	// ArchiveFailed keeps the pre-identification capture under a timestamped name.
	ArchiveFailed(ctx context.Context, at time.Time) error

	// RefreshScanned updates the displayed "last scanned" image.
	RefreshScanned(ctx context.Context) error

	// ListFailed returns the timestamps of archived failures, newest first.
	ListFailed(ctx context.Context) ([]string, error)

	// ClearFailed removes every archived failure artifact.
	ClearFailed(ctx context.Context) error
}
