package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/cardsort/pkg/domain"
	"github.com/aretw0/cardsort/pkg/ports"
)

// ArtifactStore implements ports.ArtifactStore in memory.
type ArtifactStore struct {
	mu        sync.Mutex
	failed    []string
	refreshes int
}

// NewArtifactStore creates an empty artifact store.
func NewArtifactStore() *ArtifactStore {
	return &ArtifactStore{}
}

// ArchiveFailed implements ports.ArtifactStore.
func (s *ArtifactStore) ArchiveFailed(ctx context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, at.Format("20060102-150405"))
	return nil
}

// RefreshScanned implements ports.ArtifactStore.
func (s *ArtifactStore) RefreshScanned(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes++
	return nil
}

// ListFailed implements ports.ArtifactStore.
func (s *ArtifactStore) ListFailed(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.failed...)
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}

// ClearFailed implements ports.ArtifactStore.
func (s *ArtifactStore) ClearFailed(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = nil
	return nil
}

// Refreshes returns how many times the scanned image was refreshed.
func (s *ArtifactStore) Refreshes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes
}

// CardArchive implements ports.CardArchive in memory.
type CardArchive struct {
	mu   sync.Mutex
	rows []ports.ArchivedCard
}

// NewCardArchive creates an empty archive.
func NewCardArchive() *CardArchive {
	return &CardArchive{}
}

// Append implements ports.CardArchive.
func (a *CardArchive) Append(ctx context.Context, cycleID string, card domain.Card, bin int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rows = append(a.rows, ports.ArchivedCard{
		ID:        int64(len(a.rows) + 1),
		CycleID:   cycleID,
		Card:      card,
		Bin:       bin,
		CreatedAt: time.Now(),
	})
	return nil
}

// Recent implements ports.CardArchive, newest first.
func (a *CardArchive) Recent(ctx context.Context, limit int) ([]ports.ArchivedCard, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]ports.ArchivedCard, 0, len(a.rows))
	for i := len(a.rows) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, a.rows[i])
	}
	return out, nil
}

// Clear implements ports.CardArchive.
func (a *CardArchive) Clear(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rows = nil
	return nil
}
