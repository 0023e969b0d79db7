package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/cardsort/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "cards.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestArchive_AppendRecent(t *testing.T) {
	ctx := context.Background()
	a := openTest(t)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	a.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	require.NoError(t, a.Append(ctx, "c-1", domain.Card{Name: "Opt", Type: "Instant", Colors: []string{"U"}, CMC: 1, SetCode: "XLN"}, 4))
	require.NoError(t, a.Append(ctx, "c-2", domain.Card{Name: "Ornithopter", Type: "Artifact Creature — Thopter"}, 10))
	require.NoError(t, a.Append(ctx, "c-3", domain.Card{Name: "Fires of Yavimaya", Colors: []string{"R", "G"}, CMC: 3}, 7))

	recent, err := a.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c-3", recent[0].CycleID)
	assert.Equal(t, []string{"R", "G"}, recent[0].Card.Colors)
	assert.Equal(t, 7, recent[0].Bin)
	assert.Equal(t, base.Add(3*time.Second), recent[0].CreatedAt)
	assert.Equal(t, "Ornithopter", recent[1].Card.Name)
	assert.Empty(t, recent[1].Card.Colors)

	all, err := a.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, domain.Card{Name: "Opt", Type: "Instant", Colors: []string{"U"}, CMC: 1, SetCode: "XLN"}, all[2].Card)

	require.NoError(t, a.Clear(ctx))
	all, err = a.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestArchive_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cards.db")

	a, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, a.Append(ctx, "c-1", domain.Card{Name: "Opt"}, 1))
	require.NoError(t, a.Close())

	a, err = Open(path)
	require.NoError(t, err)
	defer a.Close()

	var version int
	require.NoError(t, a.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)

	recent, err := a.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "Opt", recent[0].Card.Name)
}
