package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/cardsort/pkg/adapters/file"
	"github.com/aretw0/cardsort/pkg/domain"
	"github.com/aretw0/cardsort/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterStore_Contract(t *testing.T) {
	ports.RunCounterStoreContract(t, file.NewCounterStore(t.TempDir()))
}

func TestCounterStore_Files(t *testing.T) {
	dir := t.TempDir()
	store := file.NewCounterStore(dir)

	require.NoError(t, store.Save(context.Background(), domain.Counters{Lifetime: 812, Monthly: 40, Failed: 3}))

	for name, want := range map[string]string{
		file.LifetimeFile: "812",
		file.MonthlyFile:  "40",
		file.FailedFile:   "3",
	} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, want, string(data), name)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3, "temp files must not be left behind")
}

func TestCounterStore_Load(t *testing.T) {
	t.Run("Partial Files", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, file.LifetimeFile), []byte("57\n"), 0644))

		c, err := file.NewCounterStore(dir).Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, domain.Counters{Lifetime: 57}, c)
	})

	t.Run("Garbage", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, file.MonthlyFile), []byte("lots"), 0644))

		_, err := file.NewCounterStore(dir).Load(context.Background())
		assert.ErrorContains(t, err, file.MonthlyFile)
	})
}

func TestCriteriaStore_Contract(t *testing.T) {
	ports.RunCriteriaStoreContract(t, file.NewCriteriaStore(filepath.Join(t.TempDir(), "criteria.json")))
}

func TestCriteriaStore_RejectsUnknownBin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "criteria.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"11": {"type": "Land"}}`), 0644))

	_, err := file.NewCriteriaStore(path).Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidBin)
}

func newArtifacts(t *testing.T) (*file.ArtifactStore, string) {
	t.Helper()
	dir := t.TempDir()
	return &file.ArtifactStore{
		ScanPath:    filepath.Join(dir, "card_scan.png"),
		CropPath:    filepath.Join(dir, "combined_crop.jpg"),
		DisplayPath: filepath.Join(dir, "static", "last_scanned.png"),
		FailedDir:   filepath.Join(dir, "failed"),
	}, dir
}

func TestArtifactStore_ArchiveFailed(t *testing.T) {
	ctx := context.Background()
	store, _ := newArtifacts(t)
	require.NoError(t, os.WriteFile(store.ScanPath, []byte("scan"), 0644))
	require.NoError(t, os.WriteFile(store.CropPath, []byte("crop"), 0644))

	at := time.Date(2024, 5, 17, 21, 4, 9, 0, time.UTC)
	require.NoError(t, store.ArchiveFailed(ctx, at))

	data, err := os.ReadFile(filepath.Join(store.FailedDir, "failed_20240517-210409.png"))
	require.NoError(t, err)
	assert.Equal(t, "scan", string(data))
	data, err = os.ReadFile(filepath.Join(store.FailedDir, "20240517-210409_combined_crop.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "crop", string(data))

	// A missing crop is not an error.
	require.NoError(t, os.Remove(store.CropPath))
	require.NoError(t, store.ArchiveFailed(ctx, at.Add(time.Minute)))

	stamps, err := store.ListFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"20240517-210509", "20240517-210409"}, stamps)

	require.NoError(t, store.ClearFailed(ctx))
	stamps, err = store.ListFailed(ctx)
	require.NoError(t, err)
	assert.Empty(t, stamps)
	entries, err := os.ReadDir(store.FailedDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestArtifactStore_MissingCapture(t *testing.T) {
	ctx := context.Background()
	store, _ := newArtifacts(t)

	assert.ErrorIs(t, store.ArchiveFailed(ctx, time.Now()), domain.ErrNotFound)
	assert.ErrorIs(t, store.RefreshScanned(ctx), domain.ErrNotFound)

	stamps, err := store.ListFailed(ctx)
	require.NoError(t, err)
	assert.Empty(t, stamps)
	assert.NoError(t, store.ClearFailed(ctx))
}

func TestArtifactStore_RefreshScanned(t *testing.T) {
	store, _ := newArtifacts(t)
	require.NoError(t, os.WriteFile(store.ScanPath, []byte("v1"), 0644))
	require.NoError(t, store.RefreshScanned(context.Background()))
	require.NoError(t, os.WriteFile(store.ScanPath, []byte("v2"), 0644))
	require.NoError(t, store.RefreshScanned(context.Background()))

	data, err := os.ReadFile(store.DisplayPath)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}
