package ports

import (
	"context"
	"testing"

	"github.com/aretw0/cardsort/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCounterStoreContract runs a suite of tests to verify that a CounterStore implementation
// adheres to the defined interface contract. The store must start empty.
func RunCounterStoreContract(t *testing.T, store CounterStore) {
	ctx := context.Background()

	t.Run("Load Empty", func(t *testing.T) {
		c, err := store.Load(ctx)
		require.NoError(t, err, "Load on an empty store should not fail")
		assert.Equal(t, domain.Counters{}, c)
	})

	t.Run("Save and Load", func(t *testing.T) {
		want := domain.Counters{Lifetime: 1234, Monthly: 56, Failed: 7}
		require.NoError(t, store.Save(ctx, want))

		got, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, domain.Counters{Lifetime: 10, Monthly: 10, Failed: 1}))
		require.NoError(t, store.Save(ctx, domain.Counters{Lifetime: 11, Monthly: 0, Failed: 1}))

		got, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.Counters{Lifetime: 11, Monthly: 0, Failed: 1}, got)
	})
}

// RunCriteriaStoreContract verifies a CriteriaStore implementation. The store must start empty.
func RunCriteriaStoreContract(t *testing.T, store CriteriaStore) {
	ctx := context.Background()

	t.Run("Load Empty", func(t *testing.T) {
		table, err := store.Load(ctx)
		require.NoError(t, err)
		for i, c := range table {
			assert.True(t, c.IsEmpty(), "bin %d should be empty", i+1)
		}
	})

	t.Run("Save and Load", func(t *testing.T) {
		var table domain.CriteriaTable
		table[0] = domain.BinCriteria{Name: "A-M"}
		table[2] = domain.BinCriteria{Type: "Creature", Colors: []string{"G", "W"}}
		table[9] = domain.BinCriteria{CMC: "3", SetCode: "blc"}

		require.NoError(t, store.Save(ctx, table))

		got, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "A-M", got[0].Name)
		assert.Equal(t, "Creature", got[2].Type)
		assert.ElementsMatch(t, []string{"G", "W"}, got[2].Colors)
		assert.Equal(t, "3", got[9].CMC)
		assert.Equal(t, "blc", got[9].SetCode)
		assert.True(t, got[1].IsEmpty())
	})
}
