package memory_test

import (
	"testing"

	"github.com/aretw0/cardsort/pkg/adapters/memory"
	"github.com/aretw0/cardsort/pkg/domain"
	"github.com/aretw0/cardsort/pkg/ports"
)

func TestCounterStore_Contract(t *testing.T) {
	ports.RunCounterStoreContract(t, memory.NewCounterStore(domain.Counters{}))
}

func TestCriteriaStore_Contract(t *testing.T) {
	ports.RunCriteriaStoreContract(t, memory.NewCriteriaStore(domain.CriteriaTable{}))
}
