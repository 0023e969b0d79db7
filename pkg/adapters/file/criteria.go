package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/cardsort/pkg/domain"
)

// CriteriaStore implements ports.CriteriaStore as a JSON object keyed by bin number.
type CriteriaStore struct {
	Path string
}

// NewCriteriaStore creates a CriteriaStore for path.
func NewCriteriaStore(path string) *CriteriaStore {
	return &CriteriaStore{Path: path}
}

// Load reads the table. A missing file yields an empty table.
func (s *CriteriaStore) Load(ctx context.Context) (domain.CriteriaTable, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.CriteriaTable{}, nil
		}
		return domain.CriteriaTable{}, fmt.Errorf("failed to read criteria file: %w", err)
	}

	var table domain.CriteriaTable
	if err := json.Unmarshal(data, &table); err != nil {
		return domain.CriteriaTable{}, fmt.Errorf("failed to unmarshal criteria: %w", err)
	}
	return table, nil
}

// Save writes the table atomically.
func (s *CriteriaStore) Save(ctx context.Context, table domain.CriteriaTable) error {
	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal criteria: %w", err)
	}
	return writeAtomic(s.Path, data)
}
